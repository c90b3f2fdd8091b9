// Package selfcheck verifies that a format reproduces its own input: a
// document is read, written back in the same format with source details
// preserved, and read again. The report compares bytes, tree structure and
// the fidelity of the round trip against a loss budget.
package selfcheck

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/FocuswithJustin/Rescribe/core/cas"
	"github.com/FocuswithJustin/Rescribe/core/convert"
	"github.com/FocuswithJustin/Rescribe/core/ir"
	"github.com/FocuswithJustin/Rescribe/core/plugins"
)

// Version is the report format version.
const Version = "1.0.0"

// Status values for reports.
const (
	StatusPass = "pass"
	StatusFail = "fail"
)

// Check types.
const (
	CheckByteEqual        = "BYTE_EQUAL"
	CheckIRStructureEqual = "IR_STRUCTURE_EQUAL"
	CheckIRFidelity       = "IR_FIDELITY"
)

// Report is the output of a self-check.
type Report struct {
	ReportVersion string         `json:"report_version"`
	CreatedAt     string         `json:"created_at"`
	Format        string         `json:"format"`
	Results       []CheckResult  `json:"results"`
	Loss          *ir.LossReport `json:"loss_report,omitempty"`
	Status        string         `json:"status"`
}

// CheckResult is the result of a single check. Checks that are not
// required are reported but do not fail the report.
type CheckResult struct {
	CheckType string    `json:"check_type"`
	Label     string    `json:"label"`
	Pass      bool      `json:"pass"`
	Required  bool      `json:"required"`
	Expected  *HashInfo `json:"expected,omitempty"`
	Actual    *HashInfo `json:"actual,omitempty"`
	Details   any       `json:"details,omitempty"`
}

// HashInfo contains hash information for comparison.
type HashInfo struct {
	SHA256 string `json:"sha256,omitempty"`
}

// ToJSON serializes the report to JSON.
func (r *Report) ToJSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// Hash returns the SHA-256 hash of the report.
func (r *Report) Hash() string {
	data, _ := json.Marshal(r)
	return cas.Hash(data)
}

// Passed reports whether every required check passed.
func (r *Report) Passed() bool { return r.Status == StatusPass }

// RoundTrip reads input with format, writes it back with the same format
// and reads the result again. A nil budget means SemanticallyLossless.
// Errors are returned when a step cannot run at all; a run that completes
// with mismatches yields a failing report.
func RoundTrip(conv *convert.Converter, input []byte, format string, budget *LossBudget) (*Report, error) {
	if budget == nil {
		budget = SemanticallyLossless()
	}
	parse := plugins.ParseOptions{PreserveSourceInfo: true}

	first, err := conv.Read(input, format, parse)
	if err != nil {
		return nil, fmt.Errorf("initial read: %w", err)
	}
	written, err := conv.Write(first.Value, format, plugins.EmitOptions{UseSourceInfo: true})
	if err != nil {
		return nil, fmt.Errorf("write back: %w", err)
	}
	second, err := conv.Read(written.Value, format, parse)
	if err != nil {
		return nil, fmt.Errorf("second read: %w", err)
	}

	report := &Report{
		ReportVersion: Version,
		CreatedAt:     time.Now().UTC().Format(time.RFC3339),
		Format:        format,
	}

	inHash, outHash := cas.Hash(input), cas.Hash(written.Value)
	report.Results = append(report.Results, CheckResult{
		CheckType: CheckByteEqual,
		Label:     "output bytes match input",
		Pass:      inHash == outHash,
		Expected:  &HashInfo{SHA256: inHash},
		Actual:    &HashInfo{SHA256: outHash},
	})

	a, b := structureHash(first.Value.Content), structureHash(second.Value.Content)
	structure := CheckResult{
		CheckType: CheckIRStructureEqual,
		Label:     "re-read tree matches original",
		Pass:      a == b,
		Required:  true,
		Expected:  &HashInfo{SHA256: a},
		Actual:    &HashInfo{SHA256: b},
	}
	if a != b {
		structure.Details = map[string]int{
			"expected_nodes": ir.Count(first.Value.Content),
			"actual_nodes":   ir.Count(second.Value.Content),
		}
	}
	report.Results = append(report.Results, structure)

	warnings := append(append([]ir.FidelityWarning(nil), written.Warnings...), second.Warnings...)
	report.Loss = ir.NewLossReport(format, format, warnings)
	verdict := budget.Check(report.Loss)
	report.Results = append(report.Results, CheckResult{
		CheckType: CheckIRFidelity,
		Label:     "round trip within loss budget",
		Pass:      verdict.WithinBudget,
		Required:  true,
		Details:   verdict,
	})

	report.Status = StatusPass
	for _, r := range report.Results {
		if r.Required && !r.Pass {
			report.Status = StatusFail
		}
	}
	return report, nil
}

// structureHash fingerprints a tree by kinds, properties and text, ignoring
// source spans.
func structureHash(n ir.Node) string {
	var b strings.Builder
	writeStructure(&b, n)
	return cas.Hash([]byte(b.String()))
}

func writeStructure(b *strings.Builder, n ir.Node) {
	b.WriteString(string(n.Kind))
	if n.Props.Len() > 0 {
		b.WriteByte('{')
		for i, k := range n.Props.Keys() {
			if i > 0 {
				b.WriteByte(',')
			}
			v, _ := n.Props.Get(k)
			fmt.Fprintf(b, "%q=%#v", k, v)
		}
		b.WriteByte('}')
	}
	if len(n.Children) > 0 {
		b.WriteByte('(')
		for i, c := range n.Children {
			if i > 0 {
				b.WriteByte(';')
			}
			writeStructure(b, c)
		}
		b.WriteByte(')')
	}
}
