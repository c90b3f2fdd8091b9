package selfcheck

import (
	"fmt"
	"slices"
	"strings"

	apperrors "github.com/FocuswithJustin/Rescribe/core/errors"
	"github.com/FocuswithJustin/Rescribe/core/ir"
)

// LossBudget defines acceptable loss thresholds for a conversion.
type LossBudget struct {
	// MaxLossClass is the maximum acceptable loss class (e.g., L1 means L0 and L1 are ok).
	MaxLossClass ir.LossClass `json:"max_loss_class"`

	// MaxLostElements is the maximum number of lost elements allowed (0 = any).
	MaxLostElements int `json:"max_lost_elements,omitempty"`

	// AllowedCategories lists warning categories whose lost elements are not
	// counted against MaxLostElements (e.g., "unsupported_node").
	AllowedCategories []string `json:"allowed_categories,omitempty"`
}

// NewLossBudget creates a budget allowing up to the specified loss class.
func NewLossBudget(maxClass ir.LossClass) *LossBudget {
	return &LossBudget{
		MaxLossClass: maxClass,
	}
}

// LosslessOnly creates a budget that only allows L0 (lossless) conversions.
func LosslessOnly() *LossBudget {
	return &LossBudget{
		MaxLossClass: ir.LossL0,
	}
}

// SemanticallyLossless creates a budget allowing L0-L1 (content preserved).
func SemanticallyLossless() *LossBudget {
	return &LossBudget{
		MaxLossClass: ir.LossL1,
	}
}

// ParseLossClass parses "L0".."L4", case-insensitively.
func ParseLossClass(s string) (ir.LossClass, error) {
	c := ir.LossClass(strings.ToUpper(strings.TrimSpace(s)))
	if !c.IsValid() {
		return "", apperrors.NewValidation("loss class", fmt.Sprintf("%q is not one of L0, L1, L2, L3, L4", s))
	}
	return c, nil
}

// IsWithinBudget checks if a loss report is within the budget constraints.
func (b *LossBudget) IsWithinBudget(report *ir.LossReport) bool {
	return b.Check(report).WithinBudget
}

// countRelevantLostElements counts lost elements outside the allowed
// categories.
func (b *LossBudget) countRelevantLostElements(report *ir.LossReport) int {
	count := 0
	for _, elem := range report.LostElements {
		if !slices.Contains(b.AllowedCategories, elem.Category) {
			count++
		}
	}
	return count
}

// LossBudgetResult describes the result of checking a loss report against a budget.
type LossBudgetResult struct {
	// WithinBudget is true if the report is within the budget.
	WithinBudget bool `json:"within_budget"`

	// ActualLossClass is the loss class from the report.
	ActualLossClass ir.LossClass `json:"actual_loss_class"`

	// MaxAllowedClass is the maximum allowed from the budget.
	MaxAllowedClass ir.LossClass `json:"max_allowed_class"`

	// LostElementCount is the number of lost elements.
	LostElementCount int `json:"lost_element_count"`

	// Violations lists specific violations.
	Violations []string `json:"violations,omitempty"`
}

// Check performs a detailed check and returns a result.
func (b *LossBudget) Check(report *ir.LossReport) *LossBudgetResult {
	result := &LossBudgetResult{
		MaxAllowedClass: b.MaxLossClass,
		WithinBudget:    true,
	}

	if report == nil {
		result.ActualLossClass = ir.LossL0
		return result
	}

	result.ActualLossClass = report.LossClass
	result.LostElementCount = len(report.LostElements)

	if report.LossClass.Level() > b.MaxLossClass.Level() {
		result.WithinBudget = false
		result.Violations = append(result.Violations,
			"loss class "+string(report.LossClass)+" exceeds budget "+string(b.MaxLossClass))
	}

	if b.MaxLostElements > 0 {
		if count := b.countRelevantLostElements(report); count > b.MaxLostElements {
			result.WithinBudget = false
			result.Violations = append(result.Violations,
				fmt.Sprintf("%d lost elements exceed budget of %d", count, b.MaxLostElements))
		}
	}

	return result
}

// Err returns the violations as an error, or nil when within budget.
func (r *LossBudgetResult) Err() error {
	if r.WithinBudget {
		return nil
	}
	return apperrors.NewValidation("loss budget", strings.Join(r.Violations, "; "))
}
