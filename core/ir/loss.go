package ir

// LossClass represents the fidelity level of a format conversion.
type LossClass string

// Loss class constants, from most to least fidelity.
const (
	// LossL0 indicates lossless conversion - no warnings were raised.
	LossL0 LossClass = "L0"

	// LossL1 indicates semantically lossless - only informational notices.
	LossL1 LossClass = "L1"

	// LossL2 indicates minor loss - cosmetic details dropped or simplified.
	LossL2 LossClass = "L2"

	// LossL3 indicates significant loss - structure or meaning degraded.
	LossL3 LossClass = "L3"

	// LossL4 indicates severe loss - content failed to convert.
	LossL4 LossClass = "L4"
)

// validLossClasses is the set of valid loss classes.
var validLossClasses = map[LossClass]bool{
	LossL0: true,
	LossL1: true,
	LossL2: true,
	LossL3: true,
	LossL4: true,
}

// IsValid returns true if the loss class is valid.
func (l LossClass) IsValid() bool {
	return validLossClasses[l]
}

// Level returns the numeric level (0-4) of the loss class.
func (l LossClass) Level() int {
	switch l {
	case LossL0:
		return 0
	case LossL1:
		return 1
	case LossL2:
		return 2
	case LossL3:
		return 3
	case LossL4:
		return 4
	default:
		return -1
	}
}

// IsLossless returns true if this loss class indicates no data loss.
func (l LossClass) IsLossless() bool {
	return l == LossL0
}

// IsSemanticallyLossless returns true if content is fully preserved.
func (l LossClass) IsSemanticallyLossless() bool {
	return l == LossL0 || l == LossL1
}

// ClassifyWarnings maps the most severe warning to a loss class.
func ClassifyWarnings(warnings []FidelityWarning) LossClass {
	if len(warnings) == 0 {
		return LossL0
	}
	worst := SeverityInfo
	for _, w := range warnings {
		if w.Severity > worst {
			worst = w.Severity
		}
	}
	switch worst {
	case SeverityInfo:
		return LossL1
	case SeverityMinor:
		return LossL2
	case SeverityMajor:
		return LossL3
	default:
		return LossL4
	}
}

// LostElement describes a specific piece of data that was lost during conversion.
type LostElement struct {
	// Category is the warning category (e.g., "feature_lost").
	Category string `json:"category"`

	// Subject names what was lost (e.g., "table", "math:fraction").
	Subject string `json:"subject"`

	// Reason explains why the element was lost.
	Reason string `json:"reason"`

	// Severity is the severity of the originating warning.
	Severity Severity `json:"severity"`
}

// LossReport documents the fidelity of a format conversion.
type LossReport struct {
	// SourceFormat is the format being converted from (e.g., "csv").
	SourceFormat string `json:"source_format"`

	// TargetFormat is the format being converted to (e.g., "markdown").
	TargetFormat string `json:"target_format"`

	// LossClass is the overall fidelity classification.
	LossClass LossClass `json:"loss_class"`

	// LostElements lists the FeatureLost and UnsupportedNode warnings.
	LostElements []LostElement `json:"lost_elements,omitempty"`

	// Warnings contains every warning message in discovery order.
	Warnings []string `json:"warnings,omitempty"`
}

// NewLossReport summarizes warnings for a source/target pair.
func NewLossReport(source, target string, warnings []FidelityWarning) *LossReport {
	r := &LossReport{
		SourceFormat: source,
		TargetFormat: target,
		LossClass:    ClassifyWarnings(warnings),
	}
	for _, w := range warnings {
		r.AddWarning(w.String())
		switch k := w.Kind.(type) {
		case FeatureLost, UnsupportedNode, ResourceFailed:
			r.LostElements = append(r.LostElements, LostElement{
				Category: k.Category(),
				Subject:  k.Subject(),
				Reason:   w.Message,
				Severity: w.Severity,
			})
		}
	}
	return r
}

// HasLoss returns true if any elements were lost.
func (r *LossReport) HasLoss() bool {
	return len(r.LostElements) > 0 || r.LossClass.Level() > 0
}

// AddLostElement adds a lost element to the report.
func (r *LossReport) AddLostElement(category, subject, reason string) {
	r.LostElements = append(r.LostElements, LostElement{
		Category: category,
		Subject:  subject,
		Reason:   reason,
	})
}

// AddWarning adds a warning to the report.
func (r *LossReport) AddWarning(warning string) {
	r.Warnings = append(r.Warnings, warning)
}
