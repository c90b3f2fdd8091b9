package ir

import (
	"encoding/json"
	"fmt"
)

// Severity ranks how much information a warning represents losing.
type Severity int

// Severity levels, least to most severe.
const (
	SeverityInfo Severity = iota
	SeverityMinor
	SeverityMajor
	SeverityError
)

// String returns the lowercase severity name.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityMinor:
		return "minor"
	case SeverityMajor:
		return "major"
	case SeverityError:
		return "error"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

// MarshalText encodes the severity name.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a severity name.
func (s *Severity) UnmarshalText(b []byte) error {
	switch string(b) {
	case "info":
		*s = SeverityInfo
	case "minor":
		*s = SeverityMinor
	case "major":
		*s = SeverityMajor
	case "error":
		*s = SeverityError
	default:
		return fmt.Errorf("unknown severity %q", b)
	}
	return nil
}

// WarningKind classifies what was lost. The set is open; plugins may define
// their own kinds alongside the ones provided here.
type WarningKind interface {
	// Category is a stable machine-readable name such as "feature_lost".
	Category() string
	// Subject names the feature, node kind, property, or resource concerned.
	Subject() string
}

// FeatureLost reports a feature the target cannot represent at all.
type FeatureLost struct{ Feature string }

// Simplified reports a feature rendered in a reduced form.
type Simplified struct{ Feature string }

// UnsupportedNode reports a node kind the component does not understand.
type UnsupportedNode struct{ Kind Kind }

// UnsupportedProperty reports a property that was ignored.
type UnsupportedProperty struct{ Key string }

// ResourceFailed reports a resource that could not be processed.
type ResourceFailed struct{ ID ResourceID }

func (k FeatureLost) Category() string         { return "feature_lost" }
func (k FeatureLost) Subject() string          { return k.Feature }
func (k Simplified) Category() string          { return "simplified" }
func (k Simplified) Subject() string           { return k.Feature }
func (k UnsupportedNode) Category() string     { return "unsupported_node" }
func (k UnsupportedNode) Subject() string      { return string(k.Kind) }
func (k UnsupportedProperty) Category() string { return "unsupported_property" }
func (k UnsupportedProperty) Subject() string  { return k.Key }
func (k ResourceFailed) Category() string      { return "resource_failed" }
func (k ResourceFailed) Subject() string       { return string(k.ID) }

// FidelityWarning is a non-fatal notice that information was lost or
// degraded. Warnings never abort a conversion.
type FidelityWarning struct {
	Severity Severity
	Kind     WarningKind
	Message  string
	Span     *Span
}

// NewWarning builds a warning.
func NewWarning(sev Severity, kind WarningKind, message string) FidelityWarning {
	return FidelityWarning{Severity: sev, Kind: kind, Message: message}
}

// String formats the warning for display.
func (w FidelityWarning) String() string {
	if w.Kind == nil {
		return fmt.Sprintf("[%s] %s", w.Severity, w.Message)
	}
	return fmt.Sprintf("[%s] %s(%s): %s", w.Severity, w.Kind.Category(), w.Kind.Subject(), w.Message)
}

// MarshalJSON encodes the warning with its kind flattened.
func (w FidelityWarning) MarshalJSON() ([]byte, error) {
	out := struct {
		Severity Severity `json:"severity"`
		Category string   `json:"category,omitempty"`
		Subject  string   `json:"subject,omitempty"`
		Message  string   `json:"message"`
		Span     *Span    `json:"span,omitempty"`
	}{Severity: w.Severity, Message: w.Message, Span: w.Span}
	if w.Kind != nil {
		out.Category = w.Kind.Category()
		out.Subject = w.Kind.Subject()
	}
	return json.Marshal(out)
}

// ConversionResult pairs a successful output with the warnings produced
// while computing it, in discovery order.
type ConversionResult[T any] struct {
	Value    T
	Warnings []FidelityWarning
}

// OK returns a result without warnings.
func OK[T any](v T) *ConversionResult[T] {
	return &ConversionResult[T]{Value: v}
}

// WithWarnings returns a result carrying warnings.
func WithWarnings[T any](v T, warnings []FidelityWarning) *ConversionResult[T] {
	return &ConversionResult[T]{Value: v, Warnings: warnings}
}

// Warn appends a warning.
func (r *ConversionResult[T]) Warn(w FidelityWarning) {
	r.Warnings = append(r.Warnings, w)
}

// HasWarnings reports whether any warning was recorded.
func (r *ConversionResult[T]) HasWarnings() bool {
	return len(r.Warnings) > 0
}

// HasErrors reports whether any warning is Major or worse.
func (r *ConversionResult[T]) HasErrors() bool {
	for _, w := range r.Warnings {
		if w.Severity >= SeverityMajor {
			return true
		}
	}
	return false
}

// LossClass summarizes the warnings as a loss class.
func (r *ConversionResult[T]) LossClass() LossClass {
	return ClassifyWarnings(r.Warnings)
}

// Warnings accumulates fidelity warnings during a single traversal.
type Warnings struct {
	list []FidelityWarning
	once map[string]bool
}

// Add appends w.
func (ws *Warnings) Add(w FidelityWarning) {
	ws.list = append(ws.list, w)
}

// Lost records a FeatureLost warning.
func (ws *Warnings) Lost(sev Severity, feature, message string) {
	ws.Add(NewWarning(sev, FeatureLost{Feature: feature}, message))
}

// Simplify records a Simplified warning.
func (ws *Warnings) Simplify(sev Severity, feature, message string) {
	ws.Add(NewWarning(sev, Simplified{Feature: feature}, message))
}

// Once appends w unless a warning with the same key was already added
// through Once.
func (ws *Warnings) Once(key string, w FidelityWarning) {
	if ws.once == nil {
		ws.once = make(map[string]bool)
	}
	if ws.once[key] {
		return
	}
	ws.once[key] = true
	ws.Add(w)
}

// Len returns the number of warnings recorded.
func (ws *Warnings) Len() int { return len(ws.list) }

// List returns the recorded warnings.
func (ws *Warnings) List() []FidelityWarning { return ws.list }
