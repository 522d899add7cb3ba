package otconv

import "fmt"

// ErrorSeverity represents the severity level of a conversion error.
type ErrorSeverity int

const (
	// SeverityCritical indicates a severe error that aborts the conversion.
	SeverityCritical ErrorSeverity = iota
	// SeverityMajor indicates a significant error that may affect the
	// converted table but did not prevent conversion.
	SeverityMajor
	// SeverityMinor indicates a minor issue that can be safely ignored in
	// most cases.
	SeverityMinor
)

// String returns a human-readable representation of the error severity.
func (s ErrorSeverity) String() string {
	switch s {
	case SeverityCritical:
		return "CRITICAL"
	case SeverityMajor:
		return "MAJOR"
	case SeverityMinor:
		return "MINOR"
	default:
		return "UNKNOWN"
	}
}

// ConvError represents an error encountered while converting a table.
type ConvError struct {
	Table    string        // table or structure being converted
	Field    string        // field whose converter raised the issue
	Issue    string        // human-readable description
	Severity ErrorSeverity // severity level
}

// Error implements the error interface.
func (e ConvError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("[%s] %s/%s: %s", e.Severity, e.Table, e.Field, e.Issue)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Severity, e.Table, e.Issue)
}

// ConvWarning represents a non-critical issue encountered while converting
// a table. Conversion continued with the best available substitute value.
type ConvWarning struct {
	Table string // table or structure being converted
	Field string // field whose converter raised the issue
	Issue string // human-readable description
}

// String returns a human-readable representation of the warning.
func (w ConvWarning) String() string {
	if w.Field != "" {
		return fmt.Sprintf("[WARNING] %s/%s: %s", w.Table, w.Field, w.Issue)
	}
	return fmt.Sprintf("[WARNING] %s: %s", w.Table, w.Issue)
}

// Collector accumulates warnings during a conversion pass. Converters trace
// warnings unconditionally; when the conversion context carries a
// collector, warnings are additionally recorded for later inspection.
type Collector struct {
	warnings []ConvWarning
}

func (c *Collector) add(table, field, issue string) {
	c.warnings = append(c.warnings, ConvWarning{Table: table, Field: field, Issue: issue})
}

// Warnings returns all warnings recorded so far.
func (c *Collector) Warnings() []ConvWarning {
	if c.warnings == nil {
		return []ConvWarning{}
	}
	return c.warnings
}

// HasWarnings returns true if any warnings were recorded.
func (c *Collector) HasWarnings() bool {
	return len(c.warnings) > 0
}
