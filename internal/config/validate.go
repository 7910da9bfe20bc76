package config

import (
	"fmt"
	"strings"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError blocks execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning is surfaced to users but does not block execution.
	SeverityWarning IssueSeverity = "warning"
)

// SupportedVersion is the only document version this build understands.
const SupportedVersion = 1

// excelOrdinal is the single-format date token for spreadsheet serials.
const excelOrdinal = "excel-ordinal"

// Issue is a single lint finding.
//
// Path is a dotted path into the document (e.g. "version",
// "columns.city[1]"). Message is human-readable.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements error so an Issue can be returned on its own.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// Validate lints a parsed document without touching any input. It checks
// what can be known before a header is seen; name resolution and regex
// syntax are checked by the compiler.
func Validate(doc *Document) []Issue {
	var issues []Issue

	switch {
	case doc.Version == 0:
		issues = append(issues, Issue{SeverityWarning, "version", fmt.Sprintf("not set, assuming %d", SupportedVersion)})
	case doc.Version != SupportedVersion:
		issues = append(issues, Issue{SeverityError, "version", fmt.Sprintf("unsupported version %d (want %d)", doc.Version, SupportedVersion)})
	}

	if len(doc.Columns) == 0 {
		issues = append(issues, Issue{SeverityError, "columns", "no output columns declared"})
	}

	for _, c := range doc.Columns {
		base := "columns." + c.Name
		if strings.TrimSpace(c.Name) == "" {
			issues = append(issues, Issue{SeverityWarning, base, "output column name is blank"})
		}
		if c.Spec.IsShorthand {
			if c.Spec.Shorthand == "" {
				issues = append(issues, Issue{SeverityWarning, base, "shorthand input name is empty"})
			}
			continue
		}
		if len(c.Spec.Steps) == 0 {
			issues = append(issues, Issue{SeverityWarning, base, "no steps; column will always be empty"})
		}
		for i, e := range c.Spec.Steps {
			issues = append(issues, validateStep(fmt.Sprintf("%s[%d]", base, i), e)...)
		}
	}
	return issues
}

func validateStep(path string, e Expression) []Issue {
	var issues []Issue
	switch e.Kind {
	case ExprTrim:
		if e.Max < 0 {
			issues = append(issues, Issue{SeverityError, path, fmt.Sprintf("trim length must not be negative, got %d", e.Max)})
		}
	case ExprAliases:
		if len(e.Names) == 0 {
			issues = append(issues, Issue{SeverityWarning, path, "empty input alias list"})
		}
	case ExprDates:
		if len(e.Formats) == 0 {
			issues = append(issues, Issue{SeverityWarning, path, "empty date format list; every value will fail to parse"})
		}
		for _, f := range e.Formats {
			if f == excelOrdinal {
				issues = append(issues, Issue{SeverityError, path, excelOrdinal + " cannot be part of a date format list"})
				break
			}
		}
	case ExprFrom:
		issues = append(issues, Issue{SeverityWarning, path, "from is reserved and passes the value through unchanged"})
	case ExprReplace:
		for _, p := range e.Pairs {
			if p.Old == "" {
				issues = append(issues, Issue{SeverityWarning, path, "replacing the empty string inserts text between every character"})
				break
			}
		}
	}
	return issues
}

// HasErrors reports whether any issue has SeverityError.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}
