package model

import (
	"fmt"
	"strings"
)

type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
	SeverityUnknown  Severity = "UNKNOWN"
)

// Severities lists the canonical scale, most severe first.
var Severities = []Severity{
	SeverityCritical,
	SeverityHigh,
	SeverityMedium,
	SeverityLow,
	SeverityUnknown,
}

// Order returns the position in the canonical scale (Critical=0, Unknown=4).
// Lower sorts first.
func (s Severity) Order() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityHigh:
		return 1
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 3
	default:
		return 4
	}
}

func (s Severity) String() string {
	return string(s)
}

// Normalize maps any scanner severity label onto the canonical scale.
// Matching is case-insensitive; "moderate" is accepted as medium.
// Anything unrecognized, including the empty string, is UNKNOWN.
func Normalize(raw string) Severity {
	s, err := ParseSeverity(raw)
	if err != nil {
		return SeverityUnknown
	}
	return s
}

// ParseSeverity parses a severity string case-insensitively.
// Unlike Normalize it reports unrecognized input, which makes it suitable
// for validating configuration values.
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return SeverityLow, nil
	case "medium", "moderate":
		return SeverityMedium, nil
	case "high":
		return SeverityHigh, nil
	case "critical":
		return SeverityCritical, nil
	default:
		return SeverityUnknown, fmt.Errorf("invalid severity: %q", s)
	}
}

// SeveritiesAtOrAbove returns the known severities at least as severe as
// threshold, most severe first. UNKNOWN is never included.
func SeveritiesAtOrAbove(threshold Severity) []Severity {
	var out []Severity
	for _, s := range Severities {
		if s == SeverityUnknown {
			continue
		}
		if s.Order() <= threshold.Order() {
			out = append(out, s)
		}
	}
	return out
}
