// Package domain contains core business entities and types for symptom-driven
// clinical decision support: symptom/condition matching, urgency triage and
// treatment contraindication screening over an administrator-maintained rule set.
package domain

import (
	"errors"
	"fmt"
)

// Severity represents the patient's self-reported severity for a selected symptom.
type Severity string

const (
	MILD     Severity = "MILD"
	MODERATE Severity = "MODERATE"
	SEVERE   Severity = "SEVERE"
)

// UrgencyLevel represents the ordinal urgency tier produced by the classifier.
// Consumers (UI, emergency banner) require a single discrete value.
type UrgencyLevel string

const (
	LOW       UrgencyLevel = "LOW"
	MEDIUM    UrgencyLevel = "MEDIUM"
	HIGH      UrgencyLevel = "HIGH"
	EMERGENCY UrgencyLevel = "EMERGENCY"
)

// Gender represents the patient's reported gender.
type Gender string

const (
	MALE   Gender = "MALE"
	FEMALE Gender = "FEMALE"
	OTHER  Gender = "OTHER"
)

// Validation errors for medical data integrity
var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidSeverity     = errors.New("invalid symptom severity")
	ErrInvalidUrgencyLevel = errors.New("invalid urgency level")
	ErrInvalidGender       = errors.New("invalid gender")
)

// IsValid validates that the severity is one of the three supported levels.
func (s Severity) IsValid() bool {
	switch s {
	case MILD, MODERATE, SEVERE:
		return true
	default:
		return false
	}
}

// String returns the string representation of the severity.
func (s Severity) String() string {
	return string(s)
}

// Rank returns the ordinal position of the severity (MILD < MODERATE < SEVERE).
func (s Severity) Rank() int {
	switch s {
	case MILD:
		return 1
	case MODERATE:
		return 2
	case SEVERE:
		return 3
	default:
		return 0
	}
}

// IsValid validates that the urgency level is part of the total order.
// This is critical for medical software: an unknown tier must never flow
// into the emergency banner logic.
func (u UrgencyLevel) IsValid() bool {
	switch u {
	case LOW, MEDIUM, HIGH, EMERGENCY:
		return true
	default:
		return false
	}
}

// String returns the string representation of the urgency level.
// Required for proper logging and audit trails.
func (u UrgencyLevel) String() string {
	return string(u)
}

// Rank returns the ordinal position in the total order LOW < MEDIUM < HIGH < EMERGENCY.
func (u UrgencyLevel) Rank() int {
	switch u {
	case LOW:
		return 1
	case MEDIUM:
		return 2
	case HIGH:
		return 3
	case EMERGENCY:
		return 4
	default:
		return 0
	}
}

// Max returns the more severe of the two urgency levels.
func (u UrgencyLevel) Max(other UrgencyLevel) UrgencyLevel {
	if other.Rank() > u.Rank() {
		return other
	}
	return u
}

// Raise returns the urgency one tier above the current one, capped at ceiling.
// Chronic-disease amplification uses this and is never allowed to manufacture
// an EMERGENCY on its own.
func (u UrgencyLevel) Raise(ceiling UrgencyLevel) UrgencyLevel {
	var next UrgencyLevel
	switch u {
	case LOW:
		next = MEDIUM
	case MEDIUM:
		next = HIGH
	case HIGH:
		next = EMERGENCY
	default:
		next = u
	}
	if next.Rank() > ceiling.Rank() {
		return ceiling
	}
	return next
}

// RequiresImmediateCare determines if the urgency tier requires emergency handling.
// Critical for medical workflow automation and patient safety.
func (u UrgencyLevel) RequiresImmediateCare() bool {
	switch u {
	case HIGH, EMERGENCY:
		return true
	default:
		return false
	}
}

// LogFields returns structured logging fields for audit trails.
// Returns strongly-typed fields to prevent logging errors in medical contexts.
func (u UrgencyLevel) LogFields() map[string]any {
	return map[string]any{
		"urgency":                 string(u),
		"urgency_rank":            u.Rank(),
		"is_valid":                u.IsValid(),
		"requires_immediate_care": u.RequiresImmediateCare(),
	}
}

// IsValid validates the gender value.
func (g Gender) IsValid() bool {
	switch g {
	case MALE, FEMALE, OTHER:
		return true
	default:
		return false
	}
}

// ParseUrgencyLevel converts a stored string into an UrgencyLevel,
// rejecting values outside the total order.
func ParseUrgencyLevel(s string) (UrgencyLevel, error) {
	u := UrgencyLevel(s)
	if !u.IsValid() {
		return "", fmt.Errorf("parsing urgency level %q: %w", s, ErrInvalidUrgencyLevel)
	}
	return u, nil
}

// ParseSeverity converts a stored string into a Severity,
// rejecting values outside the three supported levels.
func ParseSeverity(s string) (Severity, error) {
	sev := Severity(s)
	if !sev.IsValid() {
		return "", fmt.Errorf("parsing severity %q: %w", s, ErrInvalidSeverity)
	}
	return sev, nil
}
