package domain

import (
	"testing"
)

func TestUrgencyLevelOrdering(t *testing.T) {
	tests := []struct {
		name   string
		lower  UrgencyLevel
		higher UrgencyLevel
	}{
		{"low below medium", LOW, MEDIUM},
		{"medium below high", MEDIUM, HIGH},
		{"high below emergency", HIGH, EMERGENCY},
		{"low below emergency", LOW, EMERGENCY},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.lower.Rank() >= tt.higher.Rank() {
				t.Errorf("Expected %s to rank below %s", tt.lower, tt.higher)
			}
			if got := tt.lower.Max(tt.higher); got != tt.higher {
				t.Errorf("Max(%s, %s) = %s, want %s", tt.lower, tt.higher, got, tt.higher)
			}
			if got := tt.higher.Max(tt.lower); got != tt.higher {
				t.Errorf("Max(%s, %s) = %s, want %s", tt.higher, tt.lower, got, tt.higher)
			}
		})
	}
}

func TestUrgencyLevelRaise(t *testing.T) {
	tests := []struct {
		name     string
		start    UrgencyLevel
		ceiling  UrgencyLevel
		expected UrgencyLevel
	}{
		{"low raises to medium", LOW, HIGH, MEDIUM},
		{"medium raises to high", MEDIUM, HIGH, HIGH},
		{"high capped at ceiling", HIGH, HIGH, HIGH},
		{"emergency stays emergency", EMERGENCY, EMERGENCY, EMERGENCY},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.start.Raise(tt.ceiling); got != tt.expected {
				t.Errorf("Raise(%s, ceiling=%s) = %s, want %s", tt.start, tt.ceiling, got, tt.expected)
			}
		})
	}
}

func TestSeverityValidation(t *testing.T) {
	valid := []Severity{MILD, MODERATE, SEVERE}
	for _, s := range valid {
		if !s.IsValid() {
			t.Errorf("Expected %s to be valid", s)
		}
	}

	if Severity("CRITICAL").IsValid() {
		t.Error("Expected unknown severity to be invalid")
	}

	if MILD.Rank() >= MODERATE.Rank() || MODERATE.Rank() >= SEVERE.Rank() {
		t.Error("Severity ranks must increase monotonically with severity")
	}
}

func TestParseUrgencyLevel(t *testing.T) {
	u, err := ParseUrgencyLevel("EMERGENCY")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if u != EMERGENCY {
		t.Errorf("Expected EMERGENCY, got %s", u)
	}

	if _, err := ParseUrgencyLevel("CATASTROPHIC"); err == nil {
		t.Error("Expected error for unknown urgency level")
	}
}

func TestParseSeverity(t *testing.T) {
	s, err := ParseSeverity("MODERATE")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if s != MODERATE {
		t.Errorf("Expected MODERATE, got %s", s)
	}

	if _, err := ParseSeverity("EXTREME"); err == nil {
		t.Error("Expected error for unknown severity")
	}
}

func TestUrgencyLevelRequiresImmediateCare(t *testing.T) {
	tests := []struct {
		level    UrgencyLevel
		expected bool
	}{
		{LOW, false},
		{MEDIUM, false},
		{HIGH, true},
		{EMERGENCY, true},
	}

	for _, tt := range tests {
		if got := tt.level.RequiresImmediateCare(); got != tt.expected {
			t.Errorf("RequiresImmediateCare(%s) = %v, want %v", tt.level, got, tt.expected)
		}
	}
}

func TestUrgencyLevelLogFields(t *testing.T) {
	fields := EMERGENCY.LogFields()

	if fields["urgency"] != "EMERGENCY" {
		t.Errorf("Expected urgency field EMERGENCY, got %v", fields["urgency"])
	}
	if fields["requires_immediate_care"] != true {
		t.Error("Expected requires_immediate_care to be true for EMERGENCY")
	}
}

func TestConditionValidation(t *testing.T) {
	valid := Condition{ID: "c1", Name: "Influenza", SymptomIDs: []string{"s1", "s2"}}
	if err := valid.Validate(); err != nil {
		t.Errorf("Unexpected error for valid condition: %v", err)
	}

	noSymptoms := Condition{ID: "c2", Name: "Phantom"}
	if err := noSymptoms.Validate(); err == nil {
		t.Error("Expected error for condition with empty symptom set")
	}
}

func TestChronicCorrelationValidation(t *testing.T) {
	tests := []struct {
		name    string
		factor  float64
		wantErr bool
	}{
		{"lower bound", 1.0, false},
		{"upper bound", 5.0, false},
		{"below band", 0.5, true},
		{"above band", 6.2, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cc := ChronicDiseaseCorrelation{ChronicDiseaseID: "diabetes", RiskIncreaseFactor: tt.factor}
			err := cc.Validate()
			if tt.wantErr && err == nil {
				t.Errorf("Expected error for factor %.2f", tt.factor)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Unexpected error for factor %.2f: %v", tt.factor, err)
			}
		})
	}
}

func TestSnapshotConditionByName(t *testing.T) {
	snap := RuleSnapshot{
		Conditions: []Condition{
			{ID: "c1", Name: "Migraine", SymptomIDs: []string{"s1"}},
			{ID: "c2", Name: "Tension Headache", SymptomIDs: []string{"s1"}},
		},
	}

	c, ok := snap.ConditionByName("  migraine ")
	if !ok {
		t.Fatal("Expected case-insensitive match for migraine")
	}
	if c.ID != "c1" {
		t.Errorf("Expected c1, got %s", c.ID)
	}

	if _, ok := snap.ConditionByName("Unknown Disease"); ok {
		t.Error("Expected no match for unknown condition name")
	}
}

func TestSymptomAllowsSeverity(t *testing.T) {
	limited := Symptom{ID: "s1", NameEN: "rash", AllowedSeverities: []Severity{MILD, MODERATE}}
	if !limited.AllowsSeverity(MILD) {
		t.Error("Expected MILD to be allowed")
	}
	if limited.AllowsSeverity(SEVERE) {
		t.Error("Expected SEVERE to be disallowed")
	}

	// An empty allowed set permits any valid severity.
	open := Symptom{ID: "s2", NameEN: "fever"}
	if !open.AllowsSeverity(SEVERE) {
		t.Error("Expected SEVERE to be allowed when no restriction is set")
	}
}
