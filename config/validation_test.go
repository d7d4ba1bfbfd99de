package config

import (
	"strings"
	"testing"
)

func TestValidatorChecks(t *testing.T) {
	tests := []struct {
		name      string
		run       func(v *Validator)
		wantError bool
	}{
		{"non-empty value", func(v *Validator) { v.RequireNonEmpty("f", "x") }, false},
		{"blank value", func(v *Validator) { v.RequireNonEmpty("f", "  ") }, true},
		{"positive", func(v *Validator) { v.RequirePositive("f", 1) }, false},
		{"zero not positive", func(v *Validator) { v.RequirePositive("f", 0) }, true},
		{"zero non-negative", func(v *Validator) { v.RequireNonNegative("f", 0) }, false},
		{"negative", func(v *Validator) { v.RequireNonNegative("f", -1) }, true},
		{"range lower bound", func(v *Validator) { v.ValidateRange("f", 1, 1, 50) }, false},
		{"range upper bound", func(v *Validator) { v.ValidateRange("f", 50, 1, 50) }, false},
		{"range above", func(v *Validator) { v.ValidateRange("f", 51, 1, 50) }, true},
		{"port", func(v *Validator) { v.ValidatePort("f", 5432) }, false},
		{"port zero", func(v *Validator) { v.ValidatePort("f", 0) }, true},
		{"redis db", func(v *Validator) { v.ValidateDBNumber("f", 15) }, false},
		{"redis db too high", func(v *Validator) { v.ValidateDBNumber("f", 16) }, true},
		{"one of", func(v *Validator) { v.ValidateOneOf("f", "redis", "none", "redis") }, false},
		{"not one of", func(v *Validator) { v.ValidateOneOf("f", "etcd", "none", "redis") }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewValidator()
			tt.run(v)
			if got := v.HasErrors(); got != tt.wantError {
				t.Errorf("HasErrors() = %v, want %v", got, tt.wantError)
			}
		})
	}
}

func TestValidatorMultipleErrors(t *testing.T) {
	v := NewValidator()
	v.RequireNonEmpty("a", "").RequirePositive("b", -1).Add("c", "custom")

	if len(v.Errors()) != 3 {
		t.Fatalf("expected 3 errors, got %d", len(v.Errors()))
	}
	err := v.Error()
	if err == nil {
		t.Fatal("expected combined error")
	}
	for _, field := range []string{"a:", "b:", "c: custom"} {
		if !strings.Contains(err.Error(), field) {
			t.Errorf("combined error missing %q: %s", field, err)
		}
	}
}

func TestValidatePostgresConfig(t *testing.T) {
	if err := ValidatePostgresConfig("localhost", 5432, "u", "p", "devteam", "disable"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ValidatePostgresConfig("localhost", 5432, "u", "p", "devteam", "sometimes"); err == nil {
		t.Fatal("expected error for unknown sslmode")
	}
}

func TestValidateRedisConfig(t *testing.T) {
	if err := ValidateRedisConfig("localhost:6379", 0, "devteam:"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ValidateRedisConfig("", 0, "devteam:"); err == nil {
		t.Fatal("expected error for empty addr")
	}
}

func TestValidateMongoDBConfig(t *testing.T) {
	if err := ValidateMongoDBConfig("mongodb://localhost", "devteam", "transcripts"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ValidateMongoDBConfig("mongodb://localhost", "", "transcripts"); err == nil {
		t.Fatal("expected error for empty database")
	}
}
