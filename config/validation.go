package config

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError describes one rejected field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation failed for field %q: %s", e.Field, e.Message)
}

// Validator collects field errors through chained checks.
type Validator struct {
	errors []ValidationError
}

// NewValidator creates an empty validator.
func NewValidator() *Validator {
	return &Validator{}
}

// Add records a custom failure.
func (v *Validator) Add(field, msg string) *Validator {
	v.errors = append(v.errors, ValidationError{Field: field, Message: msg})
	return v
}

// RequireNonEmpty rejects empty strings.
func (v *Validator) RequireNonEmpty(field, value string) *Validator {
	if strings.TrimSpace(value) == "" {
		v.Add(field, "value cannot be empty")
	}
	return v
}

// RequirePositive rejects values <= 0.
func (v *Validator) RequirePositive(field string, value int) *Validator {
	if value <= 0 {
		v.Add(field, fmt.Sprintf("value must be positive, got %d", value))
	}
	return v
}

// RequireNonNegative rejects values < 0.
func (v *Validator) RequireNonNegative(field string, value int) *Validator {
	if value < 0 {
		v.Add(field, fmt.Sprintf("value must not be negative, got %d", value))
	}
	return v
}

// ValidateRange checks min <= value <= max.
func (v *Validator) ValidateRange(field string, value, min, max int) *Validator {
	if value < min || value > max {
		v.Add(field, fmt.Sprintf("value must be between %d and %d, got %d", min, max, value))
	}
	return v
}

// ValidatePort checks a TCP port number.
func (v *Validator) ValidatePort(field string, port int) *Validator {
	return v.ValidateRange(field, port, 1, 65535)
}

// ValidateDBNumber checks a Redis logical database index.
func (v *Validator) ValidateDBNumber(field string, db int) *Validator {
	return v.ValidateRange(field, db, 0, 15)
}

// ValidateOneOf checks value against an allow list.
func (v *Validator) ValidateOneOf(field string, value string, allowed ...string) *Validator {
	for _, a := range allowed {
		if a == value {
			return v
		}
	}
	v.Add(field, fmt.Sprintf("value must be one of %v, got %q", allowed, value))
	return v
}

// HasErrors reports whether any check failed.
func (v *Validator) HasErrors() bool {
	return len(v.errors) > 0
}

// Error combines every failure into one error, or returns nil.
func (v *Validator) Error() error {
	if !v.HasErrors() {
		return nil
	}
	var b strings.Builder
	b.WriteString("configuration validation failed:\n")
	for _, e := range v.errors {
		fmt.Fprintf(&b, "  - %s: %s\n", e.Field, e.Message)
	}
	return errors.New(b.String())
}

// Errors returns the individual failures.
func (v *Validator) Errors() []ValidationError {
	return v.errors
}

// ValidatePostgresConfig validates the Postgres archive settings.
func ValidatePostgresConfig(host string, port int, user, password, dbName, sslMode string) error {
	v := NewValidator()
	v.RequireNonEmpty("archive.postgres.host", host)
	v.ValidatePort("archive.postgres.port", port)
	v.RequireNonEmpty("archive.postgres.user", user)
	v.RequireNonEmpty("archive.postgres.password", password)
	v.RequireNonEmpty("archive.postgres.dbname", dbName)
	v.ValidateOneOf("archive.postgres.sslmode", sslMode, "disable", "require", "verify-ca", "verify-full")
	return v.Error()
}

// ValidateRedisConfig validates the Redis archive settings.
func ValidateRedisConfig(addr string, db int, prefix string) error {
	v := NewValidator()
	v.RequireNonEmpty("archive.redis.addr", addr)
	v.ValidateDBNumber("archive.redis.db", db)
	v.RequireNonEmpty("archive.redis.prefix", prefix)
	return v.Error()
}

// ValidateMongoDBConfig validates the Mongo archive settings.
func ValidateMongoDBConfig(uri, database, collection string) error {
	v := NewValidator()
	v.RequireNonEmpty("archive.mongo.uri", uri)
	v.RequireNonEmpty("archive.mongo.database", database)
	v.RequireNonEmpty("archive.mongo.collection", collection)
	return v.Error()
}
