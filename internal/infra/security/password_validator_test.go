package security

import (
	"errors"
	"testing"
)

func TestPasswordValidator_MinLength(t *testing.T) {
	validator := NewPasswordValidator(MinLengthRule(10))

	if err := validator.Validate("short"); err == nil {
		t.Fatalf("expected violation for short password")
	}
	if err := validator.Validate("long enough value"); err != nil {
		t.Fatalf("expected long password to pass, got %v", err)
	}
}

func TestPasswordValidator_RequireDifferentFrom(t *testing.T) {
	validator := NewPasswordValidator(RequireDifferentFrom("current-password"))

	var violation *PasswordValidationError
	if err := validator.Validate("current-password"); !errors.As(err, &violation) {
		t.Fatalf("expected violation when reusing current password, got %v", err)
	}
	if violation.Code != "different" {
		t.Fatalf("expected code 'different', got %q", violation.Code)
	}

	if err := validator.Validate("a new password"); err != nil {
		t.Fatalf("expected different password to pass, got %v", err)
	}
}

func TestPasswordValidator_StrengthRule(t *testing.T) {
	validator := NewPasswordValidator(RequirePasswordStrengthRule(2))

	if err := validator.Validate("password"); err == nil {
		t.Fatalf("expected weak dictionary password rejected")
	}
	if err := validator.Validate("tr0ub4dor & horse staple"); err != nil {
		t.Fatalf("expected strong passphrase to pass, got %v", err)
	}
}

func TestDefaultPasswordValidator(t *testing.T) {
	validator := DefaultPasswordValidator()

	if err := validator.Validate("correct horse battery staple"); err != nil {
		t.Fatalf("expected default policy to accept a strong passphrase, got %v", err)
	}
	if err := validator.Validate("abc"); err == nil {
		t.Fatalf("expected default policy to reject a trivial password")
	}
}
