package security

import (
	"errors"
	"testing"
)

func TestDefaultPasswordValidator_AcceptsStrongPassword(t *testing.T) {
	validator := DefaultPasswordValidator()
	if err := validator.Validate("Tr4verse!Quiet#Moon"); err != nil {
		t.Fatalf("expected strong password to pass, got %v", err)
	}
}

func TestDefaultPasswordValidator_Violations(t *testing.T) {
	validator := DefaultPasswordValidator()

	cases := []struct {
		name     string
		password string
		code     string
	}{
		{"too short", "Ab1!xyz", "min_length"},
		{"single class", "aaaaaaaaaaaaaa", "character_classes"},
		{"guessable", "Password1234", "strength"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := validator.Validate(tc.password)
			if err == nil {
				t.Fatalf("expected violation for %q", tc.password)
			}

			var violation *PasswordValidationError
			if !errors.As(err, &violation) {
				t.Fatalf("expected PasswordValidationError, got %T", err)
			}
			if violation.Code != tc.code {
				t.Errorf("expected code %q, got %q", tc.code, violation.Code)
			}
		})
	}
}

func TestPasswordValidator_NilReceiver(t *testing.T) {
	var validator *PasswordValidator
	if err := validator.Validate("anything"); err == nil {
		t.Fatal("expected error from unconfigured validator")
	}
}
