package auth

import (
	"errors"
	"strings"
	"testing"
	"time"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestValidateRoundTrip(t *testing.T) {
	p := Principal{Subject: "user-1", OrgID: "org-9", SandboxID: "sbx-3"}
	token, err := Sign(testSecret, p, time.Hour)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}

	v, err := NewValidator(testSecret)
	if err != nil {
		t.Fatalf("NewValidator() error = %v", err)
	}

	got, err := v.Validate("Bearer " + token)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if got != p {
		t.Errorf("principal = %+v, want %+v", got, p)
	}

	// The Bearer prefix is optional.
	if _, err := v.Validate(token); err != nil {
		t.Errorf("Validate(bare token) error = %v", err)
	}
}

func TestValidateMissingToken(t *testing.T) {
	v, _ := NewValidator(testSecret)

	for _, auth := range []string{"", "   ", "Bearer ", "Bearer   "} {
		if _, err := v.Validate(auth); !errors.Is(err, ErrMissingToken) {
			t.Errorf("Validate(%q) error = %v, want ErrMissingToken", auth, err)
		}
	}
}

func TestValidateWrongSecret(t *testing.T) {
	token, err := Sign("another-secret-another-secret-32", Principal{Subject: "u"}, time.Hour)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}

	v, _ := NewValidator(testSecret)
	if _, err := v.Validate(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Validate(wrong secret) error = %v, want ErrInvalidToken", err)
	}
}

func TestValidateExpiredToken(t *testing.T) {
	token, err := Sign(testSecret, Principal{Subject: "u"}, -time.Minute)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}

	v, _ := NewValidator(testSecret)
	if _, err := v.Validate(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Validate(expired) error = %v, want ErrInvalidToken", err)
	}
}

func TestValidateGarbage(t *testing.T) {
	v, _ := NewValidator(testSecret)

	if _, err := v.Validate("Bearer not.a.jwt"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Validate(garbage) error = %v, want ErrInvalidToken", err)
	}
}

func TestValidateRejectsUnsignedToken(t *testing.T) {
	// alg=none style tokens must never pass.
	header := "eyJhbGciOiJub25lIiwidHlwIjoiSldUIn0"
	payload := "eyJzdWIiOiJ1c2VyLTEifQ"
	token := strings.Join([]string{header, payload, ""}, ".")

	v, _ := NewValidator(testSecret)
	if _, err := v.Validate(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Validate(alg=none) error = %v, want ErrInvalidToken", err)
	}
}

func TestNewValidatorRequiresSecret(t *testing.T) {
	if _, err := NewValidator(""); err == nil {
		t.Error("NewValidator(empty) = nil, want error")
	}
}
