package password

import (
	"errors"
	"testing"
)

func TestPolicyValidate(t *testing.T) {
	policy := DefaultPolicy()

	tests := []struct {
		name     string
		password string
		want     error
	}{
		{"acceptable", "Rx-Window#2041-Elm", nil},
		{"too short", "Ab1!def", ErrTooShort},
		{"missing upper", "rx-window#2041-elm", ErrMissingUpper},
		{"missing lower", "RX-WINDOW#2041-ELM", ErrMissingLower},
		{"missing digit", "Rx-Window#Elm-Oak!", ErrMissingDigit},
		{"missing symbol", "RxWindow2041ElmOak", ErrMissingSymbol},
		{"healthcare term", "Patient#2041-Elm!a", ErrDeniedTerm},
		{"weak term case folded", "QwErTy#2041-Elmoak", ErrDeniedTerm},
		{"generic weak sequence", "Xy!12345678-Elmoak", ErrDeniedTerm},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := policy.Validate(tt.password)
			if tt.want == nil {
				if err != nil {
					t.Fatalf("Validate(%q) = %v, want nil", tt.password, err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("Validate(%q) = %v, want %v", tt.password, err, tt.want)
			}
			if !errors.Is(err, ErrPolicy) {
				t.Fatalf("violation %v must match ErrPolicy", err)
			}
		})
	}
}

func TestPolicyMaxLength(t *testing.T) {
	policy := DefaultPolicy()
	long := make([]byte, policy.MaxLengthBytes+1)
	for i := range long {
		long[i] = 'a'
	}
	// Satisfy class requirements so only length can fail.
	candidate := "Aa1!" + string(long)
	if err := policy.Validate(candidate); !errors.Is(err, ErrTooLong) {
		t.Fatalf("Validate(long) = %v, want ErrTooLong", err)
	}
}
