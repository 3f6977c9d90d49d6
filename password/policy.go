package password

import (
	"errors"
	"strings"
	"unicode"
)

// Policy is the static password acceptance policy applied before any
// hash is computed. The zero value rejects everything; use
// DefaultPolicy.
type Policy struct {
	MinLength      int
	RequireUpper   bool
	RequireLower   bool
	RequireDigit   bool
	RequireSymbol  bool
	DeniedTerms    []string
	MaxLengthBytes int
}

// DefaultPolicy is the policy required for credential resets: at least
// 12 characters, all four character classes, and no healthcare-context
// or generic weak terms as a substring.
func DefaultPolicy() Policy {
	return Policy{
		MinLength:      12,
		RequireUpper:   true,
		RequireLower:   true,
		RequireDigit:   true,
		RequireSymbol:  true,
		MaxLengthBytes: 512,
		DeniedTerms: []string{
			"password", "passw0rd", "letmein", "welcome", "qwerty",
			"12345678", "abc123",
			"health", "medical", "patient", "clinic", "hospital",
			"doctor", "nurse", "hipaa",
		},
	}
}

// Policy violations. All are ErrPolicy-class; callers match with
// errors.Is against ErrPolicy.
var (
	ErrPolicy = errors.New("password policy violation")

	ErrTooShort      = wrapPolicy("too short")
	ErrTooLong       = wrapPolicy("too long")
	ErrMissingUpper  = wrapPolicy("missing uppercase letter")
	ErrMissingLower  = wrapPolicy("missing lowercase letter")
	ErrMissingDigit  = wrapPolicy("missing digit")
	ErrMissingSymbol = wrapPolicy("missing symbol")
	ErrDeniedTerm    = wrapPolicy("contains a disallowed common term")
)

type policyError struct{ msg string }

func wrapPolicy(msg string) error { return &policyError{msg: msg} }

func (e *policyError) Error() string        { return "password policy violation: " + e.msg }
func (e *policyError) Is(target error) bool { return target == ErrPolicy }

// Validate checks candidate against the policy and returns the first
// violation found, or nil. The candidate is never logged or retained.
func (p Policy) Validate(candidate string) error {
	if len(candidate) < p.MinLength {
		return ErrTooShort
	}
	if p.MaxLengthBytes > 0 && len(candidate) > p.MaxLengthBytes {
		return ErrTooLong
	}

	var upper, lower, digit, symbol bool
	for _, r := range candidate {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		default:
			symbol = true
		}
	}
	switch {
	case p.RequireUpper && !upper:
		return ErrMissingUpper
	case p.RequireLower && !lower:
		return ErrMissingLower
	case p.RequireDigit && !digit:
		return ErrMissingDigit
	case p.RequireSymbol && !symbol:
		return ErrMissingSymbol
	}

	folded := strings.ToLower(candidate)
	for _, term := range p.DeniedTerms {
		if term != "" && strings.Contains(folded, term) {
			return ErrDeniedTerm
		}
	}

	return nil
}
