package accesscore

import (
	"testing"
	"time"
)

// rfc6238Secret is the shared test secret from RFC 6238 appendix B.
var rfc6238Secret = []byte("12345678901234567890")

func TestHOTPCodeRFC6238Vectors(t *testing.T) {
	// RFC 6238 appendix B, SHA-1 rows, 8 digits.
	cases := []struct {
		unix int64
		want string
	}{
		{59, "94287082"},
		{1111111109, "07081804"},
		{1111111111, "14050471"},
		{1234567890, "89005924"},
		{2000000000, "69279037"},
		{20000000000, "65353130"},
	}

	for _, tc := range cases {
		got, err := hotpCode(rfc6238Secret, tc.unix/30, 8)
		if err != nil {
			t.Fatalf("hotpCode(T=%d) failed: %v", tc.unix, err)
		}
		if got != tc.want {
			t.Errorf("hotpCode(T=%d) = %q, want %q", tc.unix, got, tc.want)
		}
	}
}

func TestVerifyCodeAcceptsSkewWindow(t *testing.T) {
	m := newTOTPManager(TwoFactorConfig{Digits: 6, Period: 30, Skew: 1})
	now := time.Unix(1111111111, 0)
	counter := now.Unix() / 30

	for _, delta := range []int64{-1, 0, 1} {
		code, err := hotpCode(rfc6238Secret, counter+delta, 6)
		if err != nil {
			t.Fatalf("hotpCode failed: %v", err)
		}
		ok, matched, err := m.VerifyCode(rfc6238Secret, code, now)
		if err != nil {
			t.Fatalf("VerifyCode failed: %v", err)
		}
		if !ok {
			t.Errorf("code for step %+d rejected", delta)
		}
		if matched != counter+delta {
			t.Errorf("matched counter = %d, want %d", matched, counter+delta)
		}
	}
}

func TestVerifyCodeRejectsOutsideSkewWindow(t *testing.T) {
	m := newTOTPManager(TwoFactorConfig{Digits: 6, Period: 30, Skew: 1})
	now := time.Unix(1111111111, 0)
	counter := now.Unix() / 30

	for _, delta := range []int64{-2, 2} {
		code, err := hotpCode(rfc6238Secret, counter+delta, 6)
		if err != nil {
			t.Fatalf("hotpCode failed: %v", err)
		}
		ok, _, err := m.VerifyCode(rfc6238Secret, code, now)
		if err != nil {
			t.Fatalf("VerifyCode failed: %v", err)
		}
		if ok {
			t.Errorf("code for step %+d accepted outside the skew window", delta)
		}
	}
}

func TestVerifyCodeRejectsMalformedInput(t *testing.T) {
	m := newTOTPManager(TwoFactorConfig{Digits: 6, Period: 30, Skew: 1})
	now := time.Unix(1111111111, 0)

	for _, code := range []string{"", "12345", "1234567", "12345a", "   "} {
		ok, _, err := m.VerifyCode(rfc6238Secret, code, now)
		if err != nil {
			t.Fatalf("VerifyCode(%q) failed: %v", code, err)
		}
		if ok {
			t.Errorf("malformed code %q accepted", code)
		}
	}
}

func TestVerifyCodeTrimsWhitespace(t *testing.T) {
	m := newTOTPManager(TwoFactorConfig{Digits: 6, Period: 30, Skew: 0})
	now := time.Unix(1111111111, 0)

	code, err := hotpCode(rfc6238Secret, now.Unix()/30, 6)
	if err != nil {
		t.Fatalf("hotpCode failed: %v", err)
	}
	ok, _, err := m.VerifyCode(rfc6238Secret, " "+code+" ", now)
	if err != nil {
		t.Fatalf("VerifyCode failed: %v", err)
	}
	if !ok {
		t.Error("expected surrounding whitespace to be tolerated")
	}
}

func TestGenerateSecretRoundTrip(t *testing.T) {
	m := newTOTPManager(DefaultConfig().TwoFactor)

	raw, encoded, err := m.GenerateSecret()
	if err != nil {
		t.Fatalf("GenerateSecret failed: %v", err)
	}
	if len(raw) != totpSecretBytes {
		t.Fatalf("secret length = %d, want %d", len(raw), totpSecretBytes)
	}
	if encoded == "" {
		t.Fatal("expected a base32 encoding of the secret")
	}

	other, _, err := m.GenerateSecret()
	if err != nil {
		t.Fatalf("GenerateSecret failed: %v", err)
	}
	if string(raw) == string(other) {
		t.Fatal("two generated secrets must differ")
	}
}

func TestProvisionURI(t *testing.T) {
	m := newTOTPManager(TwoFactorConfig{Issuer: "accesscore", Digits: 6, Period: 30})

	uri := m.ProvisionURI("JBSWY3DPEHPK3PXP", "alice@caretrail.example")
	want := "otpauth://totp/accesscore:alice@caretrail.example?algorithm=SHA1&digits=6&issuer=accesscore&period=30&secret=JBSWY3DPEHPK3PXP"
	if uri != want {
		t.Errorf("ProvisionURI = %q, want %q", uri, want)
	}
}
