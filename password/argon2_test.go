package password

import (
	"strings"
	"testing"
)

func testParams() Params {
	return Params{
		Memory:      64 * 1024,
		Time:        3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func TestHashAndVerify(t *testing.T) {
	hasher, err := NewHasher(testParams())
	if err != nil {
		t.Fatalf("NewHasher error: %v", err)
	}

	hash, err := hasher.Hash("Tr1age-Unit-North!")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$m=65536,t=3,p=2$") {
		t.Fatalf("unexpected PHC prefix: %s", hash)
	}

	ok, err := hasher.Verify("Tr1age-Unit-North!", hash)
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if !ok {
		t.Fatal("expected verification to succeed")
	}

	ok, err = hasher.Verify("Tr1age-Unit-South!", hash)
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if ok {
		t.Fatal("expected wrong password to fail verification")
	}
}

func TestHashesAreSalted(t *testing.T) {
	hasher, err := NewHasher(testParams())
	if err != nil {
		t.Fatalf("NewHasher error: %v", err)
	}

	a, err := hasher.Hash("Same-Input-4-Twice!")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	b, err := hasher.Hash("Same-Input-4-Twice!")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if a == b {
		t.Fatal("two hashes of the same password must differ")
	}
}

func TestNeedsRehash(t *testing.T) {
	weak, err := NewHasher(Params{
		Memory:      32 * 1024,
		Time:        2,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})
	if err != nil {
		t.Fatalf("NewHasher(weak) error: %v", err)
	}
	hash, err := weak.Hash("Upgrade-Me-Plea5e!")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	strong, err := NewHasher(testParams())
	if err != nil {
		t.Fatalf("NewHasher(strong) error: %v", err)
	}
	needs, err := strong.NeedsRehash(hash)
	if err != nil {
		t.Fatalf("NeedsRehash error: %v", err)
	}
	if !needs {
		t.Fatal("expected weaker hash to need rehash")
	}

	fresh, err := strong.Hash("Upgrade-Me-Plea5e!")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	needs, err = strong.NeedsRehash(fresh)
	if err != nil {
		t.Fatalf("NeedsRehash error: %v", err)
	}
	if needs {
		t.Fatal("fresh hash must not need rehash")
	}
}

func TestVerifyRejectsMalformedHashes(t *testing.T) {
	hasher, err := NewHasher(testParams())
	if err != nil {
		t.Fatalf("NewHasher error: %v", err)
	}

	bad := []string{
		"",
		"plaintext",
		"$bcrypt$v=19$m=65536,t=3,p=2$c2FsdA$aGFzaA",
		"$argon2id$v=18$m=65536,t=3,p=2$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=1,t=3,p=2$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA",
		"$argon2id$v=19$m=65536,t=3,p=2$!!!$aGFzaA",
	}
	for _, h := range bad {
		if _, err := hasher.Verify("whatever", h); err == nil {
			t.Fatalf("expected error for malformed hash %q", h)
		}
	}
}

func TestNewHasherRejectsWeakParams(t *testing.T) {
	weak := []Params{
		{Memory: 1024, Time: 3, Parallelism: 2, SaltLength: 16, KeyLength: 32},
		{Memory: 65536, Time: 0, Parallelism: 2, SaltLength: 16, KeyLength: 32},
		{Memory: 65536, Time: 3, Parallelism: 0, SaltLength: 16, KeyLength: 32},
		{Memory: 65536, Time: 3, Parallelism: 2, SaltLength: 8, KeyLength: 32},
		{Memory: 65536, Time: 3, Parallelism: 2, SaltLength: 16, KeyLength: 8},
	}
	for i, p := range weak {
		if _, err := NewHasher(p); err == nil {
			t.Fatalf("case %d: expected weak params to be rejected", i)
		}
	}
}
