package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newTestStore(t *testing.T, ttl time.Duration) (*miniredis.Miniredis, *Store) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, NewStore(client, testSecret, "sess", ttl)
}

func TestSessionCreateLookup(t *testing.T) {
	mr, store := newTestStore(t, time.Hour)
	defer mr.Close()
	ctx := context.Background()

	credential, created, err := store.Create(ctx, "u1")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if credential == "" || created.SessionID == "" {
		t.Fatal("expected a credential and session id")
	}

	got, err := store.Lookup(ctx, credential)
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if got.UserID != "u1" || got.SessionID != created.SessionID {
		t.Fatalf("unexpected record: %+v", got)
	}
	if !got.ExpiresAt.After(got.IssuedAt) {
		t.Fatalf("expiry not after issuance: %+v", got)
	}
}

func TestSessionLookupRejectsForgedCredential(t *testing.T) {
	mr, store := newTestStore(t, time.Hour)
	defer mr.Close()
	ctx := context.Background()

	credential, _, err := store.Create(ctx, "u1")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// A credential signed under a different secret must not resolve.
	other := NewStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}),
		[]byte("ffffffffffffffffffffffffffffffff"), "sess", time.Hour)
	if _, err := other.Lookup(ctx, credential); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound for a foreign signature, got %v", err)
	}

	if _, err := store.Lookup(ctx, "not-a-jwt"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound for garbage input, got %v", err)
	}
}

func TestSessionExpiry(t *testing.T) {
	mr, store := newTestStore(t, time.Hour)
	defer mr.Close()
	ctx := context.Background()

	credential, _, err := store.Create(ctx, "u1")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	mr.FastForward(2 * time.Hour)

	if _, err := store.Lookup(ctx, credential); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound after expiry, got %v", err)
	}
}

func TestSessionDestroy(t *testing.T) {
	mr, store := newTestStore(t, time.Hour)
	defer mr.Close()
	ctx := context.Background()

	credential, _, err := store.Create(ctx, "u1")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := store.Destroy(ctx, credential); err != nil {
		t.Fatalf("Destroy failed: %v", err)
	}
	if _, err := store.Lookup(ctx, credential); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound after destroy, got %v", err)
	}

	// Destroying again, or destroying garbage, is a no-op.
	if err := store.Destroy(ctx, credential); err != nil {
		t.Fatalf("second Destroy failed: %v", err)
	}
	if err := store.Destroy(ctx, "not-a-jwt"); err != nil {
		t.Fatalf("garbage Destroy failed: %v", err)
	}
}

func TestSessionRevokeAllForUser(t *testing.T) {
	mr, store := newTestStore(t, time.Hour)
	defer mr.Close()
	ctx := context.Background()

	first, _, err := store.Create(ctx, "u1")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	second, _, err := store.Create(ctx, "u1")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	foreign, _, err := store.Create(ctx, "u2")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := store.RevokeAllForUser(ctx, "u1"); err != nil {
		t.Fatalf("RevokeAllForUser failed: %v", err)
	}

	for _, credential := range []string{first, second} {
		if _, err := store.Lookup(ctx, credential); !errors.Is(err, ErrSessionNotFound) {
			t.Fatalf("expected revoked session to be gone, got %v", err)
		}
	}
	if _, err := store.Lookup(ctx, foreign); err != nil {
		t.Fatalf("other user's session must survive: %v", err)
	}
}
