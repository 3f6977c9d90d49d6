package accesscore

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/caretrail/accesscore/internal/limiters"
	"github.com/caretrail/accesscore/internal/stores"
	"github.com/caretrail/accesscore/password"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	return mr, redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func newTestHasher(t *testing.T) *password.Hasher {
	t.Helper()
	hasher, err := password.NewHasher(password.Params{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   16,
	})
	if err != nil {
		t.Fatalf("NewHasher failed: %v", err)
	}
	return hasher
}

type fakeDirectory struct {
	users       map[string]UserRecord
	byEmail     map[string]string
	memberships map[string][]Membership
}

func (d *fakeDirectory) UserByID(_ context.Context, userID string) (UserRecord, error) {
	user, ok := d.users[userID]
	if !ok {
		return UserRecord{}, ErrUserNotFound
	}
	return user, nil
}

func (d *fakeDirectory) UserByEmail(_ context.Context, email string) (UserRecord, error) {
	id, ok := d.byEmail[email]
	if !ok {
		return UserRecord{}, ErrUserNotFound
	}
	return d.users[id], nil
}

func (d *fakeDirectory) Memberships(_ context.Context, userID string) ([]Membership, error) {
	return d.memberships[userID], nil
}

type fakeCredentials struct {
	mu      sync.Mutex
	current map[string]string
	history map[string][]string
	applied []AuditEntry
}

func newFakeCredentials() *fakeCredentials {
	return &fakeCredentials{
		current: map[string]string{},
		history: map[string][]string{},
	}
}

func (c *fakeCredentials) CurrentHash(_ context.Context, userID string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current[userID], nil
}

func (c *fakeCredentials) RecentHashes(_ context.Context, userID string, n int) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	hashes := c.history[userID]
	if len(hashes) > n {
		hashes = hashes[:n]
	}
	return append([]string(nil), hashes...), nil
}

func (c *fakeCredentials) ApplyPasswordReset(_ context.Context, userID, newHash string, keep int, entry AuditEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if prior, ok := c.current[userID]; ok && prior != "" {
		c.history[userID] = append([]string{prior}, c.history[userID]...)
		if len(c.history[userID]) > keep {
			c.history[userID] = c.history[userID][:keep]
		}
	}
	c.current[userID] = newHash
	c.applied = append(c.applied, entry)
	return nil
}

func (c *fakeCredentials) PruneHistoryBefore(context.Context, time.Time) (int64, error) {
	return 0, nil
}

// fakeTwoFactor mirrors the store contract: a transition commits with
// its audit entry, so a failing ledger leaves the record untouched.
type fakeTwoFactor struct {
	mu      sync.Mutex
	ledger  *fakeLedger
	records map[string]TwoFactorRecord
	codes   map[string]map[[32]byte]bool // unused codes per user
}

func newFakeTwoFactor(ledger *fakeLedger) *fakeTwoFactor {
	return &fakeTwoFactor{
		ledger:  ledger,
		records: map[string]TwoFactorRecord{},
		codes:   map[string]map[[32]byte]bool{},
	}
}

func (f *fakeTwoFactor) Get(_ context.Context, userID string) (TwoFactorRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.records[userID]
	if !ok {
		return TwoFactorRecord{}, ErrTwoFactorNotEnrolled
	}
	return record, nil
}

func (f *fakeTwoFactor) SavePending(ctx context.Context, userID string, secret []byte, codes []BackupCode, entry AuditEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.ledger.Append(ctx, entry); err != nil {
		return err
	}
	f.records[userID] = TwoFactorRecord{UserID: userID, Secret: secret, CreatedAt: time.Now()}
	f.codes[userID] = map[[32]byte]bool{}
	for _, code := range codes {
		f.codes[userID][code.Hash] = true
	}
	return nil
}

func (f *fakeTwoFactor) Enable(ctx context.Context, userID string, entry AuditEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.records[userID]
	if !ok {
		return ErrTwoFactorNotEnrolled
	}
	if err := f.ledger.Append(ctx, entry); err != nil {
		return err
	}
	record.Enabled = true
	f.records[userID] = record
	return nil
}

func (f *fakeTwoFactor) Disable(ctx context.Context, userID string, entry AuditEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.ledger.Append(ctx, entry); err != nil {
		return err
	}
	delete(f.records, userID)
	delete(f.codes, userID)
	return nil
}

func (f *fakeTwoFactor) ConsumeBackupCode(ctx context.Context, userID string, hash [32]byte, entry AuditEntry) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.codes[userID][hash] {
		return false, nil
	}
	if err := f.ledger.Append(ctx, entry); err != nil {
		return false, err
	}
	f.codes[userID][hash] = false
	return true, nil
}

func (f *fakeTwoFactor) DeleteStalePending(_ context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for userID, record := range f.records {
		if !record.Enabled && record.CreatedAt.Before(cutoff) {
			delete(f.records, userID)
			delete(f.codes, userID)
			n++
		}
	}
	return n, nil
}

type fakeLedger struct {
	mu      sync.Mutex
	entries []AuditEntry
	failErr error
	lastQ   AuditFilter
}

func (l *fakeLedger) Append(_ context.Context, entry AuditEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failErr != nil {
		return l.failErr
	}
	l.entries = append(l.entries, entry)
	return nil
}

func (l *fakeLedger) Query(_ context.Context, filter AuditFilter) ([]AuditEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lastQ = filter
	var result []AuditEntry
	for _, entry := range l.entries {
		if filter.TenantID != "" && entry.TenantID != filter.TenantID {
			continue
		}
		if filter.Action != "" && entry.Action != filter.Action {
			continue
		}
		result = append(result, entry)
	}
	return result, nil
}

func (l *fakeLedger) actions() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var actions []string
	for _, entry := range l.entries {
		actions = append(actions, entry.Action)
	}
	sort.Strings(actions)
	return actions
}

func (l *fakeLedger) hasAction(action string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, entry := range l.entries {
		if entry.Action == action {
			return true
		}
	}
	return false
}

type fakeSessions struct {
	mu      sync.Mutex
	lookup  map[string]SessionRecord
	revoked []string
}

func (s *fakeSessions) Lookup(_ context.Context, credential string) (SessionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.lookup[credential]
	if !ok {
		return SessionRecord{}, ErrUnauthenticated
	}
	return record, nil
}

func (s *fakeSessions) RevokeAllForUser(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked = append(s.revoked, userID)
	return nil
}

type fakeNotifier struct {
	mu     sync.Mutex
	emails []string
	tokens []string
}

func (n *fakeNotifier) DeliverResetToken(_ context.Context, email, token string, _ time.Time) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.emails = append(n.emails, email)
	n.tokens = append(n.tokens, token)
	return nil
}

func (n *fakeNotifier) lastToken() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.tokens) == 0 {
		return ""
	}
	return n.tokens[len(n.tokens)-1]
}

type testDeps struct {
	directory   *fakeDirectory
	credentials *fakeCredentials
	twoFactor   *fakeTwoFactor
	ledger      *fakeLedger
	sessions    *fakeSessions
	notifier    *fakeNotifier
}

func newTestDeps() *testDeps {
	ledger := &fakeLedger{}
	return &testDeps{
		directory: &fakeDirectory{
			users:       map[string]UserRecord{},
			byEmail:     map[string]string{},
			memberships: map[string][]Membership{},
		},
		credentials: newFakeCredentials(),
		twoFactor:   newFakeTwoFactor(ledger),
		ledger:      ledger,
		sessions:    &fakeSessions{lookup: map[string]SessionRecord{}},
		notifier:    &fakeNotifier{},
	}
}

func (d *testDeps) addUser(user UserRecord, memberships ...Membership) {
	d.directory.users[user.UserID] = user
	d.directory.byEmail[user.Email] = user.UserID
	d.directory.memberships[user.UserID] = memberships
}

func newTestEngine(t *testing.T, rdb redis.UniversalClient, cfg Config, deps *testDeps) *Engine {
	t.Helper()

	return &Engine{
		config:      cfg,
		directory:   deps.directory,
		credentials: deps.credentials,
		twoFactor:   deps.twoFactor,
		ledger:      deps.ledger,
		sessions:    deps.sessions,
		notifier:    deps.notifier,
		resetTokens: stores.NewResetTokenStore(rdb, "acr"),
		resetLimiter: limiters.NewResetLimiter(rdb, limiters.Config{
			Confirm: limiters.Window{Max: cfg.PasswordReset.MaxAttempts, Period: cfg.PasswordReset.Window},
			Request: limiters.Window{Max: cfg.PasswordReset.MaxRequests, Period: cfg.PasswordReset.RequestWindow},
		}),
		hasher: newTestHasher(t),
		totp:   newTOTPManager(cfg.TwoFactor),
		logger: zerolog.Nop(),
		now:    time.Now,
		sleep:  func(time.Duration) {},
	}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Sweep.Enabled = false
	return cfg
}
