package accesscore

import (
	"errors"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	internalaudit "github.com/caretrail/accesscore/internal/audit"
	"github.com/caretrail/accesscore/internal/limiters"
	"github.com/caretrail/accesscore/internal/metrics"
	"github.com/caretrail/accesscore/internal/stores"
	"github.com/caretrail/accesscore/password"
)

// Builder assembles an Engine. Configure during initialization, call
// Build once, then treat the resulting Engine as immutable.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	directory   Directory
	credentials CredentialStore
	twoFactor   TwoFactorStore
	ledger      Ledger
	sessions    SessionStore
	notifier    Notifier

	mirrorSink AuditSink
	registerer prometheus.Registerer
	logger     zerolog.Logger
	haveLogger bool

	built bool
}

// New returns a Builder loaded with DefaultConfig.
func New() *Builder {
	return &Builder{config: DefaultConfig()}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithRedis supplies the client backing reset tokens and the shared
// rate-limit windows.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithDirectory(d Directory) *Builder {
	b.directory = d
	return b
}

func (b *Builder) WithCredentialStore(s CredentialStore) *Builder {
	b.credentials = s
	return b
}

func (b *Builder) WithTwoFactorStore(s TwoFactorStore) *Builder {
	b.twoFactor = s
	return b
}

func (b *Builder) WithLedger(l Ledger) *Builder {
	b.ledger = l
	return b
}

func (b *Builder) WithSessionStore(s SessionStore) *Builder {
	b.sessions = s
	return b
}

func (b *Builder) WithNotifier(n Notifier) *Builder {
	b.notifier = n
	return b
}

// WithMirrorSink attaches the non-authoritative async audit mirror.
func (b *Builder) WithMirrorSink(sink AuditSink) *Builder {
	b.mirrorSink = sink
	return b
}

// WithMetrics registers the engine counters on reg.
func (b *Builder) WithMetrics(reg prometheus.Registerer) *Builder {
	b.registerer = reg
	return b
}

func (b *Builder) WithLogger(logger zerolog.Logger) *Builder {
	b.logger = logger
	b.haveLogger = true
	return b
}

// Build validates the configuration and wiring and returns the Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	if err := b.config.Validate(); err != nil {
		return nil, err
	}
	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.directory == nil {
		return nil, errors.New("directory required")
	}
	if b.credentials == nil {
		return nil, errors.New("credential store required")
	}
	if b.twoFactor == nil {
		return nil, errors.New("two-factor store required")
	}
	if b.ledger == nil {
		return nil, errors.New("ledger required")
	}
	if b.sessions == nil {
		return nil, errors.New("session store required")
	}
	if b.notifier == nil {
		return nil, errors.New("notifier required")
	}

	hasher, err := password.NewHasher(b.config.Password.Argon2)
	if err != nil {
		return nil, err
	}

	logger := b.logger
	if !b.haveLogger {
		logger = zerolog.New(io.Discard)
	}

	var engineMetrics *metrics.Metrics
	if b.registerer != nil {
		engineMetrics = metrics.New(b.registerer)
	}

	engine := &Engine{
		config:      b.config,
		directory:   b.directory,
		credentials: b.credentials,
		twoFactor:   b.twoFactor,
		ledger:      b.ledger,
		sessions:    b.sessions,
		notifier:    b.notifier,
		resetTokens: stores.NewResetTokenStore(b.redis, "acr"),
		resetLimiter: limiters.NewResetLimiter(b.redis, limiters.Config{
			Confirm: limiters.Window{
				Max:    b.config.PasswordReset.MaxAttempts,
				Period: b.config.PasswordReset.Window,
			},
			Request: limiters.Window{
				Max:    b.config.PasswordReset.MaxRequests,
				Period: b.config.PasswordReset.RequestWindow,
			},
		}),
		hasher: hasher,
		totp:   newTOTPManager(b.config.TwoFactor),
		mirror: internalaudit.NewDispatcher(internalaudit.Config{
			Enabled:    b.config.Audit.MirrorEnabled,
			BufferSize: b.config.Audit.MirrorBufferSize,
			DropIfFull: b.config.Audit.MirrorDropIfFull,
		}, b.mirrorSink),
		metrics: engineMetrics,
		logger:  logger,
		now:     time.Now,
		sleep:   time.Sleep,
	}

	if b.config.Sweep.Enabled {
		engine.startSweeper()
	}

	b.built = true
	return engine, nil
}
