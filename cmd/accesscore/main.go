// Command accesscore runs the access-control service: it wires the
// Postgres stores, the Redis session and token stores, and the engine
// behind the JSON HTTP surface.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/caretrail/accesscore"
	"github.com/caretrail/accesscore/httpapi"
	"github.com/caretrail/accesscore/internal/pg"
	"github.com/caretrail/accesscore/pgstore"
	"github.com/caretrail/accesscore/session"
)

var cli struct {
	Debug bool `help:"Enable debug logging." env:"ACCESSCORE_DEBUG"`

	Serve   ServeCmd   `cmd:"" default:"1" help:"Run the HTTP service."`
	Migrate MigrateCmd `cmd:"" help:"Apply pending database migrations and exit."`
}

type ServeCmd struct {
	Listen string `help:"HTTP listen address." default:":8080" env:"ACCESSCORE_LISTEN"`

	PostgresDSN string `help:"Postgres connection string." env:"ACCESSCORE_POSTGRES_DSN" required:""`
	RedisAddr   string `help:"Redis address." default:"localhost:6379" env:"ACCESSCORE_REDIS_ADDR"`

	SessionSecret string        `help:"HMAC secret for session credentials (min 32 bytes)." env:"ACCESSCORE_SESSION_SECRET" required:""`
	SessionTTL    time.Duration `help:"Session lifetime." default:"12h" env:"ACCESSCORE_SESSION_TTL"`

	SystemAdminEmails  []string `help:"Emails resolved to system scope." env:"ACCESSCORE_SYSTEM_ADMIN_EMAILS"`
	SystemAdminDomains []string `help:"Email domains resolved to system scope." env:"ACCESSCORE_SYSTEM_ADMIN_DOMAINS"`

	AutoMigrate bool `help:"Apply pending migrations on boot." default:"true" env:"ACCESSCORE_AUTO_MIGRATE"`
}

type MigrateCmd struct {
	PostgresDSN string `help:"Postgres connection string." env:"ACCESSCORE_POSTGRES_DSN" required:""`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cliCtx := kong.Parse(&cli, kong.BindTo(ctx, (*context.Context)(nil)))

	level := zerolog.InfoLevel
	if cli.Debug {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger().Level(level)

	cliCtx.FatalIfErrorf(cliCtx.Run(ctx, logger))
}

func (c *MigrateCmd) Run(ctx context.Context, logger zerolog.Logger) error {
	db, err := pg.Open(c.PostgresDSN)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := pg.NewMigrator(db).Up(ctx); err != nil {
		return err
	}
	logger.Info().Msg("migrations applied")
	return nil
}

func (c *ServeCmd) Run(ctx context.Context, logger zerolog.Logger) error {
	if len(c.SessionSecret) < 32 {
		return errors.New("session secret must be at least 32 bytes")
	}

	db, err := pg.Open(c.PostgresDSN)
	if err != nil {
		return err
	}
	defer db.Close()

	if c.AutoMigrate {
		if err := pg.NewMigrator(db).Up(ctx); err != nil {
			return err
		}
		logger.Info().Msg("migrations applied")
	}

	redisClient := redis.NewClient(&redis.Options{Addr: c.RedisAddr})
	defer redisClient.Close()

	sessions := session.NewStore(redisClient, []byte(c.SessionSecret), "sess", c.SessionTTL)

	cfg := accesscore.DefaultConfig()
	cfg.Resolver.SystemAdminEmails = c.SystemAdminEmails
	cfg.Resolver.SystemAdminDomains = c.SystemAdminDomains
	cfg.Audit.MirrorEnabled = true

	engine, err := accesscore.New().
		WithConfig(cfg).
		WithRedis(redisClient).
		WithDirectory(pgstore.NewDirectory(db)).
		WithCredentialStore(pgstore.NewCredentials(db)).
		WithTwoFactorStore(pgstore.NewTwoFactor(db)).
		WithLedger(pgstore.NewLedger(db)).
		WithSessionStore(sessions).
		WithNotifier(logNotifier{logger: logger}).
		WithMirrorSink(accesscore.NewJSONWriterSink(os.Stdout)).
		WithMetrics(prometheus.DefaultRegisterer).
		WithLogger(logger).
		Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	server := httpapi.New(engine, db, logger)
	logger.Info().Str("addr", c.Listen).Msg("listening")
	return server.Serve(ctx, c.Listen)
}

// logNotifier stands in for an outbound mail integration: it logs that
// a token was issued without logging the token itself.
type logNotifier struct {
	logger zerolog.Logger
}

func (n logNotifier) DeliverResetToken(_ context.Context, email, _ string, expiresAt time.Time) error {
	n.logger.Info().Str("email", email).Time("expires_at", expiresAt).
		Msg("reset token issued; delivery integration not configured")
	return nil
}
