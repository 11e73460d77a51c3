package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/crossfellowship/registrar/internal/accounts"
	"github.com/crossfellowship/registrar/internal/applicants"
	"github.com/crossfellowship/registrar/internal/channel"
	"github.com/crossfellowship/registrar/internal/channel/adapters/telegram"
	"github.com/crossfellowship/registrar/internal/config"
	"github.com/crossfellowship/registrar/internal/db"
	"github.com/crossfellowship/registrar/internal/email"
	emailmailgun "github.com/crossfellowship/registrar/internal/email/adapters/mailgun"
	emailsmtp "github.com/crossfellowship/registrar/internal/email/adapters/smtp"
	"github.com/crossfellowship/registrar/internal/handlers"
	"github.com/crossfellowship/registrar/internal/healthcheck"
	dbchecker "github.com/crossfellowship/registrar/internal/healthcheck/checkers/database"
	redischecker "github.com/crossfellowship/registrar/internal/healthcheck/checkers/redis"
	"github.com/crossfellowship/registrar/internal/logger"
	"github.com/crossfellowship/registrar/internal/media"
	"github.com/crossfellowship/registrar/internal/media/providers/localfs"
	"github.com/crossfellowship/registrar/internal/metrics"
	"github.com/crossfellowship/registrar/internal/registration"
	"github.com/crossfellowship/registrar/internal/server"
	"github.com/crossfellowship/registrar/internal/session"
)

func runServe() {
	fx.New(
		fx.Provide(
			provideConfig,
			provideLogger,
			provideDBConn,
			providePrometheusRegistry,
			provideMetrics,
			provideSessionStore,
			provideSweeper,
			provideTelegramAdapter,
			provideMediaStorage,
			provideIngestor,
			provideEmailRegistry,
			provideInviter,
			accounts.NewStore,
			provideAccountsService,
			applicants.NewStore,
			provideApplicantsService,
			provideMachine,
			provideDispatcher,
			provideServerHandler(provideAuthHandler),
			provideServerHandler(provideApplicantsHandler),
			provideServerHandler(provideUsersHandler),
			provideServerHandler(providePingHandler),
			provideServer,
		),
		fx.Invoke(
			ensureAdminUser,
			startSweeper,
			startServer,
			startTelegram,
		),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
		}),
	).Run()
}

func provideServerHandler(fn any) any {
	return fx.Annotate(
		fn,
		fx.As(new(server.Handler)),
		fx.ResultTags(`group:"server_handlers"`),
	)
}

func provideConfig() (config.Config, error) {
	cfgPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideDBConn(lc fx.Lifecycle, log *slog.Logger, cfg config.Config) (*sql.DB, error) {
	conn, err := db.Open(context.Background(), cfg.Postgres.DSN())
	if err != nil {
		return nil, err
	}
	if err := db.MigrateUp(log, conn); err != nil {
		_ = conn.Close()
		return nil, err
	}
	lc.Append(fx.Hook{OnStop: func(context.Context) error { return conn.Close() }})
	return conn, nil
}

func providePrometheusRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func provideMetrics(reg *prometheus.Registry) *metrics.Metrics {
	return metrics.New(reg)
}

type sessionResult struct {
	fx.Out
	Store  session.Store
	Checks []healthcheck.Checker `group:"health_checks,flatten"`
}

func provideSessionStore(lc fx.Lifecycle, log *slog.Logger, cfg config.Config, conn *sql.DB) (sessionResult, error) {
	backend := strings.ToLower(strings.TrimSpace(cfg.Session.Backend))
	log.Info("session store", slog.String("backend", backend))
	switch backend {
	case "", "postgres":
		return sessionResult{Store: session.NewPostgresStore(conn)}, nil
	case "memory":
		return sessionResult{Store: session.NewMemoryStore()}, nil
	case "redis":
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return sessionResult{}, fmt.Errorf("parse redis url: %w", err)
		}
		client := redis.NewClient(opts)
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error { return client.Ping(ctx).Err() },
			OnStop:  func(context.Context) error { return client.Close() },
		})
		return sessionResult{
			Store:  session.NewRedisStore(client, cfg.Redis.KeyPrefix, cfg.Session.IdleTTL()),
			Checks: []healthcheck.Checker{redischecker.NewChecker(log, client)},
		}, nil
	default:
		return sessionResult{}, fmt.Errorf("unknown session backend %q", cfg.Session.Backend)
	}
}

func provideSweeper(log *slog.Logger, cfg config.Config, store session.Store, m *metrics.Metrics) *session.Sweeper {
	return session.NewSweeper(log, store, cfg.Session.IdleTTL(), cfg.Session.SweepSchedule, m.AddExpired)
}

func provideTelegramAdapter(log *slog.Logger, cfg config.Config) (*telegram.Adapter, error) {
	if strings.TrimSpace(cfg.Telegram.BotToken) == "" {
		return nil, errors.New("telegram bot token is required (telegram.bot_token or TELEGRAM_BOT_TOKEN)")
	}
	return telegram.NewAdapter(log, cfg.Telegram.BotToken, telegram.Options{
		PollTimeout:     cfg.Telegram.PollTimeoutSeconds,
		DownloadTimeout: cfg.Uploads.Timeout(),
		Debug:           cfg.Telegram.Debug,
	})
}

func provideMediaStorage(cfg config.Config) (*localfs.Provider, error) {
	return localfs.New(cfg.Uploads.Dir)
}

func provideIngestor(log *slog.Logger, cfg config.Config, storage *localfs.Provider, adapter *telegram.Adapter) *media.Ingestor {
	var prober media.DurationProber
	if path := strings.TrimSpace(cfg.Uploads.FFProbePath); path != "" {
		prober = media.NewFFProbe(path)
	}
	return media.NewIngestor(log, storage, adapter, prober, media.IngestorOptions{
		Timeout:       cfg.Uploads.Timeout(),
		MaxConcurrent: int64(cfg.Uploads.MaxDownloads),
	})
}

func provideEmailRegistry(log *slog.Logger, cfg config.Config) (*email.Registry, error) {
	registry := email.NewRegistry()
	switch email.ProviderName(strings.ToLower(strings.TrimSpace(cfg.Email.Provider))) {
	case "":
		return registry, nil
	case emailsmtp.ProviderName:
		if strings.TrimSpace(cfg.Email.SMTP.Host) == "" {
			log.Warn("smtp host not configured, invitations disabled")
			return registry, nil
		}
		adapter, err := emailsmtp.New(log, emailsmtp.Config{
			Host:     cfg.Email.SMTP.Host,
			Port:     cfg.Email.SMTP.Port,
			Username: cfg.Email.SMTP.Username,
			Password: cfg.Email.SMTP.Password,
			Security: cfg.Email.SMTP.Security,
			From:     cfg.Email.From,
		})
		if err != nil {
			return nil, err
		}
		registry.Register(adapter)
	case emailmailgun.ProviderName:
		adapter, err := emailmailgun.New(log, emailmailgun.Config{
			Domain: cfg.Email.Mailgun.Domain,
			APIKey: cfg.Email.Mailgun.APIKey,
			Region: cfg.Email.Mailgun.Region,
			From:   cfg.Email.From,
		})
		if err != nil {
			return nil, err
		}
		registry.Register(adapter)
	default:
		return nil, fmt.Errorf("%w: %s", email.ErrUnknownProvider, cfg.Email.Provider)
	}
	return registry, nil
}

// provideInviter returns nil when no provider is registered so accounts
// reports the temporary password instead of attempting delivery.
func provideInviter(log *slog.Logger, cfg config.Config, registry *email.Registry) accounts.Inviter {
	sender, err := registry.Get(email.ProviderName(strings.ToLower(strings.TrimSpace(cfg.Email.Provider))))
	if err != nil {
		log.Warn("email invitations disabled", slog.Any("error", err))
		return nil
	}
	return email.NewMailer(log, sender, cfg.Email.DashboardURL)
}

func provideAccountsService(log *slog.Logger, store *accounts.Store, inviter accounts.Inviter) *accounts.Service {
	return accounts.NewService(log, store, inviter)
}

func provideApplicantsService(log *slog.Logger, store *applicants.Store) *applicants.Service {
	return applicants.NewService(log, store)
}

func provideMachine(log *slog.Logger, cfg config.Config, store session.Store, adapter *telegram.Adapter, ingestor *media.Ingestor, apps *applicants.Store, m *metrics.Metrics) *registration.Machine {
	policy := channel.DefaultOutboundPolicy()
	policy.Retryable = telegram.IsRetryable
	messenger := channel.NewRetryMessenger(log, adapter, policy)
	return registration.NewMachine(log, store, messenger, ingestor, apps, registration.Options{
		AllowResubmission: cfg.Registration.AllowResubmission,
		Metrics:           m,
		Tracer:            otel.Tracer("github.com/crossfellowship/registrar"),
	})
}

func provideDispatcher(log *slog.Logger, machine *registration.Machine) *registration.Dispatcher {
	return registration.NewDispatcher(log, machine, registration.DefaultEventTimeout)
}

func provideAuthHandler(log *slog.Logger, svc *accounts.Service, cfg config.Config) *handlers.AuthHandler {
	return handlers.NewAuthHandler(log, svc, cfg.Auth.JWTSecret, cfg.Auth.ExpiresIn())
}

func provideApplicantsHandler(log *slog.Logger, svc *applicants.Service, storage *localfs.Provider) *handlers.ApplicantsHandler {
	return handlers.NewApplicantsHandler(log, svc, storage)
}

func provideUsersHandler(log *slog.Logger, svc *accounts.Service) *handlers.UsersHandler {
	return handlers.NewUsersHandler(log, svc)
}

type pingParams struct {
	fx.In
	Logger *slog.Logger
	DB     *sql.DB
	Checks []healthcheck.Checker `group:"health_checks"`
}

func providePingHandler(params pingParams) *handlers.PingHandler {
	checks := append([]healthcheck.Checker{dbchecker.NewChecker(params.Logger, params.DB)}, params.Checks...)
	return handlers.NewPingHandler(params.Logger, checks...)
}

type serverParams struct {
	fx.In
	Logger         *slog.Logger
	Config         config.Config
	Registry       *prometheus.Registry
	ServerHandlers []server.Handler `group:"server_handlers"`
}

func provideServer(params serverParams) (*server.Server, error) {
	if strings.TrimSpace(params.Config.Auth.JWTSecret) == "" {
		return nil, errors.New("jwt secret is required (auth.jwt_secret or JWT_SECRET)")
	}
	return server.NewServer(params.Logger, server.Options{
		Addr:      params.Config.Server.Addr,
		JWTSecret: params.Config.Auth.JWTSecret,
		Gatherer:  params.Registry,
	}, params.ServerHandlers...), nil
}

func ensureAdminUser(lc fx.Lifecycle, log *slog.Logger, cfg config.Config, svc *accounts.Service) {
	lc.Append(fx.Hook{OnStart: func(ctx context.Context) error {
		if cfg.Admin.Password == config.DefaultAdminPasswordHint {
			log.Warn("bootstrap admin uses the default password; run seed-admin to change it")
		}
		return svc.EnsureAdmin(ctx, cfg.Admin.Username, cfg.Admin.Password, cfg.Admin.Email)
	}})
}

func startSweeper(lc fx.Lifecycle, sweeper *session.Sweeper) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error { return sweeper.Start() },
		OnStop:  func(ctx context.Context) error { return sweeper.Stop(ctx) },
	})
}

func startServer(lc fx.Lifecycle, logger *slog.Logger, srv *server.Server, shutdowner fx.Shutdowner) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Stop(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server stop: %w", err)
			}
			return nil
		},
	})
}

// startTelegram stops polling before draining the dispatcher so no event
// arrives after the mailboxes start closing.
func startTelegram(lc fx.Lifecycle, logger *slog.Logger, adapter *telegram.Adapter, dispatcher *registration.Dispatcher) {
	var conn *telegram.Connection
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			c, err := adapter.Connect(context.Background(), func(_ context.Context, ev channel.Event) error {
				return dispatcher.Dispatch(ev)
			})
			if err != nil {
				return err
			}
			conn = c
			return nil
		},
		OnStop: func(ctx context.Context) error {
			var errs []error
			if conn != nil {
				if err := conn.Stop(ctx); err != nil {
					errs = append(errs, fmt.Errorf("telegram stop: %w", err))
				}
			}
			drainCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()
			if err := dispatcher.Shutdown(drainCtx); err != nil {
				logger.Warn("dispatcher drain incomplete", slog.Any("error", err))
			}
			return errors.Join(errs...)
		},
	})
}
