// Package cli wires configuration into a ready-to-run tickler engine for the command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aretw0/tickler"
	"github.com/aretw0/tickler/internal/awsconfig"
	"github.com/aretw0/tickler/internal/config"
	"github.com/aretw0/tickler/pkg/adapters/anthropic"
	"github.com/aretw0/tickler/pkg/adapters/bedrock"
	"github.com/aretw0/tickler/pkg/adapters/memory"
	"github.com/aretw0/tickler/pkg/adapters/openai"
	"github.com/aretw0/tickler/pkg/adapters/process"
	"github.com/aretw0/tickler/pkg/adapters/redis"
	"github.com/aretw0/tickler/pkg/adapters/ses"
	"github.com/aretw0/tickler/pkg/domain"
	"github.com/aretw0/tickler/pkg/observability"
	"github.com/aretw0/tickler/pkg/persistence/middleware"
	"github.com/aretw0/tickler/pkg/ports"
	"github.com/aretw0/tickler/pkg/registry"
	"github.com/aretw0/tickler/pkg/reminder"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// App is a fully wired engine plus the resources it owns.
type App struct {
	Engine  *tickler.Engine
	Store   ports.RunStore
	Metrics *observability.Metrics
	// Gatherer serves /metrics.
	Gatherer prometheus.Gatherer
	Logger   *slog.Logger

	closers []func(context.Context) error
}

// Close releases stores and flushes exporters.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i](ctx))
	}
	return errors.Join(errs...)
}

// BuildOption overrides a component Build would otherwise create from config.
type BuildOption func(*buildDeps)

type buildDeps struct {
	model  ports.ModelClient
	mailer ports.Mailer
	store  ports.RunStore
}

// WithModelClient skips provider setup.
func WithModelClient(c ports.ModelClient) BuildOption {
	return func(d *buildDeps) {
		d.model = c
	}
}

// WithMailer skips mailer setup.
func WithMailer(m ports.Mailer) BuildOption {
	return func(d *buildDeps) {
		d.mailer = m
	}
}

// WithStore skips history store setup.
func WithStore(s ports.RunStore) BuildOption {
	return func(d *buildDeps) {
		d.store = s
	}
}

// Build creates the engine described by cfg.
func Build(ctx context.Context, cfg config.Config, logger *slog.Logger, opts ...BuildOption) (*App, error) {
	var deps buildDeps
	for _, opt := range opts {
		opt(&deps)
	}

	app := &App{Logger: logger}
	loadAWS := lazyAWS(cfg)

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	// 1. Model client
	if deps.model == nil {
		if deps.model, err = newModelClient(ctx, cfg, loadAWS); err != nil {
			return nil, err
		}
	}

	// 2. Handlers
	reg := registry.NewRegistry()
	if cfg.ToolsFile != "" {
		tools, err := process.LoadTools(cfg.ToolsFile)
		if err != nil {
			return nil, err
		}
		if _, clash := tools[domain.ToolCreateCalendarReminder]; clash {
			return nil, fmt.Errorf("%s: tool name %q is reserved", cfg.ToolsFile, domain.ToolCreateCalendarReminder)
		}
		runner := process.NewRunner(process.WithTools(tools), process.WithLogger(logger))
		runner.RegisterAll(reg)
		logger.Debug("Registered command tools", "tools", runner.Names())
	}
	if cfg.Reminder.Sender == "" || cfg.Reminder.Recipient == "" {
		logger.Warn("Reminder handler disabled: sender and recipient are not configured")
	} else {
		if deps.mailer == nil {
			if deps.mailer, err = newMailer(ctx, cfg, loadAWS, logger); err != nil {
				return nil, err
			}
		}
		h, err := reminder.NewHandler(reminder.Config{
			Sender:      cfg.Reminder.Sender,
			Recipient:   cfg.Reminder.Recipient,
			Location:    loc,
			AlarmBefore: cfg.Reminder.AlarmBefore,
		}, deps.mailer, reminder.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		h.Register(reg)
	}

	// 3. History
	if deps.store == nil {
		if deps.store, err = app.newStore(ctx, cfg); err != nil {
			return nil, err
		}
	}
	if app.Store, err = secureStore(cfg.History, deps.store); err != nil {
		_ = app.Close(ctx)
		return nil, err
	}

	// 4. Observability
	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if app.Metrics, err = observability.NewMetrics(promReg); err != nil {
		_ = app.Close(ctx)
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}
	app.Gatherer = promReg

	shutdown, err := observability.NewTracer(ctx, observability.TraceConfig{
		Endpoint:       cfg.Tracing.Endpoint,
		ServiceName:    cfg.Tracing.ServiceName,
		ServiceVersion: tickler.Version,
		Insecure:       cfg.Tracing.Insecure,
	})
	if err != nil {
		_ = app.Close(ctx)
		return nil, err
	}
	app.closers = append(app.closers, shutdown)

	// 5. Engine
	app.Engine, err = tickler.New(deps.model,
		tickler.WithLogger(logger),
		tickler.WithLifecycleHooks(domain.MergeHooks(app.Metrics.Hooks(), debugHooks(logger))),
		tickler.WithRetryPolicy(cfg.Retry),
		tickler.WithConcurrency(cfg.Dispatch.Concurrency),
		tickler.WithItemTimeout(cfg.Dispatch.ItemTimeout),
		tickler.WithRunTimeout(cfg.RunTimeout),
		tickler.WithTimezone(loc),
		tickler.WithRegistry(reg),
		tickler.WithRunStore(app.Store),
	)
	if err != nil {
		_ = app.Close(ctx)
		return nil, fmt.Errorf("error initializing engine: %w", err)
	}
	return app, nil
}

// lazyAWS loads the AWS config at most once, and only for components that need it.
func lazyAWS(cfg config.Config) func(context.Context) (aws.Config, error) {
	var (
		loaded aws.Config
		err    error
		done   bool
	)
	return func(ctx context.Context) (aws.Config, error) {
		if !done {
			loaded, err = awsconfig.Load(ctx, awsconfig.Options{
				Region:          cfg.Model.Region,
				AccessKeyID:     cfg.Model.AccessKeyID,
				SecretAccessKey: cfg.Model.SecretAccessKey,
			})
			done = true
		}
		return loaded, err
	}
}

func newModelClient(ctx context.Context, cfg config.Config, loadAWS func(context.Context) (aws.Config, error)) (ports.ModelClient, error) {
	m := cfg.Model
	switch m.Provider {
	case config.ProviderBedrock:
		awsCfg, err := loadAWS(ctx)
		if err != nil {
			return nil, err
		}
		return bedrock.NewFromConfig(awsCfg, bedrock.WithModel(m.ID), bedrock.WithMaxTokens(m.MaxTokens)), nil
	case config.ProviderAnthropic, config.ProviderOpenAI:
		if m.APIKey == "" {
			return nil, fmt.Errorf("model provider %s requires an API key", m.Provider)
		}
		id := m.ID
		if id == config.DefaultBedrockModel {
			id = "" // let the adapter pick its own default
		}
		if m.Provider == config.ProviderAnthropic {
			return anthropic.New(anthropic.Config{APIKey: m.APIKey, Model: id, MaxTokens: m.MaxTokens, BaseURL: m.BaseURL}), nil
		}
		return openai.New(openai.Config{APIKey: m.APIKey, Model: id, MaxTokens: m.MaxTokens, BaseURL: m.BaseURL}), nil
	default:
		return nil, fmt.Errorf("unknown model provider %q", m.Provider)
	}
}

func newMailer(ctx context.Context, cfg config.Config, loadAWS func(context.Context) (aws.Config, error), logger *slog.Logger) (ports.Mailer, error) {
	if cfg.Reminder.Mailer != config.MailerSES {
		return reminder.NewLogMailer(logger), nil
	}
	awsCfg, err := loadAWS(ctx)
	if err != nil {
		return nil, err
	}
	return ses.NewFromConfig(awsCfg, logger), nil
}

func (a *App) newStore(ctx context.Context, cfg config.Config) (ports.RunStore, error) {
	h := cfg.History
	if h.Store != config.StoreRedis {
		return memory.NewStore(memory.WithCapacity(h.Capacity)), nil
	}

	store := redis.New(h.RedisAddr, h.RedisPassword, h.RedisDB, redis.WithPrefix(h.RedisPrefix), redis.WithTTL(h.TTL))
	if err := store.Ping(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", h.RedisAddr, err)
	}
	a.closers = append(a.closers, func(context.Context) error { return store.Close() })
	return store, nil
}

// secureStore applies redaction and encryption to the history store as configured.
func secureStore(h config.HistoryConfig, store ports.RunStore) (ports.RunStore, error) {
	var mws []middleware.Middleware
	if len(h.RedactKeys) > 0 {
		mw, err := middleware.NewPIIMiddleware(h.RedactKeys)
		if err != nil {
			return nil, fmt.Errorf("history: %w", err)
		}
		mws = append(mws, mw)
	}
	if h.EncryptionKey != "" {
		enc := middleware.EncryptionConfig{}
		var err error
		if enc.ActiveKey, err = middleware.ParseKey(h.EncryptionKey); err != nil {
			return nil, fmt.Errorf("history encryption key: %w", err)
		}
		for i, k := range h.FallbackKeys {
			key, err := middleware.ParseKey(k)
			if err != nil {
				return nil, fmt.Errorf("history fallback key %d: %w", i, err)
			}
			enc.FallbackKeys = append(enc.FallbackKeys, key)
		}
		mw, err := middleware.NewEncryptionMiddleware(enc)
		if err != nil {
			return nil, fmt.Errorf("history: %w", err)
		}
		mws = append(mws, mw)
	}
	return middleware.Chain(store, mws...), nil
}
