package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"travelmate/internal/config"
	"travelmate/internal/keywords"
	"travelmate/internal/logging"
	"travelmate/internal/middleware"
	"travelmate/internal/providers"
	"travelmate/internal/queue"
	"travelmate/internal/resolver"
	"travelmate/internal/session"
	"travelmate/internal/settings"
	"travelmate/internal/storage"
	"travelmate/internal/widget"
)

// Dependencies aggregates all services the HTTP layer needs.
type Dependencies struct {
	Settings *settings.Config
	Chat     *session.Service
	Sessions *session.Store
	// Widget is nil when no widget configuration URL is set
	Widget *widget.Loader
	// Audit receives resolution records; Shipper is nil when auditing is off
	Audit   logging.Sink
	Shipper *logging.Shipper
	Store   storage.KVStore

	StaticDir  string
	SessionTTL time.Duration

	cancel context.CancelFunc
}

// NewDependencies opens the settings store and wires the chat services.
// Background workers (session janitor, widget loader, audit shipper) are
// started and run until Shutdown.
func NewDependencies(ctx context.Context, cfg *config.Config) (*Dependencies, error) {
	store, err := storage.Open(ctx, cfg.StoreConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to open settings store: %w", err)
	}

	client := providers.NewHTTPClient(cfg.Provider.RequestTimeout)
	opts := []settings.Option{settings.WithHTTPClient(client)}
	if cfg.Security.EncryptionKey != "" {
		enc, err := storage.NewEncryptionFromSecret(cfg.Security.EncryptionKey)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("failed to initialize encryption: %w", err)
		}
		opts = append(opts, settings.WithSealer(enc))
	}

	conf, err := settings.New(ctx, store, cfg.SettingsDefaults(), opts...)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	table := keywords.Default()
	if cfg.Keywords.File != "" {
		if table, err = keywords.Load(cfg.Keywords.File); err != nil {
			store.Close()
			return nil, err
		}
	}

	bg, cancel := context.WithCancel(context.Background())

	sink, shipper, err := newAuditSink(bg, cfg)
	if err != nil {
		cancel()
		store.Close()
		return nil, err
	}

	res := resolver.New(conf, table,
		resolver.WithHTTPClient(client),
		resolver.WithSink(sink),
	)

	sessions := session.NewStore(cfg.Sessions.Capacity, cfg.Sessions.TTL)
	go sessions.RunJanitor(bg, cfg.Sessions.CleanupInterval)

	var loader *widget.Loader
	if cfg.Widget.ConfigURL != "" {
		loader = widget.NewLoader(
			&widget.HTTPFetcher{URL: cfg.Widget.ConfigURL, Client: providers.NewHTTPClient(cfg.Provider.RequestTimeout)},
			cfg.RetryPolicy(),
			widget.WithShareURL(cfg.Widget.ShareURL),
		)
		go loader.Run(bg, cfg.Widget.ReloadInterval)
	}

	return &Dependencies{
		Settings:   conf,
		Chat:       session.NewService(sessions, res),
		Sessions:   sessions,
		Widget:     loader,
		Audit:      sink,
		Shipper:    shipper,
		Store:      store,
		StaticDir:  cfg.StaticDir,
		SessionTTL: cfg.Sessions.TTL,
		cancel:     cancel,
	}, nil
}

// newAuditSink builds the resolution audit pipeline: a queue drained by a
// shipper that writes JSONL batches to S3, or to the debug log when no
// bucket is configured.
func newAuditSink(ctx context.Context, cfg *config.Config) (logging.Sink, *logging.Shipper, error) {
	if !cfg.Audit.Enabled {
		return logging.NewNoopSink(), nil, nil
	}

	qcfg := cfg.QueueConfig()
	q, dlq, err := queue.New(qcfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create audit queue: %w", err)
	}

	var writer logging.BatchWriter = logging.LogWriter{}
	if cfg.Audit.S3Bucket != "" {
		s3w, err := logging.NewS3Writer(ctx, logging.S3WriterConfig{
			Bucket:       cfg.Audit.S3Bucket,
			Region:       cfg.Audit.S3Region,
			Prefix:       cfg.Audit.S3Prefix,
			PodName:      cfg.Audit.PodName,
			Endpoint:     cfg.Audit.S3Endpoint,
			UsePathStyle: cfg.Audit.S3PathStyle,
		})
		if err != nil {
			q.Close()
			return nil, nil, fmt.Errorf("failed to create S3 audit writer: %w", err)
		}
		writer = s3w
	}

	shipper := logging.NewShipper(q, dlq, writer, qcfg)
	shipper.Start(ctx)
	logging.Infof("audit: shipping resolution records (queue=%s, redis=%t, s3=%t)",
		qcfg.QueueName, qcfg.UseRedis, cfg.Audit.S3Bucket != "")

	return logging.NewQueueSink(q, shipper), shipper, nil
}

// NewRouter creates an HTTP handler with all dependencies wired up
func NewRouter(ctx context.Context, cfg *config.Config) (http.Handler, *Dependencies, error) {
	deps, err := NewDependencies(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return deps.Handler(), deps, nil
}

// Handler returns the route tree wrapped in the request middleware
func (d *Dependencies) Handler() http.Handler {
	mux := http.NewServeMux()
	registerRoutes(mux, d)

	ttl := d.SessionTTL
	if ttl <= 0 {
		ttl = session.DefaultTTL
	}
	return middleware.Chain(mux,
		middleware.RequestIDMiddleware,
		middleware.LoggingMiddleware,
		middleware.SessionMiddleware(ttl),
	)
}

func registerRoutes(mux *http.ServeMux, d *Dependencies) {
	mux.HandleFunc("/health", d.handleHealth)

	mux.HandleFunc("/api/chat", d.handleChat)
	mux.HandleFunc("/api/chat/ws", d.handleChatWebSocket)

	mux.HandleFunc("/api/settings", d.handleSettings)
	mux.HandleFunc("/api/settings/credential", d.handleSettingsCredential)
	mux.HandleFunc("/api/settings/enabled", d.handleSettingsEnabled)
	mux.HandleFunc("/api/settings/provider", d.handleSettingsProvider)
	mux.HandleFunc("/api/settings/test", d.handleSettingsTest)

	mux.HandleFunc("/api/widget", d.handleWidget)

	if d.StaticDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(d.StaticDir)))
	}
}

// Shutdown stops the background workers, flushes the audit sink and closes
// the settings store.
func (d *Dependencies) Shutdown(ctx context.Context) error {
	if d.cancel != nil {
		d.cancel()
	}

	var errs []error
	if d.Audit != nil {
		if err := d.Audit.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("audit sink: %w", err))
		}
	}
	if d.Store != nil {
		if err := d.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("settings store: %w", err))
		}
	}
	return errors.Join(errs...)
}
