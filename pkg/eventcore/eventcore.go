// Package eventcore assembles the event subsystem from resolved
// settings: the bus, the optional store behind it, and source
// connectors around platform API clients. Hosts build one System at
// startup and share it; there is no package-level singleton.
package eventcore

import (
	"fmt"
	"log/slog"

	"github.com/dreamsprouts/eventcore/pkg/eventcore/bus"
	"github.com/dreamsprouts/eventcore/pkg/eventcore/config"
	"github.com/dreamsprouts/eventcore/pkg/eventcore/observability"
	"github.com/dreamsprouts/eventcore/pkg/eventcore/shopline"
	"github.com/dreamsprouts/eventcore/pkg/eventcore/store"
)

// System wires the event subsystem together.
type System struct {
	Bus      *bus.Bus
	Store    store.Store
	Settings config.Settings

	logger *slog.Logger
}

// Option configures System construction.
type Option func(*systemConfig)

type systemConfig struct {
	logger  *slog.Logger
	metrics observability.MetricsRecorder
	spans   observability.SpanManager
}

// WithLogger sets the logger for the subsystem. Without it, and with
// Settings.LogEvents on, slog.Default() is used.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *systemConfig) {
		cfg.logger = logger
	}
}

// WithMetrics overrides the OpenTelemetry metrics recorder.
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(cfg *systemConfig) {
		cfg.metrics = m
	}
}

// WithSpans overrides the OpenTelemetry span manager.
func WithSpans(s observability.SpanManager) Option {
	return func(cfg *systemConfig) {
		cfg.spans = s
	}
}

// New builds a System from settings. Settings are normalized first;
// each correction is logged as a warning rather than failing startup.
func New(settings config.Settings, opts ...Option) (*System, error) {
	cfg := &systemConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	logger := cfg.logger
	if logger == nil && settings.LogEvents {
		logger = slog.Default()
	}
	if !settings.LogEvents {
		logger = nil
	}

	for _, warning := range settings.Normalize() {
		if logger != nil {
			logger.Warn("event settings corrected", "warning", warning)
		}
	}

	st, err := buildStore(settings)
	if err != nil {
		return nil, err
	}

	metrics := cfg.metrics
	if metrics == nil {
		metrics = observability.NewMetricsRecorder()
	}
	spans := cfg.spans
	if spans == nil {
		spans = observability.NewSpanManager()
	}

	b := bus.New(bus.Config{
		Store:    st,
		Disabled: !settings.BusEnabled,
		Logger:   logger,
		Metrics:  metrics,
		Spans:    spans,
	})

	return &System{
		Bus:      b,
		Store:    st,
		Settings: settings,
		logger:   logger,
	}, nil
}

// Connector wraps a Shopline API client with the dual-write source
// connector, publishing to this system's bus.
func (s *System) Connector(client shopline.Client, shopID string) *shopline.SourceConnector {
	return shopline.NewSourceConnector(client, s.Bus, shopline.Config{
		ShopID:   shopID,
		Disabled: !s.Settings.ShoplineSourceEnabled,
		Logger:   s.logger,
	})
}

// Close releases the store. The bus itself holds no resources.
func (s *System) Close() error {
	if s.Store == nil {
		return nil
	}
	return s.Store.Close()
}

func buildStore(settings config.Settings) (store.Store, error) {
	if !settings.StoreEnabled {
		return nil, nil
	}

	switch settings.StoreType {
	case config.StoreMemory:
		return store.NewMemoryStore(), nil
	case config.StoreSQLite:
		st, err := store.NewSQLiteStore(settings.StorePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite event store: %w", err)
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unknown store type %q", settings.StoreType)
	}
}
