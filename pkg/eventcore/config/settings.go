package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/dreamsprouts/eventcore/pkg/eventcore/retry"
)

// Store backend names accepted by Settings.StoreType.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
	StoreNone   = "none"
)

// Environment variable names. Everything event-related is off unless
// explicitly switched on, so a deployment without these variables
// behaves exactly as it did before the event subsystem existed.
const (
	EnvBusEnabled         = "USE_EVENT_BUS"
	EnvBusType            = "EVENT_BUS_TYPE"
	EnvLogEvents          = "LOG_EVENTS"
	EnvShoplineSource     = "ENABLE_SHOPLINE_SOURCE"
	EnvStoreEnabled       = "EVENT_STORE_ENABLED"
	EnvStoreType          = "EVENT_STORE_TYPE"
	EnvStorePath          = "EVENT_STORE_PATH"
	EnvStoreRetentionDays = "EVENT_STORE_RETENTION_DAYS"
	EnvMaxRetries         = "EVENT_MAX_RETRIES"
	EnvRetryDelayMs       = "EVENT_RETRY_DELAY_MS"
	EnvUseDeadLetterQueue = "EVENT_USE_DLQ"
)

// Settings is the resolved event subsystem configuration.
type Settings struct {
	// BusEnabled switches the whole subsystem on.
	BusEnabled bool

	// BusType names the bus implementation. Only "memory" exists today.
	BusType string

	// LogEvents controls structured logging of the event pipeline.
	LogEvents bool

	// ShoplineSourceEnabled switches the source connector's event
	// publication on.
	ShoplineSourceEnabled bool

	// StoreEnabled switches event persistence on.
	StoreEnabled bool

	// StoreType selects the store backend: memory, sqlite, or none.
	StoreType string

	// StorePath is the sqlite database path.
	StorePath string

	// RetentionDays bounds how long stored events are kept.
	RetentionDays int

	// MaxRetries and RetryDelay configure handler retry wrappers.
	MaxRetries int
	RetryDelay time.Duration

	// UseDeadLetterQueue reserves exhausted deliveries for later
	// inspection instead of dropping them.
	UseDeadLetterQueue bool
}

// Default returns the safe baseline: everything off, memory bus,
// sqlite store shape ready to switch on.
func Default() Settings {
	return Settings{
		BusEnabled:            false,
		BusType:               "memory",
		LogEvents:             true,
		ShoplineSourceEnabled: false,
		StoreEnabled:          false,
		StoreType:             StoreSQLite,
		StorePath:             "events.db",
		RetentionDays:         90,
		MaxRetries:            3,
		RetryDelay:            time.Second,
		UseDeadLetterQueue:    false,
	}
}

// FromEnv resolves settings from the environment on top of Default.
// Boolean flags follow the opt-in convention: only the literal string
// "true" enables them, except LOG_EVENTS which is on unless set to
// "false".
func FromEnv() Settings {
	s := Default()

	s.BusEnabled = os.Getenv(EnvBusEnabled) == "true"
	if v := os.Getenv(EnvBusType); v != "" {
		s.BusType = v
	}
	s.LogEvents = os.Getenv(EnvLogEvents) != "false"
	s.ShoplineSourceEnabled = os.Getenv(EnvShoplineSource) == "true"

	s.StoreEnabled = os.Getenv(EnvStoreEnabled) == "true"
	if v := os.Getenv(EnvStoreType); v != "" {
		s.StoreType = v
	}
	if v := os.Getenv(EnvStorePath); v != "" {
		s.StorePath = v
	}
	if n, err := strconv.Atoi(os.Getenv(EnvStoreRetentionDays)); err == nil {
		s.RetentionDays = n
	}

	if n, err := strconv.Atoi(os.Getenv(EnvMaxRetries)); err == nil {
		s.MaxRetries = n
	}
	if n, err := strconv.Atoi(os.Getenv(EnvRetryDelayMs)); err == nil {
		s.RetryDelay = time.Duration(n) * time.Millisecond
	}
	s.UseDeadLetterQueue = os.Getenv(EnvUseDeadLetterQueue) == "true"

	return s
}

// FromConfig resolves settings from a loaded config file on top of
// Default. Missing keys keep their defaults.
func FromConfig(cfg Config) Settings {
	s := Default()

	s.BusEnabled = cfg.Bool("bus_enabled", s.BusEnabled)
	s.BusType = cfg.String("bus_type", s.BusType)
	s.LogEvents = cfg.Bool("log_events", s.LogEvents)
	s.ShoplineSourceEnabled = cfg.Bool("shopline_source_enabled", s.ShoplineSourceEnabled)

	s.StoreEnabled = cfg.Bool("store_enabled", s.StoreEnabled)
	s.StoreType = cfg.String("store_type", s.StoreType)
	s.StorePath = cfg.String("store_path", s.StorePath)
	s.RetentionDays = cfg.Int("retention_days", s.RetentionDays)

	s.MaxRetries = cfg.Int("max_retries", s.MaxRetries)
	s.RetryDelay = cfg.Duration("retry_delay_ms", s.RetryDelay)
	s.UseDeadLetterQueue = cfg.Bool("use_dead_letter_queue", s.UseDeadLetterQueue)

	return s
}

// Normalize coerces out-of-range values back to safe defaults and
// returns a human-readable warning for each correction. An invalid
// flag must never take the subsystem down.
func (s *Settings) Normalize() []string {
	var warnings []string

	if s.BusType != "memory" {
		warnings = append(warnings, fmt.Sprintf("invalid bus type %q, using memory", s.BusType))
		s.BusType = "memory"
	}

	switch s.StoreType {
	case StoreMemory, StoreSQLite, StoreNone:
	default:
		warnings = append(warnings, fmt.Sprintf("invalid store type %q, using %s", s.StoreType, StoreSQLite))
		s.StoreType = StoreSQLite
	}

	if s.StoreEnabled && s.StoreType == StoreNone {
		warnings = append(warnings, "store enabled with type none, disabling store")
		s.StoreEnabled = false
	}

	if s.RetentionDays < 0 {
		warnings = append(warnings, fmt.Sprintf("retention days %d must be >= 0, using 90", s.RetentionDays))
		s.RetentionDays = 90
	}

	if s.MaxRetries < 0 {
		warnings = append(warnings, fmt.Sprintf("max retries %d must be >= 0, using 3", s.MaxRetries))
		s.MaxRetries = 3
	}

	if s.RetryDelay < 0 {
		warnings = append(warnings, "retry delay must be >= 0, using 1s")
		s.RetryDelay = time.Second
	}

	return warnings
}

// Retention returns the retention window as a duration. Zero means
// keep forever.
func (s Settings) Retention() time.Duration {
	return time.Duration(s.RetentionDays) * 24 * time.Hour
}

// RetryConfig translates the retry flags into a retry.Config for
// handlers that wrap themselves with retry.Handler. MaxRetries counts
// attempts after the first, so MaxRetries=0 means a single attempt.
func (s Settings) RetryConfig() retry.Config {
	cfg := retry.Default
	cfg.MaxAttempts = s.MaxRetries + 1
	cfg.InitialBackoff = s.RetryDelay
	return cfg
}
