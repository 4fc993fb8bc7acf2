// Package config defines the persistent recall configuration stored as
// config.toml. The TOML layout uses sections for logical grouping; the same
// keys are reachable through viper as dotted names and RECALL_ environment
// variables.
package config

import "time"

// Config represents the full recall configuration.
type Config struct {
	Version     int               `toml:"version" mapstructure:"version"`
	Storage     StorageConfig     `toml:"storage" mapstructure:"storage"`
	VectorStore VectorStoreConfig `toml:"vector_store" mapstructure:"vector_store"`
	Embedding   EmbeddingConfig   `toml:"embedding" mapstructure:"embedding"`
	Fusion      FusionConfig      `toml:"fusion" mapstructure:"fusion"`
	Retention   RetentionConfig   `toml:"retention" mapstructure:"retention"`
	Capture     CaptureConfig     `toml:"capture" mapstructure:"capture"`
	EventStream EventStreamConfig `toml:"eventstream" mapstructure:"eventstream"`
	API         APIConfig         `toml:"api" mapstructure:"api"`
}

// StorageConfig holds the durable store settings shared by the profile
// store and the session archive.
type StorageConfig struct {
	// Provider selects the backend: "sqlite" or "inmemory".
	Provider string `toml:"provider,omitempty" mapstructure:"provider"`

	// SQLitePath is the database file. Profile, session, and vector
	// tables share one file unless overridden per store.
	SQLitePath string `toml:"sqlite_path,omitempty" mapstructure:"sqlite_path"`

	// RetryAttempts and RetryBackoff bound per-operation retries.
	RetryAttempts int           `toml:"retry_attempts,omitempty" mapstructure:"retry_attempts"`
	RetryBackoff  time.Duration `toml:"retry_backoff,omitempty" mapstructure:"retry_backoff"`
}

// VectorStoreConfig holds fragment index settings.
type VectorStoreConfig struct {
	// Provider selects the backend: "sqlitevec" or "inmemory".
	Provider string `toml:"provider,omitempty" mapstructure:"provider"`

	// SQLitePath overrides the shared storage path for the vector tables.
	SQLitePath string `toml:"sqlite_path,omitempty" mapstructure:"sqlite_path"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider   string `toml:"provider,omitempty" mapstructure:"provider"`
	Target     string `toml:"target,omitempty" mapstructure:"target"`
	Model      string `toml:"model,omitempty" mapstructure:"model"`
	Dimensions uint   `toml:"dimensions,omitempty" mapstructure:"dimensions"`
}

// FusionConfig tunes context assembly.
type FusionConfig struct {
	SessionWindow  int           `toml:"session_window,omitempty" mapstructure:"session_window"`
	MaxPreferences int           `toml:"max_preferences,omitempty" mapstructure:"max_preferences"`
	TopK           int           `toml:"top_k,omitempty" mapstructure:"top_k"`
	TierTimeout    time.Duration `toml:"tier_timeout,omitempty" mapstructure:"tier_timeout"`
}

// RetentionConfig tunes the fragment decay policy and sweep schedule.
type RetentionConfig struct {
	HalfLife       time.Duration `toml:"half_life,omitempty" mapstructure:"half_life"`
	AccessWeight   float64       `toml:"access_weight,omitempty" mapstructure:"access_weight"`
	PruneThreshold float64       `toml:"prune_threshold,omitempty" mapstructure:"prune_threshold"`
	Staleness      time.Duration `toml:"staleness,omitempty" mapstructure:"staleness"`

	// Schedule is a cron expression; empty disables scheduled sweeps.
	Schedule string `toml:"schedule,omitempty" mapstructure:"schedule"`
}

// CaptureConfig tunes the async session-capture workers.
type CaptureConfig struct {
	// ConfidenceFloor is the minimum extracted-preference confidence that
	// reaches the profile store.
	ConfidenceFloor float64 `toml:"confidence_floor,omitempty" mapstructure:"confidence_floor"`

	// SnapshotPreferences caps how many preferences a session snapshot
	// carries.
	SnapshotPreferences int `toml:"snapshot_preferences,omitempty" mapstructure:"snapshot_preferences"`

	NumWorkers uint `toml:"num_workers,omitempty" mapstructure:"num_workers"`
	QueueSize  uint `toml:"queue_size,omitempty" mapstructure:"queue_size"`
}

// EventStreamConfig holds eventstream publisher settings.
type EventStreamConfig struct {
	// Provider selects the backend: "nop" or "kafka".
	Provider string   `toml:"provider,omitempty" mapstructure:"provider"`
	Brokers  []string `toml:"brokers,omitempty" mapstructure:"brokers"`
	Topic    string   `toml:"topic,omitempty" mapstructure:"topic"`
}

// APIConfig holds admin API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty" mapstructure:"listen"`
}
