package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads config.toml from
// configDir (or the working directory when empty), and binds environment
// variables with the RECALL_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound by the command tree)
//  2. Environment variables (RECALL_API_LISTEN, RECALL_STORAGE_SQLITE_PATH, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	setViperDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("toml")
	if configDir != "" {
		v.AddConfigPath(configDir)
	} else {
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	v.SetEnvPrefix("RECALL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// Unmarshal decodes viper state into a Config.
func Unmarshal(v *viper.Viper) (*Config, error) {
	cfg := NewDefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	return cfg, nil
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	// Storage
	v.SetDefault("storage.provider", d.Storage.Provider)
	v.SetDefault("storage.sqlite_path", d.Storage.SQLitePath)
	v.SetDefault("storage.retry_attempts", d.Storage.RetryAttempts)
	v.SetDefault("storage.retry_backoff", d.Storage.RetryBackoff)

	// Vector store
	v.SetDefault("vector_store.provider", d.VectorStore.Provider)
	v.SetDefault("vector_store.sqlite_path", d.VectorStore.SQLitePath)

	// Embedding
	v.SetDefault("embedding.provider", d.Embedding.Provider)
	v.SetDefault("embedding.target", d.Embedding.Target)
	v.SetDefault("embedding.model", d.Embedding.Model)
	v.SetDefault("embedding.dimensions", d.Embedding.Dimensions)

	// Fusion
	v.SetDefault("fusion.session_window", d.Fusion.SessionWindow)
	v.SetDefault("fusion.max_preferences", d.Fusion.MaxPreferences)
	v.SetDefault("fusion.top_k", d.Fusion.TopK)
	v.SetDefault("fusion.tier_timeout", d.Fusion.TierTimeout)

	// Retention
	v.SetDefault("retention.half_life", d.Retention.HalfLife)
	v.SetDefault("retention.access_weight", d.Retention.AccessWeight)
	v.SetDefault("retention.prune_threshold", d.Retention.PruneThreshold)
	v.SetDefault("retention.staleness", d.Retention.Staleness)
	v.SetDefault("retention.schedule", d.Retention.Schedule)

	// Capture
	v.SetDefault("capture.confidence_floor", d.Capture.ConfidenceFloor)
	v.SetDefault("capture.snapshot_preferences", d.Capture.SnapshotPreferences)
	v.SetDefault("capture.num_workers", d.Capture.NumWorkers)
	v.SetDefault("capture.queue_size", d.Capture.QueueSize)

	// Eventstream
	v.SetDefault("eventstream.provider", d.EventStream.Provider)
	v.SetDefault("eventstream.brokers", d.EventStream.Brokers)
	v.SetDefault("eventstream.topic", d.EventStream.Topic)

	// API
	v.SetDefault("api.listen", d.API.Listen)
}
