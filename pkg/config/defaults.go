package config

import "time"

const (
	// v0 is the alpha version of the config
	v0 = 0

	// CurrentV is the currently supported version, points to v0
	CurrentV = v0
)

const (
	defaultStorageProvider = "sqlite"
	defaultSQLitePath      = "recall.db"
	defaultRetryAttempts   = 3
	defaultRetryBackoff    = 100 * time.Millisecond

	defaultVectorProvider = "sqlitevec"

	defaultEmbeddingProvider   = "ollama"
	defaultEmbeddingTarget     = "http://localhost:11434"
	defaultEmbeddingModel      = "nomic-embed-text"
	defaultEmbeddingDimensions = 768

	defaultSessionWindow  = 20
	defaultMaxPreferences = 10
	defaultTopK           = 5
	defaultTierTimeout    = 3 * time.Second

	defaultHalfLife       = 30 * 24 * time.Hour
	defaultAccessWeight   = 0.1
	defaultPruneThreshold = 0.2
	defaultStaleness      = 90 * 24 * time.Hour
	defaultSweepSchedule  = "@daily"

	defaultConfidenceFloor     = 0.6
	defaultSnapshotPreferences = 10
	defaultNumWorkers          = 3
	defaultQueueSize           = 256

	defaultEventStreamProvider = "nop"
	defaultEventStreamTopic    = "recall.events"

	defaultAPIListen = ":8082"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Storage: StorageConfig{
			Provider:      defaultStorageProvider,
			SQLitePath:    defaultSQLitePath,
			RetryAttempts: defaultRetryAttempts,
			RetryBackoff:  defaultRetryBackoff,
		},
		VectorStore: VectorStoreConfig{
			Provider: defaultVectorProvider,
		},
		Embedding: EmbeddingConfig{
			Provider:   defaultEmbeddingProvider,
			Target:     defaultEmbeddingTarget,
			Model:      defaultEmbeddingModel,
			Dimensions: defaultEmbeddingDimensions,
		},
		Fusion: FusionConfig{
			SessionWindow:  defaultSessionWindow,
			MaxPreferences: defaultMaxPreferences,
			TopK:           defaultTopK,
			TierTimeout:    defaultTierTimeout,
		},
		Retention: RetentionConfig{
			HalfLife:       defaultHalfLife,
			AccessWeight:   defaultAccessWeight,
			PruneThreshold: defaultPruneThreshold,
			Staleness:      defaultStaleness,
			Schedule:       defaultSweepSchedule,
		},
		Capture: CaptureConfig{
			ConfidenceFloor:     defaultConfidenceFloor,
			SnapshotPreferences: defaultSnapshotPreferences,
			NumWorkers:          defaultNumWorkers,
			QueueSize:           defaultQueueSize,
		},
		EventStream: EventStreamConfig{
			Provider: defaultEventStreamProvider,
			Topic:    defaultEventStreamTopic,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
	}
}
