package config

const (
	defaultStorageDriver = "sqlite"

	defaultProvider    = "ollama"
	defaultUpstream    = "http://localhost:11434"
	defaultProxyListen = ":8080"
	defaultAPIListen   = ":8081"

	defaultClientProxyTarget = "http://localhost:8080"
	defaultClientAPITarget   = "http://localhost:8081"

	defaultEmbeddingModel      = "embeddinggemma"
	defaultEmbeddingDimensions = 768
	defaultEmbeddingTarget     = "http://localhost:11434"
	defaultEmbeddingCacheTTL   = "24h"

	defaultMemoryThreshold     = 0.85
	defaultMemorySource        = "user-correction"
	defaultMemorySweepInterval = "1h"

	defaultEventsProvider = "nop"
	defaultEventsBrokers  = "localhost:9092"
	defaultEventsTopic    = "aurion.facts"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Storage: StorageConfig{
			Driver: defaultStorageDriver,
		},
		Proxy: ProxyConfig{
			Provider: defaultProvider,
			Upstream: defaultUpstream,
			Listen:   defaultProxyListen,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		Client: ClientConfig{
			ProxyTarget: defaultClientProxyTarget,
			APITarget:   defaultClientAPITarget,
		},
		Embedding: EmbeddingConfig{
			Provider:   defaultProvider,
			Target:     defaultEmbeddingTarget,
			Model:      defaultEmbeddingModel,
			Dimensions: defaultEmbeddingDimensions,
			CacheTTL:   defaultEmbeddingCacheTTL,
			Breaker:    true,
		},
		Memory: MemoryConfig{
			Enabled:       true,
			Threshold:     defaultMemoryThreshold,
			DefaultSource: defaultMemorySource,
			SweepInterval: defaultMemorySweepInterval,
		},
		Events: EventsConfig{
			Provider: defaultEventsProvider,
			Brokers:  defaultEventsBrokers,
			Topic:    defaultEventsTopic,
		},
	}
}
