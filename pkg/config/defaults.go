package config

const (
	defaultStoreProvider = "sqlite"

	defaultEmbeddingProvider   = "hashing"
	defaultEmbeddingDimensions = 384
	defaultOllamaTarget        = "http://localhost:11434"

	defaultIndexName   = "documents"
	defaultIndexMetric = "cosine"

	defaultSearchStrategy = "exhaustive"
	defaultSearchTopK     = 3

	defaultAPIListen = ":8081"

	defaultEventsProvider = "nop"
	defaultEventsTopic    = "simsearch.index.events"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Store: StoreConfig{
			Provider: defaultStoreProvider,
		},
		Embedding: EmbeddingConfig{
			Provider:   defaultEmbeddingProvider,
			Dimensions: defaultEmbeddingDimensions,
		},
		Index: IndexConfig{
			Name:       defaultIndexName,
			Metric:     defaultIndexMetric,
			TextFields: []string{"title", "content"},
		},
		Search: SearchConfig{
			Strategy: defaultSearchStrategy,
			TopK:     defaultSearchTopK,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		Events: EventsConfig{
			Provider: defaultEventsProvider,
			Topic:    defaultEventsTopic,
		},
	}
}
