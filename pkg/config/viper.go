package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/papercomputeco/simsearch/pkg/dotdir"
)

// EnvPrefix prefixes every environment variable read by InitViper.
const EnvPrefix = "SIMSEARCH"

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the SIMSEARCH_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (SIMSEARCH_STORE_PROVIDER, SIMSEARCH_INDEX_NAME, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	setViperDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// FromViper assembles the effective configuration from every layer of v.
func FromViper(v *viper.Viper) *Config {
	return &Config{
		Version: v.GetInt("version"),
		Store: StoreConfig{
			Provider:   v.GetString("store.provider"),
			Target:     v.GetString("store.target"),
			SQLitePath: v.GetString("store.sqlite_path"),
			APIKey:     v.GetString("store.api_key"),
		},
		Embedding: EmbeddingConfig{
			Provider:   v.GetString("embedding.provider"),
			Target:     v.GetString("embedding.target"),
			Model:      v.GetString("embedding.model"),
			Dimensions: v.GetUint("embedding.dimensions"),
			APIKey:     v.GetString("embedding.api_key"),
			CachePath:  v.GetString("embedding.cache_path"),
		},
		Index: IndexConfig{
			Name:       v.GetString("index.name"),
			Metric:     v.GetString("index.metric"),
			TextFields: stringList(v, "index.text_fields"),
		},
		Search: SearchConfig{
			Strategy:      v.GetString("search.strategy"),
			TopK:          v.GetUint("search.top_k"),
			NumCandidates: v.GetUint("search.num_candidates"),
		},
		API: APIConfig{
			Listen: v.GetString("api.listen"),
		},
		Events: EventsConfig{
			Provider: v.GetString("events.provider"),
			Brokers:  stringList(v, "events.brokers"),
			Topic:    v.GetString("events.topic"),
		},
	}
}

// stringList reads a list key which may also arrive as a comma separated
// environment variable or flag.
func stringList(v *viper.Viper, key string) []string {
	return SplitList(strings.Join(v.GetStringSlice(key), ","))
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	// Store
	v.SetDefault("store.provider", d.Store.Provider)
	v.SetDefault("store.target", d.Store.Target)
	v.SetDefault("store.sqlite_path", d.Store.SQLitePath)
	v.SetDefault("store.api_key", d.Store.APIKey)

	// Embedding
	v.SetDefault("embedding.provider", d.Embedding.Provider)
	v.SetDefault("embedding.target", d.Embedding.Target)
	v.SetDefault("embedding.model", d.Embedding.Model)
	v.SetDefault("embedding.dimensions", d.Embedding.Dimensions)
	v.SetDefault("embedding.api_key", d.Embedding.APIKey)
	v.SetDefault("embedding.cache_path", d.Embedding.CachePath)

	// Index
	v.SetDefault("index.name", d.Index.Name)
	v.SetDefault("index.metric", d.Index.Metric)
	v.SetDefault("index.text_fields", d.Index.TextFields)

	// Search
	v.SetDefault("search.strategy", d.Search.Strategy)
	v.SetDefault("search.top_k", d.Search.TopK)
	v.SetDefault("search.num_candidates", d.Search.NumCandidates)

	// API
	v.SetDefault("api.listen", d.API.Listen)

	// Events
	v.SetDefault("events.provider", d.Events.Provider)
	v.SetDefault("events.brokers", d.Events.Brokers)
	v.SetDefault("events.topic", d.Events.Topic)
}
