package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Config represents the persistent simsearch configuration stored as
// config.toml in the .simsearch/ directory. The TOML layout uses sections for
// logical grouping.
type Config struct {
	Version   int             `toml:"version"`
	Store     StoreConfig     `toml:"store"`
	Embedding EmbeddingConfig `toml:"embedding"`
	Index     IndexConfig     `toml:"index"`
	Search    SearchConfig    `toml:"search"`
	API       APIConfig       `toml:"api"`
	Events    EventsConfig    `toml:"events"`
}

// StoreConfig selects the vector store backend.
type StoreConfig struct {
	Provider   string `toml:"provider,omitempty"`
	Target     string `toml:"target,omitempty"`
	SQLitePath string `toml:"sqlite_path,omitempty"`
	APIKey     string `toml:"api_key,omitempty"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider   string `toml:"provider,omitempty"`
	Target     string `toml:"target,omitempty"`
	Model      string `toml:"model,omitempty"`
	Dimensions uint   `toml:"dimensions,omitempty"`
	APIKey     string `toml:"api_key,omitempty"`
	CachePath  string `toml:"cache_path,omitempty"`
}

// IndexConfig describes the index commands operate on.
type IndexConfig struct {
	Name       string   `toml:"name,omitempty"`
	Metric     string   `toml:"metric,omitempty"`
	TextFields []string `toml:"text_fields,omitempty"`
}

// SearchConfig holds query defaults.
type SearchConfig struct {
	Strategy      string `toml:"strategy,omitempty"`
	TopK          uint   `toml:"top_k,omitempty"`
	NumCandidates uint   `toml:"num_candidates,omitempty"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// EventsConfig selects where index events are published.
type EventsConfig struct {
	Provider string   `toml:"provider,omitempty"`
	Brokers  []string `toml:"brokers,omitempty"`
	Topic    string   `toml:"topic,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func stringKey(field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error { *field(c) = v; return nil },
	}
}

func uintKey(name string, field func(c *Config) *uint) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string {
			if *field(c) == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(*field(c)), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = uint(n)
			return nil
		},
	}
}

// listKey stores comma separated values.
func listKey(field func(c *Config) *[]string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return strings.Join(*field(c), ",") },
		set: func(c *Config, v string) error { *field(c) = SplitList(v); return nil },
	}
}

// SplitList splits a comma separated value, dropping empty items.
func SplitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"store.provider":    stringKey(func(c *Config) *string { return &c.Store.Provider }),
	"store.target":      stringKey(func(c *Config) *string { return &c.Store.Target }),
	"store.sqlite_path": stringKey(func(c *Config) *string { return &c.Store.SQLitePath }),
	"store.api_key":     stringKey(func(c *Config) *string { return &c.Store.APIKey }),

	"embedding.provider":   stringKey(func(c *Config) *string { return &c.Embedding.Provider }),
	"embedding.target":     stringKey(func(c *Config) *string { return &c.Embedding.Target }),
	"embedding.model":      stringKey(func(c *Config) *string { return &c.Embedding.Model }),
	"embedding.dimensions": uintKey("embedding.dimensions", func(c *Config) *uint { return &c.Embedding.Dimensions }),
	"embedding.api_key":    stringKey(func(c *Config) *string { return &c.Embedding.APIKey }),
	"embedding.cache_path": stringKey(func(c *Config) *string { return &c.Embedding.CachePath }),

	"index.name":        stringKey(func(c *Config) *string { return &c.Index.Name }),
	"index.metric":      stringKey(func(c *Config) *string { return &c.Index.Metric }),
	"index.text_fields": listKey(func(c *Config) *[]string { return &c.Index.TextFields }),

	"search.strategy":       stringKey(func(c *Config) *string { return &c.Search.Strategy }),
	"search.top_k":          uintKey("search.top_k", func(c *Config) *uint { return &c.Search.TopK }),
	"search.num_candidates": uintKey("search.num_candidates", func(c *Config) *uint { return &c.Search.NumCandidates }),

	"api.listen": stringKey(func(c *Config) *string { return &c.API.Listen }),

	"events.provider": stringKey(func(c *Config) *string { return &c.Events.Provider }),
	"events.brokers":  listKey(func(c *Config) *[]string { return &c.Events.Brokers }),
	"events.topic":    stringKey(func(c *Config) *string { return &c.Events.Topic }),
}

// orderedKeys lists configKeys in the TOML section layout.
var orderedKeys = []string{
	"store.provider",
	"store.target",
	"store.sqlite_path",
	"store.api_key",
	"embedding.provider",
	"embedding.target",
	"embedding.model",
	"embedding.dimensions",
	"embedding.api_key",
	"embedding.cache_path",
	"index.name",
	"index.metric",
	"index.text_fields",
	"search.strategy",
	"search.top_k",
	"search.num_candidates",
	"api.listen",
	"events.provider",
	"events.brokers",
	"events.topic",
}

// secretKeys are masked by config list.
var secretKeys = map[string]bool{
	"store.api_key":     true,
	"embedding.api_key": true,
}

// IsSecretKey reports whether the key holds a credential.
func IsSecretKey(key string) bool {
	return secretKeys[key]
}
