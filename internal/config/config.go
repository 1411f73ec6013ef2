package config

import (
	"fmt"
	"time"
)

type Config struct {
	Server  ServerConfig
	Storage StorageConfig
	Neo4j   Neo4jConfig
	LLM     LLMConfig
	Search  SearchConfig
	Log     LogConfig
}

type ServerConfig struct {
	Port           int
	RequestTimeout string
	// APIToken enables bearer auth on the REST API when non-empty.
	APIToken string
}

type StorageConfig struct {
	Backend  string // memory, sqlite or neo4j
	DataDir  string
	SeedFile string
}

type Neo4jConfig struct {
	URI      string
	Username string
	Password string
	Database string
}

type LLMConfig struct {
	BaseURL string
	Model   string
	APIKey  string
	AutoTag bool
}

type SearchConfig struct {
	DefaultLimit int
	ContextCap   int
	ContextTags  int
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:           4100,
			RequestTimeout: "30s",
		},
		Storage: StorageConfig{
			Backend: "memory",
			DataDir: defaultDataDir(),
		},
		Neo4j: Neo4jConfig{
			URI:      "neo4j://localhost:7687",
			Username: "neo4j",
			Database: "neo4j",
		},
		LLM: LLMConfig{
			BaseURL: "https://api.openai.com/v1",
			Model:   "gpt-4o-mini",
		},
		Search: SearchConfig{
			DefaultLimit: 10,
			ContextCap:   4,
			ContextTags:  5,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// RequestTimeoutDuration parses Server.RequestTimeout.
func (c Config) RequestTimeoutDuration() (time.Duration, error) {
	d, err := time.ParseDuration(c.Server.RequestTimeout)
	if err != nil {
		return 0, fmt.Errorf("invalid server.request_timeout %q: %w", c.Server.RequestTimeout, err)
	}
	return d, nil
}

// Load reads configuration from the YAML config file, environment
// variables and the secrets file.
//
// The config file is $XDG_CONFIG_HOME/knowd/config.yaml (or the path in
// KNOWD_CONFIG_FILE), one section per key prefix. Environment variables
// (KNOWD_*) override file values. Secrets are only read from the
// environment or from $XDG_DATA_HOME/knowd/secrets.json.
func Load() (Config, error) {
	return loadWith(newFileBackend(configFilePath()), fileSecrets{path: secretsFilePath()})
}

func loadWith(b ConfigBackend, secrets secretStore) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	// Secrets still empty after env fall back to the secrets file.
	for _, s := range specs {
		if !s.secret || s.extract(cfg).(string) != "" {
			continue
		}
		if v, err := secrets.Get(s.key); err == nil && v != "" {
			s.apply(&cfg, v)
		}
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Storage.Backend {
	case "memory":
	case "sqlite":
		if c.Storage.DataDir == "" {
			return fmt.Errorf("missing required config: storage.data_dir for the sqlite backend")
		}
	case "neo4j":
		if c.Neo4j.URI == "" {
			return fmt.Errorf("missing required config: neo4j.uri for the neo4j backend. Set it via KNOWD_NEO4J_URI")
		}
	default:
		return fmt.Errorf("invalid storage.backend %q: want memory, sqlite or neo4j", c.Storage.Backend)
	}

	if _, err := c.RequestTimeoutDuration(); err != nil {
		return err
	}

	if c.LLM.AutoTag && c.LLM.APIKey == "" {
		return fmt.Errorf("missing required config: llm.api_key is needed when llm.autotag is on. " +
			"Set it via environment variable KNOWD_LLM_API_KEY")
	}

	for _, v := range []struct {
		key string
		n   int
	}{
		{"search.default_limit", c.Search.DefaultLimit},
		{"search.context_cap", c.Search.ContextCap},
		{"search.context_tags", c.Search.ContextTags},
	} {
		if v.n < 0 {
			return fmt.Errorf("invalid %s %d: must not be negative", v.key, v.n)
		}
	}
	return nil
}
