package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "KNOWD_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.request_timeout", typ: kString, env: "KNOWD_SERVER_REQUEST_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Server.RequestTimeout = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.RequestTimeout },
	},
	{
		key: "server.api_token", typ: kString, env: "KNOWD_SERVER_API_TOKEN",
		secret: true,
		apply:   func(cfg *Config, v any) { cfg.Server.APIToken = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.APIToken },
	},
	{
		key: "storage.backend", typ: kString, env: "KNOWD_STORAGE_BACKEND",
		apply:   func(cfg *Config, v any) { cfg.Storage.Backend = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.Backend },
	},
	{
		key: "storage.data_dir", typ: kString, env: "KNOWD_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "storage.seed_file", typ: kString, env: "KNOWD_STORAGE_SEED_FILE",
		apply:   func(cfg *Config, v any) { cfg.Storage.SeedFile = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.SeedFile },
	},
	{
		key: "neo4j.uri", typ: kString, env: "KNOWD_NEO4J_URI",
		apply:   func(cfg *Config, v any) { cfg.Neo4j.URI = v.(string) },
		extract: func(cfg Config) any { return cfg.Neo4j.URI },
	},
	{
		key: "neo4j.username", typ: kString, env: "KNOWD_NEO4J_USERNAME",
		apply:   func(cfg *Config, v any) { cfg.Neo4j.Username = v.(string) },
		extract: func(cfg Config) any { return cfg.Neo4j.Username },
	},
	{
		key: "neo4j.password", typ: kString, env: "KNOWD_NEO4J_PASSWORD",
		secret: true,
		apply:   func(cfg *Config, v any) { cfg.Neo4j.Password = v.(string) },
		extract: func(cfg Config) any { return cfg.Neo4j.Password },
	},
	{
		key: "neo4j.database", typ: kString, env: "KNOWD_NEO4J_DATABASE",
		apply:   func(cfg *Config, v any) { cfg.Neo4j.Database = v.(string) },
		extract: func(cfg Config) any { return cfg.Neo4j.Database },
	},
	{
		key: "llm.base_url", typ: kString, env: "KNOWD_LLM_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.LLM.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.BaseURL },
	},
	{
		key: "llm.model", typ: kString, env: "KNOWD_LLM_MODEL",
		apply:   func(cfg *Config, v any) { cfg.LLM.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.Model },
	},
	{
		key: "llm.api_key", typ: kString, env: "KNOWD_LLM_API_KEY",
		secret: true,
		apply:   func(cfg *Config, v any) { cfg.LLM.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.APIKey },
	},
	{
		key: "llm.autotag", typ: kBool, env: "KNOWD_LLM_AUTOTAG",
		apply:   func(cfg *Config, v any) { cfg.LLM.AutoTag = v.(bool) },
		extract: func(cfg Config) any { return cfg.LLM.AutoTag },
	},
	{
		key: "search.default_limit", typ: kInt, env: "KNOWD_SEARCH_DEFAULT_LIMIT",
		apply:   func(cfg *Config, v any) { cfg.Search.DefaultLimit = v.(int) },
		extract: func(cfg Config) any { return cfg.Search.DefaultLimit },
	},
	{
		key: "search.context_cap", typ: kInt, env: "KNOWD_SEARCH_CONTEXT_CAP",
		apply:   func(cfg *Config, v any) { cfg.Search.ContextCap = v.(int) },
		extract: func(cfg Config) any { return cfg.Search.ContextCap },
	},
	{
		key: "search.context_tags", typ: kInt, env: "KNOWD_SEARCH_CONTEXT_TAGS",
		apply:   func(cfg *Config, v any) { cfg.Search.ContextTags = v.(int) },
		extract: func(cfg Config) any { return cfg.Search.ContextTags },
	},
	{
		key: "log.level", typ: kString, env: "KNOWD_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kBool:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok && v != "" {
				if bv, err := strconv.ParseBool(v); err == nil {
					s.apply(cfg, bv)
				} else {
					fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from config key %s=%q: %v. Using default value.\n", s.key, v, err)
				}
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		case kBool:
			if b, err := strconv.ParseBool(raw); err == nil {
				s.apply(cfg, b)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
