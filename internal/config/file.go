package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// xdgDir returns $<env>/knowd, falling back to ~/<fallback>/knowd.
func xdgDir(env string, fallback ...string) string {
	dir := os.Getenv(env)
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "knowd-data"
		}
		dir = filepath.Join(append([]string{home}, fallback...)...)
	}
	return filepath.Join(dir, "knowd")
}

func defaultDataDir() string {
	return xdgDir("XDG_DATA_HOME", ".local", "share")
}

func configFilePath() string {
	if p := os.Getenv("KNOWD_CONFIG_FILE"); p != "" {
		return p
	}
	return filepath.Join(xdgDir("XDG_CONFIG_HOME", ".config"), "config.yaml")
}

// yamlBackend keeps config in a YAML document whose sections mirror the
// dotted key names:
//
//	server:
//	  port: 4100
//	storage:
//	  backend: sqlite
//
// Values are held flattened by dotted key and nested again on save.
type yamlBackend struct {
	path string
	keys map[string]any
}

func newFileBackend(path string) *yamlBackend {
	b := &yamlBackend{path: path, keys: make(map[string]any)}
	if err := b.load(); err != nil {
		slog.Warn("ignoring config file", "path", path, "error", err)
	}
	return b
}

func (b *yamlBackend) load() error {
	data, err := os.ReadFile(b.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}

	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parsing yaml: %w", err)
	}
	flatten("", doc, b.keys)
	return nil
}

func flatten(prefix string, in map[string]any, out map[string]any) {
	for k, v := range in {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := v.(map[string]any); ok {
			flatten(key, nested, out)
			continue
		}
		out[key] = v
	}
}

func (b *yamlBackend) nested() map[string]any {
	doc := make(map[string]any)
	for _, key := range slices.Sorted(maps.Keys(b.keys)) {
		parts := strings.Split(key, ".")
		section := doc
		for _, p := range parts[:len(parts)-1] {
			next, ok := section[p].(map[string]any)
			if !ok {
				next = make(map[string]any)
				section[p] = next
			}
			section = next
		}
		section[parts[len(parts)-1]] = b.keys[key]
	}
	return doc
}

// save writes the document through a temp file so a crash never leaves a
// half-written config behind.
func (b *yamlBackend) save() error {
	if err := os.MkdirAll(filepath.Dir(b.path), 0o700); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	data, err := yaml.Marshal(b.nested())
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(b.path), ".config-*.yaml")
	if err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), b.path)
}

func (b *yamlBackend) GetString(key string) (string, bool, error) {
	v, ok := b.keys[key]
	if !ok || v == nil {
		return "", false, nil
	}
	if s, ok := v.(string); ok {
		return s, true, nil
	}
	return fmt.Sprint(v), true, nil
}

func (b *yamlBackend) GetInt(key string) (int, bool, error) {
	v, ok := b.keys[key]
	if !ok || v == nil {
		return 0, false, nil
	}
	switch val := v.(type) {
	case int:
		return val, true, nil
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil {
			return 0, true, fmt.Errorf("invalid integer for %s: %w", key, err)
		}
		return i, true, nil
	default:
		return 0, true, fmt.Errorf("%s must be an integer, got %v", key, v)
	}
}

func (b *yamlBackend) SetString(key, val string) error {
	b.keys[key] = val
	return b.save()
}

func (b *yamlBackend) SetInt(key string, val int) error {
	b.keys[key] = val
	return b.save()
}

func (b *yamlBackend) Delete(key string) error {
	delete(b.keys, key)
	return b.save()
}
