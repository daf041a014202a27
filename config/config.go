package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	envprovider "github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// DefaultEnvPrefix prefixes environment variables read by Load.
// DB_DATABASE_HOST maps to database.host.
const DefaultEnvPrefix = "DB_"

// DefaultFile is the YAML file Load reads when no files are given.
const DefaultFile = "config.yaml"

type loadOptions struct {
	files     []string
	envPrefix string
	environ   func() []string
	raw       []byte
}

// LoadOption customizes Load.
type LoadOption func(*loadOptions)

// WithFiles replaces the YAML files read by Load. Missing files are skipped.
func WithFiles(paths ...string) LoadOption {
	return func(o *loadOptions) {
		o.files = paths
	}
}

// WithEnvPrefix changes the environment variable prefix.
func WithEnvPrefix(prefix string) LoadOption {
	return func(o *loadOptions) {
		o.envPrefix = prefix
	}
}

// WithEnviron replaces os.Environ as the environment source.
func WithEnviron(environ func() []string) LoadOption {
	return func(o *loadOptions) {
		o.environ = environ
	}
}

// Load loads configuration from multiple sources with priority:
// 1. Environment variables (highest priority)
// 2. YAML configuration files, in order
// 3. Default values (lowest priority)
func Load(opts ...LoadOption) (*Config, error) {
	o := &loadOptions{
		files:     []string{DefaultFile},
		envPrefix: DefaultEnvPrefix,
		environ:   os.Environ,
	}
	for _, opt := range opts {
		opt(o)
	}
	return load(o)
}

// LoadBytes is Load with an in-memory YAML document in place of files.
func LoadBytes(data []byte, opts ...LoadOption) (*Config, error) {
	o := &loadOptions{
		envPrefix: DefaultEnvPrefix,
		environ:   os.Environ,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.files = nil
	o.raw = data
	return load(o)
}

func load(o *loadOptions) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	for _, path := range o.files {
		if _, err := os.Stat(path); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("failed to stat %s: %w", path, err)
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
	}

	if o.raw != nil {
		if err := k.Load(rawbytes.Provider(o.raw), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to parse configuration: %w", err)
		}
	}

	prefix := o.envPrefix
	if err := k.Load(envprovider.Provider(".", envprovider.Opt{
		Prefix:      prefix,
		EnvironFunc: o.environ,
		TransformFunc: func(key, value string) (string, any) {
			// DB_DATABASE_HOST -> database.host
			key = strings.ToLower(strings.TrimPrefix(key, prefix))
			return strings.ReplaceAll(key, "_", "."), value
		},
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.k = k

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func defaults() map[string]any {
	return map[string]any{
		"database.host":                  "localhost",
		"database.strategy":              "lazy",
		"database.timeout.connect":       "10s",
		"database.timeout.busy":          "5s",
		"database.query.slow.threshold":  "200ms",
		"database.query.log.parameters":  false,
		"database.query.log.max":         1000,
		"log.level":                      "info",
		"log.pretty":                     false,
		"events.amqp.exchange":           "db.events",
		"events.amqp.prefix":             "connection",
		"observability.environment":      "development",
		"observability.trace.protocol":   "http",
		"observability.trace.sample":     1.0,
		"observability.metrics.interval": "30s",
	}
}
