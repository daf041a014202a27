package config

import (
	"time"

	"github.com/knadh/koanf/v2"
)

// Config is the root configuration for the database client.
type Config struct {
	Database DatabaseConfig `koanf:"database" json:"database" yaml:"database"`
	Log      LogConfig      `koanf:"log" json:"log" yaml:"log"`
	Events   EventsConfig   `koanf:"events" json:"events" yaml:"events"`

	Observability ObservabilityConfig `koanf:"observability" json:"observability" yaml:"observability"`

	// k holds the underlying Koanf instance for access to keys outside the struct
	k *koanf.Koanf `json:"-" yaml:"-"`
}

// DatabaseConfig holds the connection descriptor and statement tracking settings.
type DatabaseConfig struct {
	Driver   string `koanf:"driver" json:"driver" yaml:"driver" validate:"required,oneof=mysql pgsql sqlite"`
	Name     string `koanf:"name" json:"name" yaml:"name" validate:"required"`
	Host     string `koanf:"host" json:"host" yaml:"host" validate:"required_unless=Driver sqlite"`
	Port     int    `koanf:"port" json:"port" yaml:"port" validate:"gte=0,lte=65535"`
	Username string `koanf:"username" json:"username" yaml:"username"`
	Password string `koanf:"password" json:"-" yaml:"-"`
	// Strategy is one of "normal", "lazy" or "persistent".
	Strategy string `koanf:"strategy" json:"strategy" yaml:"strategy" validate:"oneof=normal lazy persistent"`

	Timeout TimeoutConfig `koanf:"timeout" json:"timeout" yaml:"timeout"`
	Query   QueryConfig   `koanf:"query" json:"query" yaml:"query"`
}

// TimeoutConfig holds connection-level timeouts.
type TimeoutConfig struct {
	// Connect bounds dialing and the initial ping.
	Connect time.Duration `koanf:"connect" json:"connect" yaml:"connect" validate:"gte=0"`
	// Busy is the SQLite lock wait.
	Busy time.Duration `koanf:"busy" json:"busy" yaml:"busy" validate:"gte=0"`
}

// QueryConfig holds statement tracking settings.
type QueryConfig struct {
	Slow SlowQueryConfig `koanf:"slow" json:"slow" yaml:"slow"`
	Log  QueryLogConfig  `koanf:"log" json:"log" yaml:"log"`
}

// SlowQueryConfig holds settings for slow statement detection.
type SlowQueryConfig struct {
	Threshold time.Duration `koanf:"threshold" json:"threshold" yaml:"threshold" validate:"gte=0"`
}

// QueryLogConfig holds settings for statement logging.
type QueryLogConfig struct {
	Parameters bool `koanf:"parameters" json:"parameters" yaml:"parameters"`
	MaxLength  int  `koanf:"max" json:"max" yaml:"max" validate:"gte=0"`
}

type LogConfig struct {
	Level  string `koanf:"level" json:"level" yaml:"level" validate:"omitempty,oneof=trace debug info warn error fatal panic disabled"`
	Pretty bool   `koanf:"pretty" json:"pretty" yaml:"pretty"`
}

// EventsConfig configures where connection-lifecycle events are published.
type EventsConfig struct {
	AMQP AMQPConfig `koanf:"amqp" json:"amqp" yaml:"amqp"`
}

// AMQPConfig configures the AMQP event publisher. An empty URL disables it.
type AMQPConfig struct {
	URL      string `koanf:"url" json:"-" yaml:"-" validate:"omitempty,url"`
	Exchange string `koanf:"exchange" json:"exchange" yaml:"exchange" validate:"required_with=URL"`
	Prefix   string `koanf:"prefix" json:"prefix" yaml:"prefix"`
}

// Enabled reports whether an AMQP broker URL is configured.
func (c AMQPConfig) Enabled() bool {
	return c.URL != ""
}

// ObservabilityConfig configures the OpenTelemetry trace and meter providers
// that receive statement spans and metrics.
type ObservabilityConfig struct {
	Enabled     bool   `koanf:"enabled" json:"enabled" yaml:"enabled"`
	Service     string `koanf:"service" json:"service" yaml:"service" validate:"required_if=Enabled true"`
	Version     string `koanf:"version" json:"version" yaml:"version"`
	Environment string `koanf:"environment" json:"environment" yaml:"environment"`

	Trace   TraceConfig   `koanf:"trace" json:"trace" yaml:"trace"`
	Metrics MetricsConfig `koanf:"metrics" json:"metrics" yaml:"metrics"`
}

// TraceConfig configures span export. Endpoint is "stdout" or an OTLP
// collector address; an empty endpoint disables tracing.
type TraceConfig struct {
	Endpoint   string            `koanf:"endpoint" json:"endpoint" yaml:"endpoint"`
	Protocol   string            `koanf:"protocol" json:"protocol" yaml:"protocol" validate:"omitempty,oneof=http grpc"`
	Insecure   bool              `koanf:"insecure" json:"insecure" yaml:"insecure"`
	Headers    map[string]string `koanf:"headers" json:"-" yaml:"-"`
	SampleRate float64           `koanf:"sample" json:"sample" yaml:"sample" validate:"gte=0,lte=1"`
}

// MetricsConfig configures metric export. Metrics reuse the trace protocol,
// TLS and header settings.
type MetricsConfig struct {
	Endpoint string        `koanf:"endpoint" json:"endpoint" yaml:"endpoint"`
	Interval time.Duration `koanf:"interval" json:"interval" yaml:"interval" validate:"gte=0"`
}

// String returns the string at key from the loaded sources, including keys
// not mapped onto Config.
func (c *Config) String(key string) string {
	if c.k == nil {
		return ""
	}
	return c.k.String(key)
}

// Exists reports whether key was set by any source.
func (c *Config) Exists(key string) bool {
	return c.k != nil && c.k.Exists(key)
}
