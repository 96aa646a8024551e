package config

import "time"

// Config is a bar configuration.
type Config struct {
	// Shell runs command segments. Defaults to /bin/sh.
	Shell string `yaml:"shell" validate:"required"`

	// Env is appended to the environment of every command.
	Env []string `yaml:"env,omitempty" validate:"dive,contains=="`

	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Tracing   TracingConfig   `yaml:"tracing"`
	Variables VariablesConfig `yaml:"variables"`

	Labels []LabelConfig `yaml:"labels" validate:"required,min=1,unique=Name,dive"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"oneof=trace debug info warn error disabled"`
	Format string `yaml:"format" validate:"oneof=console json"`
	Output string `yaml:"output" validate:"required"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen" validate:"required_if=Enabled true"`
	Path    string `yaml:"path" validate:"omitempty,startswith=/"`
}

// TracingConfig configures span export.
type TracingConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Exporter     string        `yaml:"exporter" validate:"oneof=otlp stdout none"`
	Endpoint     string        `yaml:"endpoint" validate:"required_if=Exporter otlp"`
	SamplingRate float64       `yaml:"sampling_rate" validate:"gte=0,lte=1"`
	Timeout      time.Duration `yaml:"timeout"`
	Insecure     bool          `yaml:"insecure"`
}

// VariablesConfig configures the variable store. When disabled, #name in
// labels is plain text.
type VariablesConfig struct {
	Enabled bool `yaml:"enabled"`

	// Strict rejects references to variables that were never set.
	Strict bool `yaml:"strict"`

	// StatePath is an SQLite database that keeps values across restarts.
	StatePath string `yaml:"state_path,omitempty"`

	// Initial values are set at startup, after restoring saved state.
	Initial map[string]string `yaml:"initial,omitempty" validate:"dive,keys,varname,endkeys"`

	// Files feed variables from file contents.
	Files []FileVariable `yaml:"files,omitempty" validate:"dive"`
}

// FileVariable publishes the trimmed contents of Path as variable Name.
type FileVariable struct {
	Name string `yaml:"name" validate:"required,varname"`
	Path string `yaml:"path" validate:"required"`
}

// LabelConfig is one rendered dynamic string.
type LabelConfig struct {
	Name  string `yaml:"name" validate:"required"`
	Label string `yaml:"label" validate:"required"`
}

// Default returns the configuration used for omitted fields.
func Default() *Config {
	return &Config{
		Shell: "/bin/sh",
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
			Output: "stderr",
		},
		Metrics: MetricsConfig{
			Listen: ":9090",
			Path:   "/metrics",
		},
		Tracing: TracingConfig{
			Exporter:     "none",
			SamplingRate: 1.0,
			Timeout:      30 * time.Second,
			Insecure:     true,
		},
		Variables: VariablesConfig{
			Enabled: true,
		},
	}
}
