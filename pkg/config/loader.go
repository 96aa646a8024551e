package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/A-Cloud-Ninja/ironbar/pkg/ironvar"
	"github.com/A-Cloud-Ninja/ironbar/pkg/telemetry"
)

// Load reads and validates the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes and validates YAML configuration. Unknown fields are
// rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	err := newValidator().Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("invalid config: %w", err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q", fieldPath(fe.Namespace()), fe.Tag()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// Telemetry maps the configuration onto telemetry settings.
func (c *Config) Telemetry(version string) *telemetry.Config {
	tc := telemetry.DefaultConfig()
	tc.ServiceVersion = version

	tc.Logging.Level = c.Logging.Level
	tc.Logging.Format = c.Logging.Format
	tc.Logging.Output = c.Logging.Output

	tc.Metrics.Enabled = c.Metrics.Enabled
	tc.Metrics.ListenAddress = c.Metrics.Listen
	if c.Metrics.Path != "" {
		tc.Metrics.Path = c.Metrics.Path
	}

	tc.Tracing.Enabled = c.Tracing.Enabled
	tc.Tracing.Exporter = c.Tracing.Exporter
	tc.Tracing.Endpoint = c.Tracing.Endpoint
	tc.Tracing.SamplingRate = c.Tracing.SamplingRate
	tc.Tracing.Insecure = c.Tracing.Insecure
	if c.Tracing.Timeout > 0 {
		tc.Tracing.ExportTimeout = c.Tracing.Timeout
	}

	return tc
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("yaml"), ",")
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	_ = v.RegisterValidation("varname", func(fl validator.FieldLevel) bool {
		return ironvar.ValidateName(fl.Field().String()) == nil
	})

	return v
}

// fieldPath drops the root type name from a validator namespace.
func fieldPath(ns string) string {
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}
