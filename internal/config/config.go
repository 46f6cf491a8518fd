// Package config resolves mapengine settings from defaults, an optional YAML
// file and MAPENGINE_* environment variables. Command-line flags are applied
// on top by the cli package.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/mapengine/internal/logging"
)

// EnvPrefix prefixes every environment variable read by FromEnv.
const EnvPrefix = "MAPENGINE_"

// Config is the full runtime configuration.
type Config struct {
	Data    DataConfig    `yaml:"data"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
	Prompt  PromptConfig  `yaml:"prompt"`
}

// DataConfig points at the two dataset files. Both empty selects the
// embedded default map.
type DataConfig struct {
	Countries   string `yaml:"countries"`
	Adjacencies string `yaml:"adjacencies"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig enables the Prometheus /metrics listener when Addr is set.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Exporter    string  `yaml:"exporter"`
	Endpoint    string  `yaml:"endpoint"`
	ServiceName string  `yaml:"service_name"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

// PromptConfig bounds the re-prompt loop. Zero means unlimited attempts.
type PromptConfig struct {
	MaxAttempts int `yaml:"max_attempts"`
}

// Default returns the configuration used when nothing else is supplied.
func Default() Config {
	return Config{
		Log: LogConfig{
			Level:  "warn",
			Format: "text",
		},
		Tracing: TracingConfig{
			Exporter:    "stdout",
			ServiceName: "mapengine",
			SampleRatio: 1.0,
		},
	}
}

// Load resolves defaults, then the YAML file at path (skipped when path is
// empty), then the environment.
func Load(path string, getenv func(string) string) (Config, error) {
	cfg := Default()
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return Config{}, fmt.Errorf("open config %q: %w", path, err)
		}
		defer f.Close()
		if err := Decode(f, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %q: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(getenv); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Decode overlays YAML from r onto cfg. Unknown fields are rejected.
func Decode(r io.Reader, cfg *Config) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// ApplyEnv overrides fields from MAPENGINE_* variables. A nil getenv reads
// the process environment.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if getenv == nil {
		getenv = os.Getenv
	}
	env := func(name string) string {
		return strings.TrimSpace(getenv(EnvPrefix + name))
	}

	if v := env("COUNTRIES"); v != "" {
		c.Data.Countries = v
	}
	if v := env("ADJACENCIES"); v != "" {
		c.Data.Adjacencies = v
	}
	if v := env("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := env("LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}
	if v := env("METRICS_ADDR"); v != "" {
		c.Metrics.Addr = v
	}
	if v := env("TRACING_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sTRACING_ENABLED: %w", EnvPrefix, err)
		}
		c.Tracing.Enabled = b
	}
	if v := env("TRACING_EXPORTER"); v != "" {
		c.Tracing.Exporter = strings.ToLower(v)
	}
	if v := env("OTLP_ENDPOINT"); v != "" {
		c.Tracing.Endpoint = v
	}
	if v := env("TRACING_SERVICE_NAME"); v != "" {
		c.Tracing.ServiceName = v
	}
	if v := env("TRACING_SAMPLE_RATIO"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%sTRACING_SAMPLE_RATIO: %w", EnvPrefix, err)
		}
		c.Tracing.SampleRatio = f
	}
	if v := env("MAX_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sMAX_ATTEMPTS: %w", EnvPrefix, err)
		}
		c.Prompt.MaxAttempts = n
	}
	return nil
}

// Validate checks enumerations and ranges.
func (c Config) Validate() error {
	var errs []error
	if (c.Data.Countries == "") != (c.Data.Adjacencies == "") {
		errs = append(errs, errors.New("data: countries and adjacencies must be set together"))
	}
	if !logging.ValidLevel(c.Log.Level) {
		errs = append(errs, fmt.Errorf("log.level: unsupported level %q", c.Log.Level))
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format: unsupported format %q", c.Log.Format))
	}
	switch strings.ToLower(c.Tracing.Exporter) {
	case "", "stdout", "otlp", "otlpgrpc":
	default:
		errs = append(errs, fmt.Errorf("tracing.exporter: unsupported exporter %q", c.Tracing.Exporter))
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		errs = append(errs, fmt.Errorf("tracing.sample_ratio: %v is outside [0, 1]", c.Tracing.SampleRatio))
	}
	if c.Prompt.MaxAttempts < 0 {
		errs = append(errs, fmt.Errorf("prompt.max_attempts: %d is negative", c.Prompt.MaxAttempts))
	}
	return errors.Join(errs...)
}

// UsesEmbeddedData reports whether no dataset files were configured.
func (c Config) UsesEmbeddedData() bool {
	return c.Data.Countries == "" && c.Data.Adjacencies == ""
}
