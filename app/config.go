package app

import (
	"fmt"
	"time"

	"github.com/kbukum/asrgate/audio"
	"github.com/kbukum/asrgate/config"
	"github.com/kbukum/asrgate/keystore"
	"github.com/kbukum/asrgate/observability"
	"github.com/kbukum/asrgate/server"
	"github.com/kbukum/asrgate/transcription"
	"github.com/kbukum/asrgate/validation"
)

// ServiceName names the binary, its config file, and its telemetry.
const ServiceName = "asrgate"

// TranscriptionConfig bounds inference and sets option defaults.
type TranscriptionConfig struct {
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxConcurrent int           `yaml:"max_concurrent" mapstructure:"max_concurrent" validate:"gte=0"`
	// MaxWait is how long a request waits for an inference slot; 0 rejects
	// immediately when all slots are busy.
	MaxWait time.Duration `yaml:"max_wait" mapstructure:"max_wait"`
	// Defaults override built-in option defaults, keyed like request params.
	Defaults map[string]any `yaml:"defaults" mapstructure:"defaults"`
}

// Config is the full service configuration.
type Config struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`

	Server        server.Config        `yaml:"server" mapstructure:"server"`
	Keys          keystore.Config      `yaml:"keys" mapstructure:"keys"`
	Engine        transcription.Config `yaml:"engine" mapstructure:"engine"`
	Audio         audio.Config         `yaml:"audio" mapstructure:"audio"`
	Transcription TranscriptionConfig  `yaml:"transcription" mapstructure:"transcription"`
	Observability observability.Config `yaml:"observability" mapstructure:"observability"`
}

// ApplyDefaults fills every unset field.
func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = ServiceName
	}
	c.ServiceConfig.ApplyDefaults()
	c.Server.ApplyDefaults()
	c.Keys.ApplyDefaults()
	c.Audio.ApplyDefaults()

	if c.Engine.Name == "" {
		c.Engine.Name = "whisper"
	}
	if c.Engine.Model == "" {
		c.Engine.Model = "turbo"
	}
	if c.Engine.ModelRoot == "" {
		c.Engine.ModelRoot = "./models"
	}
	if c.Engine.Device == "" {
		c.Engine.Device = "cpu"
	}
	if c.Engine.Timeout <= 0 {
		c.Engine.Timeout = 30 * time.Minute
	}

	if c.Transcription.Timeout <= 0 {
		c.Transcription.Timeout = 30 * time.Minute
	}
	if c.Transcription.MaxConcurrent == 0 {
		c.Transcription.MaxConcurrent = 2
	}

	c.Observability.ServiceName = c.Name
	c.Observability.ServiceVersion = c.Version
	c.Observability.Environment = c.Environment
	c.Observability.ApplyDefaults()
}

// Validate checks struct tags, then cross-field rules.
func (c *Config) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	if err := validation.Validate(c); err != nil {
		return err
	}
	if err := c.Server.Validate(); err != nil {
		return err
	}
	if c.Transcription.MaxConcurrent < 1 {
		return fmt.Errorf("transcription.max_concurrent must be at least 1 (got: %d)", c.Transcription.MaxConcurrent)
	}
	if c.Engine.Timeout < c.Transcription.Timeout {
		return fmt.Errorf("engine.timeout (%s) must not be shorter than transcription.timeout (%s)",
			c.Engine.Timeout, c.Transcription.Timeout)
	}
	return nil
}

// Defaults lists every config key with its default so the environment can
// override any of them.
func Defaults() map[string]any {
	return map[string]any{
		"name":        ServiceName,
		"environment": "development",
		"version":     "",

		"logging.level":  "info",
		"logging.format": "console",
		"logging.output": "stdout",

		"server.host":          "0.0.0.0",
		"server.port":          9854,
		"server.read_timeout":  60,
		"server.write_timeout": 2100,
		"server.idle_timeout":  120,
		"server.max_body_size": "200MB",

		"keys.file":   "keys.txt",
		"keys.header": "X-API-Key",
		"keys.reload": string(keystore.ReloadWatch),

		"engine.name":         "whisper",
		"engine.url":          "http://localhost:8387",
		"engine.model":        "turbo",
		"engine.model_root":   "./models",
		"engine.device":       "cpu",
		"engine.compute_type": "",
		"engine.timeout":      "30m",

		"audio.ffmpeg_path":        "ffmpeg",
		"audio.ffprobe_path":       "ffprobe",
		"audio.temp_dir":           "",
		"audio.conversion_timeout": "5m",
		"audio.probe_timeout":      "30s",

		"transcription.timeout":        "30m",
		"transcription.max_concurrent": 2,
		"transcription.max_wait":       "0s",

		"observability.enabled":     false,
		"observability.endpoint":    "localhost:4318",
		"observability.insecure":    true,
		"observability.interval":    "15s",
		"observability.sample_rate": 1.0,
	}
}

// EnvAliases maps the environment names of earlier deployments onto
// config keys.
func EnvAliases() map[string]string {
	return map[string]string{
		"KEYS_FILE":           "keys.file",
		"DEFAULT_MODEL":       "engine.model",
		"MODEL_DOWNLOAD_ROOT": "engine.model_root",
		"MODEL_DEVICE":        "engine.device",
		"HOST":                "server.host",
		"PORT":                "server.port",
		"LOG_LEVEL":           "logging.level",
	}
}

// Load reads configuration from file, .env and environment. Defaults and
// validation are applied by New.
func Load(opts ...config.LoaderOption) (*Config, error) {
	var cfg Config
	opts = append([]config.LoaderOption{
		config.WithDefaults(Defaults()),
		config.WithEnvAliases(EnvAliases()),
	}, opts...)
	if err := config.LoadConfig(ServiceName, &cfg, opts...); err != nil {
		return nil, err
	}
	return &cfg, nil
}
