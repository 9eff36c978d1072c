package audio

import "time"

// Target format required by the engine.
const (
	TargetSampleRate = 16000
	TargetChannels   = 1
	TargetCodec      = "pcm_s16le"
)

// Speed bounds. Values outside are rejected, not clamped.
const (
	MinSpeed = 0.25
	MaxSpeed = 4.0
)

// Config configures the audio tools.
type Config struct {
	FFmpegPath        string        `yaml:"ffmpeg_path" mapstructure:"ffmpeg_path"`
	FFprobePath       string        `yaml:"ffprobe_path" mapstructure:"ffprobe_path"`
	TempDir           string        `yaml:"temp_dir" mapstructure:"temp_dir"`
	ConversionTimeout time.Duration `yaml:"conversion_timeout" mapstructure:"conversion_timeout"`
	ProbeTimeout      time.Duration `yaml:"probe_timeout" mapstructure:"probe_timeout"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.FFmpegPath == "" {
		c.FFmpegPath = "ffmpeg"
	}
	if c.FFprobePath == "" {
		c.FFprobePath = "ffprobe"
	}
	if c.ConversionTimeout <= 0 {
		c.ConversionTimeout = 5 * time.Minute
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = 30 * time.Second
	}
}
