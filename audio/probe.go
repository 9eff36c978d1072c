package audio

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cast"

	"github.com/kbukum/asrgate/logger"
	"github.com/kbukum/asrgate/process"
)

// StreamInfo describes the first audio stream of a file.
type StreamInfo struct {
	Codec      string
	Channels   int
	SampleRate int
}

// Conformant reports whether the stream already matches the engine format.
func (s StreamInfo) Conformant() bool {
	return s.Codec == TargetCodec && s.Channels == TargetChannels && s.SampleRate == TargetSampleRate
}

// Prober runs ffprobe.
type Prober struct {
	binary  string
	timeout time.Duration
	runner  process.Runner
	log     *logger.Logger
}

// NewProber creates a prober. cfg should have defaults applied.
func NewProber(cfg Config, runner process.Runner) *Prober {
	return &Prober{
		binary:  cfg.FFprobePath,
		timeout: cfg.ProbeTimeout,
		runner:  runner,
		log:     logger.Get("audio.probe"),
	}
}

type probeOutput struct {
	Streams []struct {
		CodecName  string `json:"codec_name"`
		Channels   any    `json:"channels"`
		SampleRate any    `json:"sample_rate"`
	} `json:"streams"`
}

// Inspect reads the codec, channel count and sample rate of the first audio
// stream without decoding.
func (p *Prober) Inspect(ctx context.Context, path string) (StreamInfo, error) {
	res, err := p.run(ctx, []string{
		"-v", "error",
		"-select_streams", "a:0",
		"-show_entries", "stream=codec_name,channels,sample_rate",
		"-of", "json",
		path,
	})
	if err != nil {
		return StreamInfo{}, err
	}

	var out probeOutput
	if err := json.Unmarshal(res.Stdout, &out); err != nil {
		return StreamInfo{}, fmt.Errorf("decode ffprobe output: %w", err)
	}
	if len(out.Streams) == 0 {
		return StreamInfo{}, fmt.Errorf("no audio stream in %s", path)
	}
	s := out.Streams[0]
	// ffprobe reports sample_rate as a string.
	return StreamInfo{
		Codec:      s.CodecName,
		Channels:   cast.ToInt(s.Channels),
		SampleRate: cast.ToInt(s.SampleRate),
	}, nil
}

// Duration returns the container duration in seconds. Any failure yields 0.
func (p *Prober) Duration(ctx context.Context, path string) float64 {
	res, err := p.run(ctx, []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	})
	if err != nil {
		p.log.Debug("duration probe failed", logger.ErrorFields("probe", err))
		return 0
	}
	secs, err := cast.ToFloat64E(strings.TrimSpace(string(res.Stdout)))
	if err != nil || secs < 0 {
		p.log.Debug("unparseable duration", logger.Fields("output", string(res.Stdout)))
		return 0
	}
	return secs
}

func (p *Prober) run(ctx context.Context, args []string) (*process.Result, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	return p.runner.Run(ctx, process.Command{Binary: p.binary, Args: args})
}
