package audio

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/kbukum/asrgate/errors"
	"github.com/kbukum/asrgate/logger"
	"github.com/kbukum/asrgate/process"
	"github.com/kbukum/asrgate/tempfile"
)

// diagnosticsBytes bounds the stderr tail attached to conversion errors.
const diagnosticsBytes = 2048

// Normalizer converts arbitrary input audio into the engine format.
type Normalizer struct {
	binary  string
	timeout time.Duration
	runner  process.Runner
	prober  *Prober
	log     *logger.Logger
}

// NewNormalizer creates a normalizer. cfg should have defaults applied.
func NewNormalizer(cfg Config, runner process.Runner, prober *Prober) *Normalizer {
	return &Normalizer{
		binary:  cfg.FFmpegPath,
		timeout: cfg.ConversionTimeout,
		runner:  runner,
		prober:  prober,
		log:     logger.Get("audio.normalize"),
	}
}

// ValidateSpeed rejects tempo factors outside [MinSpeed, MaxSpeed].
func ValidateSpeed(speed float64) error {
	if !(speed >= MinSpeed && speed <= MaxSpeed) {
		return errors.InvalidParameter("speed", fmt.Sprintf("speed must be between %v and %v, got %v", MinSpeed, MaxSpeed, speed))
	}
	return nil
}

// Normalize returns a path holding engine-format audio for input. When
// input already conforms and speed is 1.0 it is returned unchanged with
// converted=false. Otherwise ffmpeg writes a new .wav allocated from arena.
func (n *Normalizer) Normalize(ctx context.Context, input string, arena *tempfile.Arena, speed float64) (string, bool, error) {
	if err := ValidateSpeed(speed); err != nil {
		return "", false, err
	}

	if speed == 1.0 {
		info, err := n.prober.Inspect(ctx, input)
		if err == nil && info.Conformant() {
			return input, false, nil
		}
		if err != nil {
			n.log.Debug("format probe failed, converting", logger.ErrorFields("inspect", err))
		}
	}

	out, err := arena.Acquire(".wav")
	if err != nil {
		return "", false, errors.InternalIO("allocate output", err)
	}
	out.Converted = true

	if err := n.convert(ctx, input, out.Path, speed); err != nil {
		arena.Release(out)
		return "", false, err
	}
	return out.Path, true, nil
}

// Args builds the ffmpeg argument list for one conversion pass.
func Args(input, output string, speed float64) []string {
	args := []string{"-nostdin", "-hide_banner", "-loglevel", "error", "-y", "-i", input}
	if f := TempoFilter(speed); f != "" {
		args = append(args, "-filter:a", f)
	}
	return append(args,
		"-ar", strconv.Itoa(TargetSampleRate),
		"-ac", strconv.Itoa(TargetChannels),
		"-c:a", TargetCodec,
		"-f", "wav",
		output,
	)
}

func (n *Normalizer) convert(ctx context.Context, input, output string, speed float64) error {
	if n.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.timeout)
		defer cancel()
	}

	start := time.Now()
	res, err := n.runner.Run(ctx, process.Command{Binary: n.binary, Args: Args(input, output, speed)})
	if err != nil {
		if stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
			return errors.Timeout("conversion").WithCause(err)
		}
		return errors.AudioConversionFailed(res.StderrTail(diagnosticsBytes), err)
	}

	info, statErr := os.Stat(output)
	if statErr != nil || info.Size() == 0 {
		cause := statErr
		if cause == nil {
			cause = fmt.Errorf("ffmpeg produced an empty file")
		}
		return errors.AudioConversionFailed(res.StderrTail(diagnosticsBytes), cause)
	}

	n.log.Debug("audio converted", logger.DurationFields("convert", time.Since(start)))
	return nil
}
