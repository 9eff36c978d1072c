package transcription

import (
	"context"
	"strings"

	"github.com/kbukum/asrgate/errors"
)

// Engine is a speech-recognition backend.
type Engine interface {
	Name() string
	// Model identifies the loaded model, e.g. "turbo".
	Model() string
	IsAvailable(ctx context.Context) bool
	// Transcribe runs a single pass over audio at path.
	Transcribe(ctx context.Context, path string, opts Options) (*Result, error)
	// TranscribeLongForm returns segments lazily as the engine produces them.
	TranscribeLongForm(ctx context.Context, path string, opts Options) (SegmentIterator, error)
}

// SegmentIterator yields segments until exhausted.
type SegmentIterator interface {
	// Next returns (zero, false, nil) when there are no more segments.
	Next(ctx context.Context) (Segment, bool, error)
	Close() error
}

// SliceIterator iterates over an in-memory slice of segments.
type SliceIterator struct {
	segments []Segment
	pos      int
	closed   bool
}

// NewSliceIterator returns an iterator over segments.
func NewSliceIterator(segments []Segment) *SliceIterator {
	return &SliceIterator{segments: segments}
}

func (it *SliceIterator) Next(ctx context.Context) (Segment, bool, error) {
	if err := ctx.Err(); err != nil {
		return Segment{}, false, err
	}
	if it.closed || it.pos >= len(it.segments) {
		return Segment{}, false, nil
	}
	seg := it.segments[it.pos]
	it.pos++
	return seg, true, nil
}

func (it *SliceIterator) Close() error {
	it.closed = true
	return nil
}

// Collect drains it into a Result. Text is the trimmed non-blank segment
// texts joined by a single space. The iterator is closed on return.
func Collect(ctx context.Context, it SegmentIterator) (*Result, error) {
	defer it.Close()

	res := &Result{}
	for {
		seg, ok, err := it.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		res.Segments = append(res.Segments, seg)
		if seg.End > res.Duration {
			res.Duration = seg.End
		}
	}
	res.Text = JoinSegments(res.Segments)
	return res, nil
}

// JoinSegments joins trimmed, non-blank segment texts with one space.
func JoinSegments(segments []Segment) string {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		if t := strings.TrimSpace(s.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

// Run transcribes path with the producing strategy chosen for it. Errors
// that are not already AppErrors become TranscriptionFailed.
func Run(ctx context.Context, engine Engine, strategy Strategy, path string, opts Options) (*Result, error) {
	var (
		res *Result
		err error
	)
	switch strategy {
	case LongForm:
		var it SegmentIterator
		if it, err = engine.TranscribeLongForm(ctx, path, opts); err == nil {
			res, err = Collect(ctx, it)
		}
	default:
		res, err = engine.Transcribe(ctx, path, opts)
	}
	if err != nil {
		if errors.IsAppError(err) {
			return nil, err
		}
		if ctx.Err() == context.DeadlineExceeded {
			return nil, errors.Timeout("transcription").WithCause(err)
		}
		return nil, errors.TranscriptionFailed(engine.Name(), err)
	}
	if res == nil {
		return nil, errors.TranscriptionFailed(engine.Name(), nil)
	}
	return res, nil
}
