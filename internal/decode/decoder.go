package decode

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"video-transcriber/internal/domain"
	"video-transcriber/internal/engine"
)

// DefaultFrameSamples is the number of PCM samples fed to the engine
// per read.
const DefaultFrameSamples = 4000

// Reason classifies decode failures.
type Reason string

const (
	// ReasonInvalidStream marks streams that cannot be opened or whose
	// header is malformed.
	ReasonInvalidStream Reason = "invalid_stream"
	// ReasonEngineFailure marks internal speech engine errors mid-stream.
	ReasonEngineFailure Reason = "engine_failure"
)

// Error reports a failed decode pass.
type Error struct {
	Reason Reason
	Err    error
}

// Error formats decode failures for logs and API responses.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("decode %s: %v", e.Reason, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Options configure one decode pass.
type Options struct {
	FrameSamples int
	OnProgress   func(fraction float64)
	OnSegment    func(seg domain.Segment)
}

// Decoder streams a PCM file through a speech engine and collects
// committed text segments in emission order.
type Decoder struct {
	open func(name string) (*os.File, error)
}

// New builds a decoder using real OS dependencies.
func New() *Decoder {
	return &Decoder{open: os.Open}
}

// Decode reads pcmPath in fixed-size frames, feeds each frame to eng,
// and returns committed non-empty segments with strictly increasing
// sequence numbers. The engine is flushed exactly once after the
// stream is exhausted so a trailing partial utterance is not lost.
// Empty results are discarded, never emitted as segments.
func (d *Decoder) Decode(ctx context.Context, pcmPath string, eng engine.Engine, opts Options) ([]domain.Segment, error) {
	frameSamples := opts.FrameSamples
	if frameSamples <= 0 {
		frameSamples = DefaultFrameSamples
	}

	f, err := d.open(pcmPath)
	if err != nil {
		return nil, &Error{Reason: ReasonInvalidStream, Err: err}
	}
	defer f.Close()

	format, err := readWAVHeader(f)
	if err != nil {
		return nil, &Error{Reason: ReasonInvalidStream, Err: err}
	}
	if format.channels != 1 || format.bitsPerSample != 16 {
		return nil, &Error{
			Reason: ReasonInvalidStream,
			Err: fmt.Errorf("expected mono 16-bit PCM, got %d channel(s) at %d bits",
				format.channels, format.bitsPerSample),
		}
	}

	totalSamples := format.dataLen / 2
	var segments []domain.Segment
	emit := func(text string) {
		text = strings.TrimSpace(text)
		if text == "" {
			return
		}
		seg := domain.Segment{Seq: len(segments) + 1, Text: text}
		segments = append(segments, seg)
		if opts.OnSegment != nil {
			opts.OnSegment(seg)
		}
	}

	buf := make([]byte, frameSamples*2)
	var processed int64

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		n, readErr := io.ReadFull(f, buf)
		if n > 0 {
			committed, engErr := eng.Accept(buf[:n])
			if engErr != nil {
				return nil, &Error{Reason: ReasonEngineFailure, Err: engErr}
			}
			if committed {
				text, resErr := eng.Result()
				if resErr != nil {
					return nil, &Error{Reason: ReasonEngineFailure, Err: resErr}
				}
				emit(text)
			}

			processed += int64(n / 2)
			if opts.OnProgress != nil && totalSamples > 0 {
				fraction := float64(processed) / float64(totalSamples)
				if fraction > 1 {
					fraction = 1
				}
				opts.OnProgress(fraction)
			}
		}

		if readErr == nil {
			continue
		}
		if errors.Is(readErr, io.EOF) || errors.Is(readErr, io.ErrUnexpectedEOF) {
			break
		}
		return nil, &Error{Reason: ReasonInvalidStream, Err: readErr}
	}

	text, err := eng.FinalResult()
	if err != nil {
		return nil, &Error{Reason: ReasonEngineFailure, Err: err}
	}
	emit(text)

	if opts.OnProgress != nil {
		opts.OnProgress(1)
	}

	return segments, nil
}

// NewForTests builds a decoder with an injectable file opener.
func NewForTests(open func(name string) (*os.File, error)) *Decoder {
	return &Decoder{open: open}
}
