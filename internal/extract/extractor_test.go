package extract

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// fakeRunner simulates command execution outcomes.
type fakeRunner struct {
	run func(ctx context.Context, name string, args ...string) (commandResult, error)
}

// Run delegates to injected behavior.
func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) (commandResult, error) {
	if f.run == nil {
		return commandResult{}, nil
	}
	return f.run(ctx, name, args...)
}

// mustWriteFile writes a helper fixture file.
func mustWriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// TestExtractInvokesFFmpegWithPCMArgs checks the command line used to
// demux audio into mono 16 kHz signed 16-bit PCM.
func TestExtractInvokesFFmpegWithPCMArgs(t *testing.T) {
	root := t.TempDir()
	inputPath := filepath.Join(root, "clip.mp4")
	outPath := filepath.Join(root, "audio.wav")

	var gotName string
	var gotArgs []string
	runner := &fakeRunner{
		run: func(ctx context.Context, name string, args ...string) (commandResult, error) {
			gotName = name
			gotArgs = append([]string{}, args...)
			mustWriteFile(t, outPath, "wav")
			return commandResult{ExitCode: 0}, nil
		},
	}

	extractor := NewForTests("ffmpeg-custom", runner, os.Stat, os.Remove)
	if err := extractor.Extract(context.Background(), inputPath, outPath); err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}

	if gotName != "ffmpeg-custom" {
		t.Fatalf("command name = %q, want ffmpeg-custom", gotName)
	}
	joined := strings.Join(gotArgs, " ")
	for _, want := range []string{"-i " + inputPath, "-vn", "-ac 1", "-ar 16000", "-c:a pcm_s16le", outPath} {
		if !strings.Contains(joined, want) {
			t.Fatalf("args %q missing %q", joined, want)
		}
	}
}

// TestExtractToolFailureCarriesStderr checks that a failed tool run
// surfaces a typed error with the tool's diagnostic output and leaves
// no output file.
func TestExtractToolFailureCarriesStderr(t *testing.T) {
	root := t.TempDir()
	outPath := filepath.Join(root, "audio.wav")

	runner := &fakeRunner{
		run: func(ctx context.Context, name string, args ...string) (commandResult, error) {
			mustWriteFile(t, outPath, "partial")
			return commandResult{Stderr: "moov atom not found", ExitCode: 1}, errors.New("exit status 1")
		},
	}

	extractor := NewForTests("ffmpeg", runner, os.Stat, os.Remove)
	err := extractor.Extract(context.Background(), filepath.Join(root, "clip.mp4"), outPath)

	var extErr *Error
	if !errors.As(err, &extErr) {
		t.Fatalf("error type = %T, want *Error", err)
	}
	if extErr.Reason != ReasonExternalTool {
		t.Fatalf("reason = %q, want %q", extErr.Reason, ReasonExternalTool)
	}
	if !strings.Contains(extErr.Detail, "moov atom not found") {
		t.Fatalf("detail = %q, want tool stderr", extErr.Detail)
	}
	if _, statErr := os.Stat(outPath); !errors.Is(statErr, os.ErrNotExist) {
		t.Fatalf("partial output still present: %v", statErr)
	}
}

// TestExtractMissingOutputIsFailure checks that a zero-exit run with
// no output file is still reported as a tool failure.
func TestExtractMissingOutputIsFailure(t *testing.T) {
	root := t.TempDir()
	outPath := filepath.Join(root, "audio.wav")

	runner := &fakeRunner{
		run: func(ctx context.Context, name string, args ...string) (commandResult, error) {
			return commandResult{ExitCode: 0}, nil
		},
	}

	extractor := NewForTests("ffmpeg", runner, os.Stat, os.Remove)
	err := extractor.Extract(context.Background(), filepath.Join(root, "clip.mp4"), outPath)

	var extErr *Error
	if !errors.As(err, &extErr) {
		t.Fatalf("error type = %T, want *Error", err)
	}
	if !strings.Contains(extErr.Detail, "output file is missing") {
		t.Fatalf("detail = %q, want missing-output message", extErr.Detail)
	}
}

// TestExtractCancelledContextSurfacesContextError checks that
// cancellation is reported as the raw context error, not a tool
// failure.
func TestExtractCancelledContextSurfacesContextError(t *testing.T) {
	root := t.TempDir()
	outPath := filepath.Join(root, "audio.wav")

	ctx, cancel := context.WithCancel(context.Background())
	runner := &fakeRunner{
		run: func(ctx context.Context, name string, args ...string) (commandResult, error) {
			cancel()
			return commandResult{}, ctx.Err()
		},
	}

	extractor := NewForTests("ffmpeg", runner, os.Stat, os.Remove)
	err := extractor.Extract(ctx, filepath.Join(root, "clip.mp4"), outPath)

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
}

// TestExtractTimeoutReportsToolFailure checks that an expired timeout
// is surfaced as a tool failure naming the binary, not as a bare
// context error.
func TestExtractTimeoutReportsToolFailure(t *testing.T) {
	root := t.TempDir()
	outPath := filepath.Join(root, "audio.wav")

	extractor := NewForTests("ffmpeg", &fakeRunner{
		run: func(ctx context.Context, name string, args ...string) (commandResult, error) {
			<-ctx.Done()
			return commandResult{}, ctx.Err()
		},
	}, os.Stat, os.Remove)
	extractor.timeout = time.Millisecond

	err := extractor.Extract(context.Background(), filepath.Join(root, "clip.mp4"), outPath)

	var extErr *Error
	if !errors.As(err, &extErr) {
		t.Fatalf("error type = %T, want *Error", err)
	}
	if extErr.Reason != ReasonExternalTool {
		t.Fatalf("reason = %q, want %q", extErr.Reason, ReasonExternalTool)
	}
	if !strings.Contains(extErr.Detail, "ffmpeg") || !strings.Contains(extErr.Detail, "timed out") {
		t.Fatalf("detail = %q, want tool timeout message", extErr.Detail)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatal("expected wrapped deadline error")
	}
}

// TestExtractTimeoutBoundsTheInvocation checks that the configured
// timeout produces a deadline on the runner context.
func TestExtractTimeoutBoundsTheInvocation(t *testing.T) {
	root := t.TempDir()
	outPath := filepath.Join(root, "audio.wav")

	extractor := NewForTests("ffmpeg", &fakeRunner{
		run: func(ctx context.Context, name string, args ...string) (commandResult, error) {
			if _, ok := ctx.Deadline(); !ok {
				t.Fatal("expected a deadline on the runner context")
			}
			mustWriteFile(t, outPath, "wav")
			return commandResult{}, nil
		},
	}, os.Stat, os.Remove)
	extractor.timeout = time.Minute

	if err := extractor.Extract(context.Background(), filepath.Join(root, "clip.mp4"), outPath); err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
}
