package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Reason classifies extraction failures.
type Reason string

// ReasonExternalTool covers non-zero exits and internal errors of the
// external demux/transcode process.
const ReasonExternalTool Reason = "external_tool_failure"

// Error reports a failed audio extraction, carrying the tool's
// diagnostic output.
type Error struct {
	Reason Reason
	Detail string
	Err    error
}

// Error formats extraction failures for logs and API responses.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	detail := strings.TrimSpace(e.Detail)
	if detail == "" {
		return fmt.Sprintf("extract %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("extract %s: %s", e.Reason, detail)
}

// Unwrap exposes the underlying error for errors.Is / errors.As.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// commandResult is an internal process execution response.
type commandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// commandRunner abstracts process execution for testability.
type commandRunner interface {
	Run(ctx context.Context, name string, args ...string) (commandResult, error)
}

// execRunner executes commands via os/exec.
type execRunner struct{}

// Run executes one command and captures stdout/stderr and exit code.
func (r *execRunner) Run(ctx context.Context, name string, args ...string) (commandResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := commandResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: 0,
	}
	if err != nil {
		result.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		}
		return result, err
	}

	return result, nil
}

// Extractor converts ingested video into a mono 16 kHz signed 16-bit
// PCM WAV stream by invoking ffmpeg. The tool is treated as a black
// box: success means the output file exists, failure is wrapped with
// the tool's diagnostic text. PCM content itself is not inspected.
type Extractor struct {
	ffmpegPath string
	timeout    time.Duration
	runner     commandRunner
	stat       func(name string) (os.FileInfo, error)
	remove     func(name string) error
}

// New builds an extractor using the ffmpeg binary on PATH. A zero
// timeout leaves the invocation unbounded.
func New(timeout time.Duration) *Extractor {
	return &Extractor{
		ffmpegPath: "ffmpeg",
		timeout:    timeout,
		runner:     &execRunner{},
		stat:       os.Stat,
		remove:     os.Remove,
	}
}

// Extract runs ffmpeg over inputPath and writes the PCM stream to
// outPath, overwriting any existing file. On failure no output file is
// left behind. Cancelling ctx terminates the external process.
func (e *Extractor) Extract(ctx context.Context, inputPath, outPath string) error {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	args := buildFFmpegArgs(inputPath, outPath)
	result, runErr := e.runner.Run(ctx, e.ffmpegPath, args...)
	if runErr != nil {
		e.removeIfPresent(outPath)
		if ctxErr := ctx.Err(); ctxErr != nil {
			// A timeout is a tool failure; only user cancellation
			// propagates as the raw context error.
			if errors.Is(ctxErr, context.DeadlineExceeded) {
				return &Error{
					Reason: ReasonExternalTool,
					Detail: fmt.Sprintf("%s timed out after %s", e.ffmpegPath, e.timeout),
					Err:    ctxErr,
				}
			}
			return ctxErr
		}
		return &Error{
			Reason: ReasonExternalTool,
			Detail: result.Stderr,
			Err:    runErr,
		}
	}

	if _, err := e.stat(outPath); err != nil {
		return &Error{
			Reason: ReasonExternalTool,
			Detail: "ffmpeg completed but output file is missing",
			Err:    err,
		}
	}

	return nil
}

// removeIfPresent deletes a possibly half-written output file.
func (e *Extractor) removeIfPresent(path string) {
	if _, err := e.stat(path); err == nil {
		_ = e.remove(path)
	}
}

// buildFFmpegArgs builds decode CLI args for mono 16k signed 16-bit
// PCM output with diagnostic output limited to errors.
func buildFFmpegArgs(inputPath, outPath string) []string {
	return []string{
		"-hide_banner",
		"-nostdin",
		"-loglevel", "error",
		"-y",
		"-i", inputPath,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		outPath,
	}
}

// NewForTests builds an extractor with injectable dependencies.
func NewForTests(
	ffmpegPath string,
	runner commandRunner,
	stat func(name string) (os.FileInfo, error),
	remove func(name string) error,
) *Extractor {
	return &Extractor{
		ffmpegPath: ffmpegPath,
		runner:     runner,
		stat:       stat,
		remove:     remove,
	}
}
