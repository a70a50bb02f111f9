package ingest

import (
	"context"
	"fmt"
	"io"
	"os"
)

// DefaultChunkSize is the upload read granularity used by the server boundary.
const DefaultChunkSize = 2 * 1024 * 1024

// Reason classifies ingest failures.
type Reason string

// ReasonIOFailure covers failed reads from the upload source and failed
// writes to the local container.
const ReasonIOFailure Reason = "io_failure"

// Error reports a failed upload ingestion.
type Error struct {
	Reason Reason
	Err    error
}

// Error formats ingest failures for logs and API responses.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("ingest %s: %v", e.Reason, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Source is an upload byte stream with a declared total size.
// Reads are sequential and non-seekable; a zero-length read signals
// completion.
type Source interface {
	io.Reader
	Size() int64
	Name() string
}

// File describes the ingested upload on local disk.
type File struct {
	Path string
	Size int64
}

// ProgressFunc receives the fraction of declared bytes written so far.
type ProgressFunc func(fraction float64)

// Ingestor copies an upload source into a stable local file in
// bounded-size chunks.
type Ingestor struct {
	chunkSize int
	create    func(name string) (*os.File, error)
	remove    func(name string) error
}

// New builds an ingestor using real OS dependencies.
func New(chunkSize int) *Ingestor {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Ingestor{
		chunkSize: chunkSize,
		create:    os.Create,
		remove:    os.Remove,
	}
}

// Ingest drains src into destPath chunk by chunk, reporting fractional
// progress after each written chunk. The fraction is clamped to 1.0 and
// reaches exactly 1.0 on completion. On any failure the partial file is
// removed before the error is surfaced, so no side effect survives.
func (i *Ingestor) Ingest(ctx context.Context, src Source, destPath string, onProgress ProgressFunc) (File, error) {
	dest, err := i.create(destPath)
	if err != nil {
		return File{}, &Error{Reason: ReasonIOFailure, Err: err}
	}

	fail := func(cause error) (File, error) {
		_ = dest.Close()
		_ = i.remove(destPath)
		return File{}, cause
	}

	total := src.Size()
	buf := make([]byte, i.chunkSize)
	var written int64

	for {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}

		n, readErr := src.Read(buf)
		if n > 0 {
			if _, writeErr := dest.Write(buf[:n]); writeErr != nil {
				return fail(&Error{Reason: ReasonIOFailure, Err: writeErr})
			}
			written += int64(n)
			if onProgress != nil && total > 0 {
				fraction := float64(written) / float64(total)
				if fraction > 1 {
					fraction = 1
				}
				onProgress(fraction)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return fail(&Error{Reason: ReasonIOFailure, Err: readErr})
		}
		if n == 0 {
			break
		}
	}

	if err := dest.Close(); err != nil {
		_ = i.remove(destPath)
		return File{}, &Error{Reason: ReasonIOFailure, Err: err}
	}
	if onProgress != nil {
		onProgress(1)
	}

	return File{Path: destPath, Size: written}, nil
}

// NewForTests builds an ingestor with injectable filesystem dependencies.
func NewForTests(
	chunkSize int,
	create func(name string) (*os.File, error),
	remove func(name string) error,
) *Ingestor {
	return &Ingestor{
		chunkSize: chunkSize,
		create:    create,
		remove:    remove,
	}
}
