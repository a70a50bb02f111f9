// Package transcribe sequences the four stages of one transcription
// run: chunked ingest, audio extraction, streaming decode, and
// transcript assembly. All intermediate files live in a run-scoped
// temporary directory removed on every exit path.
package transcribe

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"video-transcriber/internal/decode"
	"video-transcriber/internal/domain"
	"video-transcriber/internal/engine"
	"video-transcriber/internal/extract"
	"video-transcriber/internal/ingest"
	"video-transcriber/internal/progress"
	"video-transcriber/internal/transcript"
)

// Stage names reported through Request.OnStage, in execution order.
const (
	StageIngest  = "ingesting"
	StageExtract = "extracting"
	StageDecode  = "transcribing"
	StageExport  = "exporting"
)

// Request contains the upload source and per-run callbacks.
type Request struct {
	Source     ingest.Source
	SourceName string
	OnStage    func(stage string)
	OnSegment  func(seg domain.Segment)
}

// Result contains the sealed artifact path and the collected segments.
type Result struct {
	ArtifactPath string
	Segments     []domain.Segment
}

// audioExtractor isolates the external transcode invocation behind an
// interface so tests can substitute a scripted converter.
type audioExtractor interface {
	Extract(ctx context.Context, inputPath, outPath string) error
}

// Pipeline executes transcription runs. One Pipeline serves all runs;
// everything run-specific arrives through Run's arguments.
type Pipeline struct {
	ingestor  *ingest.Ingestor
	extractor audioExtractor
	decoder   *decode.Decoder
	engines   engine.Factory
	sealer    *transcript.Sealer

	mkdirTemp func(dir, pattern string) (string, error)
	removeAll func(path string) error
	now       func() time.Time
}

// New builds the production pipeline around a shared engine factory.
func New(engines engine.Factory, sealer *transcript.Sealer, extractTimeout time.Duration) *Pipeline {
	return &Pipeline{
		ingestor:  ingest.New(ingest.DefaultChunkSize),
		extractor: extract.New(extractTimeout),
		decoder:   decode.New(),
		engines:   engines,
		sealer:    sealer,
		mkdirTemp: os.MkdirTemp,
		removeAll: os.RemoveAll,
		now:       time.Now,
	}
}

// Run performs ingest, extraction, decoding, and sealing strictly in
// order. The ingested file and PCM stream are scoped to the run's
// temporary directory and never survive it; an artifact is sealed only
// when the whole run succeeds. Each stage fails fast and aborts the
// remainder of the run.
func (p *Pipeline) Run(ctx context.Context, req Request, tracker *progress.Tracker) (Result, error) {
	tempDir, err := p.mkdirTemp("", "video-transcriber-*")
	if err != nil {
		return Result{}, fmt.Errorf("create run workspace: %w", err)
	}
	defer func() {
		_ = p.removeAll(tempDir)
	}()

	emitStage(req.OnStage, StageIngest)
	tracker.StartStage(StageIngest, "Uploading video")
	ingested, err := p.ingestor.Ingest(ctx, req.Source, filepath.Join(tempDir, "upload"+sourceExt(req.SourceName)), tracker.Report)
	if err != nil {
		return Result{}, err
	}

	emitStage(req.OnStage, StageExtract)
	tracker.StartStage(StageExtract, "Extracting audio")
	pcmPath := filepath.Join(tempDir, "audio-16k-mono.wav")
	if err := p.extractor.Extract(ctx, ingested.Path, pcmPath); err != nil {
		return Result{}, err
	}

	emitStage(req.OnStage, StageDecode)
	tracker.StartStage(StageDecode, "Transcribing audio")
	eng, err := p.engines.NewEngine()
	if err != nil {
		return Result{}, &decode.Error{Reason: decode.ReasonEngineFailure, Err: err}
	}
	defer func() {
		_ = eng.Close()
	}()

	segments, err := p.decoder.Decode(ctx, pcmPath, eng, decode.Options{
		OnProgress: tracker.Report,
		OnSegment:  req.OnSegment,
	})
	if err != nil {
		return Result{}, err
	}

	emitStage(req.OnStage, StageExport)
	tracker.StartStage(StageExport, "Writing transcript document")
	doc := transcript.NewDocument(transcript.Metadata{
		SourceName: req.SourceName,
		CreatedAt:  p.now(),
	})
	for _, seg := range segments {
		doc.Append(seg)
	}

	artifactPath, err := p.sealer.Seal(doc)
	if err != nil {
		return Result{}, err
	}
	tracker.Report(1)

	return Result{ArtifactPath: artifactPath, Segments: segments}, nil
}

// emitStage forwards stage updates when the callback is configured.
func emitStage(cb func(stage string), stage string) {
	if cb != nil {
		cb(stage)
	}
}

// sourceExt returns the upload's extension for the temp file name.
func sourceExt(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return ".mp4"
	}
	return ext
}

// NewForTests builds a pipeline with injectable dependencies.
func NewForTests(
	ingestor *ingest.Ingestor,
	extractor audioExtractor,
	decoder *decode.Decoder,
	engines engine.Factory,
	sealer *transcript.Sealer,
	mkdirTemp func(dir, pattern string) (string, error),
	removeAll func(path string) error,
	now func() time.Time,
) *Pipeline {
	return &Pipeline{
		ingestor:  ingestor,
		extractor: extractor,
		decoder:   decoder,
		engines:   engines,
		sealer:    sealer,
		mkdirTemp: mkdirTemp,
		removeAll: removeAll,
		now:       now,
	}
}
