// Package bootstrap wires configuration, diagnostics, persistence, the
// run registry, and the transcription pipeline behind the HTTP
// boundary.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"video-transcriber/internal/config"
	"video-transcriber/internal/diagnostics"
	"video-transcriber/internal/domain"
	"video-transcriber/internal/engine"
	"video-transcriber/internal/ingest"
	"video-transcriber/internal/jobs"
	"video-transcriber/internal/progress"
	"video-transcriber/internal/store"
	"video-transcriber/internal/transcribe"
	"video-transcriber/internal/transcript"
)

// App owns the long-lived service state: settings, the run registry,
// event history, run persistence, and the shared speech model handle.
type App struct {
	Settings    domain.Settings
	Store       config.Store
	Registry    *jobs.Registry
	Events      *jobs.EventBus
	Runs        store.RunStore
	Pipeline    pipelineRunner
	Diagnostics domain.DiagnosticReport

	checker *diagnostics.Checker

	// downloadMu serializes one-shot artifact claims.
	downloadMu sync.Mutex

	// mu guards Settings, Diagnostics, and the cached model handle.
	// Handlers and run goroutines read settings through snapshots;
	// writers (model installs, diagnostics refresh) hold the lock.
	mu    sync.Mutex
	model *engine.Model
}

// pipelineRunner isolates the transcription pipeline behind an
// interface so handler tests can script run outcomes.
type pipelineRunner interface {
	Run(ctx context.Context, req transcribe.Request, tracker *progress.Tracker) (transcribe.Result, error)
}

// New builds the application with persisted settings, environment
// overrides, and startup diagnostics.
func New() (*App, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve user home: %w", err)
	}

	cfgStore := config.NewJSONStore(filepath.Join(homeDir, ".video-transcriber", "settings.json"))
	settings, err := cfgStore.Load()
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	settings = config.ApplyEnv(settings)

	checker := diagnostics.NewChecker()
	report := checker.Run(settings)

	runStore, err := store.NewBadgerStore(settings.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open run store: %w", err)
	}

	app := &App{
		Settings:    settings,
		Store:       cfgStore,
		Registry:    jobs.NewRegistry(),
		Events:      jobs.NewEventBus(1000),
		Runs:        runStore,
		Diagnostics: report,
		checker:     checker,
	}
	app.Pipeline = transcribe.New(
		app,
		transcript.NewSealer(settings.OutputDir),
		time.Duration(settings.ExtractTimeoutSec)*time.Second,
	)
	return app, nil
}

// NewForTests builds an app around injected collaborators.
func NewForTests(settings domain.Settings, cfgStore config.Store, runStore store.RunStore, pipeline pipelineRunner) *App {
	checker := diagnostics.NewChecker()
	return &App{
		Settings:    settings,
		Store:       cfgStore,
		Registry:    jobs.NewRegistry(),
		Events:      jobs.NewEventBus(100),
		Runs:        runStore,
		Pipeline:    pipeline,
		Diagnostics: checker.Run(settings),
		checker:     checker,
	}
}

// NewEngine lazily loads the shared speech model, then creates a
// per-run recognizer from it. The model handle is loaded once and is
// read-only afterwards, so concurrent runs share it safely.
func (a *App) NewEngine() (engine.Engine, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.model == nil {
		m, err := engine.LoadModel(a.Settings.ModelPath)
		if err != nil {
			return nil, err
		}
		a.model = m
	}
	return a.model.NewEngine()
}

// resetModel drops the cached model handle so the next run reloads it,
// e.g. after a model download changed the configured path.
func (a *App) resetModel() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.model != nil {
		a.model.Close()
		a.model = nil
	}
}

// snapshotSettings returns a copy of the current settings for one
// request or run.
func (a *App) snapshotSettings() domain.Settings {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.Settings
}

// applySettings installs new settings, drops the cached model so the
// next run picks up the new model path, and replaces the diagnostics
// report.
func (a *App) applySettings(settings domain.Settings, report domain.DiagnosticReport) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Settings = settings
	a.Diagnostics = report
	if a.model != nil {
		a.model.Close()
		a.model = nil
	}
}

// setDiagnostics replaces the cached diagnostics report.
func (a *App) setDiagnostics(report domain.DiagnosticReport) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Diagnostics = report
}

// Close releases the run store and the cached speech model.
func (a *App) Close() error {
	a.resetModel()
	if a.Runs != nil {
		return a.Runs.Close()
	}
	return nil
}

// executeRun drives one transcription run on its own goroutine and
// maps pipeline outcomes to registry transitions, events, and
// persisted records. ingestDone receives exactly one value: nil as
// soon as ingestion completed, or the run error when the pipeline
// failed before reaching the extraction stage.
func (a *App) executeRun(
	ctx context.Context,
	runID, sourceName string,
	src ingest.Source,
	tracker *progress.Tracker,
	ingestDone chan<- error,
) {
	signalIngest := func(err error) {
		select {
		case ingestDone <- err:
		default:
		}
	}

	req := transcribe.Request{
		Source:     src,
		SourceName: sourceName,
		OnStage: func(stage string) {
			if stage == transcribe.StageExtract {
				signalIngest(nil)
			}
			status, ok := mapStageToStatus(stage)
			if !ok {
				return
			}
			if err := a.Registry.Transition(runID, status); err == nil {
				a.publishStatus(runID, status, "Running "+stage+" stage")
				a.persistSnapshot(runID)
			}
		},
		OnSegment: func(seg domain.Segment) {
			a.Events.Publish(jobs.Event{
				RunID:      runID,
				Type:       jobs.EventTypeSegment,
				SegmentSeq: seg.Seq,
				Text:       seg.Text,
			})
		},
	}

	result, err := a.Pipeline.Run(ctx, req, tracker)
	signalIngest(err)
	finishedAt := time.Now()

	if err != nil {
		if errors.Is(err, context.Canceled) {
			_ = a.Registry.MarkCancelled(runID, finishedAt)
			a.publishStatus(runID, domain.RunStatusCancelled, "Run cancelled")
		} else {
			_ = a.Registry.Fail(runID, err.Error(), finishedAt)
			a.publishStatus(runID, domain.RunStatusFailed, "Run failed")
			a.Events.Publish(jobs.Event{
				RunID:   runID,
				Type:    jobs.EventTypeError,
				Status:  domain.RunStatusFailed,
				Message: err.Error(),
			})
		}
		a.persistSnapshot(runID)
		return
	}

	_ = a.Registry.Complete(runID, result.ArtifactPath, finishedAt)
	a.publishStatus(runID, domain.RunStatusDone, "Transcript sealed")
	a.Events.Publish(jobs.Event{
		RunID:    runID,
		Type:     jobs.EventTypeResult,
		Status:   domain.RunStatusDone,
		Message:  "Transcript ready for download",
		Artifact: filepath.Base(result.ArtifactPath),
	})
	a.persistSnapshot(runID)
}

// publishStatus sends a normalized status event.
func (a *App) publishStatus(runID string, status domain.RunStatus, message string) {
	a.Events.Publish(jobs.Event{
		RunID:   runID,
		Type:    jobs.EventTypeStatus,
		Status:  status,
		Message: message,
	})
}

// persistSnapshot writes the registry's current view of a run to the
// run store.
func (a *App) persistSnapshot(runID string) {
	run, ok := a.Registry.Get(runID)
	if !ok {
		return
	}
	if err := a.Runs.Put(run); err != nil {
		log.Printf("persist run %s: %v", runID, err)
	}
}

// mapStageToStatus maps pipeline stage names to run statuses.
func mapStageToStatus(stage string) (domain.RunStatus, bool) {
	switch stage {
	case transcribe.StageIngest:
		return domain.RunStatusIngesting, true
	case transcribe.StageExtract:
		return domain.RunStatusExtracting, true
	case transcribe.StageDecode:
		return domain.RunStatusTranscribing, true
	case transcribe.StageExport:
		return domain.RunStatusExporting, true
	default:
		return "", false
	}
}
