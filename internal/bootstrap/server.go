package bootstrap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"video-transcriber/internal/domain"
	"video-transcriber/internal/jobs"
	"video-transcriber/internal/progress"
	"video-transcriber/internal/transcript"
)

// allowedUploadExts lists the container extensions accepted at the
// upload boundary. The extension is only a first filter; ffmpeg
// decides whether the content is actually decodable.
var allowedUploadExts = map[string]bool{
	".mp4": true,
	".avi": true,
	".mkv": true,
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Run serves the HTTP API until SIGINT or SIGTERM, then shuts the
// server down gracefully and releases application resources.
func (a *App) Run() error {
	addr := a.snapshotSettings().ListenAddr
	srv := &http.Server{
		Addr:    addr,
		Handler: a.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		_ = a.Close()
		return err
	case sig := <-stop:
		log.Printf("received %s, shutting down", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	return a.Close()
}

// Router builds the HTTP route table.
func (a *App) Router() *mux.Router {
	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/runs", a.handleCreateRun).Methods(http.MethodPost)
	api.HandleFunc("/runs", a.handleListRuns).Methods(http.MethodGet)
	api.HandleFunc("/runs/{id}", a.handleGetRun).Methods(http.MethodGet)
	api.HandleFunc("/runs/{id}", a.handleCancelRun).Methods(http.MethodDelete)
	api.HandleFunc("/runs/{id}/progress", a.handleRunProgress).Methods(http.MethodGet)
	api.HandleFunc("/runs/{id}/events", a.handleRunEvents).Methods(http.MethodGet)
	api.HandleFunc("/runs/{id}/ws", a.handleRunSocket).Methods(http.MethodGet)
	api.HandleFunc("/runs/{id}/transcript", a.handleDownloadTranscript).Methods(http.MethodGet)
	api.HandleFunc("/diagnostics", a.handleDiagnostics).Methods(http.MethodGet)
	api.HandleFunc("/models", a.handleListModels).Methods(http.MethodGet)
	api.HandleFunc("/models/{id}/download", a.handleDownloadModel).Methods(http.MethodPost)
	return r
}

// uploadSource adapts one multipart part to the ingest source
// contract. The declared size comes from the request Content-Length,
// which overstates the file body by the multipart framing, so the
// chunked copy reports a slightly conservative fraction and completion
// is signalled explicitly.
type uploadSource struct {
	reader io.Reader
	size   int64
	name   string
}

func (s *uploadSource) Read(p []byte) (int, error) { return s.reader.Read(p) }
func (s *uploadSource) Size() int64                { return s.size }
func (s *uploadSource) Name() string               { return s.name }

// handleCreateRun accepts a streamed multipart upload, registers a new
// run, and responds once the upload has been fully spooled. Extraction
// and transcription keep running in the background after the response.
func (a *App) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	settings := a.snapshotSettings()
	if r.ContentLength <= 0 {
		writeError(w, http.StatusLengthRequired, "Content-Length is required")
		return
	}
	if settings.MaxUploadBytes > 0 && r.ContentLength > settings.MaxUploadBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "upload exceeds the configured size limit")
		return
	}
	if settings.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, settings.MaxUploadBytes)
	}

	mr, err := r.MultipartReader()
	if err != nil {
		writeError(w, http.StatusBadRequest, "expected a multipart upload: "+err.Error())
		return
	}

	part, err := nextVideoPart(mr)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sourceName := filepath.Base(part.FileName())
	ext := strings.ToLower(filepath.Ext(sourceName))
	if !allowedUploadExts[ext] {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unsupported file type %q, expected .mp4, .avi or .mkv", ext))
		return
	}

	runID := uuid.NewString()
	tracker := progress.NewTracker()
	ctx, cancel := context.WithCancel(context.Background())

	run := domain.Run{
		ID:         runID,
		SourceName: sourceName,
		Status:     domain.RunStatusPending,
		CreatedAt:  time.Now(),
	}
	if err := a.Registry.Register(run, tracker, cancel); err != nil {
		cancel()
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	a.persistSnapshot(runID)
	a.publishStatus(runID, domain.RunStatusPending, "Run accepted")

	src := &uploadSource{reader: part, size: r.ContentLength, name: sourceName}
	ingestDone := make(chan error, 1)
	go a.executeRun(ctx, runID, sourceName, src, tracker, ingestDone)

	if err := <-ingestDone; err != nil {
		if errors.Is(err, context.Canceled) {
			writeError(w, http.StatusConflict, "run was cancelled during upload")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"id":     runID,
		"status": string(domain.RunStatusExtracting),
	})
}

// nextVideoPart scans the multipart stream for the "video" form field.
func nextVideoPart(mr *multipart.Reader) (*multipart.Part, error) {
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, errors.New("missing \"video\" form field")
		}
		if err != nil {
			return nil, fmt.Errorf("read multipart body: %w", err)
		}
		if part.FormName() == "video" {
			if part.FileName() == "" {
				return nil, errors.New("\"video\" field must carry a file")
			}
			return part, nil
		}
	}
}

// handleListRuns returns all persisted runs, newest first.
func (a *App) handleListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := a.Runs.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

// handleGetRun returns one run, preferring the live registry view.
func (a *App) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if run, ok := a.Registry.Get(id); ok {
		writeJSON(w, http.StatusOK, run)
		return
	}
	run, err := a.Runs.Get(id)
	if err != nil {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// handleRunProgress returns the current stage and fraction of a run.
func (a *App) handleRunProgress(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	prog, ok := a.Registry.Progress(id)
	if !ok {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	writeJSON(w, http.StatusOK, prog)
}

// handleRunEvents returns buffered events for a run after a sequence
// cursor, so clients can poll without missing or repeating events.
func (a *App) handleRunEvents(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, ok := a.Registry.Get(id); !ok {
		if _, err := a.Runs.Get(id); err != nil {
			writeError(w, http.StatusNotFound, "run not found")
			return
		}
	}

	since := int64(0)
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid since cursor")
			return
		}
		since = parsed
	}
	writeJSON(w, http.StatusOK, a.Events.SinceFor(id, since))
}

// handleRunSocket streams run events over a websocket until the run
// reaches a terminal state and the event buffer is drained.
func (a *App) handleRunSocket(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, ok := a.Registry.Get(id); !ok {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade: %v", err)
		return
	}
	defer conn.Close()

	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	var lastSeq int64
	for range ticker.C {
		events := a.Events.SinceFor(id, lastSeq)
		for _, event := range events {
			if err := conn.WriteJSON(event); err != nil {
				return
			}
			lastSeq = event.Seq
		}

		run, ok := a.Registry.Get(id)
		if !ok {
			return
		}
		if isTerminal(run.Status) && len(events) == 0 {
			return
		}
	}
}

// handleDownloadTranscript serves the sealed transcript exactly once.
// The artifact path is claimed atomically before any bytes are
// streamed, so concurrent requests cannot both win; afterwards the
// file is deleted and further requests report it gone. Runs that only
// exist in the persisted store (after a restart) are served the same
// way.
func (a *App) handleDownloadTranscript(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	artifactPath, status, message := a.claimArtifact(id)
	if status != http.StatusOK {
		writeError(w, status, message)
		return
	}

	f, err := os.Open(artifactPath)
	if err != nil {
		writeError(w, http.StatusGone, "transcript is no longer available")
		return
	}

	w.Header().Set("Content-Type", transcript.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(artifactPath)))
	_, copyErr := io.Copy(w, f)
	f.Close()
	if copyErr != nil {
		log.Printf("stream transcript %s: %v", id, copyErr)
		return
	}

	if err := os.Remove(artifactPath); err != nil {
		log.Printf("remove transcript %s: %v", artifactPath, err)
	}
}

// claimArtifact resolves a run from the registry or the persisted
// store and takes its artifact path for one-shot retrieval. The whole
// check-and-clear sequence runs under one lock, so exactly one caller
// obtains the path.
func (a *App) claimArtifact(id string) (path string, status int, message string) {
	a.downloadMu.Lock()
	defer a.downloadMu.Unlock()

	run, inRegistry := a.Registry.Get(id)
	if !inRegistry {
		stored, err := a.Runs.Get(id)
		if err != nil {
			return "", http.StatusNotFound, "run not found"
		}
		run = stored
	}

	if run.Status != domain.RunStatusDone {
		return "", http.StatusConflict, "transcript is not ready"
	}
	if run.ArtifactPath == "" {
		return "", http.StatusGone, "transcript was already retrieved"
	}

	if inRegistry {
		claimed, err := a.Registry.ClaimArtifact(id)
		if err != nil || claimed == "" {
			return "", http.StatusGone, "transcript was already retrieved"
		}
		a.persistSnapshot(id)
		return claimed, http.StatusOK, ""
	}

	path = run.ArtifactPath
	run.ArtifactPath = ""
	if err := a.Runs.Put(run); err != nil {
		log.Printf("persist run %s after claim: %v", id, err)
	}
	return path, http.StatusOK, ""
}

// handleCancelRun requests cancellation of an active run.
func (a *App) handleCancelRun(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	err := a.Registry.Cancel(id)
	switch {
	case errors.Is(err, jobs.ErrRunNotFound):
		writeError(w, http.StatusNotFound, "run not found")
	case errors.Is(err, jobs.ErrRunNotRunning):
		writeError(w, http.StatusConflict, "run is not running")
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusAccepted, map[string]string{"id": id, "status": "cancelling"})
	}
}

// handleDiagnostics re-runs the environment checks with the current
// settings and returns the fresh report.
func (a *App) handleDiagnostics(w http.ResponseWriter, r *http.Request) {
	report := a.checker.Run(a.snapshotSettings())
	a.setDiagnostics(report)
	writeJSON(w, http.StatusOK, report)
}

// handleListModels returns the model catalog with install state.
func (a *App) handleListModels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.ModelOptions())
}

// handleDownloadModel fetches and installs a catalog model, then
// points the configured model path at it.
func (a *App) handleDownloadModel(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	option, err := a.InstallModel(r.Context(), id)
	if err != nil {
		if errors.Is(err, errUnknownModel) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, option)
}

// isTerminal reports whether a run status is final.
func isTerminal(status domain.RunStatus) bool {
	switch status {
	case domain.RunStatusDone, domain.RunStatusFailed, domain.RunStatusCancelled:
		return true
	}
	return false
}

// writeJSON serializes a payload with a status code.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("encode response: %v", err)
	}
}

// writeError serializes an error payload with a status code.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
