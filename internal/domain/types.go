package domain

import "time"

// RunStatus tracks each pipeline stage for a single transcription run.
type RunStatus string

const (
	RunStatusPending      RunStatus = "pending"
	RunStatusIngesting    RunStatus = "ingesting"
	RunStatusExtracting   RunStatus = "extracting"
	RunStatusTranscribing RunStatus = "transcribing"
	RunStatusExporting    RunStatus = "exporting"
	RunStatusDone         RunStatus = "done"
	RunStatusFailed       RunStatus = "failed"
	RunStatusCancelled    RunStatus = "cancelled"
)

// Settings contains runtime configuration for the service.
type Settings struct {
	ModelPath         string `json:"modelPath"`
	OutputDir         string `json:"outputDir"`
	DataDir           string `json:"dataDir"`
	ListenAddr        string `json:"listenAddr"`
	MaxUploadBytes    int64  `json:"maxUploadBytes"`
	ExtractTimeoutSec int    `json:"extractTimeoutSec"`
}

// Run stores run identity, lifecycle status, and outcome metadata.
type Run struct {
	ID           string    `json:"id"`
	SourceName   string    `json:"sourceName"`
	Status       RunStatus `json:"status"`
	Error        string    `json:"error,omitempty"`
	ArtifactPath string    `json:"artifactPath,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	FinishedAt   time.Time `json:"finishedAt"`
}

// Progress is a point-in-time snapshot of one run's stage progress.
// The fraction belongs to the named stage and resets when a new stage starts.
type Progress struct {
	Stage    string  `json:"stage"`
	Fraction float64 `json:"fraction"`
	Message  string  `json:"message"`
}

// Segment is one committed, non-empty unit of transcribed text.
// Sequence numbers strictly increase in emission order within a run.
type Segment struct {
	Seq  int    `json:"seq"`
	Text string `json:"text"`
}
