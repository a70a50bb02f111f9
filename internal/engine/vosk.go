package engine

import (
	"encoding/json"
	"fmt"

	vosk "github.com/alphacep/vosk-api/go"
)

// SampleRate is the PCM sample rate every recognizer is configured for.
const SampleRate = 16000

// Model is the process-wide speech model handle. Loading is expensive,
// so the model is loaded once and shared read-only across concurrent
// runs; each run gets its own recognizer from NewEngine.
type Model struct {
	model *vosk.VoskModel
}

// LoadModel loads the Vosk model from dir and silences the library's
// diagnostic output.
func LoadModel(dir string) (*Model, error) {
	vosk.SetLogLevel(-1)
	m, err := vosk.NewModel(dir)
	if err != nil {
		return nil, fmt.Errorf("load speech model from %s: %w", dir, err)
	}
	return &Model{model: m}, nil
}

// Close frees the underlying native model.
func (m *Model) Close() {
	if m.model != nil {
		m.model.Free()
		m.model = nil
	}
}

// NewEngine creates a fresh recognizer bound to the shared model.
func (m *Model) NewEngine() (Engine, error) {
	rec, err := vosk.NewRecognizer(m.model, float64(SampleRate))
	if err != nil {
		return nil, fmt.Errorf("create recognizer: %w", err)
	}
	return &voskEngine{rec: rec}, nil
}

// voskEngine adapts one Vosk recognizer to the Engine contract.
type voskEngine struct {
	rec *vosk.VoskRecognizer
}

// Accept feeds one PCM frame and reports whether an utterance was
// committed.
func (e *voskEngine) Accept(frame []byte) (bool, error) {
	return e.rec.AcceptWaveform(frame) != 0, nil
}

// Result returns the text of the last committed utterance.
func (e *voskEngine) Result() (string, error) {
	return parseRecognizerText(e.rec.Result())
}

// FinalResult flushes the recognizer and returns trailing text.
func (e *voskEngine) FinalResult() (string, error) {
	return parseRecognizerText(e.rec.FinalResult())
}

// Close frees the native recognizer.
func (e *voskEngine) Close() error {
	e.rec.Free()
	return nil
}

// parseRecognizerText extracts the "text" field from a recognizer JSON
// payload.
func parseRecognizerText(payload string) (string, error) {
	var result struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return "", fmt.Errorf("parse recognizer result: %w", err)
	}
	return result.Text, nil
}
