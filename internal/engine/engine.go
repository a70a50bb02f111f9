// Package engine defines the speech-decoding capability interface and
// its Vosk-backed implementation. The pipeline depends only on the
// interface, so tests substitute scripted engines and a different
// mechanism (FFI, process, network) can be swapped in without touching
// the decode loop.
package engine

// Engine consumes fixed-size PCM frames and yields committed utterance
// text. The engine buffers acoustic context internally; Accept reports
// whether an utterance boundary was reached for the frame just
// consumed, in which case Result returns the finalized text.
// FinalResult flushes any trailing uncommitted text and must be called
// exactly once, after the last frame.
type Engine interface {
	Accept(frame []byte) (committed bool, err error)
	Result() (string, error)
	FinalResult() (string, error)
	Close() error
}

// Factory creates one engine instance per run. Implementations must be
// safe for concurrent use by multiple runs.
type Factory interface {
	NewEngine() (Engine, error)
}
