package transcript

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fumiama/go-docx"
	"github.com/google/uuid"
)

// Reason classifies assembly failures.
type Reason string

// ReasonSerialization covers failures writing the output artifact.
const ReasonSerialization Reason = "serialization_failure"

// Error reports a failed document sealing.
type Error struct {
	Reason Reason
	Err    error
}

// Error formats sealing failures for logs and API responses.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("assemble %s: %v", e.Reason, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Sealer serializes documents into the well-known output area.
type Sealer struct {
	outputDir string
	now       func() time.Time
	token     func() string
}

// NewSealer builds a sealer writing into outputDir.
func NewSealer(outputDir string) *Sealer {
	return &Sealer{
		outputDir: outputDir,
		now:       time.Now,
		token:     randomToken,
	}
}

// Seal serializes doc into a new .docx artifact and returns its path.
// Artifact names combine the seal timestamp with a random token, so
// runs sealing within the same second cannot collide. On failure no
// artifact file is left in the output area.
func (s *Sealer) Seal(doc *Document) (string, error) {
	if err := os.MkdirAll(s.outputDir, 0o755); err != nil {
		return "", &Error{Reason: ReasonSerialization, Err: err}
	}

	name := fmt.Sprintf("transcript_%s_%s.docx", s.now().Format("20060102_150405"), s.token())
	path := filepath.Join(s.outputDir, name)

	w := docx.New().WithDefaultTheme()
	paragraphs := doc.Paragraphs()
	for i, text := range paragraphs {
		p := w.AddParagraph()
		if i == 0 {
			p.AddText(text).Size("32")
			continue
		}
		p.AddText(text)
	}

	f, err := os.Create(path)
	if err != nil {
		return "", &Error{Reason: ReasonSerialization, Err: err}
	}
	if _, err := w.WriteTo(f); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", &Error{Reason: ReasonSerialization, Err: err}
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", &Error{Reason: ReasonSerialization, Err: err}
	}

	return path, nil
}

// randomToken returns a short collision-avoidance suffix.
func randomToken() string {
	return strings.Split(uuid.NewString(), "-")[0]
}

// NewSealerForTests builds a sealer with a fixed clock and token.
func NewSealerForTests(outputDir string, now func() time.Time, token func() string) *Sealer {
	return &Sealer{
		outputDir: outputDir,
		now:       now,
		token:     token,
	}
}
