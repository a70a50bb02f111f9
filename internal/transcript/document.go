// Package transcript assembles committed segments into the sealed
// Word-document artifact offered for one-shot retrieval.
package transcript

import (
	"fmt"
	"time"

	"video-transcriber/internal/domain"
)

// ContentType identifies the sealed artifact as a Word document.
const ContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// Title is the heading written at the top of every transcript document.
const Title = "Video Transcription"

// Metadata identifies the source recording for the document header.
type Metadata struct {
	SourceName string
	CreatedAt  time.Time
}

// Document accumulates transcript segments in arrival order together
// with run metadata. Exactly one document exists per run; it is created
// empty, appended to as segments arrive, and sealed once.
type Document struct {
	meta     Metadata
	segments []domain.Segment
}

// NewDocument creates an empty document for one run.
func NewDocument(meta Metadata) *Document {
	return &Document{meta: meta}
}

// Append adds one committed segment. Arrival order is preserved.
func (d *Document) Append(seg domain.Segment) {
	d.segments = append(d.segments, seg)
}

// Segments returns the appended segments in arrival order.
func (d *Document) Segments() []domain.Segment {
	out := make([]domain.Segment, len(d.segments))
	copy(out, d.segments)
	return out
}

// Paragraphs returns the document body exactly as it is serialized:
// title, generation timestamp, source file name, a blank separator,
// then one paragraph per segment.
func (d *Document) Paragraphs() []string {
	out := []string{
		Title,
		fmt.Sprintf("Date: %s", d.meta.CreatedAt.Format("02/01/2006 15:04")),
		fmt.Sprintf("Source file: %s", d.meta.SourceName),
		"",
	}
	for _, seg := range d.segments {
		out = append(out, seg.Text)
	}
	return out
}
