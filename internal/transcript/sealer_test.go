package transcript

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"video-transcriber/internal/domain"
)

func fixedClock() time.Time {
	return time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
}

// TestDocumentParagraphsIncludeHeaderAndSegments checks the serialized
// body layout: title, date, source line, separator, then segments.
func TestDocumentParagraphsIncludeHeaderAndSegments(t *testing.T) {
	doc := NewDocument(Metadata{SourceName: "meeting.mp4", CreatedAt: fixedClock()})
	doc.Append(domain.Segment{Seq: 1, Text: "hello world"})
	doc.Append(domain.Segment{Seq: 2, Text: "goodbye"})

	got := doc.Paragraphs()
	want := []string{
		"Video Transcription",
		"Date: 14/03/2026 09:26",
		"Source file: meeting.mp4",
		"",
		"hello world",
		"goodbye",
	}
	if len(got) != len(want) {
		t.Fatalf("paragraph count = %d, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("paragraph %d = %q, want %q", i, got[i], want[i])
		}
	}
}

// TestDocumentWithoutSegmentsKeepsHeader checks that an empty run
// still yields the header paragraphs.
func TestDocumentWithoutSegmentsKeepsHeader(t *testing.T) {
	doc := NewDocument(Metadata{SourceName: "silent.mkv", CreatedAt: fixedClock()})

	got := doc.Paragraphs()
	if len(got) != 4 {
		t.Fatalf("paragraph count = %d, want 4: %v", len(got), got)
	}
}

// TestSealWritesDeterministicArtifactName checks the artifact naming
// scheme with an injected clock and token.
func TestSealWritesDeterministicArtifactName(t *testing.T) {
	outputDir := t.TempDir()
	sealer := NewSealerForTests(outputDir, fixedClock, func() string { return "ab12cd34" })

	doc := NewDocument(Metadata{SourceName: "meeting.mp4", CreatedAt: fixedClock()})
	doc.Append(domain.Segment{Seq: 1, Text: "hello world"})

	path, err := sealer.Seal(doc)
	if err != nil {
		t.Fatalf("Seal returned error: %v", err)
	}

	wantName := "transcript_20260314_092653_ab12cd34.docx"
	if filepath.Base(path) != wantName {
		t.Fatalf("artifact name = %q, want %q", filepath.Base(path), wantName)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat artifact: %v", err)
	}
	if info.Size() == 0 {
		t.Fatal("artifact is empty")
	}
}

// TestSealTwiceProducesIndependentArtifacts checks that re-sealing the
// same document yields a second, distinct artifact.
func TestSealTwiceProducesIndependentArtifacts(t *testing.T) {
	outputDir := t.TempDir()
	tokens := []string{"first111", "second22"}
	call := 0
	sealer := NewSealerForTests(outputDir, fixedClock, func() string {
		token := tokens[call]
		call++
		return token
	})

	doc := NewDocument(Metadata{SourceName: "meeting.mp4", CreatedAt: fixedClock()})
	doc.Append(domain.Segment{Seq: 1, Text: "hello"})

	first, err := sealer.Seal(doc)
	if err != nil {
		t.Fatalf("first Seal returned error: %v", err)
	}
	second, err := sealer.Seal(doc)
	if err != nil {
		t.Fatalf("second Seal returned error: %v", err)
	}
	if first == second {
		t.Fatalf("both seals produced %q", first)
	}
	for _, path := range []string{first, second} {
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("stat %s: %v", path, err)
		}
	}
}

// TestSealUnwritableDirLeavesNoArtifact checks the serialization error
// when the output area cannot be created.
func TestSealUnwritableDirLeavesNoArtifact(t *testing.T) {
	blocked := filepath.Join(t.TempDir(), "blocked")
	if err := os.WriteFile(blocked, []byte("file, not a directory"), 0o644); err != nil {
		t.Fatalf("write blocker: %v", err)
	}

	sealer := NewSealerForTests(filepath.Join(blocked, "out"), fixedClock, func() string { return "tok" })
	doc := NewDocument(Metadata{SourceName: "meeting.mp4", CreatedAt: fixedClock()})

	_, err := sealer.Seal(doc)

	var sealErr *Error
	if !errors.As(err, &sealErr) {
		t.Fatalf("error type = %T, want *Error", err)
	}
	if sealErr.Reason != ReasonSerialization {
		t.Fatalf("reason = %q, want %q", sealErr.Reason, ReasonSerialization)
	}
}

// TestSegmentsReturnsCopy checks that mutating the returned slice does
// not affect the document.
func TestSegmentsReturnsCopy(t *testing.T) {
	doc := NewDocument(Metadata{SourceName: "meeting.mp4", CreatedAt: fixedClock()})
	doc.Append(domain.Segment{Seq: 1, Text: "original"})

	segments := doc.Segments()
	segments[0].Text = "mutated"

	if doc.Segments()[0].Text != "original" {
		t.Fatal("document segments were mutated through the returned slice")
	}
}
