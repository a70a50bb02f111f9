package decode

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// TestReadWAVHeaderSkipsUnknownChunks checks that metadata chunks
// between fmt and data are skipped and the format is still parsed.
func TestReadWAVHeaderSkipsUnknownChunks(t *testing.T) {
	var buf bytes.Buffer

	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(0))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1))
	binary.Write(&buf, binary.LittleEndian, uint16(1))
	binary.Write(&buf, binary.LittleEndian, uint32(16000))
	binary.Write(&buf, binary.LittleEndian, uint32(32000))
	binary.Write(&buf, binary.LittleEndian, uint16(2))
	binary.Write(&buf, binary.LittleEndian, uint16(16))

	buf.WriteString("LIST")
	binary.Write(&buf, binary.LittleEndian, uint32(4))
	buf.WriteString("INFO")

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(8))
	buf.Write(make([]byte, 8))

	format, err := readWAVHeader(&buf)
	if err != nil {
		t.Fatalf("readWAVHeader returned error: %v", err)
	}
	if format.channels != 1 {
		t.Fatalf("channels = %d, want 1", format.channels)
	}
	if format.sampleRate != 16000 {
		t.Fatalf("sample rate = %d, want 16000", format.sampleRate)
	}
	if format.bitsPerSample != 16 {
		t.Fatalf("bits per sample = %d, want 16", format.bitsPerSample)
	}
	if format.dataLen != 8 {
		t.Fatalf("data length = %d, want 8", format.dataLen)
	}
}

// TestReadWAVHeaderRejectsNonPCMFormat checks the format code guard.
func TestReadWAVHeaderRejectsNonPCMFormat(t *testing.T) {
	var buf bytes.Buffer

	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(0))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(3))
	binary.Write(&buf, binary.LittleEndian, uint16(1))
	binary.Write(&buf, binary.LittleEndian, uint32(16000))
	binary.Write(&buf, binary.LittleEndian, uint32(64000))
	binary.Write(&buf, binary.LittleEndian, uint16(4))
	binary.Write(&buf, binary.LittleEndian, uint16(32))

	if _, err := readWAVHeader(&buf); err == nil {
		t.Fatal("expected an error for a non-PCM format code")
	}
}
