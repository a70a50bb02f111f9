package decode

import (
	"encoding/binary"
	"fmt"
	"io"
)

// wavFormat describes the PCM payload declared by a WAV header.
type wavFormat struct {
	channels      int
	sampleRate    int
	bitsPerSample int
	dataLen       int64
}

// readWAVHeader parses RIFF/WAVE chunks up to and including the data
// chunk header, leaving the reader positioned at the first sample.
func readWAVHeader(r io.Reader) (wavFormat, error) {
	var riff [12]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil {
		return wavFormat{}, fmt.Errorf("read riff header: %w", err)
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return wavFormat{}, fmt.Errorf("not a RIFF/WAVE stream")
	}

	var format wavFormat
	sawFmt := false

	for {
		var chunk [8]byte
		if _, err := io.ReadFull(r, chunk[:]); err != nil {
			return wavFormat{}, fmt.Errorf("read chunk header: %w", err)
		}
		id := string(chunk[0:4])
		size := int64(binary.LittleEndian.Uint32(chunk[4:8]))

		switch id {
		case "fmt ":
			if size < 16 {
				return wavFormat{}, fmt.Errorf("fmt chunk too short: %d bytes", size)
			}
			var fmtBody [16]byte
			if _, err := io.ReadFull(r, fmtBody[:]); err != nil {
				return wavFormat{}, fmt.Errorf("read fmt chunk: %w", err)
			}
			audioFormat := binary.LittleEndian.Uint16(fmtBody[0:2])
			if audioFormat != 1 {
				return wavFormat{}, fmt.Errorf("unsupported audio format code: %d", audioFormat)
			}
			format.channels = int(binary.LittleEndian.Uint16(fmtBody[2:4]))
			format.sampleRate = int(binary.LittleEndian.Uint32(fmtBody[4:8]))
			format.bitsPerSample = int(binary.LittleEndian.Uint16(fmtBody[14:16]))
			sawFmt = true
			if rest := size - 16; rest > 0 {
				if err := skip(r, rest); err != nil {
					return wavFormat{}, err
				}
			}
		case "data":
			if !sawFmt {
				return wavFormat{}, fmt.Errorf("data chunk before fmt chunk")
			}
			format.dataLen = size
			return format, nil
		default:
			if err := skip(r, size); err != nil {
				return wavFormat{}, err
			}
		}
	}
}

// skip discards n bytes from the reader.
func skip(r io.Reader, n int64) error {
	if _, err := io.CopyN(io.Discard, r, n); err != nil {
		return fmt.Errorf("skip chunk payload: %w", err)
	}
	return nil
}
