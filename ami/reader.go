package ami

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/c360/callstreams/errors"
)

const (
	// maxLineBytes bounds a single field line to guard against a peer that
	// never sends a terminator.
	maxLineBytes = 64 * 1024

	// maxFrameFields bounds the number of fields in one frame.
	maxFrameFields = 2048
)

// FrameReader reassembles blank-line-delimited frames from a byte stream.
// The stream is treated as opaque chunks: a frame may arrive split across
// many reads or packed together with others, and the reader produces the
// same frames either way. Lines may be terminated by CRLF or bare LF.
type FrameReader struct {
	br *bufio.Reader
}

// NewFrameReader wraps r for frame reassembly.
func NewFrameReader(r io.Reader) *FrameReader {
	return &FrameReader{br: bufio.NewReaderSize(r, 32*1024)}
}

// ReadLine reads one line, stripping the trailing CRLF or LF. Used for the
// protocol banner, which is a single line outside any frame.
func (r *FrameReader) ReadLine() (string, error) {
	line, err := r.readLimitedLine()
	if err != nil {
		return "", err
	}
	return line, nil
}

// Next blocks until a complete frame is available and returns it. Leading
// blank lines between frames are skipped. Lines without a colon are kept as
// fields with an empty key so malformed frames survive for classification.
// Returns io.EOF (possibly wrapped) when the stream ends cleanly between
// frames.
func (r *FrameReader) Next() (*Frame, error) {
	frame := NewFrame()

	for {
		line, err := r.readLimitedLine()
		if err != nil {
			if err == io.EOF && frame.Len() > 0 {
				// Stream ended mid-frame
				return nil, errors.WrapInvalid(
					fmt.Errorf("stream ended with %d fields buffered", frame.Len()),
					"FrameReader", "Next", "incomplete frame")
			}
			return nil, err
		}

		if line == "" {
			if frame.Len() == 0 {
				// Stray terminator between frames
				continue
			}
			return frame, nil
		}

		if frame.Len() >= maxFrameFields {
			return nil, errors.WrapInvalid(
				fmt.Errorf("frame exceeds %d fields", maxFrameFields),
				"FrameReader", "Next", "frame size limit")
		}

		key, value, found := strings.Cut(line, ":")
		if !found {
			// No colon: keep the raw line so the frame classifies as unknown
			// instead of silently losing data.
			frame.Add("", line)
			continue
		}
		frame.Add(strings.TrimSpace(key), strings.TrimSpace(value))
	}
}

// readLimitedLine reads one LF-terminated line with a size cap, stripping
// the terminator and any trailing CR.
func (r *FrameReader) readLimitedLine() (string, error) {
	var line []byte
	for {
		chunk, isPrefix, err := r.br.ReadLine()
		if err != nil {
			return "", err
		}
		line = append(line, chunk...)
		if len(line) > maxLineBytes {
			return "", errors.WrapInvalid(
				fmt.Errorf("line exceeds %d bytes", maxLineBytes),
				"FrameReader", "readLimitedLine", "line size limit")
		}
		if !isPrefix {
			return string(line), nil
		}
	}
}
