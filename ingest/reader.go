// Package ingest decodes detection frames from JSON lines.
//
// Each line is either a bare list of boxes
//
//	[[x1,y1,x2,y2], ...]
//
// or an object with optional frame number
//
//	{"frame": 17, "boxes": [[x1,y1,x2,y2], ...]}
package ingest

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/pkg/errors"

	"github.com/LdDl/linecount-go/mot"
)

const maxLineSize = 1 << 20

// Frame is a single decoded line
type Frame struct {
	// Number from input or sequential number of decoded frames when input has none
	Number int64
	Boxes  []mot.Box
	// Boxes which are not four numbers
	Skipped int
}

// LineError describes undecodable line. Reader stays usable after it.
type LineError struct {
	Line int
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

// Cause returns underlying error
func (e *LineError) Cause() error {
	return e.Err
}

// Unwrap returns underlying error
func (e *LineError) Unwrap() error {
	return e.Err
}

// Reader reads frames line by line
type Reader struct {
	scanner *bufio.Scanner
	line    int
	decoded int64
}

// NewReader creates reader over r
func NewReader(r io.Reader) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &Reader{scanner: scanner}
}

// Next returns next frame. Blank lines are skipped. Returns io.EOF at the end of input
// and *LineError for malformed lines.
func (reader *Reader) Next() (Frame, error) {
	for reader.scanner.Scan() {
		reader.line++
		raw := bytes.TrimSpace(reader.scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		frame, err := decodeLine(raw)
		if err != nil {
			return Frame{}, &LineError{Line: reader.line, Err: err}
		}
		reader.decoded++
		if frame.Number == 0 {
			frame.Number = reader.decoded
		}
		return frame, nil
	}
	if err := reader.scanner.Err(); err != nil {
		return Frame{}, errors.Wrapf(err, "Can't read line %d", reader.line+1)
	}
	return Frame{}, io.EOF
}

type frameObject struct {
	Frame int64             `json:"frame"`
	Boxes []json.RawMessage `json:"boxes"`
}

func decodeLine(raw []byte) (Frame, error) {
	var frame Frame
	var boxes []json.RawMessage
	switch raw[0] {
	case '[':
		if err := json.Unmarshal(raw, &boxes); err != nil {
			return frame, errors.Wrap(err, "Bad box list")
		}
	case '{':
		var obj frameObject
		if err := json.Unmarshal(raw, &obj); err != nil {
			return frame, errors.Wrap(err, "Bad frame object")
		}
		if obj.Frame < 0 {
			return frame, errors.Errorf("negative frame number %d", obj.Frame)
		}
		frame.Number = obj.Frame
		boxes = obj.Boxes
	default:
		return frame, errors.Errorf("expected '[' or '{', got %q", raw[0])
	}
	frame.Boxes = make([]mot.Box, 0, len(boxes))
	for _, rawBox := range boxes {
		var coords []float64
		if err := json.Unmarshal(rawBox, &coords); err != nil || len(coords) != 4 {
			frame.Skipped++
			continue
		}
		frame.Boxes = append(frame.Boxes, mot.NewBox(coords[0], coords[1], coords[2], coords[3]))
	}
	return frame, nil
}
