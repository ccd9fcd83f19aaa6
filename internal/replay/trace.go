// Package replay feeds recorded classifier output through a confirmer
// offline, for tuning and regression tests.
package replay

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// noSignalClass marks a frame without usable input.
const noSignalClass = "-"

// Frame is one recorded classifier result.
type Frame struct {
	Line       int
	Class      string
	Confidence float64
	Hands      int
	NoSignal   bool
}

// ParseTrace reads CSV rows of class,confidence,hands. Lines starting with
// '#' are comments and a leading "class,..." header row is skipped. A class
// of "-", or an empty class with zero hands, is a no-signal frame.
func ParseTrace(r io.Reader) ([]Frame, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.FieldsPerRecord = 3
	cr.TrimLeadingSpace = true

	var frames []Frame
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read trace: %w", err)
		}
		line, _ := cr.FieldPos(0)

		if len(frames) == 0 && strings.EqualFold(strings.TrimSpace(record[0]), "class") {
			continue
		}

		f, err := parseFrame(record)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		f.Line = line
		frames = append(frames, f)
	}

	return frames, nil
}

func parseFrame(record []string) (Frame, error) {
	class := strings.TrimSpace(record[0])
	conf := strings.TrimSpace(record[1])
	hands := strings.TrimSpace(record[2])

	var f Frame
	if hands != "" {
		n, err := strconv.Atoi(hands)
		if err != nil || n < 0 {
			return Frame{}, fmt.Errorf("invalid hand count %q", hands)
		}
		f.Hands = n
	}

	if class == noSignalClass || (class == "" && f.Hands == 0) {
		f.NoSignal = true
		return f, nil
	}
	if class == "" {
		return Frame{}, errors.New("missing class")
	}
	f.Class = class

	c, err := strconv.ParseFloat(conf, 64)
	if err != nil {
		return Frame{}, fmt.Errorf("invalid confidence %q", conf)
	}
	f.Confidence = c
	return f, nil
}
