package sidecar

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	// ErrMalformedRecord marks a sidecar line that failed field-count, parse
	// or range checks. Parsers drop such lines; it is never returned to callers
	// of the read functions.
	ErrMalformedRecord = errors.New("malformed sidecar record")

	// ErrInvalidLabel is returned when a label handed in for saving would not
	// survive a round trip through the parser.
	ErrInvalidLabel = errors.New("invalid label")
)

// Label is one normalized bounding box: class, center and size, all
// coordinates relative to the image dimensions.
type Label struct {
	ClassID int     `json:"classId"`
	CX      float64 `json:"cx"`
	CY      float64 `json:"cy"`
	W       float64 `json:"w"`
	H       float64 `json:"h"`
}

// Detection is a model-produced box with its confidence.
type Detection struct {
	Label
	Conf float64 `json:"conf"`
}

// Validate reports whether l satisfies the record constraints: a
// non-negative class, coordinates in [0,1] and a non-zero width and height.
func (l Label) Validate() error {
	if l.ClassID < 0 {
		return fmt.Errorf("%w: negative class id %d", ErrInvalidLabel, l.ClassID)
	}
	for _, f := range []struct {
		name string
		v    float64
	}{{"cx", l.CX}, {"cy", l.CY}, {"w", l.W}, {"h", l.H}} {
		if !unit(f.v) {
			return fmt.Errorf("%w: %s=%v outside [0,1]", ErrInvalidLabel, f.name, f.v)
		}
	}
	if l.W <= 0 || l.H <= 0 {
		return fmt.Errorf("%w: zero-sized box %vx%v", ErrInvalidLabel, l.W, l.H)
	}
	return nil
}

func unit(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 1
}

// parseLabelFields parses the five leading label fields.
func parseLabelFields(fields []string) (Label, error) {
	classID, err := strconv.Atoi(fields[0])
	if err != nil {
		return Label{}, fmt.Errorf("%w: class id %q", ErrMalformedRecord, fields[0])
	}

	var coords [4]float64
	for i := range coords {
		v, err := strconv.ParseFloat(fields[i+1], 64)
		if err != nil {
			return Label{}, fmt.Errorf("%w: field %d %q", ErrMalformedRecord, i+1, fields[i+1])
		}
		coords[i] = v
	}

	l := Label{ClassID: classID, CX: coords[0], CY: coords[1], W: coords[2], H: coords[3]}
	if err := l.Validate(); err != nil {
		return Label{}, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	return l, nil
}

// ParseLabelLine parses "<class> <cx> <cy> <w> <h>". Any deviation returns an
// error wrapping ErrMalformedRecord.
func ParseLabelLine(line string) (Label, error) {
	fields := strings.Fields(line)
	if len(fields) != 5 {
		return Label{}, fmt.Errorf("%w: %d fields, want 5", ErrMalformedRecord, len(fields))
	}
	return parseLabelFields(fields)
}

// ParseDetectionLine parses "<class> <cx> <cy> <w> <h> <conf>" with conf in [0,1].
func ParseDetectionLine(line string) (Detection, error) {
	fields := strings.Fields(line)
	if len(fields) != 6 {
		return Detection{}, fmt.Errorf("%w: %d fields, want 6", ErrMalformedRecord, len(fields))
	}
	l, err := parseLabelFields(fields[:5])
	if err != nil {
		return Detection{}, err
	}
	conf, err := strconv.ParseFloat(fields[5], 64)
	if err != nil || !unit(conf) {
		return Detection{}, fmt.Errorf("%w: confidence %q", ErrMalformedRecord, fields[5])
	}
	return Detection{Label: l, Conf: conf}, nil
}

// parseLines applies parse to every non-blank line and keeps the successes.
// It returns the number of lines dropped.
func parseLines[T any](data []byte, parse func(string) (T, error)) ([]T, int) {
	out := []T{}
	dropped := 0

	for _, raw := range bytes.Split(data, []byte("\n")) {
		line := strings.TrimSpace(string(raw))
		if line == "" {
			continue
		}
		rec, err := parse(line)
		if err != nil {
			dropped++
			continue
		}
		out = append(out, rec)
	}
	return out, dropped
}

// ParseLabels parses a label sidecar, silently dropping malformed lines.
func ParseLabels(data []byte) (labels []Label, dropped int) {
	return parseLines(data, ParseLabelLine)
}

// ParseDetections parses a detection sidecar, silently dropping malformed lines.
func ParseDetections(data []byte) (detections []Detection, dropped int) {
	return parseLines(data, ParseDetectionLine)
}

// FormatLabel renders one label record with six fixed decimals.
func FormatLabel(l Label) string {
	return fmt.Sprintf("%d %.6f %.6f %.6f %.6f", l.ClassID, l.CX, l.CY, l.W, l.H)
}

// FormatLabels renders labels one per line, joined by "\n" with no header and
// no trailing newline.
func FormatLabels(labels []Label) []byte {
	lines := make([]string, len(labels))
	for i, l := range labels {
		lines[i] = FormatLabel(l)
	}
	return []byte(strings.Join(lines, "\n"))
}
