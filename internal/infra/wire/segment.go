// Package wire encodes planned messages into the legacy system's fixed-width records
// and decodes the receipts it sends back.
package wire

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

type Justify int

const (
	Left Justify = iota
	Right
)

// Rest marks a trailing field that takes whatever is left of a received record.
const Rest = -1

// Field describes one fixed-width field.
type Field struct {
	Name    string
	Width   int
	Justify Justify
	Fill    rune // defaults to space
	Default string
}

// Segment is an ordered set of fields with a declared total width.
type Segment struct {
	Name   string
	Width  int
	Fields []Field
}

// EncodingError is a contract violation: a value or a table does not fit its declared width.
// It is never retried.
type EncodingError struct {
	Segment string
	Field   string
	Want    int
	Got     int
}

func (e *EncodingError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("segment %s: length %d, want %d", e.Segment, e.Got, e.Want)
	}
	return fmt.Sprintf("segment %s field %s: length %d exceeds width %d", e.Segment, e.Field, e.Got, e.Want)
}

func (e *EncodingError) Fatal() bool { return true }

// ParseError means a received record could not be decoded.
type ParseError struct {
	Segment string
	Reason  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %s", e.Segment, e.Reason)
}

// Encode renders the segment with the given values, falling back to field defaults.
func (s Segment) Encode(values map[string]string) (string, error) {
	var b strings.Builder
	for _, f := range s.Fields {
		if f.Width == Rest {
			b.WriteString(valueOr(values, f))
			continue
		}
		v := valueOr(values, f)
		n := utf8.RuneCountInString(v)
		if n > f.Width {
			return "", &EncodingError{Segment: s.Name, Field: f.Name, Want: f.Width, Got: n}
		}
		pad := strings.Repeat(string(fill(f)), f.Width-n)
		if f.Justify == Right {
			b.WriteString(pad)
			b.WriteString(v)
		} else {
			b.WriteString(v)
			b.WriteString(pad)
		}
	}
	out := b.String()
	if s.Width != Rest {
		if n := utf8.RuneCountInString(out); n != s.Width {
			return "", &EncodingError{Segment: s.Name, Want: s.Width, Got: n}
		}
	}
	return out, nil
}

// Decode slices a record into raw field values. Padding is kept.
func (s Segment) Decode(record string) (map[string]string, error) {
	runes := []rune(record)
	out := make(map[string]string, len(s.Fields))
	pos := 0
	for _, f := range s.Fields {
		if f.Width == Rest {
			out[f.Name] = string(runes[pos:])
			pos = len(runes)
			continue
		}
		if pos+f.Width > len(runes) {
			return nil, &ParseError{Segment: s.Name, Reason: fmt.Sprintf("record too short for field %s (%d chars)", f.Name, len(runes))}
		}
		out[f.Name] = string(runes[pos : pos+f.Width])
		pos += f.Width
	}
	return out, nil
}

// fixedWidth sums the widths of all fields that are not Rest.
func (s Segment) fixedWidth() int {
	total := 0
	for _, f := range s.Fields {
		if f.Width != Rest {
			total += f.Width
		}
	}
	return total
}

func valueOr(values map[string]string, f Field) string {
	if v, ok := values[f.Name]; ok {
		return v
	}
	return f.Default
}

func fill(f Field) rune {
	if f.Fill == 0 {
		return ' '
	}
	return f.Fill
}
