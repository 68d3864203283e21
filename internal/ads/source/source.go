// Package source reads raw ad records from the line-oriented JSON feed: an
// optional "[" line, one JSON object per line (a trailing comma is allowed),
// and an optional "]" line. Blank lines are ignored. A line that does not
// decode is reported as an *ads.RecordError and reading can continue.
package source

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/Adithya-Monish-Kumar-K/ads-search-engine/internal/ads"
)

// maxLineSize bounds a single record line.
const maxLineSize = 4 << 20

// Lines is an ads.RecordSource over an io.Reader.
type Lines struct {
	scanner  *bufio.Scanner
	closer   io.Closer
	position int
	line     int
}

var _ ads.RecordSource = (*Lines)(nil)

// NewLines reads records from r. If r is an io.Closer it is closed by Close.
func NewLines(r io.Reader) *Lines {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	l := &Lines{scanner: scanner}
	if c, ok := r.(io.Closer); ok {
		l.closer = c
	}
	return l
}

// OpenFile opens path as a record source.
func OpenFile(path string) (*Lines, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening ads file %s: %w", path, err)
	}
	return NewLines(f), nil
}

// Next returns the next record. Positions count records, not lines, and
// start at 0.
func (l *Lines) Next(ctx context.Context) (ads.RawRecord, error) {
	for l.scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		l.line++
		line := bytes.TrimSpace(l.scanner.Bytes())
		if len(line) == 0 || isBracket(line) {
			continue
		}
		line = bytes.TrimSuffix(line, []byte(","))

		position := l.position
		l.position++

		var rec ads.RawRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, &ads.RecordError{
				Position: position,
				Err:      fmt.Errorf("line %d: %w", l.line, err),
			}
		}
		if rec == nil {
			return nil, &ads.RecordError{
				Position: position,
				Err:      fmt.Errorf("line %d: not a JSON object", l.line),
			}
		}
		return rec, nil
	}
	if err := l.scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading ads source at line %d: %w", l.line+1, err)
	}
	return nil, io.EOF
}

// Position returns the number of records handed out so far.
func (l *Lines) Position() int {
	return l.position
}

func (l *Lines) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

func isBracket(line []byte) bool {
	return len(line) == 1 && (line[0] == '[' || line[0] == ']')
}

// Slice is an in-memory ads.RecordSource, handy for tests and for callers
// that already hold decoded records.
type Slice struct {
	records []ads.RawRecord
	next    int
}

var _ ads.RecordSource = (*Slice)(nil)

// FromSlice wraps records.
func FromSlice(records []ads.RawRecord) *Slice {
	return &Slice{records: records}
}

func (s *Slice) Next(ctx context.Context) (ads.RawRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.next >= len(s.records) {
		return nil, io.EOF
	}
	rec := s.records[s.next]
	s.next++
	return rec, nil
}

func (s *Slice) Close() error { return nil }
