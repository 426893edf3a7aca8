package state

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// scanResult is one line of a checkpoint file, parsed or not.
type scanResult struct {
	Line   int
	Record Record
	Blank  bool
	Err    error
}

// recordScanner reads checkpoint lines lazily, one at a time.
type recordScanner struct {
	r    *bufio.Reader
	line int
	cur  scanResult
	err  error
}

func newRecordScanner(r io.Reader) *recordScanner {
	return &recordScanner{r: bufio.NewReaderSize(r, 4096)}
}

// Next advances to the next line. It returns false at end of input or on a
// read error; Err distinguishes the two.
func (s *recordScanner) Next() bool {
	if s.err != nil {
		return false
	}
	text, tooLong, err := s.readLine()
	if err != nil {
		if !errors.Is(err, io.EOF) {
			s.err = err
		}
		return false
	}

	s.line++
	s.cur = scanResult{Line: s.line}
	switch {
	case tooLong:
		s.cur.Err = fmt.Errorf("line exceeds %d bytes", maxLineLength)
	case strings.TrimSpace(text) == "":
		s.cur.Blank = true
	default:
		s.cur.Record, s.cur.Err = ParseRecord(text)
	}
	return true
}

// Result returns the line produced by the last call to Next.
func (s *recordScanner) Result() scanResult {
	return s.cur
}

// Err returns the first non-EOF read error.
func (s *recordScanner) Err() error {
	return s.err
}

// readLine returns the next line without its terminator. Lines longer than
// maxLineLength are consumed entirely and flagged.
func (s *recordScanner) readLine() (string, bool, error) {
	var b strings.Builder
	tooLong := false
	for {
		chunk, isPrefix, err := s.r.ReadLine()
		if err != nil {
			return b.String(), tooLong, err
		}
		if !tooLong {
			b.Write(chunk)
			if b.Len() > maxLineLength {
				tooLong = true
			}
		}
		if !isPrefix {
			return b.String(), tooLong, nil
		}
	}
}
