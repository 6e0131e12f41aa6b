package service

import (
	"bufio"
	"encoding/csv"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/m-mizutani/iocfeed"
	"github.com/m-mizutani/iocfeed/pkg/errors"
)

// HeaderPolicy decides how to treat the first row of feed file
type HeaderPolicy int

const (
	// HeaderSkip discards the first row unconditionally
	HeaderSkip HeaderPolicy = iota
	// HeaderNone treats all rows as data
	HeaderNone
)

// ParseHeaderPolicy converts "skip" or "none" to HeaderPolicy. Empty string is HeaderSkip.
func ParseHeaderPolicy(s string) (HeaderPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "skip":
		return HeaderSkip, nil
	case "none":
		return HeaderNone, nil
	default:
		return HeaderSkip, errors.New("Invalid header policy, must be skip or none").With("policy", s)
	}
}

// Extractor converts feed file content to candidates. Every cell is a candidate regardless of column.
type Extractor struct {
	header HeaderPolicy
}

func NewExtractor(header HeaderPolicy) *Extractor {
	return &Extractor{header: header}
}

// CandidateReader reads candidates lazily from CSV content
type CandidateReader struct {
	csv    *csv.Reader
	header HeaderPolicy
	row    []string
	rowNum int
	col    int
	err    error
	closed bool

	headerDone bool
}

// NewReader returns CandidateReader of r. Header is the first physical line even if it's blank,
// though csv.Reader skips blank lines.
func (x *Extractor) NewReader(r io.Reader) *CandidateReader {
	buffered := bufio.NewReader(r)
	cr := &CandidateReader{header: x.header}

	if x.header == HeaderSkip && skipBlankLine(buffered) {
		cr.rowNum = 1
		cr.headerDone = true
	}

	reader := csv.NewReader(buffered)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	cr.csv = reader

	return cr
}

// skipBlankLine consumes the first line of r if it's empty
func skipBlankLine(r *bufio.Reader) bool {
	head, _ := r.Peek(2)
	switch {
	case len(head) > 0 && head[0] == '\n':
		_, _ = r.Discard(1)
		return true
	case len(head) > 1 && head[0] == '\r' && head[1] == '\n':
		_, _ = r.Discard(2)
		return true
	}
	return false
}

// Read returns next candidate. It returns nil at end of content or on error; check Error() after nil.
// Empty cells are returned as candidates with empty Value.
func (x *CandidateReader) Read() *iocfeed.Candidate {
	for !x.closed {
		if x.col < len(x.row) {
			cell := x.row[x.col]
			x.col++

			if !utf8.ValidString(cell) {
				x.fail(errors.New("Invalid UTF-8 sequence in cell").With("row", x.rowNum).With("column", x.col))
				return nil
			}

			return &iocfeed.Candidate{
				Value:  strings.TrimSpace(cell),
				Row:    x.rowNum,
				Column: x.col,
			}
		}

		record, err := x.csv.Read()
		if err == io.EOF {
			x.closed = true
			return nil
		} else if err != nil {
			x.fail(errors.Wrap(err, "Failed to read CSV row").With("row", x.rowNum+1))
			return nil
		}

		x.rowNum++
		x.row, x.col = nil, 0
		if !x.headerDone {
			x.headerDone = true
			if x.header == HeaderSkip {
				continue
			}
			if len(record) > 0 {
				record[0] = strings.TrimPrefix(record[0], "\ufeff")
			}
		}
		x.row = record
	}

	return nil
}

func (x *CandidateReader) fail(err error) {
	x.err = err
	x.closed = true
}

// Error returns error that stopped Read
func (x *CandidateReader) Error() error {
	return x.err
}

// Rows returns number of rows read including header
func (x *CandidateReader) Rows() int {
	return x.rowNum
}
