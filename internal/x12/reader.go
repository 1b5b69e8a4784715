package x12

import (
	"bytes"
	"fmt"
	"io"
	"iter"
	"strings"
)

// DefaultScanLimit bounds how far into the buffer delimiter detection looks.
// It comfortably spans an ISA/GS/ST header.
const DefaultScanLimit = 4096

// isaLength is the nominal width of an ISA segment including its terminator.
const isaLength = 106

// isaElements is the number of data elements in an ISA segment.
const isaElements = 16

// Segment is one X12 record: a tag such as "CLP" and its elements.
// Elements[0] is the first element after the tag (CLP01).
type Segment struct {
	Tag      string
	Elements []string
	Index    int // 0-based position in the file
}

// Element returns the 1-based element n (CLP01 is Element(1)), or "".
func (s Segment) Element(n int) string {
	if n < 1 || n > len(s.Elements) {
		return ""
	}
	return s.Elements[n-1]
}

// Delimiters are the separators detected for a file.
type Delimiters struct {
	Element   byte
	Component byte
	Segment   byte
}

// FormatError means no envelope could be recognized; nothing in the buffer
// can be trusted as segments.
type FormatError struct {
	Reason string
}

func (e *FormatError) Error() string {
	return "x12: " + e.Reason
}

func errUnrecognized(detail string) error {
	return &FormatError{Reason: "unrecognized envelope: " + detail}
}

// Option configures a Reader.
type Option func(*Reader)

// WithScanLimit sets how many leading bytes delimiter detection may inspect.
func WithScanLimit(n int) Option {
	return func(r *Reader) {
		if n > 0 {
			r.scanLimit = n
		}
	}
}

// Reader is a single forward pass over an X12 buffer. It is not restartable.
type Reader struct {
	data      []byte
	pos       int
	index     int
	delims    Delimiters
	scanLimit int
}

// NewReader detects delimiters and returns a Reader positioned at the first
// segment. It returns a *FormatError when the envelope is not recognizable.
func NewReader(data []byte, opts ...Option) (*Reader, error) {
	r := &Reader{scanLimit: DefaultScanLimit}
	for _, o := range opts {
		o(r)
	}

	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	start := skipSpace(data, 0)
	if start >= len(data) {
		return nil, errUnrecognized("empty input")
	}
	r.data = data
	r.pos = start

	d, err := detect(data[start:], r.scanLimit)
	if err != nil {
		return nil, err
	}
	r.delims = d
	return r, nil
}

// Delimiters returns the detected separators.
func (r *Reader) Delimiters() Delimiters {
	return r.delims
}

// Next returns the next non-empty segment, or io.EOF.
func (r *Reader) Next() (Segment, error) {
	for r.pos < len(r.data) {
		end := bytes.IndexByte(r.data[r.pos:], r.delims.Segment)
		var raw []byte
		if end < 0 {
			raw = r.data[r.pos:]
			r.pos = len(r.data)
		} else {
			raw = r.data[r.pos : r.pos+end]
			r.pos += end + 1
		}

		line := strings.TrimSpace(string(raw))
		if line == "" {
			continue
		}
		seg := r.split(line)
		seg.Index = r.index
		r.index++
		return seg, nil
	}
	return Segment{}, io.EOF
}

// All yields every remaining segment. Iteration stops at the end of the buffer.
func (r *Reader) All() iter.Seq[Segment] {
	return func(yield func(Segment) bool) {
		for {
			seg, err := r.Next()
			if err != nil {
				return
			}
			if !yield(seg) {
				return
			}
		}
	}
}

func (r *Reader) split(line string) Segment {
	parts := strings.Split(line, string(r.delims.Element))
	seg := Segment{Tag: strings.ToUpper(strings.TrimSpace(parts[0]))}
	if len(parts) > 1 {
		seg.Elements = parts[1:]
	}
	return seg
}

// Components splits a composite element using the detected component separator.
func (r *Reader) Components(element string) []string {
	return SplitComposite(element, r.delims.Component)
}

// SplitComposite splits a composite element such as "HC:99490:25". When sep
// is zero the common separators ':' '>' '^' are tried in that order.
func SplitComposite(element string, sep byte) []string {
	if element == "" {
		return nil
	}
	if sep == 0 {
		for _, c := range []byte{':', '>', '^'} {
			if strings.IndexByte(element, c) >= 0 {
				sep = c
				break
			}
		}
	}
	if sep == 0 {
		return []string{element}
	}
	return strings.Split(element, string(sep))
}

func detect(data []byte, limit int) (Delimiters, error) {
	if d, ok := detectISA(data); ok {
		return d, nil
	}
	return detectHeuristic(data, limit)
}

// detectISA reads the separators from an ISA header by position: the
// component separator follows the sixteenth element separator and the
// segment terminator follows it. Padding errors in ISA06/ISA08 shift the
// header width, so offsets are not trusted. The next segment must be GS.
func detectISA(data []byte) (Delimiters, bool) {
	if len(data) < 4 || !bytes.HasPrefix(data, []byte("ISA")) {
		return Delimiters{}, false
	}
	elem := data[3]
	if !isDelimiter(elem) || elem == ' ' {
		return Delimiters{}, false
	}

	seen, i := 0, 3
	for ; i < len(data) && seen < isaElements; i++ {
		if data[i] == elem {
			seen++
		}
	}
	if seen < isaElements || i+1 >= len(data) {
		return Delimiters{}, false
	}
	d := Delimiters{Element: elem, Component: data[i], Segment: data[i+1]}
	if !isDelimiter(d.Segment) || d.Segment == d.Element || d.Segment == d.Component || d.Component == d.Element {
		return Delimiters{}, false
	}

	next := skipSpace(data, i+2)
	if next < len(data) && !bytes.HasPrefix(data[next:], []byte{'G', 'S', elem}) {
		return Delimiters{}, false
	}
	return d, true
}

// detectHeuristic handles files without a well-formed ISA header: the
// element separator is whatever follows the leading 2-3 character tag, and
// the segment terminator is the earliest candidate seen within limit bytes.
func detectHeuristic(data []byte, limit int) (Delimiters, error) {
	if limit > len(data) {
		limit = len(data)
	}
	head := data[:limit]

	tagLen := 0
	for tagLen < len(head) && isAlnum(head[tagLen]) {
		tagLen++
	}
	if tagLen < 2 || tagLen > 3 || tagLen >= len(head) {
		return Delimiters{}, errUnrecognized("no leading segment tag")
	}
	elem := head[tagLen]
	if !isDelimiter(elem) || elem == ' ' {
		return Delimiters{}, errUnrecognized(fmt.Sprintf("unexpected element separator %q", elem))
	}

	best, bestPos := byte(0), -1
	for _, cand := range []byte{'~', '\'', '\n'} {
		if cand == elem {
			continue
		}
		if i := bytes.IndexByte(head, cand); i >= 0 && (bestPos < 0 || i < bestPos) {
			best, bestPos = cand, i
		}
	}
	if bestPos < 0 {
		return Delimiters{}, errUnrecognized(fmt.Sprintf("no segment terminator in first %d bytes", limit))
	}
	return Delimiters{Element: elem, Segment: best}, nil
}

func isAlnum(b byte) bool {
	return (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z') || (b >= '0' && b <= '9')
}

func isDelimiter(b byte) bool {
	return !isAlnum(b) && b != '\r'
}

func skipSpace(data []byte, i int) int {
	for i < len(data) && (data[i] == ' ' || data[i] == '\t' || data[i] == '\r' || data[i] == '\n') {
		i++
	}
	return i
}
