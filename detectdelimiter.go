package ldannot

import (
	"bufio"
	"bytes"
	"io"
	"strings"

	"github.com/csimplestring/go-csv/detector"
)

const sniffBytes = 16 * 1024

// DetermineDelimiter returns the single most likely rune that would delimit the
// values in the reader, assuming a CSV-like file. The reader is not advanced.
// Whitespace-aligned files with no better candidate come back as ' '.
func DetermineDelimiter(r *bufio.Reader) rune {
	sample, err := r.Peek(sniffBytes)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return '\t'
	}

	// Only the first line matters for a header-bearing table, and a single
	// line keeps the detector from being confused by long numeric rows.
	if i := bytes.IndexByte(sample, '\n'); i >= 0 {
		sample = sample[:i+1]
	}

	if bytes.IndexByte(sample, '\t') >= 0 {
		return '\t'
	}

	d := detector.New()
	delimiters := d.DetectDelimiter(bytes.NewReader(sample), '"')

	// Column names may contain punctuation such as _ or ., so only
	// conventional separators are believed.
	for _, candidate := range delimiters {
		if len(candidate) == 1 && strings.ContainsAny(candidate, ",;|") {
			return rune(candidate[0])
		}
	}

	return ' '
}
