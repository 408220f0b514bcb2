package ldannot

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/carbocation/pfx"
)

// BIM scans a PLINK .bim file one variant at a time.
type BIM struct {
	path    string
	file    io.ReadCloser
	scanner *bufio.Scanner
	line    int
	err     error
}

// OpenBIM opens a local, gs:// or compressed .bim file. client may be nil if
// the path is local.
func OpenBIM(ctx context.Context, path string, client *storage.Client) (*BIM, error) {
	bim := &BIM{
		path: path,
	}

	file, err := Open(ctx, path, client)
	if err != nil {
		return nil, err
	}
	bim.file = file
	bim.scanner = bufio.NewScanner(file)

	return bim, nil
}

// NewBIM wraps an already-open reader.
func NewBIM(r io.Reader) *BIM {
	return &BIM{
		path:    "<reader>",
		file:    io.NopCloser(r),
		scanner: bufio.NewScanner(r),
	}
}

func (b *BIM) Close() error {
	return b.file.Close()
}

func (b *BIM) Err() error {
	if b.err != nil {
		return b.err
	}

	return b.scanner.Err()
}

// Read returns the next row, or nil at the end of the file or on error. Check
// Err after a nil return.
func (b *BIM) Read() *BIMRow {
	for b.scanner.Scan() {
		b.line++

		cols := strings.Fields(b.scanner.Text())
		if len(cols) == 0 {
			continue
		}

		if len(cols) < bimColumns {
			b.err = pfx.Err(fmt.Errorf("%s line %d: expected %d columns, saw %d", b.path, b.line, bimColumns, len(cols)))
			return nil
		}

		row := &BIMRow{
			Chromosome: cols[bimChromosome],
			VariantID:  cols[bimVariantID],
			Allele1:    cols[bimAllele1],
			Allele2:    cols[bimAllele2],
		}

		coord64, err := strconv.ParseUint(cols[bimCoordinate], 10, 32)
		if err != nil {
			b.err = pfx.Err(fmt.Errorf("%s line %d: %w", b.path, b.line, err))
			return nil
		}
		row.Coordinate = uint32(coord64)

		morgans, err := strconv.ParseFloat(cols[bimMorgans], 64)
		if err != nil {
			b.err = pfx.Err(fmt.Errorf("%s line %d: %w", b.path, b.line, err))
			return nil
		}
		row.Morgans = morgans

		return row
	}

	return nil
}

// ReadAll consumes the remainder of the file.
func (b *BIM) ReadAll() ([]BIMRow, error) {
	out := make([]BIMRow, 0)
	for v := b.Read(); v != nil; v = b.Read() {
		out = append(out, *v)
	}

	return out, b.Err()
}
