// Package ldblocks reads the genome partition into approximately independent
// LD blocks, removes excluded regions such as the MHC, and writes the summary
// of the partition that was actually used.
package ldblocks

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/carbocation/ldannot"
	"github.com/carbocation/pfx"
)

// Map columns in the LD block BED file to their positions
const (
	ColChromosome = iota
	ColStart
	ColEnd
)

// Block is one interval of the partition. Start and End are NaN when the
// file left them blank or unparseable. SNPs belong to the block when
// Start <= position < End.
type Block struct {
	// Index is the 0-based row of the block in the partition file. It
	// survives exclusion and is used to name per-block outputs.
	Index      int
	Chromosome string
	Start      float64
	End        float64
}

func (b Block) String() string {
	return fmt.Sprintf("%d(%s:%v-%v)", b.Index, b.Chromosome, b.Start, b.End)
}

// Contains reports whether a base-pair position lies within the block.
func (b Block) Contains(position uint32) bool {
	p := float64(position)
	return p >= b.Start && p < b.End
}

// Load reads a whitespace-delimited, headerless chr/start/end file from a
// local or gs:// path.
func Load(ctx context.Context, path string, client *storage.Client) ([]Block, error) {
	f, err := ldannot.Open(ctx, path, client)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	blocks, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return blocks, nil
}

// Read parses the LD block partition.
func Read(r io.Reader) ([]Block, error) {
	out := make([]Block, 0)

	scanner := bufio.NewScanner(r)
	for line := 1; scanner.Scan(); line++ {
		cols := strings.Fields(scanner.Text())
		if len(cols) == 0 {
			continue
		}

		b := Block{
			Index:      len(out),
			Chromosome: cols[ColChromosome],
			Start:      parseBound(cols, ColStart),
			End:        parseBound(cols, ColEnd),
		}

		// A header line is tolerated only in the first position
		if line == 1 && math.IsNaN(b.Start) && math.IsNaN(b.End) && len(cols) > ColEnd {
			continue
		}

		out = append(out, b)
	}
	if err := scanner.Err(); err != nil {
		return nil, pfx.Err(err)
	}

	return out, nil
}

func parseBound(cols []string, col int) float64 {
	if len(cols) <= col {
		return math.NaN()
	}

	v, err := strconv.ParseFloat(cols[col], 64)
	if err != nil {
		return math.NaN()
	}

	return v
}

// OnChromosome returns the blocks on chr, in file order.
func OnChromosome(blocks []Block, chr string) []Block {
	out := make([]Block, 0)
	for _, b := range blocks {
		if ldannot.SameChromosome(b.Chromosome, chr) {
			out = append(out, b)
		}
	}

	return out
}
