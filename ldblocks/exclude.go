package ldblocks

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/biogo/store/interval"
	"github.com/carbocation/ldannot"
	"github.com/carbocation/pfx"
)

// Region is a span that no block may overlap.
type Region struct {
	Chromosome string
	Start      int
	End        int
}

// MHC is the hg19 major histocompatibility complex, whose long-range LD
// breaks the independence assumption between blocks.
var MHC = Region{Chromosome: "chr6", Start: 25684587, End: 35455756}

// ParseRegion reads chr:start-end.
func ParseRegion(s string) (Region, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return Region{}, fmt.Errorf("region %q is not of the form chr:start-end", s)
	}
	bounds := strings.SplitN(parts[1], "-", 2)
	if len(bounds) != 2 {
		return Region{}, fmt.Errorf("region %q is not of the form chr:start-end", s)
	}

	start, err := strconv.Atoi(bounds[0])
	if err != nil {
		return Region{}, pfx.Err(err)
	}
	end, err := strconv.Atoi(bounds[1])
	if err != nil {
		return Region{}, pfx.Err(err)
	}
	if end <= start {
		return Region{}, fmt.Errorf("region %q ends before it starts", s)
	}

	return Region{Chromosome: parts[0], Start: start, End: end}, nil
}

func (r Region) String() string {
	return fmt.Sprintf("%s:%d-%d", r.Chromosome, r.Start, r.End)
}

// regionInterval satisfies interval.IntInterface
type regionInterval struct {
	Region
	uid uintptr
}

func (i regionInterval) Overlap(b interval.IntRange) bool {
	return i.End > b.Start && i.Start < b.End
}

func (i regionInterval) ID() uintptr {
	return i.uid
}

func (i regionInterval) Range() interval.IntRange {
	return interval.IntRange{Start: i.Start, End: i.End}
}

// blockQuery satisfies interval.IntOverlapper. A block overlaps a region when
// block.end > region.start and block.start < region.end.
type blockQuery struct {
	start, end int
}

func (q blockQuery) Overlap(b interval.IntRange) bool {
	return q.end > b.Start && q.start < b.End
}

// Excluder answers whether a block touches any excluded region.
type Excluder struct {
	trees map[string]*interval.IntTree
}

// NewExcluder indexes the regions by chromosome.
func NewExcluder(regions ...Region) (*Excluder, error) {
	e := &Excluder{trees: make(map[string]*interval.IntTree)}

	for i, r := range regions {
		chr := ldannot.NormalizeChromosome(r.Chromosome)
		if _, exists := e.trees[chr]; !exists {
			e.trees[chr] = &interval.IntTree{}
		}
		if err := e.trees[chr].Insert(regionInterval{Region: r, uid: uintptr(i)}, false); err != nil {
			return nil, pfx.Err(fmt.Errorf("%s: %w", r, err))
		}
	}

	return e, nil
}

// Excluded reports whether b overlaps an excluded region. Blocks with an
// unknown bound cannot be placed and are kept, matching NaN comparison
// semantics.
func (e *Excluder) Excluded(b Block) bool {
	tree, exists := e.trees[ldannot.NormalizeChromosome(b.Chromosome)]
	if !exists || tree.Len() == 0 {
		return false
	}
	if math.IsNaN(b.Start) || math.IsNaN(b.End) {
		return false
	}

	return len(tree.Get(blockQuery{start: int(b.Start), end: int(b.End)})) > 0
}

// Exclude returns the blocks that do not overlap any region, keeping their
// original Index.
func Exclude(blocks []Block, regions ...Region) ([]Block, error) {
	e, err := NewExcluder(regions...)
	if err != nil {
		return nil, err
	}

	out := make([]Block, 0, len(blocks))
	for _, b := range blocks {
		if e.Excluded(b) {
			continue
		}
		out = append(out, b)
	}

	return out, nil
}
