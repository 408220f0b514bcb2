package refpanel

import (
	"context"
	"math"
	"sort"

	"github.com/carbocation/ldannot/ldblocks"
	"gonum.org/v1/gonum/mat"
)

// BlockData is one LD block of a chromosome together with the genotypes of
// the panel SNPs that fall within it.
type BlockData struct {
	Block ldblocks.Block

	// X is samples × len(Rows).
	X *mat.Dense

	// Rows are the panel rows of the block's SNPs, ascending.
	Rows []int
}

// BlockIterator walks the LD blocks of one chromosome, loading genotypes
// lazily. It makes a single pass and cannot be restarted.
type BlockIterator struct {
	ctx    context.Context
	chrom  Chromosome
	blocks []ldblocks.Block

	// byPosition holds panel rows with metadata, sorted by position.
	byPosition []int

	current BlockData
	err     error
}

// NewBlockIterator yields the blocks that lie on the chromosome of chrom and
// contain at least one panel SNP with frequency metadata. Blocks on other
// chromosomes are ignored.
func NewBlockIterator(ctx context.Context, chrom Chromosome, blocks []ldblocks.Block) *BlockIterator {
	snps := chrom.SNPs()

	byPosition := make([]int, 0, len(snps))
	for i, s := range snps {
		if s.HasMetadata() {
			byPosition = append(byPosition, i)
		}
	}
	sort.SliceStable(byPosition, func(i, j int) bool {
		return snps[byPosition[i]].Position < snps[byPosition[j]].Position
	})

	var chr string
	if len(snps) > 0 {
		chr = snps[0].Chromosome
	}

	return &BlockIterator{
		ctx:        ctx,
		chrom:      chrom,
		blocks:     ldblocks.OnChromosome(blocks, chr),
		byPosition: byPosition,
	}
}

// Next advances to the next non-empty block. It returns false when the
// blocks are exhausted or an error occurred; check Err afterwards.
func (it *BlockIterator) Next() bool {
	if it.err != nil {
		return false
	}

	for len(it.blocks) > 0 {
		if err := it.ctx.Err(); err != nil {
			it.err = err
			return false
		}

		block := it.blocks[0]
		it.blocks = it.blocks[1:]

		rows := it.rowsIn(block)
		if len(rows) == 0 {
			continue
		}

		X, err := it.chrom.Genotypes(rows)
		if err != nil {
			it.err = err
			return false
		}

		it.current = BlockData{Block: block, X: X, Rows: rows}
		return true
	}

	it.current = BlockData{}
	return false
}

func (it *BlockIterator) Block() BlockData {
	return it.current
}

func (it *BlockIterator) Err() error {
	return it.err
}

// rowsIn returns the panel rows with Start <= position < End, in panel order.
func (it *BlockIterator) rowsIn(block ldblocks.Block) []int {
	if math.IsNaN(block.Start) || math.IsNaN(block.End) {
		return nil
	}

	snps := it.chrom.SNPs()
	first := sort.Search(len(it.byPosition), func(i int) bool {
		return float64(snps[it.byPosition[i]].Position) >= block.Start
	})

	rows := make([]int, 0)
	for _, row := range it.byPosition[first:] {
		if !block.Contains(snps[row].Position) {
			break
		}
		rows = append(rows, row)
	}
	sort.Ints(rows)

	return rows
}
