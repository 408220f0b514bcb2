package pipeline

import (
	"context"
	"fmt"

	"github.com/carbocation/ldannot/annotation"
	"github.com/carbocation/ldannot/blockstats"
	"github.com/carbocation/ldannot/ldblocks"
	"github.com/carbocation/ldannot/output"
	"github.com/carbocation/ldannot/refpanel"
	"github.com/carbocation/ldannot/snptable"
	"github.com/sirupsen/logrus"
)

// chromosomeScope owns everything built for one (annotation, chromosome)
// pass. The panel handle and the SNP table are released when run returns.
type chromosomeScope struct {
	runner    *Runner
	log       logrus.FieldLogger
	chr       string
	current   annotation.Source
	baselines []annotation.Source
	blocks    []ldblocks.Block
	printSNPs map[string]struct{}
	writer    output.Writer
}

func (s *chromosomeScope) run(ctx context.Context) error {
	cfg := s.runner.Config

	chrom, err := s.runner.Panel.Chromosome(ctx, s.chr)
	if err != nil {
		return err
	}
	defer chrom.Close()

	snps := chrom.SNPs()
	s.log.WithFields(logrus.Fields{"snps": len(snps), "samples": chrom.NSamples()}).Debugln("Loaded reference panel")

	baselineCols := make([]*annotation.Columns, 0, len(s.baselines))
	for _, src := range s.baselines {
		cols, err := s.resolve(ctx, src, snps)
		if err != nil {
			return err
		}
		baselineCols = append(baselineCols, cols)
	}

	currentCols, err := s.resolve(ctx, s.current, snps)
	if err != nil {
		return err
	}
	if currentCols.Missing > 0 {
		s.log.WithField("missing", currentCols.Missing).Infof("Panel SNPs absent from the annotation were set to %v", cfg.MissingValue)
	}

	table, err := snptable.Build(snps, baselineCols, currentCols, s.printSNPs)
	if err != nil {
		return err
	}
	defer table.Release()

	table.ScaleByMAF(cfg.Units)

	sizes := make([]float64, 0)
	it := refpanel.NewBlockIterator(ctx, chrom, s.blocks)
	for it.Next() {
		bd := it.Block()
		if err := s.processBlock(table, bd); err != nil {
			return err
		}
		sizes = append(sizes, float64(len(bd.Rows)))
	}
	if err := it.Err(); err != nil {
		return err
	}
	s.log.WithFields(summarizeBlockSizes(sizes)).Debugln("Processed blocks")

	if err := s.writer.Results(s.chr, table.ResultNames(), table.Results, table.PrintRows()); err != nil {
		return err
	}

	return s.writer.LDBlocks(s.blocks)
}

// resolve loads one annotation for the chromosome and aligns it to the panel.
func (s *chromosomeScope) resolve(ctx context.Context, src annotation.Source, snps []refpanel.SNP) (*annotation.Columns, error) {
	a, err := src.Load(ctx, s.chr)
	if err != nil {
		return nil, err
	}

	if full, ok := a.(*annotation.Full); ok && s.runner.Config.StrictAlignment {
		if err := annotation.CheckAligned(snps, full); err != nil {
			return nil, fmt.Errorf("%s: %w", src.Prefix, err)
		}
	}

	cols, err := a.Resolve(snps, s.runner.Config.MissingValue)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", src.Prefix, err)
	}

	return cols, nil
}

func (s *chromosomeScope) processBlock(table *snptable.Table, bd refpanel.BlockData) error {
	log := s.log.WithField("block", bd.Block.Index)

	V, mask := table.Block(bd.Rows)
	res, status, err := s.runner.Engine.Compute(blockstats.Input{
		X:        bd.X,
		V:        V,
		Mask:     mask,
		NCurrent: table.NCurrent(),
	})
	if err != nil {
		return fmt.Errorf("block %v: %w", bd.Block, err)
	}

	switch status {
	case blockstats.StatusNoPrintSNPs:
		log.Debugln("No print SNPs; skipping block")
		return nil
	case blockstats.StatusZeroAnnotation:
		log.Debugln("Annotation is zero across the block; writing zero matrices")
	}

	if err := s.writer.BlockMatrices(bd.Block.Index, table.Names, res.VTRV, res.VTV); err != nil {
		return err
	}

	return table.SetResults(bd.Rows, res.RV)
}
