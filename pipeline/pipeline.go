// Package pipeline runs every annotation over every chromosome, one LD block
// at a time, and writes the results.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"cloud.google.com/go/storage"
	"github.com/carbocation/ldannot/annotation"
	"github.com/carbocation/ldannot/blockstats"
	"github.com/carbocation/ldannot/ldblocks"
	"github.com/carbocation/ldannot/output"
	"github.com/carbocation/ldannot/refpanel"
	"github.com/carbocation/ldannot/snptable"
	"github.com/montanaflynn/stats"
	"github.com/sirupsen/logrus"
)

// Runner executes a Config. Annotations, chromosomes and blocks are processed
// strictly in sequence.
type Runner struct {
	Config  Config
	Panel   refpanel.Panel
	Storage *storage.Client
	Log     logrus.FieldLogger
	Engine  blockstats.Engine
}

// New builds a Runner with the panel named by the config. client may be nil
// when no input lives in Google Storage.
func New(cfg Config, client *storage.Client, logger logrus.FieldLogger) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	var panel refpanel.Panel
	if cfg.BGENTemplate != "" {
		panel = &refpanel.BGEN{Template: cfg.BGENTemplate, FRQTemplate: cfg.BGENFRQTemplate, Normalize: cfg.Normalize, Storage: client}
	} else {
		panel = &refpanel.PLINK{Prefix: cfg.PanelPrefix, Normalize: cfg.Normalize, Storage: client}
	}

	return &Runner{
		Config:  cfg,
		Panel:   panel,
		Storage: client,
		Log:     logger,
	}, nil
}

// ChromosomeError records a chromosome whose outputs could not be produced.
type ChromosomeError struct {
	Annotation string
	Chromosome string
	Err        error
}

func (e *ChromosomeError) Error() string {
	return fmt.Sprintf("annotation %s, chromosome %s: %v", e.Annotation, e.Chromosome, e.Err)
}

func (e *ChromosomeError) Unwrap() error {
	return e.Err
}

// RunError lists the chromosomes that failed in an otherwise completed run.
type RunError struct {
	Failures []*ChromosomeError
}

func (e *RunError) Error() string {
	return fmt.Sprintf("%d chromosome pass(es) failed, the first being %v", len(e.Failures), e.Failures[0])
}

func (e *RunError) Unwrap() error {
	return e.Failures[0]
}

// Run processes every annotation. Alignment failures stop only the affected
// chromosome unless FailFast is set; they are reported together in a
// *RunError once everything else has run. Any other error ends the run.
func (r *Runner) Run(ctx context.Context) error {
	printSNPs, err := snptable.ReadPrintSNPs(ctx, r.Config.PrintSNPs, r.Storage)
	if err != nil {
		return err
	}
	r.Log.WithField("n", len(printSNPs)).Infoln("Loaded print SNPs")

	allBlocks, err := ldblocks.Load(ctx, r.Config.LDBlocks, r.Storage)
	if err != nil {
		return err
	}
	blocks, err := ldblocks.Exclude(allBlocks, append([]ldblocks.Region{ldblocks.MHC}, r.Config.ExtraExclusions...)...)
	if err != nil {
		return err
	}
	r.Log.WithFields(logrus.Fields{
		"blocks":   len(blocks),
		"excluded": len(allBlocks) - len(blocks),
	}).Infoln("Loaded LD blocks")

	baselines := make([]annotation.Source, 0, len(r.Config.Baselines))
	for _, prefix := range r.Config.Baselines {
		baselines = append(baselines, r.source(prefix))
	}

	failures := make([]*ChromosomeError, 0)
	for _, prefix := range r.Config.Annotations {
		src := r.source(prefix)
		writer := output.Writer{Stem: r.stem(src), Numpy: r.Config.WriteNumpy}
		started := time.Now()
		log := r.Log.WithField("annotation", prefix)

		for _, chr := range r.Config.Chromosomes {
			if err := ctx.Err(); err != nil {
				return err
			}

			scope := &chromosomeScope{
				runner:    r,
				log:       log.WithField("chr", chr),
				chr:       chr,
				current:   src,
				baselines: baselines,
				blocks:    blocks,
				printSNPs: printSNPs,
				writer:    writer,
			}

			err := scope.run(ctx)
			if err == nil {
				log.WithFields(logrus.Fields{"chr": chr, "elapsed": time.Since(started).Round(time.Millisecond)}).Infoln("Finished chromosome")
				continue
			}

			if !errors.Is(err, annotation.ErrAlignmentMismatch) {
				return &ChromosomeError{Annotation: prefix, Chromosome: chr, Err: err}
			}

			failure := &ChromosomeError{Annotation: prefix, Chromosome: chr, Err: err}
			log.WithField("chr", chr).Errorln(err)
			if r.Config.FailFast {
				return failure
			}
			failures = append(failures, failure)
		}

		log.WithField("elapsed", time.Since(started).Round(time.Millisecond)).Infoln("Finished annotation")
	}

	if len(failures) > 0 {
		return &RunError{Failures: failures}
	}

	return nil
}

func (r *Runner) source(prefix string) annotation.Source {
	return annotation.Source{
		Prefix:  prefix,
		Suffix:  r.Config.AnnotationSuffix,
		Storage: r.Storage,
	}
}

func (r *Runner) stem(src annotation.Source) string {
	stem := src.Stem()
	if r.Config.OutputDir == "" {
		return stem
	}

	return filepath.Join(r.Config.OutputDir, filepath.Base(stem))
}

// summarizeBlockSizes describes the number of SNPs per processed block.
func summarizeBlockSizes(sizes []float64) logrus.Fields {
	fields := logrus.Fields{"blocks": len(sizes)}
	if len(sizes) == 0 {
		return fields
	}

	if mean, err := stats.Mean(sizes); err == nil {
		fields["mean_snps"] = mean
	}
	if median, err := stats.Median(sizes); err == nil {
		fields["median_snps"] = median
	}
	if max, err := stats.Max(sizes); err == nil {
		fields["max_snps"] = max
	}

	return fields
}
