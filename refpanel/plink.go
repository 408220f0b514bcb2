package refpanel

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"
	"github.com/carbocation/ldannot"
	"github.com/carbocation/pfx"
	"gonum.org/v1/gonum/mat"
)

// PLINK is a reference panel stored as one PLINK bfile per chromosome, with a
// matching .frq for allele frequencies (as produced by plink --freq).
type PLINK struct {
	// Prefix is the path to the bfiles without the chromosome, e.g.
	// /ref/1000G.EUR.QC. for /ref/1000G.EUR.QC.22.bed. A %s in the prefix
	// marks where the chromosome goes.
	Prefix string

	// Normalize standardizes every SNP to mean 0 and variance 1.
	Normalize bool

	// Storage is used for gs:// bfiles. The .bed is read with ranged reads.
	Storage *storage.Client
}

func (p *PLINK) path(chr, ext string) string {
	return templated(p.Prefix, chr) + ext
}

func (p *PLINK) Chromosome(ctx context.Context, chr string) (Chromosome, error) {
	bim, err := ldannot.OpenBIM(ctx, p.path(chr, ".bim"), p.Storage)
	if err != nil {
		return nil, err
	}
	rows, err := bim.ReadAll()
	bim.Close()
	if err != nil {
		return nil, err
	}

	frqFile, err := ldannot.Open(ctx, p.path(chr, ".frq"), p.Storage)
	if err != nil {
		return nil, err
	}
	mafs, err := ReadFRQ(frqFile)
	frqFile.Close()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p.path(chr, ".frq"), err)
	}

	famFile, err := ldannot.Open(ctx, p.path(chr, ".fam"), p.Storage)
	if err != nil {
		return nil, err
	}
	nSamples, err := CountFAM(famFile)
	famFile.Close()
	if err != nil {
		return nil, err
	}
	if nSamples == 0 {
		return nil, fmt.Errorf("%s: no samples", p.path(chr, ".fam"))
	}

	snps := make([]SNP, len(rows))
	for i, row := range rows {
		snps[i] = SNP{
			Chromosome: row.Chromosome,
			ID:         row.VariantID,
			CM:         row.Morgans,
			Position:   row.Coordinate,
			A1:         row.Allele1,
			A2:         row.Allele2,
		}
	}
	assignMAF(snps, mafs)
	if err := checkUnique(snps); err != nil {
		return nil, pfx.Err(fmt.Errorf("%s: %w", p.path(chr, ".bim"), err))
	}

	bed, err := OpenBED(ctx, p.path(chr, ".bed"), p.Storage, nSamples, len(snps))
	if err != nil {
		return nil, err
	}

	return &plinkChromosome{
		snps:      snps,
		nSamples:  nSamples,
		bed:       bed,
		normalize: p.Normalize,
	}, nil
}

type plinkChromosome struct {
	snps      []SNP
	nSamples  int
	bed       *BED
	normalize bool
}

func (c *plinkChromosome) SNPs() []SNP {
	return c.snps
}

func (c *plinkChromosome) NSamples() int {
	return c.nSamples
}

func (c *plinkChromosome) Genotypes(rows []int) (*mat.Dense, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("no SNP rows requested")
	}

	X := mat.NewDense(c.nSamples, len(rows), nil)
	dosages := make([]float64, c.nSamples)
	missing := make([]bool, c.nSamples)

	for j, row := range rows {
		if err := c.bed.ReadDosages(row, dosages, missing); err != nil {
			return nil, err
		}
		if c.normalize {
			Standardize(dosages, missing)
		} else {
			FillMissing(dosages, missing)
		}
		X.SetCol(j, dosages)
	}

	return X, nil
}

func (c *plinkChromosome) Close() error {
	c.snps = nil
	return c.bed.Close()
}
