package refpanel

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"
	"github.com/carbocation/bgen"
	"github.com/carbocation/ldannot"
	"github.com/carbocation/pfx"
	"gonum.org/v1/gonum/mat"
)

// BGEN is a reference panel stored as one BGEN per chromosome, indexed by
// bgenix. Variants are taken in index order. BGEN carries no allele
// frequencies: they come from FRQTemplate when it is set, and otherwise from a
// pass over every variant's dosages when the chromosome is opened.
type BGEN struct {
	// Template is the path to the .bgen, with %s standing for the chromosome.
	Template string

	// BGITemplate defaults to Template + ".bgi".
	BGITemplate string

	// FRQTemplate optionally names a plink --freq output per chromosome.
	FRQTemplate string

	Normalize bool

	// Storage is used for a gs:// FRQTemplate.
	Storage *storage.Client
}

func (p *BGEN) Chromosome(ctx context.Context, chr string) (Chromosome, error) {
	bgenPath, err := ldannot.ExpandHome(templated(p.Template, chr))
	if err != nil {
		return nil, err
	}

	bgiPath := bgenPath + ".bgi"
	if p.BGITemplate != "" {
		if bgiPath, err = ldannot.ExpandHome(templated(p.BGITemplate, chr)); err != nil {
			return nil, err
		}
	}

	bgi, err := OpenBGI(bgiPath + "?mode=ro")
	if err != nil {
		return nil, pfx.Err(fmt.Errorf("%s: %w", bgiPath, err))
	}
	defer bgi.Close()

	indices := make([]bgen.VariantIndex, 0)
	if err := bgi.DB.Select(&indices, "SELECT * FROM Variant ORDER BY file_start_position ASC"); err != nil {
		return nil, pfx.Err(err)
	}

	b, err := bgen.Open(bgenPath)
	if err != nil {
		return nil, pfx.Err(fmt.Errorf("%s: %w", bgenPath, err))
	}

	c := &bgenChromosome{
		bgen:      b,
		reader:    b.NewVariantReader(),
		nSamples:  int(b.NSamples),
		normalize: p.Normalize,
	}

	for _, vi := range indices {
		if !ldannot.SameChromosome(vi.Chromosome, chr) {
			continue
		}
		if vi.NAlleles != 2 {
			continue
		}

		c.offsets = append(c.offsets, int64(vi.FileStartPosition))
		c.snps = append(c.snps, SNP{
			Chromosome: ldannot.NormalizeChromosome(vi.Chromosome),
			ID:         vi.RSID,
			Position:   uint32(vi.Position),
			A1:         string(vi.Allele1),
			A2:         string(vi.Allele2),
		})
	}
	if err := checkUnique(c.snps); err != nil {
		b.Close()
		return nil, pfx.Err(fmt.Errorf("%s: %w", bgiPath, err))
	}

	if p.FRQTemplate != "" {
		err = p.readMAF(ctx, chr, c.snps)
	} else {
		err = c.computeMAF(ctx)
	}
	if err != nil {
		b.Close()
		return nil, err
	}

	return c, nil
}

func (p *BGEN) readMAF(ctx context.Context, chr string, snps []SNP) error {
	path := templated(p.FRQTemplate, chr)
	f, err := ldannot.Open(ctx, path, p.Storage)
	if err != nil {
		return err
	}
	defer f.Close()

	mafs, err := ReadFRQ(f)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	assignMAF(snps, mafs)

	return nil
}

type bgenChromosome struct {
	bgen      *bgen.BGEN
	reader    *bgen.VariantReader
	snps      []SNP
	offsets   []int64
	nSamples  int
	normalize bool
}

func (c *bgenChromosome) SNPs() []SNP {
	return c.snps
}

func (c *bgenChromosome) NSamples() int {
	return c.nSamples
}

// readDosages loads the expected A1 count of every sample at one variant.
// Samples that are not unphased diploid calls are flagged missing.
func (c *bgenChromosome) readDosages(row int, dosages []float64, missing []bool) ([]float64, []bool, error) {
	variant := c.reader.ReadAt(c.offsets[row])
	if err := c.reader.Error(); err != nil {
		return nil, nil, pfx.Err(fmt.Errorf("%s: %w", c.snps[row].ID, err))
	}
	if variant == nil {
		return nil, nil, fmt.Errorf("%s: no variant at offset %d", c.snps[row].ID, c.offsets[row])
	}

	if dosages == nil {
		dosages = make([]float64, c.nSamples)
		missing = make([]bool, c.nSamples)
	}
	if err := probabilityDosages(variant.SampleProbabilities, dosages, missing); err != nil {
		return nil, nil, fmt.Errorf("%s: %w", c.snps[row].ID, err)
	}

	return dosages, missing, nil
}

// probabilityDosages converts genotype probabilities to expected A1 counts,
// 2·P(A1A1) + P(A1A2). Samples that are not unphased diploid calls are
// flagged missing.
func probabilityDosages(probs []bgen.SampleProbability, dosages []float64, missing []bool) error {
	if len(probs) != len(dosages) || len(probs) != len(missing) {
		return fmt.Errorf("%d samples, expected %d", len(probs), len(dosages))
	}

	for i, sp := range probs {
		if sp.Missing || sp.Ploidy != 2 || len(sp.Probabilities) != 3 {
			dosages[i] = 0
			missing[i] = true
			continue
		}
		dosages[i] = 2.0*sp.Probabilities[0] + sp.Probabilities[1]
		missing[i] = false
	}

	return nil
}

func (c *bgenChromosome) computeMAF(ctx context.Context) error {
	var dosages []float64
	var missing []bool
	var err error

	for row := range c.snps {
		if err := ctx.Err(); err != nil {
			return err
		}

		dosages, missing, err = c.readDosages(row, dosages, missing)
		if err != nil {
			return err
		}
		c.snps[row].MAF = MinorAlleleFrequency(dosages, missing)
	}

	return nil
}

func (c *bgenChromosome) Genotypes(rows []int) (*mat.Dense, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("no SNP rows requested")
	}

	X := mat.NewDense(c.nSamples, len(rows), nil)
	dosages := make([]float64, c.nSamples)
	missing := make([]bool, c.nSamples)

	for j, row := range rows {
		if row < 0 || row >= len(c.snps) {
			return nil, fmt.Errorf("SNP row %d out of range [0, %d)", row, len(c.snps))
		}
		if _, _, err := c.readDosages(row, dosages, missing); err != nil {
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

func (c *bgenChromosome) Close() error {
	c.snps = nil
	c.offsets = nil
	return c.bgen.Close()
}
