// Package refpanel reads the reference genotype panel one chromosome at a
// time and slices its genotypes into LD blocks.
package refpanel

import (
	"context"
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// SNP is one reference-panel variant. Genotype dosages count copies of A1.
type SNP struct {
	Chromosome string
	ID         string
	CM         float64
	Position   uint32
	A1         string
	A2         string

	// MAF is NaN when the panel has no frequency for the SNP.
	MAF float64
}

// HasMetadata reports whether the SNP can take part in block computations.
func (s SNP) HasMetadata() bool {
	return !math.IsNaN(s.MAF)
}

// Panel opens reference data for one chromosome at a time.
type Panel interface {
	Chromosome(ctx context.Context, chr string) (Chromosome, error)
}

// Chromosome is the panel restricted to a single chromosome. It owns file
// handles and must be closed.
type Chromosome interface {
	// SNPs are in panel order, which is the canonical order for everything
	// downstream.
	SNPs() []SNP
	NSamples() int

	// Genotypes returns the samples × len(rows) genotype matrix for the
	// given SNP rows.
	Genotypes(rows []int) (*mat.Dense, error)

	Close() error
}

// templated substitutes the chromosome into a path. Paths containing %s are
// formatted; otherwise the chromosome is appended, which is the convention of
// per-chromosome PLINK prefixes such as 1000G.EUR.QC.
func templated(template, chr string) string {
	if strings.Contains(template, "%s") {
		return fmt.Sprintf(template, chr)
	}
	return template + chr
}

// checkUnique enforces that SNP IDs are unique within a chromosome.
func checkUnique(snps []SNP) error {
	seen := make(map[string]int, len(snps))
	for i, s := range snps {
		if j, exists := seen[s.ID]; exists {
			return fmt.Errorf("SNP %s appears at rows %d and %d", s.ID, j, i)
		}
		seen[s.ID] = i
	}

	return nil
}
