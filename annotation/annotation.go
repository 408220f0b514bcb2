// Package annotation loads per-SNP functional annotations and aligns them to
// the reference panel.
//
// An annotation file either carries its own SNP identifiers (Full) or is a
// bare matrix of values that is trusted to be in panel order (Thin). Which one
// a file is gets decided once, when it is loaded.
package annotation

import (
	"fmt"
	"strings"

	"github.com/carbocation/ldannot/refpanel"
	"gonum.org/v1/gonum/mat"
)

// Standard columns of .annot and .sannot files. They describe the SNP and
// are never annotation values.
const (
	ColChromosome = "CHR"
	ColPosition   = "BP"
	ColSNP        = "SNP"
	ColCM         = "CM"
	ColAllele1    = "A1"
	ColAllele2    = "A2"
)

var standardColumns = map[string]struct{}{
	ColChromosome: {},
	ColPosition:   {},
	ColSNP:        {},
	ColCM:         {},
	ColAllele1:    {},
	ColAllele2:    {},
}

// IsStandardColumn reports whether a header field describes the SNP rather
// than holding annotation values.
func IsStandardColumn(name string) bool {
	_, exists := standardColumns[strings.ToUpper(name)]
	return exists
}

// Annotation is either a *Thin or a *Full.
type Annotation interface {
	ColumnNames() []string

	// Resolve returns the annotation's values in reference-panel order.
	Resolve(ref []refpanel.SNP, missing float64) (*Columns, error)
}

// Columns are annotation values aligned 1:1 to a list of panel SNPs.
type Columns struct {
	Names []string

	// Values is len(ref) × len(Names).
	Values *mat.Dense

	// Missing counts panel SNPs that were filled with the missing value.
	Missing int
}

// Thin holds values only, positionally aligned to the panel.
type Thin struct {
	Names  []string
	Values *mat.Dense
}

func (a *Thin) ColumnNames() []string {
	return a.Names
}

// Resolve checks only that the row count matches the panel. Row order is not
// verified.
func (a *Thin) Resolve(ref []refpanel.SNP, missing float64) (*Columns, error) {
	rows, _ := a.Values.Dims()
	if rows != len(ref) {
		return nil, fmt.Errorf("%w: annotation has %d rows but the panel has %d SNPs", ErrAlignmentMismatch, rows, len(ref))
	}

	return &Columns{
		Names:  append([]string(nil), a.Names...),
		Values: mat.DenseCopyOf(a.Values),
	}, nil
}

// Entry identifies one SNP of a Full annotation. Alleles are empty when the
// file has no allele columns.
type Entry struct {
	ID string
	A1 string
	A2 string
}

// Full holds values keyed by SNP ID and alleles.
type Full struct {
	SNPs   []Entry
	Names  []string
	Values *mat.Dense
}

func (a *Full) ColumnNames() []string {
	return a.Names
}

// Resolve reconciles every column of the annotation against the panel.
func (a *Full) Resolve(ref []refpanel.SNP, missing float64) (*Columns, error) {
	return Reconcile(ref, a, a.Names, missing)
}

// HasAlleles reports whether the annotation carries A1/A2 for its SNPs.
func (a *Full) HasAlleles() bool {
	for _, e := range a.SNPs {
		if e.A1 != "" || e.A2 != "" {
			return true
		}
	}

	return false
}
