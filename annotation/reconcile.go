package annotation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/carbocation/ldannot/refpanel"
	"gonum.org/v1/gonum/mat"
)

// ErrAlignmentMismatch is returned when annotation rows do not correspond to
// the reference panel's SNPs.
var ErrAlignmentMismatch = errors.New("annotation is not aligned to the reference panel")

// CheckAligned verifies that the annotation lists exactly the panel's SNPs in
// the panel's order.
func CheckAligned(ref []refpanel.SNP, full *Full) error {
	if len(ref) != len(full.SNPs) {
		return fmt.Errorf("%w: annotation has %d SNPs but the panel has %d", ErrAlignmentMismatch, len(full.SNPs), len(ref))
	}

	for i := range ref {
		if ref[i].ID != full.SNPs[i].ID {
			return fmt.Errorf("%w: row %d is %s in the panel but %s in the annotation", ErrAlignmentMismatch, i, ref[i].ID, full.SNPs[i].ID)
		}
	}

	return nil
}

type orientation int

const (
	orientationIncompatible orientation = iota
	orientationSame
	orientationSwapped
)

// orient compares annotation alleles to panel alleles, case-insensitively.
// Annotations without alleles are taken as given.
func orient(panel refpanel.SNP, e Entry) orientation {
	if e.A1 == "" && e.A2 == "" {
		return orientationSame
	}

	switch {
	case strings.EqualFold(panel.A1, e.A1) && strings.EqualFold(panel.A2, e.A2):
		return orientationSame
	case strings.EqualFold(panel.A1, e.A2) && strings.EqualFold(panel.A2, e.A1):
		return orientationSwapped
	}

	return orientationIncompatible
}

// Reconcile merges the named columns of a Full annotation into panel order by
// SNP ID. Panel SNPs that the annotation lacks, or whose alleles are not the
// panel's pair in either orientation, get the missing value. Values of SNPs
// whose alleles are swapped relative to the panel change sign. Annotation
// SNPs that are not in the panel are ignored.
func Reconcile(ref []refpanel.SNP, full *Full, names []string, missing float64) (*Columns, error) {
	colIdx := make(map[string]int, len(full.Names))
	for j, name := range full.Names {
		colIdx[name] = j
	}

	cols := make([]int, len(names))
	for j, name := range names {
		idx, exists := colIdx[name]
		if !exists {
			return nil, fmt.Errorf("annotation has no column named %q", name)
		}
		cols[j] = idx
	}

	rowOf := make(map[string]int, len(full.SNPs))
	for i, e := range full.SNPs {
		if prior, exists := rowOf[e.ID]; exists {
			return nil, fmt.Errorf("SNP %s appears twice in the annotation (rows %d and %d)", e.ID, prior, i)
		}
		rowOf[e.ID] = i
	}

	out := &Columns{
		Names:  append([]string(nil), names...),
		Values: &mat.Dense{},
	}
	if len(ref) == 0 || len(names) == 0 {
		return out, nil
	}
	out.Values = mat.NewDense(len(ref), len(names), nil)

	for i, snp := range ref {
		sign := 1.0

		row, exists := rowOf[snp.ID]
		if exists {
			switch orient(snp, full.SNPs[row]) {
			case orientationSwapped:
				sign = -1
			case orientationIncompatible:
				exists = false
			}
		}

		if !exists {
			out.Missing++
			for j := range cols {
				out.Values.Set(i, j, missing)
			}
			continue
		}

		for j, col := range cols {
			out.Values.Set(i, j, sign*full.Values.At(row, col))
		}
	}

	return out, nil
}
