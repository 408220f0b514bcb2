package snptable

import (
	"fmt"
	"strings"
)

// Units says what one unit of an annotation value refers to.
type Units int

const (
	// PerAllele scales annotations by sqrt(2·MAF·(1−MAF)) before any block
	// is processed.
	PerAllele Units = iota

	// PerNormGenotype leaves annotations as given.
	PerNormGenotype
)

func (u Units) String() string {
	switch u {
	case PerAllele:
		return "per-allele"
	case PerNormGenotype:
		return "per-norm-genotype"
	}

	return fmt.Sprintf("Units(%d)", int(u))
}

func ParseUnits(s string) (Units, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "per-allele", "perallele", "allele":
		return PerAllele, nil
	case "per-norm-genotype", "pernormgenotype", "norm-genotype":
		return PerNormGenotype, nil
	}

	return PerAllele, fmt.Errorf("unrecognized units %q: use per-allele or per-norm-genotype", s)
}
