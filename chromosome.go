package ldannot

import (
	"strconv"
	"strings"
)

// NormalizeChromosome strips the "chr" / "chrom_" prefixes and the leading
// zeroes that BGENIX uses in the UK Biobank, so that "chr6", "06" and "6"
// compare equal.
func NormalizeChromosome(chr string) string {
	chr = strings.TrimPrefix(chr, "chrom_")
	chr = strings.TrimPrefix(chr, "chr")

	if strings.HasPrefix(chr, "0") {
		if chrInt, err := strconv.Atoi(chr); err == nil {
			chr = strconv.Itoa(chrInt)
		}
	}

	return chr
}

// SameChromosome compares chromosome labels after normalization.
func SameChromosome(a, b string) bool {
	return NormalizeChromosome(a) == NormalizeChromosome(b)
}
