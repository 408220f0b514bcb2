package refpanel

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/carbocation/pfx"
)

// ReadFRQ parses a PLINK .frq file (CHR SNP A1 A2 MAF NCHROBS, whitespace
// aligned) into a map of SNP ID to MAF. Columns are located by header name.
func ReadFRQ(r io.Reader) (map[string]float64, error) {
	scanner := bufio.NewScanner(r)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, pfx.Err(err)
		}
		return nil, fmt.Errorf("frequency file is empty")
	}

	colSNP, colMAF := -1, -1
	for i, name := range strings.Fields(scanner.Text()) {
		switch name {
		case "SNP":
			colSNP = i
		case "MAF":
			colMAF = i
		}
	}
	if colSNP < 0 || colMAF < 0 {
		return nil, fmt.Errorf("frequency file header must name SNP and MAF columns. Saw: %q", scanner.Text())
	}

	out := make(map[string]float64)
	for line := 2; scanner.Scan(); line++ {
		cols := strings.Fields(scanner.Text())
		if len(cols) == 0 {
			continue
		}
		if len(cols) <= colSNP || len(cols) <= colMAF {
			return nil, fmt.Errorf("frequency file line %d has %d columns", line, len(cols))
		}

		maf, err := strconv.ParseFloat(cols[colMAF], 64)
		if err != nil {
			// PLINK writes NA for SNPs with no calls; leave them without
			// metadata.
			continue
		}
		if maf < 0 || maf > 1 {
			return nil, fmt.Errorf("frequency file line %d: MAF %v outside [0, 1]", line, maf)
		}

		out[cols[colSNP]] = maf
	}
	if err := scanner.Err(); err != nil {
		return nil, pfx.Err(err)
	}

	return out, nil
}

// CountFAM returns the number of samples (non-blank lines) in a PLINK .fam.
func CountFAM(r io.Reader) (int, error) {
	n := 0
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if strings.TrimSpace(scanner.Text()) != "" {
			n++
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, pfx.Err(err)
	}

	return n, nil
}

// assignMAF copies frequencies onto snps by ID. SNPs absent from mafs get NaN
// and so have no metadata.
func assignMAF(snps []SNP, mafs map[string]float64) {
	for i := range snps {
		maf, exists := mafs[snps[i].ID]
		if !exists {
			maf = math.NaN()
		}
		snps[i].MAF = maf
	}
}
