package refpanel

import (
	"github.com/carbocation/runningvariance"
	"gonum.org/v1/gonum/stat"
)

// Standardize centers and scales dosages in place to mean 0 and population
// standard deviation 1, computed over non-missing samples. Missing samples and
// monomorphic SNPs become 0.
func Standardize(dosages []float64, missing []bool) {
	observed := make([]float64, 0, len(dosages))
	for i, v := range dosages {
		if !missing[i] {
			observed = append(observed, v)
		}
	}

	if len(observed) == 0 {
		zeroAll(dosages)
		return
	}

	mean, std := stat.PopMeanStdDev(observed, nil)
	if std == 0 {
		zeroAll(dosages)
		return
	}

	for i, v := range dosages {
		if missing[i] {
			dosages[i] = 0
			continue
		}
		dosages[i] = (v - mean) / std
	}
}

// FillMissing replaces missing dosages with 0 without scaling.
func FillMissing(dosages []float64, missing []bool) {
	for i := range dosages {
		if missing[i] {
			dosages[i] = 0
		}
	}
}

// MinorAlleleFrequency derives the MAF from A1 dosages.
func MinorAlleleFrequency(dosages []float64, missing []bool) float64 {
	rs := runningvariance.NewRunningStat()
	observed := false
	for i, v := range dosages {
		if missing[i] {
			continue
		}
		rs.Push(v / 2)
		observed = true
	}
	if !observed {
		return 0
	}

	af := rs.Mean()
	if af > 0.5 {
		return 1 - af
	}
	return af
}

func zeroAll(x []float64) {
	for i := range x {
		x[i] = 0
	}
}
