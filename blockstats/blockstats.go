// Package blockstats computes the LD-weighted annotation statistics of one LD
// block.
package blockstats

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Status describes which branch the engine took for a block.
type Status int

const (
	// StatusOK means the full computation ran.
	StatusOK Status = iota

	// StatusNoPrintSNPs means the block has no print SNPs. Nothing is
	// computed and nothing should be written for it.
	StatusNoPrintSNPs

	// StatusZeroAnnotation means every current-annotation value in the block
	// is zero. VTRV and VTV are explicit zero matrices and RV is zero.
	StatusZeroAnnotation
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusNoPrintSNPs:
		return "no print SNPs"
	case StatusZeroAnnotation:
		return "all-zero annotation"
	}

	return fmt.Sprintf("Status(%d)", int(s))
}

// Input is one block.
type Input struct {
	// X is the n samples × m SNPs genotype matrix.
	X mat.Matrix

	// V is the m SNPs × k annotation matrix, baselines first.
	V mat.Matrix

	// Mask flags the print SNPs; len(Mask) == m.
	Mask []bool

	// NCurrent is the number of trailing columns of V that belong to the
	// current annotation.
	NCurrent int
}

// Result holds the block statistics. The matrices are nil under
// StatusNoPrintSNPs.
type Result struct {
	// VTRV is (XV)ᵗ(XV)/n, k × k.
	VTRV *mat.Dense

	// VTV is VᵗV, k × k.
	VTV *mat.Dense

	// RV is m × NCurrent. Rows of print SNPs hold Xᵗ_print·XV[:, current]/n;
	// all other rows are zero.
	RV *mat.Dense
}

// Engine computes block statistics. It holds no state between blocks.
type Engine struct{}

// Validate checks that the input dimensions agree.
func (in Input) Validate() error {
	if in.X == nil || in.V == nil {
		return fmt.Errorf("block has no genotype or annotation matrix")
	}

	n, m := in.X.Dims()
	mv, k := in.V.Dims()
	switch {
	case n == 0:
		return fmt.Errorf("block has no samples")
	case m != mv:
		return fmt.Errorf("genotypes cover %d SNPs but annotations cover %d", m, mv)
	case len(in.Mask) != m:
		return fmt.Errorf("print mask has %d entries for %d SNPs", len(in.Mask), m)
	case in.NCurrent < 1 || in.NCurrent > k:
		return fmt.Errorf("%d current annotation columns out of %d", in.NCurrent, k)
	}

	return nil
}

// Compute runs the engine on one block.
func (Engine) Compute(in Input) (Result, Status, error) {
	if err := in.Validate(); err != nil {
		return Result{}, StatusOK, err
	}

	n, m := in.X.Dims()
	_, k := in.V.Dims()
	c := in.NCurrent

	printCols := make([]int, 0, m)
	for j, p := range in.Mask {
		if p {
			printCols = append(printCols, j)
		}
	}
	if len(printCols) == 0 {
		return Result{}, StatusNoPrintSNPs, nil
	}

	if currentAllZero(in.V, k-c) {
		return Result{
			VTRV: mat.NewDense(k, k, nil),
			VTV:  mat.NewDense(k, k, nil),
			RV:   mat.NewDense(m, c, nil),
		}, StatusZeroAnnotation, nil
	}

	var XV mat.Dense
	XV.Mul(in.X, in.V)

	// The symmetric products fill one triangle and mirror it, so VTRV and VTV
	// are exactly symmetric.
	var vtrv, vtv mat.SymDense
	vtrv.SymOuterK(1/float64(n), XV.T())
	vtv.SymOuterK(1, in.V.T())

	Xprint := mat.NewDense(n, len(printCols), nil)
	col := make([]float64, n)
	for i, j := range printCols {
		mat.Col(col, j, in.X)
		Xprint.SetCol(i, col)
	}

	var rvPrint mat.Dense
	rvPrint.Mul(Xprint.T(), XV.Slice(0, n, k-c, k))
	rvPrint.Scale(1/float64(n), &rvPrint)

	RV := mat.NewDense(m, c, nil)
	for i, j := range printCols {
		RV.SetRow(j, rvPrint.RawRowView(i))
	}

	return Result{
		VTRV: mat.DenseCopyOf(&vtrv),
		VTV:  mat.DenseCopyOf(&vtv),
		RV:   RV,
	}, StatusOK, nil
}

// currentAllZero reports whether columns from first onward are zero for every
// SNP.
func currentAllZero(V mat.Matrix, first int) bool {
	m, k := V.Dims()
	col := make([]float64, m)
	for j := first; j < k; j++ {
		mat.Col(col, j, V)
		if floats.Norm(col, 1) != 0 {
			return false
		}
	}

	return true
}
