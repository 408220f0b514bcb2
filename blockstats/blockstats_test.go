package blockstats

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

const tol = 1e-12

func randomDense(rng *rand.Rand, r, c int) *mat.Dense {
	data := make([]float64, r*c)
	for i := range data {
		data[i] = rng.NormFloat64()
	}
	return mat.NewDense(r, c, data)
}

func allTrue(n int) []bool {
	out := make([]bool, n)
	for i := range out {
		out[i] = true
	}
	return out
}

// One annotation column over three SNPs and four samples, worked by hand:
// XV = [-1, -1, 2, 0], so VTRV = 6/4, VTV = 2 and RV = Xᵗ·XV/4.
func TestConcreteBlock(t *testing.T) {
	X := mat.NewDense(4, 3, []float64{
		1, 0, 2,
		0, 1, 1,
		2, 1, 0,
		1, 2, 1,
	})
	V := mat.NewDense(3, 1, []float64{1, 0, -1})

	res, status, err := Engine{}.Compute(Input{X: X, V: V, Mask: allTrue(3), NCurrent: 1})
	require.NoError(t, err)
	require.Equal(t, StatusOK, status)

	assert.InDelta(t, 1.5, res.VTRV.At(0, 0), tol)
	assert.InDelta(t, 2.0, res.VTV.At(0, 0), tol)

	expectedRV := []float64{0.75, 0.25, -0.75}
	for i, v := range expectedRV {
		assert.InDelta(t, v, res.RV.At(i, 0), tol)
	}
}

func TestPrintMaskLimitsResults(t *testing.T) {
	X := mat.NewDense(4, 3, []float64{
		1, 0, 2,
		0, 1, 1,
		2, 1, 0,
		1, 2, 1,
	})
	V := mat.NewDense(3, 1, []float64{1, 0, -1})

	res, status, err := Engine{}.Compute(Input{X: X, V: V, Mask: []bool{false, true, false}, NCurrent: 1})
	require.NoError(t, err)
	require.Equal(t, StatusOK, status)

	assert.Equal(t, 0.0, res.RV.At(0, 0))
	assert.InDelta(t, 0.25, res.RV.At(1, 0), tol)
	assert.Equal(t, 0.0, res.RV.At(2, 0))

	// The block matrices do not depend on the mask
	assert.InDelta(t, 1.5, res.VTRV.At(0, 0), tol)
}

func TestSymmetryAndIdempotence(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	X := randomDense(rng, 6, 5)
	V := randomDense(rng, 5, 3)
	in := Input{X: X, V: V, Mask: []bool{true, false, true, true, false}, NCurrent: 1}

	first, status, err := Engine{}.Compute(in)
	require.NoError(t, err)
	require.Equal(t, StatusOK, status)

	second, _, err := Engine{}.Compute(in)
	require.NoError(t, err)

	assert.True(t, mat.Equal(first.VTRV, second.VTRV))
	assert.True(t, mat.Equal(first.VTV, second.VTV))
	assert.True(t, mat.Equal(first.RV, second.RV))

	assert.True(t, mat.Equal(first.VTRV, first.VTRV.T()))
	assert.True(t, mat.Equal(first.VTV, first.VTV.T()))

	// Against the plain products
	var XV, want mat.Dense
	XV.Mul(X, V)
	want.Mul(XV.T(), &XV)
	want.Scale(1.0/6, &want)
	assert.True(t, mat.EqualApprox(&want, first.VTRV, tol))

	want.Mul(V.T(), V)
	assert.True(t, mat.EqualApprox(&want, first.VTV, tol))

	r, c := first.RV.Dims()
	assert.Equal(t, 5, r)
	assert.Equal(t, 1, c)
}

func TestZeroAnnotation(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	X := randomDense(rng, 5, 4)

	// Baseline column is non-zero but the current columns are all zero
	V := mat.NewDense(4, 3, []float64{
		1, 0, 0,
		2, 0, 0,
		3, 0, 0,
		4, 0, 0,
	})

	res, status, err := Engine{}.Compute(Input{X: X, V: V, Mask: allTrue(4), NCurrent: 2})
	require.NoError(t, err)
	require.Equal(t, StatusZeroAnnotation, status)

	assert.True(t, mat.Equal(mat.NewDense(3, 3, nil), res.VTRV))
	assert.True(t, mat.Equal(mat.NewDense(3, 3, nil), res.VTV))
	assert.True(t, mat.Equal(mat.NewDense(4, 2, nil), res.RV))
}

func TestNoPrintSNPs(t *testing.T) {
	rng := rand.New(rand.NewSource(3))

	res, status, err := Engine{}.Compute(Input{
		X:        randomDense(rng, 5, 4),
		V:        randomDense(rng, 4, 2),
		Mask:     make([]bool, 4),
		NCurrent: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusNoPrintSNPs, status)
	assert.Nil(t, res.VTRV)
	assert.Nil(t, res.VTV)
	assert.Nil(t, res.RV)
}

// With a common MAF every annotation value is scaled by the same s, so VTRV
// and VTV scale by s² and RV by s, preserving its ordering.
func TestUniformScaling(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	X := randomDense(rng, 8, 4)
	V := randomDense(rng, 4, 2)
	mask := allTrue(4)

	s := 0.6480740698407860 // sqrt(2·0.3·0.7)
	var scaled mat.Dense
	scaled.Scale(s, V)

	plain, _, err := Engine{}.Compute(Input{X: X, V: V, Mask: mask, NCurrent: 1})
	require.NoError(t, err)
	withMAF, _, err := Engine{}.Compute(Input{X: X, V: &scaled, Mask: mask, NCurrent: 1})
	require.NoError(t, err)

	var wantVTRV, wantVTV, wantRV mat.Dense
	wantVTRV.Scale(s*s, plain.VTRV)
	assert.True(t, mat.EqualApprox(&wantVTRV, withMAF.VTRV, tol))
	wantVTV.Scale(s*s, plain.VTV)
	assert.True(t, mat.EqualApprox(&wantVTV, withMAF.VTV, tol))
	wantRV.Scale(s, plain.RV)
	assert.True(t, mat.EqualApprox(&wantRV, withMAF.RV, tol))

	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			assert.Equal(t, plain.RV.At(i, 0) < plain.RV.At(j, 0), withMAF.RV.At(i, 0) < withMAF.RV.At(j, 0))
		}
	}
}

// With a different MAF per SNP, scaling rows of V by D = diag(sqrt(2·MAF·(1−MAF)))
// gives VTV = VᵗD²V and VTRV = (XDV)ᵗ(XDV)/n.
func TestPerSNPMAFScaling(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	X := randomDense(rng, 6, 4)
	V := randomDense(rng, 4, 3)

	mafs := []float64{0.05, 0.2, 0.35, 0.5}
	d := make([]float64, len(mafs))
	d2 := make([]float64, len(mafs))
	for i, maf := range mafs {
		d2[i] = 2 * maf * (1 - maf)
		d[i] = math.Sqrt(d2[i])
	}
	D := mat.NewDiagDense(len(d), d)
	D2 := mat.NewDiagDense(len(d2), d2)

	var DV mat.Dense
	DV.Mul(D, V)

	res, status, err := Engine{}.Compute(Input{X: X, V: &DV, Mask: allTrue(4), NCurrent: 2})
	require.NoError(t, err)
	require.Equal(t, StatusOK, status)

	var vtD2, wantVTV mat.Dense
	vtD2.Mul(V.T(), D2)
	wantVTV.Mul(&vtD2, V)
	assert.True(t, mat.EqualApprox(&wantVTV, res.VTV, tol))

	var XDV, wantVTRV mat.Dense
	XDV.Mul(X, &DV)
	wantVTRV.Mul(XDV.T(), &XDV)
	wantVTRV.Scale(1/6.0, &wantVTRV)
	assert.True(t, mat.EqualApprox(&wantVTRV, res.VTRV, tol))

	var wantRV mat.Dense
	wantRV.Mul(X.T(), XDV.Slice(0, 6, 1, 3))
	wantRV.Scale(1/6.0, &wantRV)
	assert.True(t, mat.EqualApprox(&wantRV, res.RV, tol))
}

func TestInvalidInput(t *testing.T) {
	X := mat.NewDense(2, 3, nil)

	_, _, err := Engine{}.Compute(Input{X: X, V: mat.NewDense(2, 1, nil), Mask: allTrue(3), NCurrent: 1})
	require.Error(t, err, "SNP count mismatch")

	_, _, err = Engine{}.Compute(Input{X: X, V: mat.NewDense(3, 1, nil), Mask: allTrue(2), NCurrent: 1})
	require.Error(t, err, "mask length")

	_, _, err = Engine{}.Compute(Input{X: X, V: mat.NewDense(3, 1, nil), Mask: allTrue(3), NCurrent: 2})
	require.Error(t, err, "too many current columns")
}
