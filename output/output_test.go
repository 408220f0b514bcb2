package output

import (
	"bytes"
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/carbocation/ldannot/ldblocks"
	"github.com/klauspost/pgzip"
	"github.com/kshedden/gonpy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestWriteMatrix(t *testing.T) {
	var buf bytes.Buffer
	m := mat.NewDense(2, 2, []float64{1.5, -0.25, -0.25, 3})

	require.NoError(t, WriteMatrix(&buf, []string{"base", "coding"}, m))
	assert.Equal(t, "\tbase\tcoding\nbase\t1.5\t-0.25\ncoding\t-0.25\t3\n", buf.String())

	require.Error(t, WriteMatrix(&buf, []string{"base"}, m))
}

func TestWriteResults(t *testing.T) {
	var buf bytes.Buffer
	results := mat.NewDense(3, 2, []float64{1, 2, 0, 0, 0.5, 1e-20})

	require.NoError(t, WriteResults(&buf, []string{"a.R", "b.R"}, results, []int{0, 2}))
	assert.Equal(t, "a.R\tb.R\n1\t2\n0.5\t1e-20\n", buf.String())
}

func TestWriterFiles(t *testing.T) {
	dir := t.TempDir()
	w := Writer{Stem: filepath.Join(dir, "out", "coding."), Numpy: true}

	m := mat.NewDense(1, 1, []float64{2})
	require.NoError(t, w.BlockMatrices(7, []string{"coding"}, m, m))

	contents, err := os.ReadFile(filepath.Join(dir, "out", "coding.VTRV.7"))
	require.NoError(t, err)
	assert.Equal(t, "\tcoding\ncoding\t2\n", string(contents))
	assert.FileExists(t, filepath.Join(dir, "out", "coding.VTV.7"))

	f, err := os.Open(w.VTRVPath(7) + ".npy")
	require.NoError(t, err)
	defer f.Close()
	npy, err := gonpy.NewReader(f)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 1}, npy.Shape)
	values, err := npy.GetFloat64()
	require.NoError(t, err)
	assert.Equal(t, []float64{2}, values)

	results := mat.NewDense(2, 1, []float64{0.125, 9})
	require.NoError(t, w.Results("22", []string{"coding.R"}, results, []int{1}))

	gzf, err := os.Open(filepath.Join(dir, "out", "coding.22.RV.gz"))
	require.NoError(t, err)
	defer gzf.Close()
	gz, err := pgzip.NewReader(gzf)
	require.NoError(t, err)
	text, err := io.ReadAll(gz)
	require.NoError(t, err)
	assert.Equal(t, "coding.R\n9\n", string(text))

	require.NoError(t, w.LDBlocks([]ldblocks.Block{{Index: 3, Chromosome: "chr22", Start: 16050000, End: math.NaN()}}))
	contents, err = os.ReadFile(filepath.Join(dir, "out", "coding.ldblocks"))
	require.NoError(t, err)
	assert.Equal(t, "chr\tstart\tend\nchr22\t16050000\t0\n", string(contents))
}
