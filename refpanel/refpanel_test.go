package refpanel

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/carbocation/bgen"
	"github.com/carbocation/ldannot/ldblocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

type fixtureSNP struct {
	ID       string
	Position int
	A1, A2   string
	MAF      string

	// Codes are the 2-bit .bed codes, one per sample.
	Codes []byte
}

// writeBFile writes prefix+chr+{.bim,.fam,.bed,.frq} and returns the prefix.
func writeBFile(t *testing.T, chr string, snps []fixtureSNP) string {
	t.Helper()

	prefix := filepath.Join(t.TempDir(), "panel.")
	nSamples := len(snps[0].Codes)

	var bim, fam, frq strings.Builder
	bed := append([]byte{}, BEDMagic...)

	frq.WriteString(" CHR         SNP   A1   A2          MAF  NCHROBS\n")
	for _, s := range snps {
		fmt.Fprintf(&bim, "%s\t%s\t0\t%d\t%s\t%s\n", chr, s.ID, s.Position, s.A1, s.A2)
		if s.MAF != "" {
			fmt.Fprintf(&frq, "%4s %11s %4s %4s %12s %8d\n", chr, s.ID, s.A1, s.A2, s.MAF, 2*nSamples)
		}

		packed := make([]byte, (nSamples+3)/4)
		for i, code := range s.Codes {
			packed[i/4] |= code << (2 * uint(i%4))
		}
		bed = append(bed, packed...)
	}
	for i := 0; i < nSamples; i++ {
		fmt.Fprintf(&fam, "F%d I%d 0 0 0 -9\n", i, i)
	}

	require.NoError(t, os.WriteFile(prefix+chr+".bim", []byte(bim.String()), 0644))
	require.NoError(t, os.WriteFile(prefix+chr+".fam", []byte(fam.String()), 0644))
	require.NoError(t, os.WriteFile(prefix+chr+".frq", []byte(frq.String()), 0644))
	require.NoError(t, os.WriteFile(prefix+chr+".bed", bed, 0644))

	return prefix
}

func defaultFixture() []fixtureSNP {
	return []fixtureSNP{
		{ID: "rs1", Position: 100, A1: "A", A2: "G", MAF: "0.5", Codes: []byte{bedHomA1, bedHet, bedHomA2, bedHet}},
		{ID: "rs2", Position: 200, A1: "C", A2: "T", MAF: "0.25", Codes: []byte{bedHomA2, bedHomA2, bedHet, bedMissing}},
		{ID: "rs3", Position: 300, A1: "G", A2: "A", MAF: "", Codes: []byte{bedHet, bedHet, bedHet, bedHet}},
		{ID: "rs4", Position: 400, A1: "T", A2: "C", MAF: "0.1", Codes: []byte{bedHomA2, bedHomA2, bedHomA2, bedHomA2}},
	}
}

func TestPLINKChromosome(t *testing.T) {
	prefix := writeBFile(t, "22", defaultFixture())

	panel := &PLINK{Prefix: prefix, Normalize: false}
	chrom, err := panel.Chromosome(context.Background(), "22")
	require.NoError(t, err)
	defer chrom.Close()

	require.Equal(t, 4, chrom.NSamples())

	snps := chrom.SNPs()
	require.Len(t, snps, 4)
	assert.Equal(t, "rs2", snps[1].ID)
	assert.Equal(t, uint32(200), snps[1].Position)
	assert.Equal(t, "C", snps[1].A1)
	assert.Equal(t, 0.25, snps[1].MAF)
	assert.True(t, snps[0].HasMetadata())
	assert.False(t, snps[2].HasMetadata())

	X, err := chrom.Genotypes([]int{0, 1})
	require.NoError(t, err)

	rows, cols := X.Dims()
	require.Equal(t, 4, rows)
	require.Equal(t, 2, cols)

	assert.Equal(t, []float64{2, 1, 0, 1}, colOf(X, 0))
	// Missing calls are zero-filled
	assert.Equal(t, []float64{0, 0, 1, 0}, colOf(X, 1))
}

func TestPLINKNormalized(t *testing.T) {
	prefix := writeBFile(t, "22", defaultFixture())

	panel := &PLINK{Prefix: prefix, Normalize: true}
	chrom, err := panel.Chromosome(context.Background(), "22")
	require.NoError(t, err)
	defer chrom.Close()

	X, err := chrom.Genotypes([]int{0, 2, 3})
	require.NoError(t, err)

	// rs1 dosages 2,1,0,1: mean 1, population SD sqrt(0.5)
	sd := math.Sqrt(0.5)
	expected := []float64{1 / sd, 0, -1 / sd, 0}
	for i, v := range colOf(X, 0) {
		assert.InDelta(t, expected[i], v, 1e-12)
	}

	// Monomorphic SNPs become all zero
	assert.Equal(t, []float64{0, 0, 0, 0}, colOf(X, 1))
	assert.Equal(t, []float64{0, 0, 0, 0}, colOf(X, 2))
}

func TestPLINKPercentTemplate(t *testing.T) {
	prefix := writeBFile(t, "7", defaultFixture())

	panel := &PLINK{Prefix: prefix + "%s"}
	chrom, err := panel.Chromosome(context.Background(), "7")
	require.NoError(t, err)
	defer chrom.Close()

	assert.Len(t, chrom.SNPs(), 4)
}

func TestOpenBEDRejectsBadInput(t *testing.T) {
	dir := t.TempDir()

	badMagic := filepath.Join(dir, "bad.bed")
	require.NoError(t, os.WriteFile(badMagic, []byte{0x6c, 0x1b, 0x00, 0xff}, 0644))
	_, err := OpenBED(context.Background(), badMagic, nil, 4, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SNP-major")

	truncated := filepath.Join(dir, "short.bed")
	require.NoError(t, os.WriteFile(truncated, append(append([]byte{}, BEDMagic...), 0xff), 0644))
	_, err = OpenBED(context.Background(), truncated, nil, 4, 2)
	require.Error(t, err)
}

func TestOpenBEDFromGoogleStorageNeedsClient(t *testing.T) {
	_, err := OpenBED(context.Background(), "gs://bucket/panel.22.bed", nil, 4, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no storage client")
}

func TestDuplicateSNPIDs(t *testing.T) {
	snps := defaultFixture()
	snps[3].ID = "rs1"
	prefix := writeBFile(t, "22", snps)

	_, err := (&PLINK{Prefix: prefix}).Chromosome(context.Background(), "22")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rs1")
}

func TestReadFRQ(t *testing.T) {
	input := ` CHR  SNP   A1   A2   MAF  NCHROBS
  22  rs1    A    G   0.3   1000
  22  rs2    C    T    NA      0
`
	mafs, err := ReadFRQ(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"rs1": 0.3}, mafs)

	_, err = ReadFRQ(strings.NewReader("CHR SNP A1 A2\n"))
	require.Error(t, err)
}

func TestAssignMAF(t *testing.T) {
	snps := []SNP{{ID: "rs1"}, {ID: "rs2"}}
	assignMAF(snps, map[string]float64{"rs1": 0.3})

	assert.Equal(t, 0.3, snps[0].MAF)
	assert.True(t, math.IsNaN(snps[1].MAF))
	assert.False(t, snps[1].HasMetadata())
}

func TestProbabilityDosages(t *testing.T) {
	probs := []bgen.SampleProbability{
		{Ploidy: 2, Probabilities: []float64{1, 0, 0}},
		{Ploidy: 2, Probabilities: []float64{0.1, 0.8, 0.1}},
		{Ploidy: 2, Probabilities: []float64{0, 0, 1}},
		{Missing: true, Ploidy: 2, Probabilities: []float64{1, 0, 0}},
		{Ploidy: 1, Probabilities: []float64{1, 0}},
		{Ploidy: 2, Probabilities: []float64{0.25, 0.25, 0.25, 0.25}},
	}
	dosages := make([]float64, len(probs))
	missing := make([]bool, len(probs))

	require.NoError(t, probabilityDosages(probs, dosages, missing))
	assert.InDeltaSlice(t, []float64{2, 1, 0, 0, 0, 0}, dosages, 1e-12)
	assert.Equal(t, []bool{false, false, false, true, true, true}, missing)

	assert.Error(t, probabilityDosages(probs[:2], dosages, missing))
}

func TestBGENFrequenciesFromFRQ(t *testing.T) {
	dir := t.TempDir()
	frq := " CHR  SNP   A1   A2   MAF  NCHROBS\n  22  rs1    A    G   0.3   1000\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "chr22.frq"), []byte(frq), 0644))

	snps := []SNP{{ID: "rs1"}, {ID: "rs2"}}
	p := &BGEN{FRQTemplate: filepath.Join(dir, "chr%s.frq")}
	require.NoError(t, p.readMAF(context.Background(), "22", snps))
	assert.Equal(t, 0.3, snps[0].MAF)
	assert.True(t, math.IsNaN(snps[1].MAF))

	require.Error(t, p.readMAF(context.Background(), "21", snps))
}

func TestBGENMissingIndex(t *testing.T) {
	dir := t.TempDir()
	_, err := (&BGEN{Template: filepath.Join(dir, "chr%s.bgen")}).Chromosome(context.Background(), "22")
	require.Error(t, err)
}

func TestStandardize(t *testing.T) {
	dosages := []float64{2, 0, 7, 0}
	missing := []bool{false, false, true, false}
	Standardize(dosages, missing)

	// Observed 2,0,0: mean 2/3, population SD sqrt(8/9)
	sd := math.Sqrt(8.0 / 9.0)
	assert.InDelta(t, (2-2.0/3)/sd, dosages[0], 1e-12)
	assert.InDelta(t, (0-2.0/3)/sd, dosages[1], 1e-12)
	assert.Equal(t, 0.0, dosages[2])

	allMissing := []float64{1, 1}
	Standardize(allMissing, []bool{true, true})
	assert.Equal(t, []float64{0, 0}, allMissing)
}

func TestMinorAlleleFrequency(t *testing.T) {
	assert.InDelta(t, 0.25, MinorAlleleFrequency([]float64{2, 2, 2, 0}, make([]bool, 4)), 1e-12)
	assert.InDelta(t, 0.5, MinorAlleleFrequency([]float64{2, 0, 9}, []bool{false, false, true}), 1e-12)
	assert.Equal(t, 0.0, MinorAlleleFrequency([]float64{1}, []bool{true}))
}

func TestBlockIterator(t *testing.T) {
	prefix := writeBFile(t, "22", defaultFixture())

	chrom, err := (&PLINK{Prefix: prefix, Normalize: true}).Chromosome(context.Background(), "22")
	require.NoError(t, err)
	defer chrom.Close()

	blocks := []ldblocks.Block{
		{Index: 0, Chromosome: "chr21", Start: 0, End: 1000},
		{Index: 1, Chromosome: "chr22", Start: 0, End: 100},
		{Index: 2, Chromosome: "chr22", Start: 100, End: 300},
		{Index: 3, Chromosome: "chr22", Start: 300, End: 350},
		{Index: 4, Chromosome: "chr22", Start: 350, End: 1000},
		{Index: 5, Chromosome: "chr22", Start: math.NaN(), End: 1000},
	}

	it := NewBlockIterator(context.Background(), chrom, blocks)

	seen := make(map[int][]int)
	for it.Next() {
		bd := it.Block()
		_, cols := bd.X.Dims()
		require.Equal(t, len(bd.Rows), cols)
		seen[bd.Block.Index] = bd.Rows
	}
	require.NoError(t, it.Err())

	// Block 1 ends before rs1 (half-open), block 3 only holds rs3 which has
	// no frequency, and block 0 is on another chromosome.
	assert.Equal(t, map[int][]int{
		2: {0, 1},
		4: {3},
	}, seen)

	assert.False(t, it.Next())
}

func TestBlockIteratorCancelled(t *testing.T) {
	prefix := writeBFile(t, "22", defaultFixture())

	chrom, err := (&PLINK{Prefix: prefix}).Chromosome(context.Background(), "22")
	require.NoError(t, err)
	defer chrom.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	it := NewBlockIterator(ctx, chrom, []ldblocks.Block{{Chromosome: "22", Start: 0, End: 1000}})
	assert.False(t, it.Next())
	assert.ErrorIs(t, it.Err(), context.Canceled)
}

func TestTemplated(t *testing.T) {
	assert.Equal(t, "/ref/1000G.EUR.QC.22", templated("/ref/1000G.EUR.QC.", "22"))
	assert.Equal(t, "/ref/chr22.bgen", templated("/ref/chr%s.bgen", "22"))
}

func colOf(X mat.Matrix, j int) []float64 {
	return mat.Col(nil, j, X)
}
