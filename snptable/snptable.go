// Package snptable joins reference-panel SNP metadata with baseline and
// current annotation values, the print-SNP flags and the per-SNP results for
// one (annotation, chromosome) pass.
package snptable

import (
	"bufio"
	"context"
	"fmt"
	"math"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/carbocation/ldannot"
	"github.com/carbocation/ldannot/annotation"
	"github.com/carbocation/ldannot/refpanel"
	"github.com/carbocation/pfx"
	"gonum.org/v1/gonum/mat"
)

// ResultSuffix is appended to a current annotation name to name its per-SNP
// result column.
const ResultSuffix = ".R"

// Table rows are the panel's SNPs in panel order. Annotation columns are the
// baselines first, in the order given, then the current annotation.
type Table struct {
	SNPs []refpanel.SNP

	Names     []string
	NBaseline int

	// Values is len(SNPs) × len(Names).
	Values *mat.Dense

	PrintSNP []bool

	// Results is len(SNPs) × NCurrent(), zero until a block sets it.
	Results *mat.Dense

	// Missing counts panel SNPs that took the missing value in the current
	// annotation.
	Missing int
}

// Build assembles the table. Every Columns must be aligned to snps.
func Build(snps []refpanel.SNP, baselines []*annotation.Columns, current *annotation.Columns, printSNPs map[string]struct{}) (*Table, error) {
	if len(snps) == 0 {
		return nil, fmt.Errorf("the reference panel has no SNPs")
	}
	if current == nil || len(current.Names) == 0 {
		return nil, fmt.Errorf("the current annotation has no columns")
	}

	all := append(append([]*annotation.Columns{}, baselines...), current)

	t := &Table{
		SNPs:     snps,
		PrintSNP: make([]bool, len(snps)),
		Missing:  current.Missing,
	}

	seen := make(map[string]struct{})
	for _, cols := range all {
		rows, _ := cols.Values.Dims()
		if rows != len(snps) {
			return nil, fmt.Errorf("annotation columns %v have %d rows, but the panel has %d SNPs", cols.Names, rows, len(snps))
		}
		for _, name := range cols.Names {
			if _, exists := seen[name]; exists {
				return nil, fmt.Errorf("annotation column %q appears more than once across the baseline and current annotations", name)
			}
			seen[name] = struct{}{}
		}
		t.Names = append(t.Names, cols.Names...)
	}
	t.NBaseline = len(t.Names) - len(current.Names)

	t.Values = mat.NewDense(len(snps), len(t.Names), nil)
	offset := 0
	for _, cols := range all {
		_, c := cols.Values.Dims()
		t.Values.Slice(0, len(snps), offset, offset+c).(*mat.Dense).Copy(cols.Values)
		offset += c
	}

	for i, snp := range snps {
		if _, exists := printSNPs[snp.ID]; exists {
			t.PrintSNP[i] = true
		}
	}

	t.Results = mat.NewDense(len(snps), t.NCurrent(), nil)

	return t, nil
}

// NCurrent is the number of current-annotation columns, which trail the
// baselines.
func (t *Table) NCurrent() int {
	return len(t.Names) - t.NBaseline
}

func (t *Table) CurrentNames() []string {
	return t.Names[t.NBaseline:]
}

// ResultNames are the per-SNP result column names.
func (t *Table) ResultNames() []string {
	out := make([]string, 0, t.NCurrent())
	for _, name := range t.CurrentNames() {
		out = append(out, name+ResultSuffix)
	}

	return out
}

// NPrint counts the print SNPs.
func (t *Table) NPrint() int {
	n := 0
	for _, p := range t.PrintSNP {
		if p {
			n++
		}
	}

	return n
}

// Block returns the values (len(rows) × len(Names), a copy) and print mask of
// the given rows.
func (t *Table) Block(rows []int) (*mat.Dense, []bool) {
	_, k := t.Values.Dims()

	V := mat.NewDense(len(rows), k, nil)
	mask := make([]bool, len(rows))
	for i, row := range rows {
		V.SetRow(i, t.Values.RawRowView(row))
		mask[i] = t.PrintSNP[row]
	}

	return V, mask
}

// SetResults stores per-SNP results for the given rows. res is
// len(rows) × NCurrent().
func (t *Table) SetResults(rows []int, res mat.Matrix) error {
	r, c := res.Dims()
	if r != len(rows) || c != t.NCurrent() {
		return fmt.Errorf("results are %d×%d, expected %d×%d", r, c, len(rows), t.NCurrent())
	}

	for i, row := range rows {
		for j := 0; j < c; j++ {
			t.Results.Set(row, j, res.At(i, j))
		}
	}

	return nil
}

// PrintRows are the rows flagged as print SNPs, in panel order.
func (t *Table) PrintRows() []int {
	out := make([]int, 0)
	for i, p := range t.PrintSNP {
		if p {
			out = append(out, i)
		}
	}

	return out
}

// ScaleByMAF converts annotation values from per-normalized-genotype to
// per-allele units by multiplying every column by sqrt(2·MAF·(1−MAF)). SNPs
// with no frequency are left unscaled; they never enter a block.
func (t *Table) ScaleByMAF(units Units) {
	if units != PerAllele {
		return
	}

	for i, snp := range t.SNPs {
		if !snp.HasMetadata() {
			continue
		}
		scale := math.Sqrt(2 * snp.MAF * (1 - snp.MAF))
		row := t.Values.RawRowView(i)
		for j := range row {
			row[j] *= scale
		}
	}
}

// Release drops the table's backing storage so that it can be collected
// before the next chromosome is built.
func (t *Table) Release() {
	t.SNPs = nil
	t.Values = nil
	t.PrintSNP = nil
	t.Results = nil
}

// ReadPrintSNPs reads one SNP ID per line. Blank lines are ignored and only
// the first whitespace-delimited field of a line is used.
func ReadPrintSNPs(ctx context.Context, path string, client *storage.Client) (map[string]struct{}, error) {
	f, err := ldannot.Open(ctx, path, client)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	out := make(map[string]struct{})
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		out[fields[0]] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return nil, pfx.Err(fmt.Errorf("%s: %w", path, err))
	}

	return out, nil
}
