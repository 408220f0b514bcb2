// Package output writes the per-block annotation matrices, the per-SNP
// results and the LD-block summary of one annotation.
package output

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/carbocation/ldannot/ldblocks"
	"github.com/carbocation/pfx"
	"github.com/klauspost/pgzip"
	"github.com/kshedden/gonpy"
	"gonum.org/v1/gonum/mat"
)

// Writer names every output file by prepending Stem, which is typically a
// directory plus the annotation's file prefix.
type Writer struct {
	Stem string

	// Numpy additionally writes each block matrix as a float64 .npy.
	Numpy bool
}

func (w Writer) path(name string) string {
	return w.Stem + name
}

// VTRVPath and VTVPath are the files holding a block's matrices.
func (w Writer) VTRVPath(block int) string { return w.path("VTRV." + strconv.Itoa(block)) }
func (w Writer) VTVPath(block int) string  { return w.path("VTV." + strconv.Itoa(block)) }

// ResultsPath holds the per-SNP results of one chromosome.
func (w Writer) ResultsPath(chr string) string { return w.path(chr + ".RV.gz") }

// LDBlocksPath holds the LD-block partition that was used.
func (w Writer) LDBlocksPath() string { return w.path("ldblocks") }

// BlockMatrices writes VTRV and VTV for one block.
func (w Writer) BlockMatrices(block int, names []string, vtrv, vtv mat.Matrix) error {
	for _, item := range []struct {
		path string
		m    mat.Matrix
	}{
		{w.VTRVPath(block), vtrv},
		{w.VTVPath(block), vtv},
	} {
		if err := writeFile(item.path, func(f io.Writer) error {
			return WriteMatrix(f, names, item.m)
		}); err != nil {
			return err
		}

		if !w.Numpy {
			continue
		}
		if err := writeFile(item.path+".npy", func(f io.Writer) error {
			return WriteNumpy(f, item.m)
		}); err != nil {
			return err
		}
	}

	return nil
}

// Results writes the rows of results (len(SNPs) × len(names)) selected by
// rows to a gzipped table.
func (w Writer) Results(chr string, names []string, results mat.Matrix, rows []int) error {
	return writeFile(w.ResultsPath(chr), func(f io.Writer) error {
		gz := pgzip.NewWriter(f)
		if err := WriteResults(gz, names, results, rows); err != nil {
			gz.Close()
			return err
		}
		if err := gz.Close(); err != nil {
			return pfx.Err(err)
		}
		return nil
	})
}

// LDBlocks writes the summary of the partition.
func (w Writer) LDBlocks(blocks []ldblocks.Block) error {
	return writeFile(w.LDBlocksPath(), func(f io.Writer) error {
		return ldblocks.WriteSummary(f, blocks)
	})
}

// WriteMatrix writes a square matrix labelled by names on both axes. The
// header row starts with an empty cell.
func WriteMatrix(w io.Writer, names []string, m mat.Matrix) error {
	r, c := m.Dims()
	if r != len(names) || c != len(names) {
		return fmt.Errorf("matrix is %d×%d but there are %d names", r, c, len(names))
	}

	bw := bufio.NewWriter(w)
	bw.WriteString("\t" + strings.Join(names, "\t") + "\n")

	for i, name := range names {
		bw.WriteString(name)
		for j := 0; j < c; j++ {
			bw.WriteByte('\t')
			bw.WriteString(formatFloat(m.At(i, j)))
		}
		bw.WriteByte('\n')
	}

	if err := bw.Flush(); err != nil {
		return pfx.Err(err)
	}

	return nil
}

// WriteResults writes a header of names, then one row per entry of rows.
func WriteResults(w io.Writer, names []string, results mat.Matrix, rows []int) error {
	_, c := results.Dims()
	if c != len(names) {
		return fmt.Errorf("results have %d columns but there are %d names", c, len(names))
	}

	bw := bufio.NewWriter(w)
	bw.WriteString(strings.Join(names, "\t") + "\n")

	for _, row := range rows {
		for j := 0; j < c; j++ {
			if j > 0 {
				bw.WriteByte('\t')
			}
			bw.WriteString(formatFloat(results.At(row, j)))
		}
		bw.WriteByte('\n')
	}

	if err := bw.Flush(); err != nil {
		return pfx.Err(err)
	}

	return nil
}

// WriteNumpy writes m as a row-major float64 .npy array.
func WriteNumpy(w io.Writer, m mat.Matrix) error {
	r, c := m.Dims()

	data := make([]float64, 0, r*c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			data = append(data, m.At(i, j))
		}
	}

	bufw := bufio.NewWriter(w)
	npw, err := gonpy.NewWriter(nopCloser{bufw})
	if err != nil {
		return pfx.Err(err)
	}
	npw.Shape = []int{r, c}
	if err := npw.WriteFloat64(data); err != nil {
		return pfx.Err(err)
	}

	if err := bufw.Flush(); err != nil {
		return pfx.Err(err)
	}

	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// writeFile creates path (and its directory) and hands it to fill. The file
// is closed even when fill fails.
func writeFile(path string, fill func(io.Writer) error) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return pfx.Err(err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return pfx.Err(err)
	}

	if err := fill(f); err != nil {
		f.Close()
		return fmt.Errorf("%s: %w", path, err)
	}

	if err := f.Close(); err != nil {
		return pfx.Err(err)
	}

	return nil
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }
