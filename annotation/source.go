package annotation

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/carbocation/ldannot"
	"github.com/carbocation/pfx"
	"gonum.org/v1/gonum/mat"
)

// DefaultSuffixes are tried in order when a Source has no explicit Suffix.
var DefaultSuffixes = []string{".sannot.gz", ".annot.gz", ".sannot", ".annot"}

// Source locates the per-chromosome files of one annotation. Files live at
// Prefix + chr + Suffix, or, when Prefix contains %s, with the chromosome
// substituted for the %s.
type Source struct {
	Prefix string

	// Suffix is appended after the chromosome. When empty, DefaultSuffixes
	// are tried.
	Suffix string

	Storage *storage.Client
}

// Stem is the prefix with the chromosome placeholder removed. Outputs for the
// annotation are named from it.
func (s Source) Stem() string {
	return strings.Replace(s.Prefix, "%s", "", 1)
}

func (s Source) withChromosome(chr string) string {
	if strings.Contains(s.Prefix, "%s") {
		return strings.Replace(s.Prefix, "%s", chr, 1)
	}
	return s.Prefix + chr
}

// Path returns the file holding chromosome chr.
func (s Source) Path(ctx context.Context, chr string) (string, error) {
	base := s.withChromosome(chr)
	if s.Suffix != "" {
		return base + s.Suffix, nil
	}

	for _, suffix := range DefaultSuffixes {
		if ldannot.Exists(ctx, base+suffix, s.Storage) {
			return base + suffix, nil
		}
	}

	return "", fmt.Errorf("no annotation file for chromosome %s: tried %s{%s}", chr, base, strings.Join(DefaultSuffixes, ","))
}

// Load reads the annotation for chromosome chr.
func (s Source) Load(ctx context.Context, chr string) (Annotation, error) {
	path, err := s.Path(ctx, chr)
	if err != nil {
		return nil, err
	}

	f, err := ldannot.Open(ctx, path, s.Storage)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	a, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return a, nil
}

// Parse reads an annotation table with a header row. If the header has a SNP
// column the result is a *Full, otherwise a *Thin. The delimiter is sniffed
// from the header.
func Parse(r io.Reader) (Annotation, error) {
	br := bufio.NewReaderSize(r, 64*1024)
	split := splitter(ldannot.DetermineDelimiter(br))

	headerLine, err := readLine(br)
	if err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("annotation file is empty")
		}
		return nil, pfx.Err(err)
	}
	header := split(headerLine)

	colSNP, colA1, colA2 := -1, -1, -1
	valueCols := make([]int, 0, len(header))
	names := make([]string, 0, len(header))
	for i, name := range header {
		switch strings.ToUpper(name) {
		case ColSNP:
			colSNP = i
		case ColAllele1:
			colA1 = i
		case ColAllele2:
			colA2 = i
		}
		if IsStandardColumn(name) {
			continue
		}
		valueCols = append(valueCols, i)
		names = append(names, name)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("annotation header has no value columns. Saw: %q", headerLine)
	}

	values := make([]float64, 0)
	entries := make([]Entry, 0)
	for line := 2; ; line++ {
		text, err := readLine(br)
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, pfx.Err(err)
		}
		if strings.TrimSpace(text) == "" {
			continue
		}

		fields := split(text)
		if len(fields) != len(header) {
			return nil, fmt.Errorf("line %d has %d fields, but the header has %d", line, len(fields), len(header))
		}

		for j, col := range valueCols {
			v, err := strconv.ParseFloat(fields[col], 64)
			if err != nil {
				return nil, fmt.Errorf("line %d, column %s: %w", line, names[j], err)
			}
			values = append(values, v)
		}

		if colSNP >= 0 {
			e := Entry{ID: fields[colSNP]}
			if colA1 >= 0 && colA2 >= 0 {
				e.A1, e.A2 = fields[colA1], fields[colA2]
			}
			entries = append(entries, e)
		}
	}

	nRows := len(values) / len(names)
	if nRows == 0 {
		return nil, fmt.Errorf("annotation has a header but no rows")
	}
	dense := mat.NewDense(nRows, len(names), values)

	if colSNP >= 0 {
		return &Full{SNPs: entries, Names: names, Values: dense}, nil
	}

	return &Thin{Names: names, Values: dense}, nil
}

// readLine returns the next line without its terminator. The final line need
// not end in a newline.
func readLine(br *bufio.Reader) (string, error) {
	line, err := br.ReadString('\n')
	if err == io.EOF && line != "" {
		err = nil
	}
	if err != nil {
		return "", err
	}

	return strings.TrimRight(line, "\r\n"), nil
}

func splitter(delim rune) func(string) []string {
	if delim == ' ' {
		return strings.Fields
	}

	sep := string(delim)
	return func(s string) []string {
		fields := strings.Split(s, sep)
		for i := range fields {
			fields[i] = strings.TrimSpace(fields[i])
		}
		return fields
	}
}
