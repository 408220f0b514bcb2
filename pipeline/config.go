package pipeline

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/carbocation/ldannot/ldblocks"
	"github.com/carbocation/ldannot/snptable"
)

// Config describes one batch run.
type Config struct {
	// Annotations are per-chromosome file prefixes; see annotation.Source.
	Annotations []string

	// Baselines are merged into every annotation's table ahead of its own
	// columns but never get results of their own.
	Baselines []string

	// AnnotationSuffix follows the chromosome in annotation file names. Empty
	// tries .sannot.gz, .annot.gz, .sannot and .annot.
	AnnotationSuffix string

	PrintSNPs string

	Units snptable.Units

	// Exactly one of PanelPrefix (PLINK bfiles) and BGENTemplate is set.
	PanelPrefix  string
	BGENTemplate string

	// BGENFRQTemplate supplies BGEN allele frequencies from plink --freq
	// output instead of a pass over every variant.
	BGENFRQTemplate string

	LDBlocks        string
	ExtraExclusions []ldblocks.Region

	Chromosomes []string

	MissingValue float64

	// StrictAlignment requires full annotations to list the panel's SNPs in
	// the panel's order. When false they are reconciled by SNP ID.
	StrictAlignment bool

	// FailFast aborts the run at the first failed chromosome instead of
	// moving on to the next one.
	FailFast bool

	// Normalize standardizes genotypes per SNP.
	Normalize bool

	WriteNumpy bool

	// OutputDir, when set, replaces the directory of the annotation stem.
	OutputDir string
}

// DefaultConfig returns the defaults of every optional setting.
func DefaultConfig() Config {
	chroms, _ := ParseChromosomes("1-22")

	return Config{
		Units:           snptable.PerAllele,
		Chromosomes:     chroms,
		StrictAlignment: true,
		Normalize:       true,
	}
}

func (c Config) Validate() error {
	switch {
	case len(c.Annotations) == 0:
		return fmt.Errorf("at least one annotation is required")
	case c.PrintSNPs == "":
		return fmt.Errorf("a print-SNP file is required")
	case c.LDBlocks == "":
		return fmt.Errorf("an LD block file is required")
	case c.PanelPrefix == "" && c.BGENTemplate == "":
		return fmt.Errorf("a reference panel is required: pass a PLINK prefix or a BGEN template")
	case c.PanelPrefix != "" && c.BGENTemplate != "":
		return fmt.Errorf("pass either a PLINK prefix or a BGEN template, not both")
	case c.BGENFRQTemplate != "" && c.BGENTemplate == "":
		return fmt.Errorf("a BGEN frequency template needs a BGEN template")
	case len(c.Chromosomes) == 0:
		return fmt.Errorf("no chromosomes to process")
	}

	if c.Units != snptable.PerAllele && c.Units != snptable.PerNormGenotype {
		return fmt.Errorf("unrecognized units %v", c.Units)
	}

	return nil
}

// ParseChromosomes expands a list such as "1-22" or "1,2,5-7,X".
func ParseChromosomes(s string) ([]string, error) {
	out := make([]string, 0)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		bounds := strings.SplitN(part, "-", 2)
		if len(bounds) == 1 {
			out = append(out, part)
			continue
		}

		from, err := strconv.Atoi(strings.TrimSpace(bounds[0]))
		if err != nil {
			return nil, fmt.Errorf("chromosome range %q: %w", part, err)
		}
		to, err := strconv.Atoi(strings.TrimSpace(bounds[1]))
		if err != nil {
			return nil, fmt.Errorf("chromosome range %q: %w", part, err)
		}
		if from > to {
			return nil, fmt.Errorf("chromosome range %q runs backwards", part)
		}

		for chr := from; chr <= to; chr++ {
			out = append(out, strconv.Itoa(chr))
		}
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("no chromosomes in %q", s)
	}

	return out, nil
}
