// preprocessannot computes, for each annotation, chromosome and LD block, the
// LD-weighted annotation covariance (VTRV), the raw annotation cross-product
// (VTV) and the per-SNP LD-weighted annotation values of the print SNPs.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"cloud.google.com/go/storage"
	"github.com/carbocation/ldannot/compileinfo"
	"github.com/carbocation/ldannot/pipeline"
	"github.com/carbocation/ldannot/snptable"
	"github.com/mattn/go-isatty"
	log "github.com/sirupsen/logrus"

	_ "github.com/carbocation/ldannot/compileinfoprint"
)

func main() {
	fmt.Fprintf(os.Stderr, "%q\n", os.Args)

	if !isatty.IsTerminal(os.Stderr.Fd()) {
		log.StandardLogger().Formatter = &log.TextFormatter{DisableTimestamp: true}
	}

	cfg := pipeline.DefaultConfig()

	var annotations, baselines flagSlice
	var exclusions regionSlice
	var units, chroms, logLevel string
	var perNormGenotype bool

	flag.Var(&annotations, "sannot-chr", "Prefix of a per-chromosome annotation, e.g. /annot/coding. for /annot/coding.22.sannot.gz. A %s marks the chromosome if it is not at the end. Pass more than once, or comma-delimit, to process several annotations.")
	flag.Var(&baselines, "baseline-sannot-chr", "Prefix of a per-chromosome baseline annotation. Baselines are merged into every annotation's matrices but get no results of their own. May be passed more than once.")
	flag.StringVar(&cfg.AnnotationSuffix, "sannot-suffix", "", "Suffix after the chromosome in annotation file names. If blank, .sannot.gz, .annot.gz, .sannot and .annot are tried in that order.")
	flag.StringVar(&cfg.PrintSNPs, "print-snps", "", "File with one SNP ID per line. Only these SNPs get per-SNP results.")
	flag.StringVar(&units, "units", snptable.PerAllele.String(), "Units of the annotation values: per-allele (scale annotations by sqrt(2*MAF*(1-MAF))) or per-norm-genotype (leave them as given).")
	flag.BoolVar(&perNormGenotype, "per-norm-genotype", false, "Shortcut for -units per-norm-genotype.")
	flag.StringVar(&cfg.PanelPrefix, "bfile-chr", "", "Prefix of the per-chromosome PLINK reference panel, e.g. /ref/1000G.EUR.QC. for /ref/1000G.EUR.QC.22.bed. A .frq from plink --freq must sit next to each .bed.")
	flag.StringVar(&cfg.BGENTemplate, "bgen", "", "Alternative to -bfile-chr: BGEN template with %s in place of the chromosome. The .bgi index must be alongside.")
	flag.StringVar(&cfg.BGENFRQTemplate, "bgen-frq", "", "Optional plink --freq output per chromosome for -bgen, with %s in place of the chromosome. If blank, frequencies are computed from the dosages.")
	flag.StringVar(&cfg.LDBlocks, "ld-blocks", "", "Whitespace-delimited chr/start/end LD block file. Blocks overlapping the MHC are dropped.")
	flag.Var(&exclusions, "exclude", "Additional chr:start-end region whose LD blocks should be dropped. May be passed more than once.")
	flag.StringVar(&chroms, "chroms", "1-22", "Chromosomes to process, e.g. 1-22 or 1,2,5.")
	flag.Float64Var(&cfg.MissingValue, "missing-value", 0, "Annotation value given to panel SNPs that the annotation does not cover.")
	flag.BoolVar(&cfg.StrictAlignment, "strict-alignment", true, "Require annotations with a SNP column to list the panel's SNPs in the panel's order. If false, they are matched by SNP ID and allele.")
	flag.BoolVar(&cfg.FailFast, "fail-fast", false, "Abort the whole run at the first chromosome that fails alignment instead of continuing with the next one.")
	flag.BoolVar(&cfg.Normalize, "normalize", true, "Standardize each reference SNP to mean 0 and variance 1.")
	flag.BoolVar(&cfg.WriteNumpy, "npy", false, "Also write each VTRV and VTV matrix as a .npy file.")
	flag.StringVar(&cfg.OutputDir, "out", "", "Directory for outputs. If blank, outputs are written next to each annotation.")
	flag.StringVar(&logLevel, "loglevel", "info", "Logging level: debug, info, warn or error.")
	flag.Parse()

	level, err := log.ParseLevel(logLevel)
	if err != nil {
		log.Fatalln(err)
	}
	log.SetLevel(level)
	log.WithFields(compileinfo.Get().Fields()).Debugln("Build")

	cfg.Annotations = annotations
	cfg.Baselines = baselines
	cfg.ExtraExclusions = exclusions

	if perNormGenotype {
		units = snptable.PerNormGenotype.String()
	}
	if cfg.Units, err = snptable.ParseUnits(units); err != nil {
		log.Fatalln(err)
	}

	if cfg.Chromosomes, err = pipeline.ParseChromosomes(chroms); err != nil {
		log.Fatalln(err)
	}

	if err := cfg.Validate(); err != nil {
		log.Errorln(err)
		flag.PrintDefaults()
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		log.Fatalln(err)
	}

	log.Infoln("Done")
}

func run(cfg pipeline.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize the Google Storage client only if we're pointing to Google
	// Storage paths.
	var client *storage.Client
	if usesGoogleStorage(cfg) {
		var err error
		client, err = storage.NewClient(ctx)
		if err != nil {
			return err
		}
		defer client.Close()
	}

	runner, err := pipeline.New(cfg, client, log.StandardLogger())
	if err != nil {
		return err
	}

	return runner.Run(ctx)
}

func usesGoogleStorage(cfg pipeline.Config) bool {
	paths := []string{cfg.PrintSNPs, cfg.LDBlocks, cfg.PanelPrefix, cfg.BGENFRQTemplate}
	paths = append(paths, cfg.Annotations...)
	paths = append(paths, cfg.Baselines...)

	for _, path := range paths {
		if strings.HasPrefix(path, "gs://") {
			return true
		}
	}

	return false
}
