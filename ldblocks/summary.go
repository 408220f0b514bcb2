package ldblocks

import (
	"encoding/csv"
	"io"
	"math"

	"github.com/carbocation/pfx"
	"github.com/gocarina/gocsv"
)

type summaryRow struct {
	Chromosome string `csv:"chr"`
	Start      int64  `csv:"start"`
	End        int64  `csv:"end"`
}

func zeroNaN(v float64) int64 {
	if math.IsNaN(v) {
		return 0
	}
	return int64(v)
}

// WriteSummary writes the partition as a tab-delimited chr/start/end table
// with a header. Unknown bounds are written as 0.
func WriteSummary(w io.Writer, blocks []Block) error {
	rows := make([]*summaryRow, 0, len(blocks))
	for _, b := range blocks {
		rows = append(rows, &summaryRow{
			Chromosome: b.Chromosome,
			Start:      zeroNaN(b.Start),
			End:        zeroNaN(b.End),
		})
	}

	cw := csv.NewWriter(w)
	cw.Comma = '\t'

	if len(rows) == 0 {
		// gocsv cannot derive a header from an empty slice
		if err := cw.Write([]string{"chr", "start", "end"}); err != nil {
			return pfx.Err(err)
		}
		cw.Flush()
		if err := cw.Error(); err != nil {
			return pfx.Err(err)
		}
		return nil
	}

	if err := gocsv.MarshalCSV(rows, gocsv.NewSafeCSVWriter(cw)); err != nil {
		return pfx.Err(err)
	}

	return nil
}
