package refpanel

import (
	"bytes"
	"context"
	"fmt"

	"cloud.google.com/go/storage"
	"github.com/carbocation/ldannot"
	"github.com/carbocation/pfx"
)

// BEDMagic is the PLINK 1.9 header: two magic bytes and 0x01 for SNP-major
// layout.
var BEDMagic = []byte{0x6c, 0x1b, 0x01}

// Two-bit genotype codes in a PLINK .bed, low bits first within each byte.
const (
	bedHomA1   = 0x0
	bedMissing = 0x1
	bedHet     = 0x2
	bedHomA2   = 0x3
)

// BED provides random access to the SNP-major genotypes of a PLINK .bed, local
// or on Google Storage.
type BED struct {
	path        string
	file        ldannot.ReaderAtCloser
	nSamples    int
	nSNPs       int
	bytesPerSNP int
	buf         []byte
}

// OpenBED validates the header and size of the .bed against the sample and
// SNP counts from the .fam and .bim.
func OpenBED(ctx context.Context, path string, client *storage.Client, nSamples, nSNPs int) (*BED, error) {
	f, err := ldannot.OpenReaderAt(ctx, path, client)
	if err != nil {
		return nil, err
	}

	b := &BED{
		path:        path,
		file:        f,
		nSamples:    nSamples,
		nSNPs:       nSNPs,
		bytesPerSNP: (nSamples + 3) / 4,
	}
	b.buf = make([]byte, b.bytesPerSNP)

	header := make([]byte, len(BEDMagic))
	if _, err := f.ReadAt(header, 0); err != nil {
		f.Close()
		return nil, pfx.Err(fmt.Errorf("%s: %w", path, err))
	}
	if !bytes.Equal(header, BEDMagic) {
		f.Close()
		return nil, pfx.Err(fmt.Errorf("%s: not a SNP-major PLINK .bed (header %x)", path, header))
	}

	if want := int64(len(BEDMagic)) + int64(b.bytesPerSNP)*int64(nSNPs); f.Size() != want {
		f.Close()
		return nil, pfx.Err(fmt.Errorf("%s: expected %d bytes for %d samples and %d SNPs, found %d", path, want, nSamples, nSNPs, f.Size()))
	}

	return b, nil
}

func (b *BED) Close() error {
	return b.file.Close()
}

// ReadDosages decodes the A1 allele counts of one SNP into dosages, flagging
// missing calls. Both slices must have one entry per sample.
func (b *BED) ReadDosages(snp int, dosages []float64, missing []bool) error {
	if snp < 0 || snp >= b.nSNPs {
		return fmt.Errorf("%s: SNP row %d out of range [0, %d)", b.path, snp, b.nSNPs)
	}

	offset := int64(len(BEDMagic)) + int64(snp)*int64(b.bytesPerSNP)
	if _, err := b.file.ReadAt(b.buf, offset); err != nil {
		return pfx.Err(fmt.Errorf("%s: SNP row %d: %w", b.path, snp, err))
	}

	for i := 0; i < b.nSamples; i++ {
		code := (b.buf[i/4] >> (2 * uint(i%4))) & 0x3
		missing[i] = false
		switch code {
		case bedHomA1:
			dosages[i] = 2
		case bedHet:
			dosages[i] = 1
		case bedHomA2:
			dosages[i] = 0
		case bedMissing:
			dosages[i] = 0
			missing[i] = true
		}
	}

	return nil
}
