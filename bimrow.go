package ldannot

// Column positions in a whitespace-delimited PLINK .bim.
const (
	bimChromosome int = iota
	bimVariantID
	bimMorgans
	bimCoordinate
	bimAllele1
	bimAllele2

	bimColumns
)

// BIMRow is one reference SNP. Allele1 is the allele counted in the .bed.
type BIMRow struct {
	Chromosome string
	Coordinate uint32
	VariantID  string
	Morgans    float64
	Allele1    string
	Allele2    string
}
