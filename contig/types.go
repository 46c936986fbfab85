// Package contig holds the three related repertoire tables (per-contig,
// per-cell, per-cluster) as one bundle with declared join keys, so that
// filtering any one table can be followed by an explicit re-synchronization
// of the others.
package contig

import "gopkg.in/guregu/null.v3"

// Contig is one assembled receptor contig for one cell. A cell is keyed by
// (sample, barcode); a contig adds its own id to that key.
type Contig struct {
	Sample         string     `csv:"sample"`
	Barcode        string     `csv:"barcode"`
	ContigID       string     `csv:"contig_id"`
	Chain          string     `csv:"chain"`
	CDR3           string     `csv:"cdr3"`
	CDR3Nt         string     `csv:"cdr3_nt"`
	VGene          string     `csv:"v_gene"`
	DGene          string     `csv:"d_gene"`
	JGene          string     `csv:"j_gene"`
	Productive     string     `csv:"productive"`
	HighConfidence string     `csv:"high_confidence"`
	Umis           null.Int   `csv:"umis"`
	Reads          null.Int   `csv:"reads"`
	Cluster        null.Int   `csv:"cluster_idx"`
	MedoidDistance null.Float `csv:"dist_to_medoid"`
	IsMedoid       bool       `csv:"is_medoid"`
}

// CellKey is the composite cell key for this contig.
func (c Contig) CellKey() string { return c.Sample + "\x1f" + c.Barcode }

// Key uniquely identifies the contig within the bundle.
func (c Contig) Key() string { return c.CellKey() + "\x1f" + c.ContigID }

// IsProductive follows the 10x convention of "True"/"None" strings.
func (c Contig) IsProductive() bool { return c.Productive == "True" || c.Productive == "true" }

// Cell is one sequenced cell with its covariates.
type Cell struct {
	Sample  string `csv:"sample"`
	Barcode string `csv:"barcode"`
	Strain  string `csv:"strain"`
	Subtype string `csv:"subtype"`
}

func (c Cell) Key() string { return c.Sample + "\x1f" + c.Barcode }

// Covariate returns the named covariate column value, so cells can feed the
// permutation engine's by-name table contract.
func (c Cell) Covariate(name string) (string, bool) {
	switch name {
	case "sample":
		return c.Sample, true
	case "strain":
		return c.Strain, true
	case "subtype":
		return c.Subtype, true
	}

	return "", false
}

// Clonotype is the per-cluster table row. Representative sequence fields
// are filled in by Canonicalize from the cluster's medoid contig.
type Clonotype struct {
	Cluster     int        `csv:"cluster_idx"`
	NContigs    int        `csv:"n_contigs"`
	NCells      int        `csv:"n_cells"`
	CDR3        string     `csv:"cdr3"`
	VGene       string     `csv:"v_gene"`
	DGene       string     `csv:"d_gene"`
	JGene       string     `csv:"j_gene"`
	Chain       string     `csv:"chain"`
	AvgDistance null.Float `csv:"avg_distance"`
	MaxDistance null.Float `csv:"max_distance"`
}
