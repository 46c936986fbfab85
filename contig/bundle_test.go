package contig

import (
	"testing"

	"gopkg.in/guregu/null.v3"
)

func testBundle() *Bundle {
	contigs := []Contig{
		{Sample: "s1", Barcode: "bc1", ContigID: "c1", Chain: "TRB", CDR3: "CASSLG", Umis: null.IntFrom(8), Cluster: null.IntFrom(0), Productive: "True"},
		{Sample: "s1", Barcode: "bc1", ContigID: "c2", Chain: "TRA", CDR3: "CAVR", Umis: null.IntFrom(4), Cluster: null.IntFrom(1), Productive: "True"},
		{Sample: "s1", Barcode: "bc2", ContigID: "c1", Chain: "TRB", CDR3: "CASSLD", Umis: null.IntFrom(2), Cluster: null.IntFrom(0), Productive: "True"},
		{Sample: "s2", Barcode: "bc1", ContigID: "c1", Chain: "TRB", CDR3: "CATTT", Umis: null.IntFrom(6), Cluster: null.IntFrom(2), Productive: "None"},
	}
	cells := []Cell{
		{Sample: "s1", Barcode: "bc1", Strain: "b6", Subtype: "CD4"},
		{Sample: "s1", Barcode: "bc2", Strain: "b6", Subtype: "CD8"},
		{Sample: "s2", Barcode: "bc1", Strain: "balbc", Subtype: "CD4"},
	}

	return New(contigs, cells)
}

func TestFilterContigsRequiresExplicitSync(t *testing.T) {
	b := testBundle()

	removed := b.FilterContigs(Contig.IsProductive)
	if removed != 1 {
		t.Fatalf("removed %d contigs, want 1", removed)
	}
	if !b.Dirty() {
		t.Error("bundle should be dirty after filtering")
	}

	// The cell table must not change until Sync runs.
	if len(b.Cells) != 3 {
		t.Fatalf("cell table mutated before Sync: %d cells", len(b.Cells))
	}

	b.Sync()
	if b.Dirty() {
		t.Error("bundle still dirty after Sync")
	}
	if len(b.Cells) != 2 {
		t.Errorf("have %d cells after Sync, want 2 (s2/bc1 lost its only contig)", len(b.Cells))
	}
}

func TestFilterCellsDropsOrphanContigs(t *testing.T) {
	b := testBundle()

	b.FilterCells(func(c Cell) bool { return c.Subtype == "CD4" })
	b.Sync()

	for _, c := range b.Contigs {
		if c.CellKey() == "s1\x1fbc2" {
			t.Error("contig for filtered cell survived Sync")
		}
	}
	if len(b.Contigs) != 3 {
		t.Errorf("have %d contigs, want 3", len(b.Contigs))
	}
}

func TestSyncRebuildsClusterCounts(t *testing.T) {
	b := testBundle()
	b.Sync()

	if len(b.Clusters) != 3 {
		t.Fatalf("have %d clusters, want 3", len(b.Clusters))
	}
	if b.Clusters[0].Cluster != 0 || b.Clusters[0].NContigs != 2 || b.Clusters[0].NCells != 2 {
		t.Errorf("cluster 0 counts wrong: %+v", b.Clusters[0])
	}
}

func TestCanonicalizePropagatesMedoidFields(t *testing.T) {
	b := testBundle()
	b.Contigs[2].IsMedoid = true
	b.Contigs[2].VGene = "TRBV19"
	b.Contigs[2].DGene = "TRBD1"
	b.Contigs[2].JGene = "TRBJ2-7"
	b.Contigs[0].MedoidDistance = null.FloatFrom(1)
	b.Contigs[2].MedoidDistance = null.FloatFrom(0)

	b.Canonicalize()

	var cl0 *Clonotype
	for i := range b.Clusters {
		if b.Clusters[i].Cluster == 0 {
			cl0 = &b.Clusters[i]
		}
	}
	if cl0 == nil {
		t.Fatal("cluster 0 missing")
	}
	if cl0.CDR3 != "CASSLD" {
		t.Errorf("representative CDR3 = %q, want medoid's CASSLD", cl0.CDR3)
	}
	if cl0.VGene != "TRBV19" || cl0.DGene != "TRBD1" || cl0.JGene != "TRBJ2-7" {
		t.Errorf("representative genes = %q/%q/%q, want medoid's TRBV19/TRBD1/TRBJ2-7", cl0.VGene, cl0.DGene, cl0.JGene)
	}
	if !cl0.AvgDistance.Valid || cl0.AvgDistance.Float64 != 0.5 {
		t.Errorf("AvgDistance = %+v, want 0.5", cl0.AvgDistance)
	}
}

func TestCellFrame(t *testing.T) {
	b := testBundle()
	b.Sync()

	fr, err := b.CellFrame("TRB", "strain", "subtype")
	if err != nil {
		t.Fatal(err)
	}

	if fr.Len() != 3 {
		t.Fatalf("frame has %d rows, want 3", fr.Len())
	}

	labels, _ := fr.Column("cluster")
	if labels[0] != "0" || labels[1] != "0" || labels[2] != "2" {
		t.Errorf("cluster labels = %v", labels)
	}

	strains, _ := fr.Column("strain")
	if strains[2] != "balbc" {
		t.Errorf("strain column = %v", strains)
	}
}

func TestCellFrameRefusesDirtyBundle(t *testing.T) {
	b := testBundle()
	b.FilterContigs(Contig.IsProductive)

	if _, err := b.CellFrame("TRB", "strain"); err == nil {
		t.Fatal("expected an error from a dirty bundle")
	}
}
