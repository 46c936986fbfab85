package contig

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gopkg.in/guregu/null.v3"

	"github.com/immunotools/clonal/frame"
)

// Bundle joins the contig, cell, and clonotype tables. Filtering mutates
// only the targeted table and marks the bundle dirty; Sync then recomputes
// the inner join across all three. Propagation never happens implicitly.
type Bundle struct {
	Contigs  []Contig
	Cells    []Cell
	Clusters []Clonotype

	dirty bool
}

// New builds a bundle from contigs and cells. When cells is nil, the cell
// table is derived from the distinct (sample, barcode) pairs in the contig
// table, in order of first appearance.
func New(contigs []Contig, cells []Cell) *Bundle {
	if cells == nil {
		seen := make(map[string]struct{})
		for _, c := range contigs {
			k := c.CellKey()
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			cells = append(cells, Cell{Sample: c.Sample, Barcode: c.Barcode})
		}
	}

	return &Bundle{Contigs: contigs, Cells: cells}
}

// Dirty reports whether a filter has run since the last Sync.
func (b *Bundle) Dirty() bool { return b.dirty }

// FilterContigs keeps only contigs for which keep returns true and returns
// the number removed. The cell and cluster tables are untouched until Sync.
func (b *Bundle) FilterContigs(keep func(Contig) bool) int {
	out := b.Contigs[:0]
	for _, c := range b.Contigs {
		if keep(c) {
			out = append(out, c)
		}
	}

	removed := len(b.Contigs) - len(out)
	b.Contigs = out
	if removed > 0 {
		b.dirty = true
	}

	return removed
}

// FilterCells keeps only cells for which keep returns true and returns the
// number removed. The contig and cluster tables are untouched until Sync.
func (b *Bundle) FilterCells(keep func(Cell) bool) int {
	out := b.Cells[:0]
	for _, c := range b.Cells {
		if keep(c) {
			out = append(out, c)
		}
	}

	removed := len(b.Cells) - len(out)
	b.Cells = out
	if removed > 0 {
		b.dirty = true
	}

	return removed
}

// Sync recomputes the inner join: contigs without a cell are dropped, cells
// without a contig are dropped, and per-cluster membership counts are
// rebuilt. Representative fields on surviving clusters are preserved.
func (b *Bundle) Sync() {
	cellSet := make(map[string]struct{}, len(b.Cells))
	for _, c := range b.Cells {
		cellSet[c.Key()] = struct{}{}
	}

	contigs := b.Contigs[:0]
	liveCells := make(map[string]struct{})
	for _, c := range b.Contigs {
		if _, ok := cellSet[c.CellKey()]; !ok {
			continue
		}
		contigs = append(contigs, c)
		liveCells[c.CellKey()] = struct{}{}
	}
	b.Contigs = contigs

	cells := b.Cells[:0]
	for _, c := range b.Cells {
		if _, ok := liveCells[c.Key()]; ok {
			cells = append(cells, c)
		}
	}
	b.Cells = cells

	b.recountClusters()
	b.dirty = false
}

func (b *Bundle) recountClusters() {
	type tally struct {
		contigs int
		cells   map[string]struct{}
	}

	tallies := make(map[int]*tally)
	for _, c := range b.Contigs {
		if !c.Cluster.Valid {
			continue
		}
		id := int(c.Cluster.Int64)
		t := tallies[id]
		if t == nil {
			t = &tally{cells: make(map[string]struct{})}
			tallies[id] = t
		}
		t.contigs++
		t.cells[c.CellKey()] = struct{}{}
	}

	prior := make(map[int]Clonotype, len(b.Clusters))
	for _, cl := range b.Clusters {
		prior[cl.Cluster] = cl
	}

	ids := make([]int, 0, len(tallies))
	for id := range tallies {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	clusters := make([]Clonotype, 0, len(ids))
	for _, id := range ids {
		cl, ok := prior[id]
		if !ok {
			cl = Clonotype{Cluster: id}
		}
		cl.NContigs = tallies[id].contigs
		cl.NCells = len(tallies[id].cells)
		clusters = append(clusters, cl)
	}
	b.Clusters = clusters
}

// Canonicalize rebuilds the clonotype table from the contig table,
// propagating each cluster's medoid contig fields (CDR3, V/D/J genes,
// chain) upward, along with distance summaries over the members.
func (b *Bundle) Canonicalize() {
	b.recountClusters()

	members := make(map[int][]Contig)
	for _, c := range b.Contigs {
		if c.Cluster.Valid {
			id := int(c.Cluster.Int64)
			members[id] = append(members[id], c)
		}
	}

	for i := range b.Clusters {
		id := b.Clusters[i].Cluster
		rep := Contig{}
		found := false
		distances := make([]float64, 0, len(members[id]))

		for _, c := range members[id] {
			if c.MedoidDistance.Valid {
				distances = append(distances, c.MedoidDistance.Float64)
			}
			if c.IsMedoid {
				rep = c
				found = true
			}
		}
		if !found && len(members[id]) > 0 {
			rep = members[id][0]
		}

		b.Clusters[i].CDR3 = rep.CDR3
		b.Clusters[i].VGene = rep.VGene
		b.Clusters[i].DGene = rep.DGene
		b.Clusters[i].JGene = rep.JGene
		b.Clusters[i].Chain = rep.Chain

		if len(distances) > 0 {
			b.Clusters[i].AvgDistance = null.FloatFrom(stat.Mean(distances, nil))
			max := distances[0]
			for _, d := range distances[1:] {
				if d > max {
					max = d
				}
			}
			b.Clusters[i].MaxDistance = null.FloatFrom(max)
		}
	}
}

// CellFrame flattens the bundle into the permutation engine's unit table:
// one row per cell, with the cluster label of the cell's contig on the
// given chain plus the requested covariate columns. Cells with no clustered
// contig on the chain get a missing label; when several contigs on the
// chain are clustered, the one with the most UMIs wins.
func (b *Bundle) CellFrame(chain string, covariates ...string) (*frame.Frame, error) {
	if b.dirty {
		return nil, fmt.Errorf("contig: bundle has unsynchronized filters; call Sync first")
	}

	best := make(map[string]Contig)
	for _, c := range b.Contigs {
		if c.Chain != chain || !c.Cluster.Valid {
			continue
		}
		prev, ok := best[c.CellKey()]
		if !ok || c.Umis.ValueOrZero() > prev.Umis.ValueOrZero() {
			best[c.CellKey()] = c
		}
	}

	labels := make([]string, 0, len(b.Cells))
	covCols := make([][]string, len(covariates))
	for i := range covCols {
		covCols[i] = make([]string, 0, len(b.Cells))
	}

	for _, cell := range b.Cells {
		label := ""
		if c, ok := best[cell.Key()]; ok {
			label = fmt.Sprintf("%d", c.Cluster.Int64)
		}
		labels = append(labels, label)

		for i, name := range covariates {
			v, ok := cell.Covariate(name)
			if !ok {
				return nil, fmt.Errorf("contig: unknown covariate %q", name)
			}
			covCols[i] = append(covCols[i], v)
		}
	}

	fr := frame.New()
	if err := fr.AddColumn("cluster", labels); err != nil {
		return nil, err
	}
	for i, name := range covariates {
		if err := fr.AddColumn(name, covCols[i]); err != nil {
			return nil, err
		}
	}

	return fr, nil
}
