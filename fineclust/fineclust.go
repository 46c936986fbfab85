// Package fineclust refines coarse sequence clusters: it computes pairwise
// edit distances within each cluster, optionally re-splits clusters by
// single linkage at a distance cutoff, and designates each cluster's medoid
// as its representative.
package fineclust

import (
	"fmt"
	"sort"

	"github.com/BenLubar/memoize"
	"github.com/agnivade/levenshtein"
	"github.com/montanaflynn/stats"
	"github.com/theodesp/unionfind"
	"gonum.org/v1/gonum/stat"
	"gopkg.in/guregu/null.v3"

	"github.com/immunotools/clonal/contig"
)

// SeqFunc selects the sequence a contig is clustered on.
type SeqFunc func(contig.Contig) string

// AminoAcid clusters on the CDR3 amino-acid sequence.
func AminoAcid(c contig.Contig) string { return c.CDR3 }

// Nucleotide clusters on the CDR3 nucleotide sequence.
func Nucleotide(c contig.Contig) string { return c.CDR3Nt }

var memoizedDistance = memoize.Memoize(levenshtein.ComputeDistance)

// Distance is the memoized edit distance between two sequences. Argument
// order is normalized so each unordered pair is computed once.
func Distance(a, b string) int {
	if a > b {
		a, b = b, a
	}

	return memoizedDistance.(func(string, string) int)(a, b)
}

// SplitClusters re-clusters each coarse cluster by single linkage: members
// whose sequences are within cutoff edit distance stay linked, and each
// connected component becomes its own cluster. Cluster ids are renumbered
// densely from 0 in order of first appearance. Returns the new cluster
// count.
func SplitClusters(b *contig.Bundle, seq SeqFunc, cutoff int) int {
	members := clusterMembers(b)

	ids := make([]int, 0, len(members))
	for id := range members {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	uf := unionfind.NewThreadSafeUnionFind(len(b.Contigs))
	for _, rows := range members {
		for ai := 0; ai < len(rows); ai++ {
			for bi := ai + 1; bi < len(rows); bi++ {
				a, bb := rows[ai], rows[bi]
				if Distance(seq(b.Contigs[a]), seq(b.Contigs[bb])) <= cutoff {
					uf.Union(a, bb)
				}
			}
		}
	}

	// Renumber densely, in ascending coarse-cluster then contig order, so
	// the result is deterministic.
	next := 0
	componentID := make(map[int]int)
	for _, id := range ids {
		for _, i := range members[id] {
			root := uf.Root(i)
			if root < 0 {
				root = i
			}
			id, ok := componentID[root]
			if !ok {
				id = next
				next++
				componentID[root] = id
			}
			b.Contigs[i].Cluster = null.IntFrom(int64(id))
		}
	}

	return next
}

// Summary describes one cluster's internal distances after medoid
// assignment.
type Summary struct {
	Cluster        int     `csv:"cluster_idx"`
	N              int     `csv:"n_members"`
	MedoidSeq      string  `csv:"medoid_seq"`
	MeanDistance   float64 `csv:"mean_distance"`
	MedianDistance float64 `csv:"median_distance"`
	MaxDistance    float64 `csv:"max_distance"`
}

// AssignMedoids finds each cluster's medoid (the member with minimum total
// distance to the others), marks it on the contigs, and records every
// member's distance to it. Ties go to the earlier contig. Returns
// per-cluster summaries ordered by cluster id.
func AssignMedoids(b *contig.Bundle, seq SeqFunc) ([]Summary, error) {
	members := clusterMembers(b)

	ids := make([]int, 0, len(members))
	for id := range members {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	summaries := make([]Summary, 0, len(ids))
	for _, id := range ids {
		rows := members[id]

		medoid, err := medoidOf(b, seq, rows)
		if err != nil {
			return nil, fmt.Errorf("fineclust: cluster %d: %w", id, err)
		}

		distances := make([]float64, 0, len(rows))
		for _, i := range rows {
			d := float64(Distance(seq(b.Contigs[i]), seq(b.Contigs[medoid])))
			b.Contigs[i].IsMedoid = i == medoid
			b.Contigs[i].MedoidDistance = null.FloatFrom(d)
			distances = append(distances, d)
		}

		median, err := stats.Median(distances)
		if err != nil {
			return nil, fmt.Errorf("fineclust: cluster %d: %w", id, err)
		}
		max, err := stats.Max(distances)
		if err != nil {
			return nil, fmt.Errorf("fineclust: cluster %d: %w", id, err)
		}

		summaries = append(summaries, Summary{
			Cluster:        id,
			N:              len(rows),
			MedoidSeq:      seq(b.Contigs[medoid]),
			MeanDistance:   stat.Mean(distances, nil),
			MedianDistance: median,
			MaxDistance:    max,
		})
	}

	return summaries, nil
}

func medoidOf(b *contig.Bundle, seq SeqFunc, rows []int) (int, error) {
	if len(rows) == 0 {
		return 0, fmt.Errorf("empty cluster")
	}

	best := rows[0]
	bestTotal := -1
	for _, i := range rows {
		total := 0
		for _, j := range rows {
			if i == j {
				continue
			}
			total += Distance(seq(b.Contigs[i]), seq(b.Contigs[j]))
		}
		if bestTotal < 0 || total < bestTotal {
			best = i
			bestTotal = total
		}
	}

	return best, nil
}

func clusterMembers(b *contig.Bundle) map[int][]int {
	members := make(map[int][]int)
	for i, c := range b.Contigs {
		if c.Cluster.Valid {
			id := int(c.Cluster.Int64)
			members[id] = append(members[id], i)
		}
	}

	return members
}
