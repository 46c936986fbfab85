// Package pairing enumerates, per cell, the combination of cluster
// memberships across receptor chains, and tests chosen cluster pairs for
// co-occurrence enrichment.
package pairing

import (
	"fmt"
	"sort"
	"strings"

	fet "github.com/glycerine/golang-fisher-exact"

	"github.com/immunotools/clonal/contig"
)

// CellCombo is one cell's chain-by-chain cluster membership. Tokens are
// "chain:cluster" strings in the caller's chain order; a chain with no
// clustered contig contributes "chain:-".
type CellCombo struct {
	Sample  string `csv:"sample"`
	Barcode string `csv:"barcode"`
	Combo   string `csv:"combo"`
}

func (c CellCombo) Has(token string) bool {
	for _, t := range strings.Split(c.Combo, "|") {
		if t == token {
			return true
		}
	}

	return false
}

// ComboCount is one row of the combination frequency table.
type ComboCount struct {
	Combo    string `csv:"combo"`
	NCells   int    `csv:"n_cells"`
	Expanded bool   `csv:"expanded"`
}

// Combos builds the per-cell combination table over the given chains and
// its frequency summary. A combination seen in at least expandThreshold
// cells is flagged as expanded. For a cell with several clustered contigs
// on one chain, the contig with the most UMIs represents the chain.
func Combos(b *contig.Bundle, chains []string, expandThreshold int) ([]CellCombo, []ComboCount, error) {
	if b.Dirty() {
		return nil, nil, fmt.Errorf("pairing: bundle has unsynchronized filters; call Sync first")
	}
	if len(chains) == 0 {
		return nil, nil, fmt.Errorf("pairing: at least one chain is required")
	}

	best := make(map[string]map[string]contig.Contig)
	wanted := make(map[string]struct{}, len(chains))
	for _, chain := range chains {
		wanted[chain] = struct{}{}
	}

	for _, c := range b.Contigs {
		if !c.Cluster.Valid {
			continue
		}
		if _, ok := wanted[c.Chain]; !ok {
			continue
		}
		byChain := best[c.CellKey()]
		if byChain == nil {
			byChain = make(map[string]contig.Contig)
			best[c.CellKey()] = byChain
		}
		prev, ok := byChain[c.Chain]
		if !ok || c.Umis.ValueOrZero() > prev.Umis.ValueOrZero() {
			byChain[c.Chain] = c
		}
	}

	combos := make([]CellCombo, 0, len(b.Cells))
	counts := make(map[string]int)
	for _, cell := range b.Cells {
		tokens := make([]string, 0, len(chains))
		for _, chain := range chains {
			token := chain + ":-"
			if c, ok := best[cell.Key()][chain]; ok {
				token = fmt.Sprintf("%s:%d", chain, c.Cluster.Int64)
			}
			tokens = append(tokens, token)
		}

		combo := CellCombo{
			Sample:  cell.Sample,
			Barcode: cell.Barcode,
			Combo:   strings.Join(tokens, "|"),
		}
		combos = append(combos, combo)
		counts[combo.Combo]++
	}

	table := make([]ComboCount, 0, len(counts))
	for combo, n := range counts {
		table = append(table, ComboCount{
			Combo:    combo,
			NCells:   n,
			Expanded: n >= expandThreshold,
		})
	}
	sort.Slice(table, func(i, j int) bool {
		if table[i].NCells != table[j].NCells {
			return table[i].NCells > table[j].NCells
		}
		return table[i].Combo < table[j].Combo
	})

	return combos, table, nil
}

// Enrichment is a 2x2 Fisher exact test of co-occurrence between two
// "chain:cluster" tokens across cells.
type Enrichment struct {
	TokenA string
	TokenB string

	// The 2x2 table: cells with both, A only, B only, neither.
	Both    int
	AOnly   int
	BOnly   int
	Neither int

	// PValue is the two-sided Fisher exact p.
	PValue float64
}

// FisherEnrichment counts the 2x2 co-occurrence table for the two tokens and
// runs Fisher's exact test on it.
func FisherEnrichment(combos []CellCombo, tokenA, tokenB string) (Enrichment, error) {
	if len(combos) == 0 {
		return Enrichment{}, fmt.Errorf("pairing: no cells to test")
	}

	e := Enrichment{TokenA: tokenA, TokenB: tokenB}
	for _, c := range combos {
		a, b := c.Has(tokenA), c.Has(tokenB)
		switch {
		case a && b:
			e.Both++
		case a:
			e.AOnly++
		case b:
			e.BOnly++
		default:
			e.Neither++
		}
	}

	_, _, _, twop := fet.FisherExactTest(e.Both, e.AOnly, e.BOnly, e.Neither)
	e.PValue = twop

	return e, nil
}
