// Package assoc provides quick parametric association tests between two
// categorical columns, as a cheap complement to the permutation engine: a
// chi-square test on the full contingency table, and Fisher's exact test
// when both factors are binary.
package assoc

import (
	"fmt"
	"math"

	fet "github.com/glycerine/golang-fisher-exact"
	"github.com/tokenme/probab/dst"
)

// Result is the outcome of a contingency-table test.
type Result struct {
	Statistic float64
	DF        int
	PValue    float64
	N         int
}

// ChiSquare tests independence of the two columns with a chi-square test
// on their contingency table. Degrees of freedom are (rows-1)*(cols-1)
// over the levels actually observed.
func ChiSquare(labels, groups []string) (Result, error) {
	if len(labels) != len(groups) {
		return Result{}, fmt.Errorf("assoc: %d labels vs %d groups", len(labels), len(groups))
	}

	table, rowLevels, colLevels := contingency(labels, groups)
	if len(rowLevels) < 2 || len(colLevels) < 2 {
		return Result{}, fmt.Errorf("assoc: need at least 2 levels per factor, have %dx%d", len(rowLevels), len(colLevels))
	}

	n := len(labels)
	rowTotals := make([]float64, len(rowLevels))
	colTotals := make([]float64, len(colLevels))
	for i := range rowLevels {
		for j := range colLevels {
			rowTotals[i] += table[i][j]
			colTotals[j] += table[i][j]
		}
	}

	x2 := 0.0
	for i := range rowLevels {
		for j := range colLevels {
			expected := rowTotals[i] * colTotals[j] / float64(n)
			if expected == 0 {
				continue
			}
			d := table[i][j] - expected
			x2 += d * d / expected
		}
	}

	df := (len(rowLevels) - 1) * (len(colLevels) - 1)

	return Result{
		Statistic: x2,
		DF:        df,
		PValue:    chiSquareP(x2, df),
		N:         n,
	}, nil
}

// chiSquareP is the upper tail of the chi-square distribution. The CDF
// implementation panics on some extreme inputs, so the recover keeps a
// pathological table from taking the caller down; p is then NaN, which
// keeps a failed evaluation distinguishable from a significant one.
func chiSquareP(x2 float64, df int) (p float64) {
	p = math.NaN()
	defer func() { recover() }()

	p = 1.0 - dst.ChiSquareCDF(int64(df))(x2)

	return
}

// Fisher runs Fisher's exact test. Both columns must have exactly two
// observed levels. The returned Result carries the two-sided p-value and
// df 1 for symmetry with ChiSquare.
func Fisher(labels, groups []string) (Result, error) {
	if len(labels) != len(groups) {
		return Result{}, fmt.Errorf("assoc: %d labels vs %d groups", len(labels), len(groups))
	}

	table, rowLevels, colLevels := contingency(labels, groups)
	if len(rowLevels) != 2 || len(colLevels) != 2 {
		return Result{}, fmt.Errorf("assoc: Fisher needs a 2x2 table, have %dx%d", len(rowLevels), len(colLevels))
	}

	_, _, _, twop := fet.FisherExactTest(
		int(table[0][0]), int(table[0][1]),
		int(table[1][0]), int(table[1][1]),
	)

	return Result{
		Statistic: table[0][0],
		DF:        1,
		PValue:    twop,
		N:         len(labels),
	}, nil
}

// contingency builds the count table with levels in first-encounter order.
func contingency(labels, groups []string) ([][]float64, []string, []string) {
	rowIndex := make(map[string]int)
	colIndex := make(map[string]int)
	rowLevels := make([]string, 0)
	colLevels := make([]string, 0)

	for i := range labels {
		if _, ok := rowIndex[labels[i]]; !ok {
			rowIndex[labels[i]] = len(rowLevels)
			rowLevels = append(rowLevels, labels[i])
		}
		if _, ok := colIndex[groups[i]]; !ok {
			colIndex[groups[i]] = len(colLevels)
			colLevels = append(colLevels, groups[i])
		}
	}

	table := make([][]float64, len(rowLevels))
	for i := range table {
		table[i] = make([]float64, len(colLevels))
	}
	for i := range labels {
		table[rowIndex[labels[i]]][colIndex[groups[i]]]++
	}

	return table, rowLevels, colLevels
}
