package permute

import (
	"fmt"
	"strings"
)

// Test is the outcome of one permutation test: one contrast or one
// statistic component.
type Test struct {
	Term     string
	Observed float64
	Expected float64
	SD       float64
	PValue   float64
	NPerm    int

	// Dropped counts input rows removed for missing label/covariate values.
	Dropped int

	// Permuted holds the full null distribution, in draw order.
	Permuted []float64

	LabelKey      string
	CovariateKeys []string
	StratifyKeys  []string
	Alternative   Alternative

	// Contrast is set when this result came from contracting a per-level
	// statistic vector; nil for raw statistic values.
	Contrast *Contrast
}

func (t *Test) String() string {
	s := fmt.Sprintf("%s: observed %.4g, expected %.4g (sd %.3g), p=%.4g [%s, %d permutations]",
		t.Term, t.Observed, t.Expected, t.SD, t.PValue, t.Alternative, t.NPerm)
	if t.Dropped > 0 {
		s += fmt.Sprintf(" (%d rows dropped)", t.Dropped)
	}

	return s
}

// TestList is an ordered collection of Tests sharing one engine
// configuration, one per contrast or component.
type TestList struct {
	Tests []*Test
}

func (l *TestList) Len() int { return len(l.Tests) }

// Single returns the only test in the list, failing when the list does not
// contain exactly one result.
func (l *TestList) Single() (*Test, error) {
	if len(l.Tests) != 1 {
		return nil, fmt.Errorf("permute: expected a single result, have %d", len(l.Tests))
	}

	return l.Tests[0], nil
}

// summaryCount is how many results String prints before truncating.
const summaryCount = 3

func (l *TestList) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Permutation tests (%d):\n", len(l.Tests))
	for i, t := range l.Tests {
		if i == summaryCount {
			fmt.Fprintf(&sb, "... and %d more\n", len(l.Tests)-summaryCount)
			break
		}
		sb.WriteString(t.String())
		sb.WriteByte('\n')
	}

	return sb.String()
}

// TidyRow is the flat, one-row-per-result export of a test, suitable for
// gocsv marshaling.
type TidyRow struct {
	Term     string  `csv:"term"`
	Observed float64 `csv:"observed"`
	Expected float64 `csv:"expected"`
	SD       float64 `csv:"sd"`
	PValue   float64 `csv:"p_value"`
	NPerm    int     `csv:"n_perm"`
	Dropped  int     `csv:"n_dropped"`
}

func (t *Test) Tidy() TidyRow {
	return TidyRow{
		Term:     t.Term,
		Observed: t.Observed,
		Expected: t.Expected,
		SD:       t.SD,
		PValue:   t.PValue,
		NPerm:    t.NPerm,
		Dropped:  t.Dropped,
	}
}

func (l *TestList) Tidy() []TidyRow {
	out := make([]TidyRow, 0, len(l.Tests))
	for _, t := range l.Tests {
		out = append(out, t.Tidy())
	}

	return out
}
