// Package permute implements stratified permutation tests for association
// between a categorical label (typically a clonotype cluster) and cell-level
// covariates. The caller supplies a statistic over the label column and a
// covariate table; the engine rebuilds its null distribution by reshuffling
// the label column, within strata when stratification keys are given.
package permute

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/carbocation/pfx"
	"github.com/carbocation/runningvariance"

	"github.com/immunotools/clonal/frame"
)

// Statistic computes one or more numeric summaries from a label column and
// the covariate columns. It must be pure: the engine calls it once on the
// observed data and once per permutation, and requires the same output
// length on every call. When contrasts are in play the output must be one
// value per covariate level, in the level order of the input frame.
type Statistic func(labels []string, covariates *frame.Frame) ([]float64, error)

// Alternative selects how "at least as extreme" is counted when computing
// the permutation p-value.
type Alternative int

const (
	// TwoSided counts permuted values whose absolute deviation from the
	// permutation mean is at least that of the observed value. Default.
	TwoSided Alternative = iota

	// Greater counts permuted values >= the observed value.
	Greater

	// Less counts permuted values <= the observed value.
	Less
)

func (a Alternative) String() string {
	switch a {
	case Greater:
		return "greater"
	case Less:
		return "less"
	}
	return "two.sided"
}

// Config describes one invocation of the engine.
type Config struct {
	// LabelKey names the column that is shuffled under the null.
	LabelKey string

	// CovariateKeys name the columns tested for association with the label.
	// Contrasts (explicit or auto-generated pairwise) require exactly one
	// covariate key.
	CovariateKeys []string

	// StratifyKeys, when set, restrict shuffling to blocks of rows sharing
	// the same combination of values in these columns.
	StratifyKeys []string

	// NPerm is the number of permutation draws. Must be >= 1.
	NPerm int

	// Contrasts, when set, are contracted against the statistic's
	// per-level output vector. When empty and the statistic returns one
	// value per covariate level, all pairwise level contrasts are
	// generated automatically. A scalar statistic never auto-expands:
	// it yields a single term regardless of the covariate's level count.
	Contrasts []Contrast

	// Alternative is the extremeness policy for the p-value.
	Alternative Alternative
}

// Run executes the permutation test. Randomness comes only from rnd, so a
// caller-constructed source makes the whole run reproducible. The returned
// list holds one Test per contrast or statistic component; a scalar
// statistic with no contrasts yields a list of length one.
func Run(rnd *rand.Rand, fr *frame.Frame, statistic Statistic, cfg Config) (*TestList, error) {
	if rnd == nil {
		return nil, fmt.Errorf("permute: nil random source")
	}
	if statistic == nil {
		return nil, fmt.Errorf("permute: nil statistic")
	}
	if cfg.NPerm < 1 {
		return nil, fmt.Errorf("permute: n_perm must be >= 1, got %d", cfg.NPerm)
	}
	if cfg.LabelKey == "" {
		return nil, fmt.Errorf("permute: label key is required")
	}
	if len(cfg.CovariateKeys) < 1 {
		return nil, fmt.Errorf("permute: at least one covariate key is required")
	}

	for _, key := range append(append([]string{cfg.LabelKey}, cfg.CovariateKeys...), cfg.StratifyKeys...) {
		if _, ok := fr.Column(key); !ok {
			return nil, fmt.Errorf("permute: no column %q in input", key)
		}
	}

	// Rows missing the label or a covariate contribute nothing and are
	// dropped up front; the count is carried into the results.
	dropKeys := append([]string{cfg.LabelKey}, cfg.CovariateKeys...)
	data, dropped, err := fr.DropMissing(dropKeys...)
	if err != nil {
		return nil, pfx.Err(err)
	}
	if data.Len() == 0 {
		return nil, fmt.Errorf("permute: no rows remain after dropping %d rows with missing label/covariate", dropped)
	}

	covariates, err := data.Select(cfg.CovariateKeys...)
	if err != nil {
		return nil, err
	}

	labelCol, _ := data.Column(cfg.LabelKey)
	observedLabels := make([]string, len(labelCol))
	copy(observedLabels, labelCol)

	strata, err := buildStrata(data, observedLabels, cfg.StratifyKeys)
	if err != nil {
		return nil, err
	}

	// The observed statistic is computed exactly once, before any shuffle,
	// and fixes the output shape for every permuted call.
	observed, err := statistic(observedLabels, covariates)
	if err != nil {
		return nil, fmt.Errorf("permute: statistic failed on observed data: %w", err)
	}
	dim := len(observed)
	if dim == 0 {
		return nil, fmt.Errorf("permute: statistic returned no values")
	}

	terms, err := resolveTerms(data, cfg, dim)
	if err != nil {
		return nil, err
	}

	observedValues := make([]float64, len(terms))
	for i, term := range terms {
		observedValues[i] = term.apply(observed)
	}

	permuted := make([][]float64, len(terms))
	running := make([]*runningvariance.RunningStat, len(terms))
	for i := range terms {
		permuted[i] = make([]float64, 0, cfg.NPerm)
		running[i] = runningvariance.NewRunningStat()
	}

	shuffled := make([]string, len(observedLabels))
	for draw := 0; draw < cfg.NPerm; draw++ {
		copy(shuffled, observedLabels)
		shuffleWithin(rnd, shuffled, strata)

		values, err := statistic(shuffled, covariates)
		if err != nil {
			return nil, fmt.Errorf("permute: statistic failed on draw %d: %w", draw+1, err)
		}
		if len(values) != dim {
			return nil, fmt.Errorf("permute: statistic returned %d values on draw %d, expected %d", len(values), draw+1, dim)
		}

		for i, term := range terms {
			v := term.apply(values)
			permuted[i] = append(permuted[i], v)
			running[i].Push(v)
		}
	}

	list := &TestList{}
	for i, term := range terms {
		mean := running[i].Mean()

		test := &Test{
			Term:          term.name,
			Observed:      observedValues[i],
			Expected:      mean,
			SD:            running[i].StandardDeviation(),
			PValue:        pValue(cfg.Alternative, observedValues[i], mean, permuted[i]),
			NPerm:         cfg.NPerm,
			Dropped:       dropped,
			Permuted:      permuted[i],
			LabelKey:      cfg.LabelKey,
			CovariateKeys: cfg.CovariateKeys,
			StratifyKeys:  cfg.StratifyKeys,
			Alternative:   cfg.Alternative,
			Contrast:      term.contrast,
		}
		list.Tests = append(list.Tests, test)
	}

	return list, nil
}

// buildStrata groups row indices by the stratify-key combination, or into a
// single block when no keys are given. Any block with fewer than two
// distinct label values makes the shuffle degenerate and is an error.
func buildStrata(data *frame.Frame, labels []string, keys []string) ([][]int, error) {
	if len(keys) == 0 {
		if err := checkShuffleable("all rows", labels, allRows(data.Len())); err != nil {
			return nil, err
		}
		return [][]int{allRows(data.Len())}, nil
	}

	order := make([]string, 0)
	groups := make(map[string][]int)
	for i := 0; i < data.Len(); i++ {
		k := data.Key(i, keys...)
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], i)
	}

	strata := make([][]int, 0, len(order))
	for _, k := range order {
		rows := groups[k]
		if err := checkShuffleable(fmt.Sprintf("stratum %q", k), labels, rows); err != nil {
			return nil, err
		}
		strata = append(strata, rows)
	}

	return strata, nil
}

func allRows(n int) []int {
	rows := make([]int, n)
	for i := range rows {
		rows[i] = i
	}
	return rows
}

func checkShuffleable(what string, labels []string, rows []int) error {
	distinct := make(map[string]struct{})
	for _, i := range rows {
		distinct[labels[i]] = struct{}{}
		if len(distinct) > 1 {
			return nil
		}
	}

	return fmt.Errorf("permute: %s has fewer than 2 distinct label values; permutation would be degenerate", what)
}

// shuffleWithin permutes the label values in place, independently within
// each stratum, so the per-stratum label multiset is preserved exactly.
func shuffleWithin(rnd *rand.Rand, labels []string, strata [][]int) {
	for _, rows := range strata {
		rnd.Shuffle(len(rows), func(a, b int) {
			labels[rows[a]], labels[rows[b]] = labels[rows[b]], labels[rows[a]]
		})
	}
}

func pValue(alt Alternative, observed, mean float64, permuted []float64) float64 {
	extreme := 0
	switch alt {
	case Greater:
		for _, v := range permuted {
			if v >= observed {
				extreme++
			}
		}
	case Less:
		for _, v := range permuted {
			if v <= observed {
				extreme++
			}
		}
	default:
		ref := math.Abs(observed - mean)
		for _, v := range permuted {
			if math.Abs(v-mean) >= ref {
				extreme++
			}
		}
	}

	return float64(1+extreme) / float64(1+len(permuted))
}
