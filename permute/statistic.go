package permute

import (
	"fmt"

	"github.com/immunotools/clonal/frame"
)

// CountLabelAt returns a scalar Statistic counting units whose label equals
// target and whose covariate equals level.
func CountLabelAt(target, covariateKey, level string) Statistic {
	return func(labels []string, covariates *frame.Frame) ([]float64, error) {
		col, ok := covariates.Column(covariateKey)
		if !ok {
			return nil, fmt.Errorf("permute: no covariate column %q", covariateKey)
		}

		n := 0.0
		for i, label := range labels {
			if label == target && col[i] == level {
				n++
			}
		}

		return []float64{n}, nil
	}
}

// LevelCounts returns a per-level Statistic: for each given covariate
// level, in order, the number of units carrying the target label. Its
// output aligns with the level order expected by contrasts.
func LevelCounts(target, covariateKey string, levels []string) Statistic {
	return func(labels []string, covariates *frame.Frame) ([]float64, error) {
		col, ok := covariates.Column(covariateKey)
		if !ok {
			return nil, fmt.Errorf("permute: no covariate column %q", covariateKey)
		}

		index := make(map[string]int, len(levels))
		for i, level := range levels {
			index[level] = i
		}

		out := make([]float64, len(levels))
		for i, label := range labels {
			if label != target {
				continue
			}
			if j, ok := index[col[i]]; ok {
				out[j]++
			}
		}

		return out, nil
	}
}

// LevelFractions is LevelCounts normalized by the number of units at each
// level, so covariate groups of different size are comparable.
func LevelFractions(target, covariateKey string, levels []string) Statistic {
	counts := LevelCounts(target, covariateKey, levels)

	return func(labels []string, covariates *frame.Frame) ([]float64, error) {
		out, err := counts(labels, covariates)
		if err != nil {
			return nil, err
		}

		col, _ := covariates.Column(covariateKey)
		totals := make([]float64, len(levels))
		index := make(map[string]int, len(levels))
		for i, level := range levels {
			index[level] = i
		}
		for _, v := range col {
			if j, ok := index[v]; ok {
				totals[j]++
			}
		}

		for i := range out {
			if totals[i] > 0 {
				out[i] /= totals[i]
			}
		}

		return out, nil
	}
}
