package permute

import (
	"fmt"

	"github.com/immunotools/clonal/frame"
)

// Contrast is a linear functional over covariate levels. Weights for a
// well-formed contrast sum to zero by statistical convention; this is the
// caller's responsibility and is not enforced here.
type Contrast struct {
	Name    string
	Weights map[string]float64
}

// Pairwise builds the k*(k-1)/2 pairwise comparisons over the given levels
// in the fixed order (2 vs 1), (3 vs 1), (3 vs 2), ..., (k vs k-1): +1 on
// the later level, -1 on the earlier.
func Pairwise(levels []string) []Contrast {
	out := make([]Contrast, 0, len(levels)*(len(levels)-1)/2)
	for j := 1; j < len(levels); j++ {
		for i := 0; i < j; i++ {
			out = append(out, Contrast{
				Name: fmt.Sprintf("%s vs %s", levels[j], levels[i]),
				Weights: map[string]float64{
					levels[j]: 1,
					levels[i]: -1,
				},
			})
		}
	}

	return out
}

// term is one resolved output of the engine: either a contrast contracted
// against the statistic's per-level vector, or a raw statistic component.
type term struct {
	name     string
	contrast *Contrast
	weights  []float64 // aligned with the statistic vector; nil for raw components
	index    int       // component index when weights is nil
}

func (t term) apply(values []float64) float64 {
	if t.weights == nil {
		return values[t.index]
	}

	sum := 0.0
	for i, w := range t.weights {
		sum += w * values[i]
	}

	return sum
}

// resolveTerms maps the engine configuration and the observed statistic
// dimension onto the list of output terms. Contrasts require a single
// covariate whose level count matches the statistic dimension.
func resolveTerms(data *frame.Frame, cfg Config, dim int) ([]term, error) {
	if len(cfg.Contrasts) > 0 || dim > 1 {
		if len(cfg.CovariateKeys) != 1 {
			if len(cfg.Contrasts) > 0 {
				return nil, fmt.Errorf("permute: contrasts require exactly one covariate key, got %d", len(cfg.CovariateKeys))
			}
			// Vector statistic over multiple covariate keys: report raw
			// components.
			return componentTerms(joinKeys(cfg.CovariateKeys), dim), nil
		}

		levels := data.Levels(cfg.CovariateKeys[0])

		if len(cfg.Contrasts) > 0 {
			if dim != len(levels) {
				return nil, fmt.Errorf("permute: contrasts need one statistic value per covariate level (%d), statistic returned %d", len(levels), dim)
			}
			return contrastTerms(cfg.Contrasts, levels)
		}

		// Auto-generated pairwise comparisons when the statistic is
		// per-level; otherwise fall back to raw components.
		if dim == len(levels) && len(levels) >= 2 {
			return contrastTerms(Pairwise(levels), levels)
		}

		return componentTerms(cfg.CovariateKeys[0], dim), nil
	}

	// Scalar statistic, no contrasts: a single term named for the
	// covariate(s).
	return []term{{name: joinKeys(cfg.CovariateKeys), index: 0}}, nil
}

func joinKeys(keys []string) string {
	name := keys[0]
	for _, k := range keys[1:] {
		name += "+" + k
	}

	return name
}

func componentTerms(base string, dim int) []term {
	out := make([]term, dim)
	for i := range out {
		out[i] = term{name: fmt.Sprintf("%s[%d]", base, i+1), index: i}
	}

	return out
}

func contrastTerms(contrasts []Contrast, levels []string) ([]term, error) {
	index := make(map[string]int, len(levels))
	for i, level := range levels {
		index[level] = i
	}

	out := make([]term, 0, len(contrasts))
	for ci := range contrasts {
		c := contrasts[ci]
		weights := make([]float64, len(levels))
		for level, w := range c.Weights {
			i, ok := index[level]
			if !ok {
				return nil, fmt.Errorf("permute: contrast %q names unknown covariate level %q", c.Name, level)
			}
			weights[i] = w
		}

		name := c.Name
		if name == "" {
			name = fmt.Sprintf("contrast %d", ci+1)
		}

		out = append(out, term{name: name, contrast: &contrasts[ci], weights: weights})
	}

	return out, nil
}
