package permute

import (
	"bytes"
	"fmt"
	"io"
	"sort"

	"github.com/aybabtme/uniplot/histogram"
	"github.com/wcharczuk/go-chart/v2"
	"gonum.org/v1/gonum/stat"
)

// histogramBins is the bucket count for both the terminal and PNG views.
// The count is arbitrary but works well for the 100-10000 permutation
// range this tool is typically run with.
const histogramBins = 25

// PrintHistogram writes a text histogram of the null distribution to w,
// followed by the observed value and its quantile within the permuted
// draws.
func (t *Test) PrintHistogram(w io.Writer) error {
	fmt.Fprintf(w, "%s\n", t.Term)

	hist := histogram.Hist(histogramBins, t.Permuted)
	if err := histogram.Fprint(w, hist, histogram.Linear(40)); err != nil {
		return err
	}

	sorted := make([]float64, len(t.Permuted))
	copy(sorted, t.Permuted)
	sort.Float64s(sorted)
	q := stat.CDF(t.Observed, stat.Empirical, sorted, nil)
	fmt.Fprintf(w, "observed %.4g (quantile %.3f of null), p=%.4g\n", t.Observed, q, t.PValue)

	return nil
}

// PrintHistograms renders each result in turn, matching the faceted view of
// the list.
func (l *TestList) PrintHistograms(w io.Writer) error {
	for _, t := range l.Tests {
		if err := t.PrintHistogram(w); err != nil {
			return err
		}
		fmt.Fprintln(w)
	}

	return nil
}

// RenderPNG draws the null distribution as a line histogram with a vertical
// marker at the observed value and writes the PNG to w.
func (t *Test) RenderPNG(w io.Writer) error {
	hist := histogram.Hist(histogramBins, t.Permuted)

	xs := make([]float64, 0, len(hist.Buckets))
	ys := make([]float64, 0, len(hist.Buckets))
	maxCount := 0.0
	for _, bucket := range hist.Buckets {
		xs = append(xs, (bucket.Min+bucket.Max)/2)
		ys = append(ys, float64(bucket.Count))
		if c := float64(bucket.Count); c > maxCount {
			maxCount = c
		}
	}

	graph := chart.Chart{
		Title:  t.Term,
		Width:  512,
		Height: 256,
		Series: []chart.Series{
			chart.ContinuousSeries{
				Name:    "null",
				XValues: xs,
				YValues: ys,
			},
			chart.ContinuousSeries{
				Name:    "observed",
				XValues: []float64{t.Observed, t.Observed},
				YValues: []float64{0, maxCount},
			},
		},
	}

	buffer := bytes.NewBuffer([]byte{})
	if err := graph.Render(chart.PNG, buffer); err != nil {
		return err
	}

	_, err := buffer.WriteTo(w)

	return err
}
