package assoc

import (
	"math"
	"testing"
)

func repeat(v string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestChiSquareIndependence(t *testing.T) {
	// Perfectly balanced table: no association.
	labels := append(append(append(repeat("A", 10), repeat("B", 10)...), repeat("A", 10)...), repeat("B", 10)...)
	groups := append(repeat("x", 20), repeat("y", 20)...)

	r, err := ChiSquare(labels, groups)
	if err != nil {
		t.Fatal(err)
	}

	if r.Statistic != 0 {
		t.Errorf("chi-square = %v for a balanced table, want 0", r.Statistic)
	}
	if r.DF != 1 {
		t.Errorf("df = %d, want 1", r.DF)
	}
	if r.PValue < 0.99 {
		t.Errorf("p = %v for a balanced table, want ~1", r.PValue)
	}
}

func TestChiSquareAssociation(t *testing.T) {
	// A occurs only at x, B only at y.
	labels := append(repeat("A", 20), repeat("B", 20)...)
	groups := append(repeat("x", 20), repeat("y", 20)...)

	r, err := ChiSquare(labels, groups)
	if err != nil {
		t.Fatal(err)
	}

	if r.Statistic < 30 {
		t.Errorf("chi-square = %v for a perfectly associated table, want ~40", r.Statistic)
	}
	if r.PValue > 0.001 {
		t.Errorf("p = %v, want near 0", r.PValue)
	}
}

func TestChiSquareDegenerateFactor(t *testing.T) {
	if _, err := ChiSquare(repeat("A", 10), repeat("x", 10)); err == nil {
		t.Fatal("expected an error for single-level factors")
	}
}

func TestChiSquarePSentinelDoesNotLeak(t *testing.T) {
	// chiSquareP starts from NaN so a CDF panic is distinguishable from
	// true significance; a successful evaluation must overwrite it.
	p := chiSquareP(3.84, 1)
	if math.IsNaN(p) || p < 0.04 || p > 0.06 {
		t.Errorf("p = %v for x2=3.84 df=1, want ~0.05", p)
	}
}

func TestFisher(t *testing.T) {
	labels := append(repeat("A", 12), repeat("B", 12)...)
	groups := append(append(repeat("x", 10), repeat("y", 2)...), append(repeat("x", 3), repeat("y", 9)...)...)

	r, err := Fisher(labels, groups)
	if err != nil {
		t.Fatal(err)
	}

	if r.PValue <= 0 || r.PValue > 0.05 {
		t.Errorf("p = %v, want small for a skewed 2x2 table", r.PValue)
	}
	if r.N != 24 {
		t.Errorf("N = %d, want 24", r.N)
	}
}

func TestFisherRejectsWideTables(t *testing.T) {
	labels := append(append(repeat("A", 5), repeat("B", 5)...), repeat("C", 5)...)
	groups := append(append(repeat("x", 5), repeat("y", 5)...), repeat("x", 5)...)

	if _, err := Fisher(labels, groups); err == nil {
		t.Fatal("expected an error for a 3x2 table")
	}
}
