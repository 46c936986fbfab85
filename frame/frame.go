// Package frame provides a small named-column table of categorical values.
// It is the unit-level input to the permutation engine: one row per cell,
// with the cluster label, covariates, and strata addressable by column name.
package frame

import (
	"fmt"
	"strings"

	"github.com/carbocation/pfx"
)

// Frame is a set of equal-length string columns addressable by name. Column
// order is the order of insertion and is preserved by Select and Subset.
type Frame struct {
	names []string
	cols  map[string][]string
	nrow  int
}

func New() *Frame {
	return &Frame{cols: make(map[string][]string)}
}

// AddColumn appends a named column. Every column after the first must have
// the same length as the frame.
func (f *Frame) AddColumn(name string, values []string) error {
	if _, exists := f.cols[name]; exists {
		return fmt.Errorf("frame: duplicate column %q", name)
	}

	if len(f.names) > 0 && len(values) != f.nrow {
		return fmt.Errorf("frame: column %q has %d values, frame has %d rows", name, len(values), f.nrow)
	}

	out := make([]string, len(values))
	copy(out, values)

	f.names = append(f.names, name)
	f.cols[name] = out
	f.nrow = len(out)

	return nil
}

func (f *Frame) Len() int { return f.nrow }

func (f *Frame) Names() []string {
	out := make([]string, len(f.names))
	copy(out, f.names)
	return out
}

// Column returns the named column. The returned slice is the frame's own
// backing array; callers that mutate it should copy first.
func (f *Frame) Column(name string) ([]string, bool) {
	col, ok := f.cols[name]
	return col, ok
}

// Levels returns the distinct values of the named column in first-encounter
// order. Missing values are not levels.
func (f *Frame) Levels(name string) []string {
	col, ok := f.cols[name]
	if !ok {
		return nil
	}

	seen := make(map[string]struct{})
	levels := make([]string, 0)
	for _, v := range col {
		if Missing(v) {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		levels = append(levels, v)
	}

	return levels
}

// Missing reports whether a value counts as missing. Empty cells and the
// literal NA marker both do, matching the CSV inputs this package reads.
func Missing(v string) bool {
	return v == "" || v == "NA"
}

// DropMissing returns a copy of the frame without any row that has a
// missing value in one of the named columns, along with the number of rows
// dropped.
func (f *Frame) DropMissing(names ...string) (*Frame, int, error) {
	for _, name := range names {
		if _, ok := f.cols[name]; !ok {
			return nil, 0, fmt.Errorf("frame: no column %q", name)
		}
	}

	keep := make([]int, 0, f.nrow)
	for i := 0; i < f.nrow; i++ {
		miss := false
		for _, name := range names {
			if Missing(f.cols[name][i]) {
				miss = true
				break
			}
		}
		if !miss {
			keep = append(keep, i)
		}
	}

	return f.Subset(keep), f.nrow - len(keep), nil
}

// Subset returns a new frame containing the given rows, in the given order.
func (f *Frame) Subset(rows []int) *Frame {
	out := New()
	for _, name := range f.names {
		src := f.cols[name]
		col := make([]string, len(rows))
		for j, i := range rows {
			col[j] = src[i]
		}
		out.names = append(out.names, name)
		out.cols[name] = col
	}
	out.nrow = len(rows)

	return out
}

// Select returns a new frame with only the named columns, sharing no backing
// arrays with the receiver.
func (f *Frame) Select(names ...string) (*Frame, error) {
	out := New()
	for _, name := range names {
		col, ok := f.cols[name]
		if !ok {
			return nil, pfx.Err(fmt.Errorf("frame: no column %q", name))
		}
		if err := out.AddColumn(name, col); err != nil {
			return nil, err
		}
	}

	return out, nil
}

// Key builds the composite key of a row over the named columns, used to
// group rows into strata. The unit separator keeps composite keys unique
// even when values contain common punctuation.
func (f *Frame) Key(row int, names ...string) string {
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, f.cols[name][row])
	}

	return strings.Join(parts, "\x1f")
}
