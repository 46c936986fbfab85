package frame

import (
	"reflect"
	"testing"
)

func build(t *testing.T) *Frame {
	t.Helper()

	f := New()
	if err := f.AddColumn("cluster", []string{"1", "2", "NA", "1", ""}); err != nil {
		t.Fatal(err)
	}
	if err := f.AddColumn("strain", []string{"b6", "b6", "balbc", "balbc", "b6"}); err != nil {
		t.Fatal(err)
	}

	return f
}

func TestAddColumnLengthMismatch(t *testing.T) {
	f := build(t)
	if err := f.AddColumn("short", []string{"a"}); err == nil {
		t.Fatal("expected a length-mismatch error")
	}
	if err := f.AddColumn("cluster", []string{"1", "2", "3", "4", "5"}); err == nil {
		t.Fatal("expected a duplicate-column error")
	}
}

func TestLevelsOrderAndMissing(t *testing.T) {
	f := build(t)

	if got := f.Levels("cluster"); !reflect.DeepEqual(got, []string{"1", "2"}) {
		t.Errorf("Levels(cluster) = %v", got)
	}
	if got := f.Levels("strain"); !reflect.DeepEqual(got, []string{"b6", "balbc"}) {
		t.Errorf("Levels(strain) = %v", got)
	}
}

func TestDropMissing(t *testing.T) {
	f := build(t)

	kept, dropped, err := f.DropMissing("cluster")
	if err != nil {
		t.Fatal(err)
	}

	if dropped != 2 {
		t.Errorf("dropped = %d, want 2", dropped)
	}
	if kept.Len() != 3 {
		t.Errorf("kept %d rows, want 3", kept.Len())
	}

	col, _ := kept.Column("strain")
	if !reflect.DeepEqual(col, []string{"b6", "b6", "balbc"}) {
		t.Errorf("strain after drop = %v", col)
	}

	if _, _, err := f.DropMissing("nope"); err == nil {
		t.Error("expected an error for a missing column name")
	}
}

func TestSubsetAndSelect(t *testing.T) {
	f := build(t)

	sub := f.Subset([]int{3, 0})
	col, _ := sub.Column("cluster")
	if !reflect.DeepEqual(col, []string{"1", "1"}) {
		t.Errorf("subset cluster = %v", col)
	}

	sel, err := f.Select("strain")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(sel.Names(), []string{"strain"}) {
		t.Errorf("selected names = %v", sel.Names())
	}

	// Select must copy; mutating the selection must not touch the source.
	selCol, _ := sel.Column("strain")
	selCol[0] = "mutated"
	orig, _ := f.Column("strain")
	if orig[0] == "mutated" {
		t.Error("Select shares backing arrays with the source frame")
	}
}

func TestKey(t *testing.T) {
	f := build(t)

	if k := f.Key(0, "strain", "cluster"); k != "b6\x1f1" {
		t.Errorf("Key = %q", k)
	}
}
