package aqi

import (
	"testing"
	"time"
)

func TestClassifyBoundaries(t *testing.T) {
	bands := DefaultBands()

	cases := []struct {
		value float64
		want  Severity
	}{
		{0, Good},
		{50, Good},
		{50.1, Moderate},
		{100, Moderate},
		{101, Unhealthy},
		{200, Unhealthy},
		{300, VeryUnhealthy},
		{301, Hazardous},
		{500, Hazardous},
		{500.5, Unclassified},
	}
	for _, tc := range cases {
		if got := Classify(tc.value, bands); got != tc.want {
			t.Fatalf("Classify(%v) = %s, want %s", tc.value, got, tc.want)
		}
	}
}

func TestClassifyAll(t *testing.T) {
	labels := ClassifyAll([]float64{10, 150, 600}, DefaultBands())
	want := []Severity{Good, Unhealthy, Unclassified}
	for i := range want {
		if labels[i] != want[i] {
			t.Fatalf("labels[%d] = %s, want %s", i, labels[i], want[i])
		}
	}
}

func TestFilterByDate(t *testing.T) {
	day := func(d int) time.Time {
		return time.Date(2020, time.March, d, 0, 0, 0, 0, time.UTC)
	}
	table := &Table{
		Columns: []string{"Tanggal", "ISPU_Total"},
		Records: [][]string{{"a", "1"}, {"b", "2"}, {"c", "3"}, {"d", "4"}},
		Dates:   []time.Time{day(1), day(5), {}, day(9)},
	}

	got := table.FilterByDate(day(2), day(9))
	if got.Len() != 2 {
		t.Fatalf("expected 2 rows, got %d", got.Len())
	}
	if got.Records[0][1] != "2" || got.Records[1][1] != "4" {
		t.Fatalf("unexpected rows: %v", got.Records)
	}
	// malformed (zero) dates are never included
	all := table.FilterByDate(day(1), day(31))
	if all.Len() != 3 {
		t.Fatalf("expected 3 rows, got %d", all.Len())
	}
	if table.Len() != 4 {
		t.Fatal("receiver modified")
	}
}

func TestColumnIndex(t *testing.T) {
	table := &Table{Columns: []string{"Tanggal", "ISPU_Total"}}
	if idx := table.ColumnIndex("ISPU_Total"); idx != 1 {
		t.Fatalf("expected 1, got %d", idx)
	}
	if idx := table.ColumnIndex("PM10"); idx != -1 {
		t.Fatalf("expected -1, got %d", idx)
	}
}
