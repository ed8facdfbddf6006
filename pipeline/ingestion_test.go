package pipeline

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestLoadTable(t *testing.T) {
	csv := strings.Join([]string{
		"Tanggal,ISPU_Total",
		"\"Senin, 01 Januari 2018\",45",
		"\"Selasa, 02 Januari 2018\",52",
		"not a date,60",
	}, "\n")

	table, err := LoadTable(strings.NewReader(csv), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if table.Len() != 3 {
		t.Fatalf("expected 3 rows, got %d", table.Len())
	}
	if table.ColumnIndex("ISPU_Total") != 1 {
		t.Fatalf("unexpected columns: %v", table.Columns)
	}

	want := time.Date(2018, time.January, 1, 0, 0, 0, 0, time.UTC)
	if !table.Dates[0].Equal(want) {
		t.Fatalf("date[0] = %v, want %v", table.Dates[0], want)
	}
	if !table.Dates[2].IsZero() {
		t.Fatalf("malformed date should stay zero, got %v", table.Dates[2])
	}
}

func TestLoadTableEmpty(t *testing.T) {
	_, err := LoadTable(strings.NewReader("Tanggal,ISPU_Total\n"), nil)
	if !errors.Is(err, ErrEmptyData) {
		t.Fatalf("expected ErrEmptyData, got %v", err)
	}
}

func TestLoadTableWindows1252(t *testing.T) {
	// 0xE9 is e-acute in Windows-1252 and invalid UTF-8 on its own
	raw := append([]byte("Tanggal,Qualit"), 0xE9)
	raw = append(raw, []byte("\n\"Rabu, 03 Januari 2018\",77\n")...)

	opts := &TableOptions{DateColumn: "Tanggal", Encoding: "windows-1252"}
	table, err := LoadTable(strings.NewReader(string(raw)), opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if table.Columns[1] != "Qualité" {
		t.Fatalf("expected decoded header, got %q", table.Columns[1])
	}
}

func TestLoadTableUnsupportedEncoding(t *testing.T) {
	if _, err := LoadTable(strings.NewReader("a,b\n1,2\n"), &TableOptions{Encoding: "ebcdic"}); err == nil {
		t.Fatal("expected error for unsupported encoding")
	}
}

func TestParseLocalDate(t *testing.T) {
	cases := []struct {
		in   string
		want time.Time
	}{
		{"Senin, 01 Januari 2018", time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"rabu 15 agustus 2020", time.Date(2020, 8, 15, 0, 0, 0, 0, time.UTC)},
		{"30 April 2024", time.Date(2024, 4, 30, 0, 0, 0, 0, time.UTC)},
		{"Minggu, 29 Februari 2020", time.Date(2020, 2, 29, 0, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		got, err := ParseLocalDate(tc.in)
		if err != nil {
			t.Fatalf("ParseLocalDate(%q): %v", tc.in, err)
		}
		if !got.Equal(tc.want) {
			t.Fatalf("ParseLocalDate(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}

	bad := []string{"", "Januari 2018", "32 Januari 2018", "29 Februari 2019", "10 Undecimber 2020", "x y z"}
	for _, in := range bad {
		if _, err := ParseLocalDate(in); err == nil {
			t.Fatalf("ParseLocalDate(%q) should fail", in)
		}
	}
}
