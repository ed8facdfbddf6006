package pipeline

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"aircast/aqi"
)

// TableOptions configures how an uploaded table is read.
type TableOptions struct {
	DateColumn string // header of the date column (default "Tanggal")
	Encoding   string // "utf-8" (default), "windows-1252" or "latin-1"
}

// DefaultTableOptions returns the conventional upload format.
func DefaultTableOptions() *TableOptions {
	return &TableOptions{
		DateColumn: "Tanggal",
		Encoding:   "utf-8",
	}
}

// LoadTable reads a CSV table with a header row. The date column is parsed
// per row; rows whose date text cannot be parsed keep a zero date and are
// dropped later by the date filter. Legacy single-byte encodings are decoded
// through a transform reader.
func LoadTable(r io.Reader, opts *TableOptions) (*aqi.Table, error) {
	if opts == nil {
		opts = DefaultTableOptions()
	}

	switch strings.ToLower(opts.Encoding) {
	case "", "utf-8", "utf8":
	case "windows-1252":
		r = transform.NewReader(r, charmap.Windows1252.NewDecoder())
	case "latin-1", "iso-8859-1":
		r = transform.NewReader(r, charmap.ISO8859_1.NewDecoder())
	default:
		return nil, fmt.Errorf("unsupported encoding %q", opts.Encoding)
	}

	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	dateIdx := -1
	for i, c := range header {
		if strings.EqualFold(c, opts.DateColumn) {
			dateIdx = i
			break
		}
	}

	table := &aqi.Table{Columns: header}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		var date time.Time
		if dateIdx >= 0 && dateIdx < len(record) {
			if d, derr := ParseLocalDate(record[dateIdx]); derr == nil {
				date = d
			}
		}
		table.Records = append(table.Records, record)
		table.Dates = append(table.Dates, date)
	}

	if table.Len() == 0 {
		return nil, fmt.Errorf("%w: table has no data rows", ErrEmptyData)
	}
	return table, nil
}

var monthNames = map[string]time.Month{
	// Indonesian
	"januari": time.January, "februari": time.February, "maret": time.March,
	"april": time.April, "mei": time.May, "juni": time.June,
	"juli": time.July, "agustus": time.August, "september": time.September,
	"oktober": time.October, "november": time.November, "desember": time.December,
	// English fallback
	"january": time.January, "february": time.February, "march": time.March,
	"may": time.May, "june": time.June, "july": time.July,
	"august": time.August, "october": time.October, "december": time.December,
}

var dayNames = map[string]bool{
	"senin": true, "selasa": true, "rabu": true, "kamis": true,
	"jumat": true, "sabtu": true, "minggu": true,
	"monday": true, "tuesday": true, "wednesday": true, "thursday": true,
	"friday": true, "saturday": true, "sunday": true,
}

// ParseLocalDate parses a date written as "day-name, DD month-name YYYY"
// with Indonesian (or English) day and month names, e.g.
// "Senin, 01 Januari 2018". The leading day name and punctuation are
// optional.
func ParseLocalDate(s string) (time.Time, error) {
	cleaned := strings.ToLower(strings.TrimSpace(s))
	cleaned = strings.ReplaceAll(cleaned, ",", " ")
	fields := strings.Fields(cleaned)
	if len(fields) > 0 && dayNames[fields[0]] {
		fields = fields[1:]
	}
	if len(fields) != 3 {
		return time.Time{}, fmt.Errorf("unrecognized date %q", s)
	}

	day, err := strconv.Atoi(fields[0])
	if err != nil {
		return time.Time{}, fmt.Errorf("unrecognized day in %q", s)
	}
	month, ok := monthNames[fields[1]]
	if !ok {
		return time.Time{}, fmt.Errorf("unrecognized month in %q", s)
	}
	year, err := strconv.Atoi(fields[2])
	if err != nil {
		return time.Time{}, fmt.Errorf("unrecognized year in %q", s)
	}

	d := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if d.Day() != day || d.Month() != month {
		return time.Time{}, fmt.Errorf("invalid calendar date %q", s)
	}
	return d, nil
}
