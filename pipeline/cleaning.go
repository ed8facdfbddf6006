package pipeline

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"aircast/aqi"
)

// Cleaner validates and imputes a raw numeric column and removes statistical
// outliers. The input table is never modified.
type Cleaner struct {
	log *zap.Logger
}

// NewCleaner builds a cleaner. A nil logger disables logging.
func NewCleaner(log *zap.Logger) *Cleaner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Cleaner{log: log}
}

// Clean coerces the named column to numbers (non-parseable entries become
// missing), imputes missing values with the column mean, then drops values
// outside [Q1 - 1.5*IQR, Q3 + 1.5*IQR].
func (c *Cleaner) Clean(table *aqi.Table, column string) ([]float64, error) {
	idx := table.ColumnIndex(column)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %q", ErrSchema, column)
	}

	values := make([]float64, table.Len())
	var sum float64
	var present int
	for i, record := range table.Records {
		values[i] = math.NaN()
		if idx >= len(record) {
			continue
		}
		raw := strings.TrimSpace(record[idx])
		if raw == "" {
			continue
		}
		if parsed, err := strconv.ParseFloat(raw, 64); err == nil && !math.IsNaN(parsed) && !math.IsInf(parsed, 0) {
			values[i] = parsed
			sum += parsed
			present++
		}
	}
	if present == 0 {
		return nil, fmt.Errorf("%w: column %q has no numeric values", ErrEmptyData, column)
	}

	mean := sum / float64(present)
	imputed := table.Len() - present
	for i, v := range values {
		if math.IsNaN(v) {
			values[i] = mean
		}
	}

	q1 := quantile(values, 0.25)
	q3 := quantile(values, 0.75)
	iqr := q3 - q1
	lo := q1 - 1.5*iqr
	hi := q3 + 1.5*iqr

	cleaned := make([]float64, 0, len(values))
	for _, v := range values {
		if v >= lo && v <= hi {
			cleaned = append(cleaned, v)
		}
	}
	if len(cleaned) == 0 {
		return nil, fmt.Errorf("%w: every row fell outside the IQR bounds", ErrEmptyData)
	}

	c.log.Debug("cleaned column",
		zap.String("column", column),
		zap.Int("rows", table.Len()),
		zap.Int("imputed", imputed),
		zap.Int("outliers_removed", len(values)-len(cleaned)),
		zap.Float64("lower_bound", lo),
		zap.Float64("upper_bound", hi))

	return cleaned, nil
}

// quantile computes the q-th quantile with linear interpolation between
// order statistics.
func quantile(values []float64, q float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
