package ml

import (
	"errors"
	"math"
)

var (
	// ErrInvalidParameter reports a hyperparameter that cannot work with the
	// supplied series, e.g. a look-back too long for the data.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrNumericInstability reports a non-finite value in predictions or
	// targets; the forecast must be treated as failed, not scored.
	ErrNumericInstability = errors.New("non-finite value in series")
)

// CheckFinite returns ErrNumericInstability if any value in any of the given
// series is NaN or infinite.
func CheckFinite(series ...[]float64) error {
	for _, s := range series {
		for _, v := range s {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return ErrNumericInstability
			}
		}
	}
	return nil
}
