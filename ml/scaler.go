package ml

import "errors"

// MinMaxScaler maps values into [0,1] with an affine transform fitted once.
// The same fitted state must be used to invert anything derived from it;
// it is never refit on test data.
type MinMaxScaler struct {
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	fitted bool
}

// Fit records the min and max of the series.
func (s *MinMaxScaler) Fit(series []float64) error {
	if len(series) == 0 {
		return errors.New("series is empty")
	}
	min, max := series[0], series[0]
	for _, v := range series[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	s.Min, s.Max, s.fitted = min, max, true
	return nil
}

// Transform maps the series through the fitted transform. Values outside the
// fitted range extrapolate linearly. A degenerate fit (min == max) maps every
// value to 0.0.
func (s *MinMaxScaler) Transform(series []float64) []float64 {
	out := make([]float64, len(series))
	span := s.Max - s.Min
	if span == 0 {
		return out
	}
	for i, v := range series {
		out[i] = (v - s.Min) / span
	}
	return out
}

// Inverse is the exact inverse of Transform. For a degenerate fit every value
// maps back to the fitted constant.
func (s *MinMaxScaler) Inverse(series []float64) []float64 {
	out := make([]float64, len(series))
	span := s.Max - s.Min
	for i, v := range series {
		out[i] = v*span + s.Min
	}
	return out
}

// Fitted reports whether Fit has been called.
func (s *MinMaxScaler) Fitted() bool {
	return s.fitted
}
