package ml

import "fmt"

// MakeWindows builds a supervised dataset from a scalar series: each input is
// lookBack consecutive values and the target is the value immediately after
// the window, sliding with stride 1.
//
// A series of length N yields exactly N-lookBack-1 windows; the trailing
// point is reserved so every window has a defined next-step target, which
// leaves the very last value unused as a standalone target.
func MakeWindows(series []float64, lookBack int) ([][]float64, []float64, error) {
	if lookBack < 1 {
		return nil, nil, fmt.Errorf("%w: look_back must be >= 1, got %d", ErrInvalidParameter, lookBack)
	}
	if len(series) <= lookBack+1 {
		return nil, nil, fmt.Errorf("%w: series length %d too short for look_back %d",
			ErrInvalidParameter, len(series), lookBack)
	}

	n := len(series) - lookBack - 1
	inputs := make([][]float64, n)
	targets := make([]float64, n)
	for i := 0; i < n; i++ {
		window := make([]float64, lookBack)
		copy(window, series[i:i+lookBack])
		inputs[i] = window
		targets[i] = series[i+lookBack]
	}
	return inputs, targets, nil
}
