package ml

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/stat"
)

// mapeEpsilon guards the MAPE denominator when a true value is exactly zero.
// Near-zero true values (common for a "Good" index) still contribute large
// percentage terms; that is a known metric sensitivity, not a defect.
const mapeEpsilon = 1e-10

// Metrics holds forecast error metrics computed on de-normalized values.
type Metrics struct {
	RMSE float64 `json:"rmse"`
	MAE  float64 `json:"mae"`
	MAPE float64 `json:"mape"`
}

// Evaluate scores predictions against true values. Inputs must already be
// de-normalized. Non-finite inputs fail with ErrNumericInstability.
func Evaluate(yTrue, yPred []float64) (Metrics, error) {
	if len(yTrue) == 0 {
		return Metrics{}, errors.New("empty series")
	}
	if len(yTrue) != len(yPred) {
		return Metrics{}, errors.New("series length mismatch")
	}
	if err := CheckFinite(yTrue, yPred); err != nil {
		return Metrics{}, err
	}

	sq := make([]float64, len(yTrue))
	abs := make([]float64, len(yTrue))
	pct := make([]float64, len(yTrue))
	for i := range yTrue {
		d := yTrue[i] - yPred[i]
		sq[i] = d * d
		abs[i] = math.Abs(d)
		pct[i] = math.Abs(d) / (math.Abs(yTrue[i]) + mapeEpsilon)
	}

	return Metrics{
		RMSE: math.Sqrt(stat.Mean(sq, nil)),
		MAE:  stat.Mean(abs, nil),
		MAPE: stat.Mean(pct, nil) * 100,
	}, nil
}
