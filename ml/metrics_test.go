package ml

import (
	"errors"
	"math"
	"testing"
)

func TestEvaluateIdentical(t *testing.T) {
	series := []float64{42, 87, 120, 55}
	m, err := Evaluate(series, series)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.RMSE != 0 || m.MAE != 0 || m.MAPE != 0 {
		t.Fatalf("expected zero metrics, got %+v", m)
	}
}

func TestEvaluateKnownValues(t *testing.T) {
	yTrue := []float64{100, 200}
	yPred := []float64{110, 190}

	m, err := Evaluate(yTrue, yPred)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(m.RMSE-10) > 1e-9 {
		t.Fatalf("RMSE = %f, want 10", m.RMSE)
	}
	if math.Abs(m.MAE-10) > 1e-9 {
		t.Fatalf("MAE = %f, want 10", m.MAE)
	}
	// (10/100 + 10/200)/2 * 100 = 7.5
	if math.Abs(m.MAPE-7.5) > 1e-6 {
		t.Fatalf("MAPE = %f, want 7.5", m.MAPE)
	}
}

func TestEvaluateZeroTrueValue(t *testing.T) {
	// epsilon keeps the division finite when a true value is exactly zero
	m, err := Evaluate([]float64{0}, []float64{0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.IsNaN(m.MAPE) || math.IsInf(m.MAPE, 0) {
		t.Fatalf("MAPE not finite: %f", m.MAPE)
	}
}

func TestEvaluateNonFinite(t *testing.T) {
	if _, err := Evaluate([]float64{1}, []float64{math.NaN()}); !errors.Is(err, ErrNumericInstability) {
		t.Fatalf("expected ErrNumericInstability, got %v", err)
	}
	if _, err := Evaluate([]float64{math.Inf(1)}, []float64{1}); !errors.Is(err, ErrNumericInstability) {
		t.Fatalf("expected ErrNumericInstability, got %v", err)
	}
}

func TestEvaluateLengthMismatch(t *testing.T) {
	if _, err := Evaluate([]float64{1, 2}, []float64{1}); err == nil {
		t.Fatal("expected error for length mismatch")
	}
	if _, err := Evaluate(nil, nil); err == nil {
		t.Fatal("expected error for empty series")
	}
}
