package ml

import (
	"errors"
	"testing"
)

func TestMakeWindows(t *testing.T) {
	series := []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100}

	inputs, targets, err := MakeWindows(series, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(inputs) != 6 {
		t.Fatalf("expected 6 windows, got %d", len(inputs))
	}

	wantFirst := []float64{10, 20, 30}
	for i, v := range wantFirst {
		if inputs[0][i] != v {
			t.Fatalf("first window mismatch: %v", inputs[0])
		}
	}
	if targets[0] != 40 {
		t.Fatalf("first target = %f, want 40", targets[0])
	}
	if targets[5] != 90 {
		t.Fatalf("last target = %f, want 90 (final point must stay unused)", targets[5])
	}

	for i := range inputs {
		if len(inputs[i]) != 3 {
			t.Fatalf("window %d has length %d", i, len(inputs[i]))
		}
		if targets[i] != series[i+3] {
			t.Fatalf("target %d = %f, want %f", i, targets[i], series[i+3])
		}
	}
}

func TestMakeWindowsTooShort(t *testing.T) {
	// len(series) <= lookBack+1 cannot form a single window
	if _, _, err := MakeWindows([]float64{1, 2, 3, 4}, 3); !errors.Is(err, ErrInvalidParameter) {
		t.Fatalf("expected ErrInvalidParameter, got %v", err)
	}
	if _, _, err := MakeWindows([]float64{1, 2, 3}, 0); !errors.Is(err, ErrInvalidParameter) {
		t.Fatalf("expected ErrInvalidParameter for look_back 0, got %v", err)
	}
	// one more point is enough for exactly one window
	inputs, targets, err := MakeWindows([]float64{1, 2, 3, 4, 5}, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(inputs) != 1 || targets[0] != 4 {
		t.Fatalf("expected single window targeting 4, got %d windows, target %v", len(inputs), targets)
	}
}

func TestMakeWindowsCopiesData(t *testing.T) {
	series := []float64{1, 2, 3, 4, 5, 6}
	inputs, _, err := MakeWindows(series, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	inputs[0][0] = 99
	if series[0] != 1 {
		t.Fatal("window mutation leaked into source series")
	}
}
