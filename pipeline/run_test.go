package pipeline

import (
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"aircast/aqi"
	"aircast/ml"
)

// recordingStore counts accesses so tests can assert the model was never
// touched on early validation failures.
type recordingStore struct {
	blobs map[string][]byte
	loads int
	saves int
}

func (s *recordingStore) Exists(id string) bool {
	_, ok := s.blobs[id]
	return ok
}

func (s *recordingStore) Load(id string) ([]byte, error) {
	s.loads++
	return s.blobs[id], nil
}

func (s *recordingStore) Save(id string, w []byte) error {
	s.saves++
	if s.blobs == nil {
		s.blobs = make(map[string][]byte)
	}
	s.blobs[id] = w
	return nil
}

func day(d int) time.Time {
	return time.Date(2020, time.March, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, d)
}

func syntheticTable(n int) *aqi.Table {
	table := &aqi.Table{Columns: []string{"Tanggal", "ISPU_Total"}}
	for i := 0; i < n; i++ {
		v := 60 + 20*math.Sin(float64(i)/4)
		table.Records = append(table.Records, []string{"", fmt.Sprintf("%.2f", v)})
		table.Dates = append(table.Dates, day(i))
	}
	return table
}

func testConfig() Config {
	return Config{
		ModelID:      "ispu_total",
		EarliestDate: time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC),
		LatestDate:   time.Date(2024, 4, 30, 0, 0, 0, 0, time.UTC),
		Seed:         42,
	}
}

func testParams(n int) Params {
	return Params{
		Column:       "ISPU_Total",
		Start:        day(0),
		End:          day(n),
		LookBack:     3,
		Epochs:       1,
		BatchSize:    8,
		LearningRate: 0.001,
	}
}

func TestRunDateRangeInverted(t *testing.T) {
	store := &recordingStore{}
	runner := NewRunner(testConfig(), store, nil)

	p := testParams(40)
	p.Start, p.End = p.End, p.Start
	_, err := runner.Run(syntheticTable(40), p)
	if !errors.Is(err, ErrDateRange) {
		t.Fatalf("expected ErrDateRange, got %v", err)
	}
	if store.loads != 0 || store.saves != 0 {
		t.Fatal("model store must not be touched on date validation failure")
	}
}

func TestRunDateOutsideSupportedRange(t *testing.T) {
	runner := NewRunner(testConfig(), &recordingStore{}, nil)

	p := testParams(40)
	p.Start = time.Date(2017, 6, 1, 0, 0, 0, 0, time.UTC)
	if _, err := runner.Run(syntheticTable(40), p); !errors.Is(err, ErrDateRange) {
		t.Fatalf("expected ErrDateRange, got %v", err)
	}

	p = testParams(40)
	p.End = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	if _, err := runner.Run(syntheticTable(40), p); !errors.Is(err, ErrDateRange) {
		t.Fatalf("expected ErrDateRange, got %v", err)
	}
}

func TestRunEmptyDateFilter(t *testing.T) {
	runner := NewRunner(testConfig(), &recordingStore{}, nil)

	p := testParams(40)
	p.Start = time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	p.End = time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC)
	if _, err := runner.Run(syntheticTable(40), p); !errors.Is(err, ErrEmptyData) {
		t.Fatalf("expected ErrEmptyData, got %v", err)
	}
}

func TestRunMissingColumn(t *testing.T) {
	store := &recordingStore{}
	runner := NewRunner(testConfig(), store, nil)

	p := testParams(40)
	p.Column = "PM10"
	if _, err := runner.Run(syntheticTable(40), p); !errors.Is(err, ErrSchema) {
		t.Fatalf("expected ErrSchema, got %v", err)
	}
	if store.loads != 0 {
		t.Fatal("schema failure must precede any model work")
	}
}

func TestRunLookBackTooLong(t *testing.T) {
	runner := NewRunner(testConfig(), &recordingStore{}, nil)

	p := testParams(40)
	p.LookBack = 200
	if _, err := runner.Run(syntheticTable(40), p); !errors.Is(err, ml.ErrInvalidParameter) {
		t.Fatalf("expected ErrInvalidParameter, got %v", err)
	}
}

func TestRunTrainsAndPersists(t *testing.T) {
	store := &recordingStore{}
	runner := NewRunner(testConfig(), store, nil)

	table := syntheticTable(40)
	res, err := runner.Run(table, testParams(40))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Trained {
		t.Fatal("expected training on first run")
	}
	if store.saves != 1 || !store.Exists("ispu_total") {
		t.Fatal("trained weights were not persisted")
	}

	// 40 rows -> 28 train / 12 test; look_back 3 reserves the last point
	if len(res.Actual) != 8 || len(res.Predicted) != 8 {
		t.Fatalf("expected 8 test points, got %d actual / %d predicted", len(res.Actual), len(res.Predicted))
	}
	if len(res.Severity) != len(res.Predicted) {
		t.Fatal("severity labels must match predictions")
	}
	if len(res.TrainPredicted) != 24 {
		t.Fatalf("expected 24 train predictions, got %d", len(res.TrainPredicted))
	}
	for _, v := range res.Predicted {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("non-finite prediction %f", v)
		}
	}
}

func TestRunReusesPersistedModel(t *testing.T) {
	store := &recordingStore{}
	cfg := testConfig()
	runner := NewRunner(cfg, store, nil)

	table := syntheticTable(40)
	p := testParams(40)
	first, err := runner.Run(table, p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	second, err := runner.Run(table, p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.Trained {
		t.Fatal("second run must reuse the persisted model")
	}
	if store.saves != 1 {
		t.Fatalf("expected a single save, got %d", store.saves)
	}
	for i := range first.Predicted {
		if math.Abs(first.Predicted[i]-second.Predicted[i]) > 1e-9 {
			t.Fatalf("loaded model predictions differ at %d", i)
		}
	}
}

func TestRunScalesFromTrainPartitionOnly(t *testing.T) {
	store := &recordingStore{}
	runner := NewRunner(testConfig(), store, nil)

	// test partition holds the series maximum; predictions must still come
	// back on the original scale without clamping
	table := &aqi.Table{Columns: []string{"Tanggal", "ISPU_Total"}}
	for i := 0; i < 40; i++ {
		v := 50.0 + float64(i)
		table.Records = append(table.Records, []string{"", fmt.Sprintf("%.1f", v)})
		table.Dates = append(table.Dates, day(i))
	}

	res, err := runner.Run(table, testParams(40))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// actual test targets are above the train max and must survive the
	// inverse transform exactly
	if res.Actual[len(res.Actual)-1] <= 80 {
		t.Fatalf("expected de-normalized target above train range, got %f", res.Actual[len(res.Actual)-1])
	}
}
