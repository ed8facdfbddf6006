package pipeline

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"aircast/aqi"
	"aircast/ml"
)

// Config carries the fixed per-deployment settings of the forecasting
// pipeline. Thresholds and the supported historical range are explicit here
// instead of living in package globals.
type Config struct {
	ModelID      string
	TrainRatio   float64 // chronological train fraction, default 0.7
	EarliestDate time.Time
	LatestDate   time.Time
	Bands        []aqi.Band
	Seed         int64 // weight init seed; 0 means time-based

	// OnEpoch, when set, receives per-epoch training progress.
	OnEpoch func(epoch int, trainLoss, valLoss float64)
}

// Params are the user-chosen inputs for one run.
type Params struct {
	Column       string
	Start, End   time.Time
	LookBack     int
	Epochs       int
	BatchSize    int
	LearningRate float64
}

// Result is the outcome of one pipeline run.
type Result struct {
	Metrics        ml.Metrics     `json:"metrics"`
	Actual         []float64      `json:"actual"`
	Predicted      []float64      `json:"predicted"`
	Severity       []aqi.Severity `json:"severity"`
	TrainPredicted []float64      `json:"train_predicted"`
	Trained        bool           `json:"trained"`
	Rows           int            `json:"rows"`
}

// Runner wires cleaning, scaling, windowing, the forecast model and
// evaluation into one synchronous pipeline. One run executes start to
// finish; concurrent runs for the same model id must be serialized by the
// caller.
type Runner struct {
	cfg     Config
	store   ml.ModelStore
	cleaner *Cleaner
	log     *zap.Logger
}

// NewRunner builds a runner. A nil logger disables logging.
func NewRunner(cfg Config, store ml.ModelStore, log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.TrainRatio <= 0 || cfg.TrainRatio >= 1 {
		cfg.TrainRatio = 0.7
	}
	if len(cfg.Bands) == 0 {
		cfg.Bands = aqi.DefaultBands()
	}
	return &Runner{
		cfg:     cfg,
		store:   store,
		cleaner: NewCleaner(log),
		log:     log,
	}
}

// Run executes the full pipeline on an uploaded table: date filter, clean,
// chronological 70/30 split, min-max scale fitted on the train partition
// only, windowing per partition, model load-or-train, prediction, inverse
// scaling, evaluation and severity classification.
func (r *Runner) Run(table *aqi.Table, p Params) (*Result, error) {
	if err := r.checkDates(p); err != nil {
		return nil, err
	}

	filtered := table.FilterByDate(p.Start, p.End)
	if filtered.Len() == 0 {
		return nil, fmt.Errorf("%w: no rows between %s and %s",
			ErrEmptyData, p.Start.Format("2006-01-02"), p.End.Format("2006-01-02"))
	}

	series, err := r.cleaner.Clean(filtered, p.Column)
	if err != nil {
		return nil, err
	}

	split := int(r.cfg.TrainRatio * float64(len(series)))
	train, test := series[:split], series[split:]

	var scaler ml.MinMaxScaler
	if err := scaler.Fit(train); err != nil {
		return nil, fmt.Errorf("%w: train partition is empty", ErrEmptyData)
	}
	scaledTrain := scaler.Transform(train)
	scaledTest := scaler.Transform(test)

	trainX, trainY, err := ml.MakeWindows(scaledTrain, p.LookBack)
	if err != nil {
		return nil, err
	}
	testX, testY, err := ml.MakeWindows(scaledTest, p.LookBack)
	if err != nil {
		return nil, err
	}

	net, err := ml.LoadNetwork(r.store, r.cfg.ModelID)
	if err != nil {
		return nil, fmt.Errorf("load model %q: %w", r.cfg.ModelID, err)
	}
	trained := false
	if net == nil {
		seed := r.cfg.Seed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		net = ml.NewNetwork(seed)

		r.log.Info("training forecast model",
			zap.String("model_id", r.cfg.ModelID),
			zap.Int("train_windows", len(trainX)),
			zap.Int("test_windows", len(testX)),
			zap.Int("look_back", p.LookBack),
			zap.Int("epochs", p.Epochs),
			zap.Int("batch_size", p.BatchSize),
			zap.Float64("learning_rate", p.LearningRate))

		cfg := ml.FitConfig{
			Epochs:       p.Epochs,
			BatchSize:    p.BatchSize,
			LearningRate: p.LearningRate,
			Progress:     r.cfg.OnEpoch,
		}
		if err := net.Fit(trainX, trainY, testX, testY, cfg); err != nil {
			return nil, err
		}
		blob, err := net.Weights()
		if err != nil {
			return nil, fmt.Errorf("serialize model: %w", err)
		}
		if err := r.store.Save(r.cfg.ModelID, blob); err != nil {
			return nil, fmt.Errorf("persist model %q: %w", r.cfg.ModelID, err)
		}
		trained = true
	} else {
		r.log.Info("using persisted model", zap.String("model_id", r.cfg.ModelID))
	}

	trainPred, err := net.Predict(trainX)
	if err != nil {
		return nil, err
	}
	testPred, err := net.Predict(testX)
	if err != nil {
		return nil, err
	}

	actual := scaler.Inverse(testY)
	predicted := scaler.Inverse(testPred)
	trainPredicted := scaler.Inverse(trainPred)

	if err := ml.CheckFinite(actual, predicted, trainPredicted); err != nil {
		return nil, fmt.Errorf("forecast failed: %w", err)
	}

	metrics, err := ml.Evaluate(actual, predicted)
	if err != nil {
		return nil, err
	}

	r.log.Info("run complete",
		zap.String("model_id", r.cfg.ModelID),
		zap.Bool("trained", trained),
		zap.Int("rows", filtered.Len()),
		zap.Float64("rmse", metrics.RMSE),
		zap.Float64("mae", metrics.MAE),
		zap.Float64("mape", metrics.MAPE))

	return &Result{
		Metrics:        metrics,
		Actual:         actual,
		Predicted:      predicted,
		Severity:       aqi.ClassifyAll(predicted, r.cfg.Bands),
		TrainPredicted: trainPredicted,
		Trained:        trained,
		Rows:           filtered.Len(),
	}, nil
}

func (r *Runner) checkDates(p Params) error {
	if p.Start.After(p.End) {
		return fmt.Errorf("%w: start %s is after end %s",
			ErrDateRange, p.Start.Format("2006-01-02"), p.End.Format("2006-01-02"))
	}
	if !r.cfg.EarliestDate.IsZero() && p.Start.Before(r.cfg.EarliestDate) {
		return fmt.Errorf("%w: start %s precedes supported range (%s)",
			ErrDateRange, p.Start.Format("2006-01-02"), r.cfg.EarliestDate.Format("2006-01-02"))
	}
	if !r.cfg.LatestDate.IsZero() && p.End.After(r.cfg.LatestDate) {
		return fmt.Errorf("%w: end %s exceeds supported range (%s)",
			ErrDateRange, p.End.Format("2006-01-02"), r.cfg.LatestDate.Format("2006-01-02"))
	}
	return nil
}
