package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"aircast/aqi"
	"aircast/db"
	"aircast/ml"
	"aircast/pipeline"
)

// Parameter bounds accepted from the input surface.
const (
	minEpochs, maxEpochs       = 50, 1000
	minBatchSize, maxBatchSize = 16, 1024
	minLearningRate            = 0.0001
	maxLearningRate            = 0.1
	minLookBack, maxLookBack   = 10, 300
)

const dateLayout = "2006-01-02"

// Handlers bundles the pipeline runner and its storage for the HTTP routes.
type Handlers struct {
	runner *pipeline.Runner
	store  *db.Store
	hub    *ProgressHub
	bands  []aqi.Band
	log    *zap.Logger
}

// NewHandlers builds the route set.
func NewHandlers(runner *pipeline.Runner, store *db.Store, hub *ProgressHub, bands []aqi.Band, log *zap.Logger) *Handlers {
	if len(bands) == 0 {
		bands = aqi.DefaultBands()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Handlers{runner: runner, store: store, hub: hub, bands: bands, log: log}
}

// Register attaches all routes to the mux.
func (h *Handlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/health", h.handleHealth)
	mux.HandleFunc("GET /api/thresholds", h.handleThresholds)
	mux.HandleFunc("GET /api/runs", h.handleRuns)
	mux.HandleFunc("POST /api/forecast", h.handleForecast)
	if h.hub != nil {
		mux.HandleFunc("GET /api/ws/training", h.hub.Handle)
	}
}

func (h *Handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handlers) handleThresholds(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.bands)
}

func (h *Handlers) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	runs, err := h.store.RecentRuns(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if runs == nil {
		runs = []db.RunRecord{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (h *Handlers) handleForecast(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("parse upload: %w", err))
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("a CSV upload named \"file\" is required"))
		return
	}
	defer file.Close()

	params, err := parseForecastParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	opts := pipeline.DefaultTableOptions()
	if enc := r.FormValue("encoding"); enc != "" {
		opts.Encoding = enc
	}
	table, err := pipeline.LoadTable(file, opts)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	result, err := h.runner.Run(table, params)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	rec := db.RunRecord{
		Column:       params.Column,
		StartDate:    params.Start.Format(dateLayout),
		EndDate:      params.End.Format(dateLayout),
		LookBack:     params.LookBack,
		Epochs:       params.Epochs,
		BatchSize:    params.BatchSize,
		LearningRate: params.LearningRate,
		RMSE:         result.Metrics.RMSE,
		MAE:          result.Metrics.MAE,
		MAPE:         result.Metrics.MAPE,
		Trained:      result.Trained,
	}
	if err := h.store.SaveRun(rec); err != nil {
		h.log.Warn("failed to record run", zap.Error(err))
	}

	writeJSON(w, http.StatusOK, result)
}

func parseForecastParams(r *http.Request) (pipeline.Params, error) {
	var p pipeline.Params

	p.Column = r.FormValue("column")
	if p.Column == "" {
		p.Column = "ISPU_Total"
	}

	start, err := time.Parse(dateLayout, r.FormValue("start_date"))
	if err != nil {
		return p, fmt.Errorf("start_date must be YYYY-MM-DD: %q", r.FormValue("start_date"))
	}
	end, err := time.Parse(dateLayout, r.FormValue("end_date"))
	if err != nil {
		return p, fmt.Errorf("end_date must be YYYY-MM-DD: %q", r.FormValue("end_date"))
	}
	p.Start, p.End = start, end

	p.LookBack, err = intInRange(r, "look_back", minLookBack, maxLookBack)
	if err != nil {
		return p, err
	}
	p.Epochs, err = intInRange(r, "epochs", minEpochs, maxEpochs)
	if err != nil {
		return p, err
	}
	p.BatchSize, err = intInRange(r, "batch_size", minBatchSize, maxBatchSize)
	if err != nil {
		return p, err
	}

	lr, err := strconv.ParseFloat(r.FormValue("learning_rate"), 64)
	if err != nil {
		return p, fmt.Errorf("learning_rate must be a number: %q", r.FormValue("learning_rate"))
	}
	if lr < minLearningRate || lr > maxLearningRate {
		return p, fmt.Errorf("learning_rate %g outside [%g, %g]", lr, minLearningRate, maxLearningRate)
	}
	p.LearningRate = lr

	return p, nil
}

func intInRange(r *http.Request, field string, min, max int) (int, error) {
	v, err := strconv.Atoi(r.FormValue(field))
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %q", field, r.FormValue(field))
	}
	if v < min || v > max {
		return 0, fmt.Errorf("%s %d outside [%d, %d]", field, v, min, max)
	}
	return v, nil
}

// statusFor maps pipeline failures to HTTP statuses. Each taxonomy error
// stays distinct and user-actionable in the response body.
func statusFor(err error) int {
	switch {
	case errors.Is(err, pipeline.ErrSchema),
		errors.Is(err, pipeline.ErrDateRange),
		errors.Is(err, ml.ErrInvalidParameter):
		return http.StatusBadRequest
	case errors.Is(err, pipeline.ErrEmptyData):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
