// Command forecast trains and evaluates a model from the command line
// without going through the HTTP server.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"aircast/aqi"
	"aircast/db"
	"aircast/pipeline"
)

func main() {
	var (
		dataPath = flag.String("data", "", "path to the ISPU CSV file")
		column   = flag.String("column", "ISPU_Total", "pollutant column to forecast")
		start    = flag.String("start", "2018-01-01", "start date (YYYY-MM-DD)")
		end      = flag.String("end", "2024-04-30", "end date (YYYY-MM-DD)")
		encoding = flag.String("encoding", "utf-8", "CSV encoding: utf-8, windows-1252 or latin-1")
		lookBack = flag.Int("lookback", 60, "window length in days")
		epochs   = flag.Int("epochs", 100, "training epochs")
		batch    = flag.Int("batch", 32, "batch size")
		lr       = flag.Float64("lr", 0.001, "learning rate")
		dbPath   = flag.String("db", "aircast.db", "SQLite database path")
		modelID  = flag.String("model", "ispu_total", "model identifier")
	)
	flag.Parse()

	if *dataPath == "" {
		log.Fatal("-data is required")
	}

	startDate, err := time.Parse("2006-01-02", *start)
	if err != nil {
		log.Fatalf("invalid -start: %v", err)
	}
	endDate, err := time.Parse("2006-01-02", *end)
	if err != nil {
		log.Fatalf("invalid -end: %v", err)
	}

	file, err := os.Open(*dataPath)
	if err != nil {
		log.Fatalf("open data: %v", err)
	}
	defer file.Close()

	opts := pipeline.DefaultTableOptions()
	opts.Encoding = *encoding
	table, err := pipeline.LoadTable(file, opts)
	if err != nil {
		log.Fatalf("load data: %v", err)
	}

	store, err := db.Open(*dbPath)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer store.Close()

	runner := pipeline.NewRunner(pipeline.Config{
		ModelID:      *modelID,
		EarliestDate: startDate,
		LatestDate:   endDate,
		OnEpoch: func(epoch int, trainLoss, valLoss float64) {
			fmt.Printf("epoch %4d  train %.6f  val %.6f\n", epoch, trainLoss, valLoss)
		},
	}, store, nil)

	result, err := runner.Run(table, pipeline.Params{
		Column:       *column,
		Start:        startDate,
		End:          endDate,
		LookBack:     *lookBack,
		Epochs:       *epochs,
		BatchSize:    *batch,
		LearningRate: *lr,
	})
	if err != nil {
		log.Fatalf("forecast failed: %v", err)
	}

	fmt.Println()
	if result.Trained {
		fmt.Printf("trained new model %q on %d rows\n", *modelID, result.Rows)
	} else {
		fmt.Printf("reused persisted model %q on %d rows\n", *modelID, result.Rows)
	}
	fmt.Printf("RMSE %.4f  MAE %.4f  MAPE %.2f%%\n",
		result.Metrics.RMSE, result.Metrics.MAE, result.Metrics.MAPE)

	counts := map[aqi.Severity]int{}
	for _, s := range result.Severity {
		counts[s]++
	}
	fmt.Println("predicted severity:")
	for _, band := range aqi.DefaultBands() {
		if n := counts[band.Label]; n > 0 {
			fmt.Printf("  %-15s %d\n", band.Label, n)
		}
	}
	if n := counts[aqi.Unclassified]; n > 0 {
		fmt.Printf("  %-15s %d\n", aqi.Unclassified, n)
	}

	rec := db.RunRecord{
		Column:       *column,
		StartDate:    *start,
		EndDate:      *end,
		LookBack:     *lookBack,
		Epochs:       *epochs,
		BatchSize:    *batch,
		LearningRate: *lr,
		RMSE:         result.Metrics.RMSE,
		MAE:          result.Metrics.MAE,
		MAPE:         result.Metrics.MAPE,
		Trained:      result.Trained,
	}
	if err := store.SaveRun(rec); err != nil {
		log.Printf("warning: could not record run: %v", err)
	}
}
