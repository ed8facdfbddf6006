// Package db provides the SQLite-backed model store and run history.
package db

import (
	"database/sql"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	_ "github.com/mattn/go-sqlite3"

	"aircast/ml"
)

const blobCacheSize = 8

// Store persists serialized model weights keyed by model identifier, plus a
// history of pipeline runs. It implements ml.ModelStore. Reads go through a
// small LRU cache of weight blobs.
type Store struct {
	db    *sql.DB
	cache *lru.Cache[string, []byte]
}

// Open opens (creating if needed) the SQLite database at path.
func Open(path string) (*Store, error) {
	database, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	query := `
    CREATE TABLE IF NOT EXISTS models (
        id TEXT PRIMARY KEY,
        weights BLOB NOT NULL,
        trained_at DATETIME DEFAULT CURRENT_TIMESTAMP
    );
    CREATE TABLE IF NOT EXISTS runs (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        column_name TEXT NOT NULL,
        start_date TEXT NOT NULL,
        end_date TEXT NOT NULL,
        look_back INTEGER NOT NULL,
        epochs INTEGER NOT NULL,
        batch_size INTEGER NOT NULL,
        learning_rate REAL NOT NULL,
        rmse REAL NOT NULL,
        mae REAL NOT NULL,
        mape REAL NOT NULL,
        trained INTEGER NOT NULL,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP
    );
    `
	if _, err := database.Exec(query); err != nil {
		database.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	cache, err := lru.New[string, []byte](blobCacheSize)
	if err != nil {
		database.Close()
		return nil, err
	}

	return &Store{db: database, cache: cache}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Exists reports whether weights are stored for the id.
func (s *Store) Exists(id string) bool {
	if s.cache.Contains(id) {
		return true
	}
	var one int
	err := s.db.QueryRow(`SELECT 1 FROM models WHERE id = ?`, id).Scan(&one)
	return err == nil
}

// Load returns the weights blob for the id, or (nil, nil) when absent.
func (s *Store) Load(id string) ([]byte, error) {
	if blob, ok := s.cache.Get(id); ok {
		return blob, nil
	}

	var blob []byte
	err := s.db.QueryRow(`SELECT weights FROM models WHERE id = ?`, id).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load model %q: %w", id, err)
	}
	s.cache.Add(id, blob)
	return blob, nil
}

// Save upserts the weights blob for the id.
func (s *Store) Save(id string, weights []byte) error {
	_, err := s.db.Exec(`
        INSERT INTO models (id, weights, trained_at) VALUES (?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET weights = excluded.weights, trained_at = excluded.trained_at`,
		id, weights, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save model %q: %w", id, err)
	}
	s.cache.Add(id, weights)
	return nil
}

var _ ml.ModelStore = (*Store)(nil)

// RunRecord is one persisted pipeline run.
type RunRecord struct {
	ID           int64     `json:"id"`
	Column       string    `json:"column"`
	StartDate    string    `json:"start_date"`
	EndDate      string    `json:"end_date"`
	LookBack     int       `json:"look_back"`
	Epochs       int       `json:"epochs"`
	BatchSize    int       `json:"batch_size"`
	LearningRate float64   `json:"learning_rate"`
	RMSE         float64   `json:"rmse"`
	MAE          float64   `json:"mae"`
	MAPE         float64   `json:"mape"`
	Trained      bool      `json:"trained"`
	CreatedAt    time.Time `json:"created_at"`
}

// SaveRun appends a run to the history.
func (s *Store) SaveRun(rec RunRecord) error {
	_, err := s.db.Exec(`
        INSERT INTO runs (column_name, start_date, end_date, look_back, epochs,
                          batch_size, learning_rate, rmse, mae, mape, trained)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Column, rec.StartDate, rec.EndDate, rec.LookBack, rec.Epochs,
		rec.BatchSize, rec.LearningRate, rec.RMSE, rec.MAE, rec.MAPE, rec.Trained)
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	return nil
}

// RecentRuns returns up to limit runs, newest first.
func (s *Store) RecentRuns(limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`
        SELECT id, column_name, start_date, end_date, look_back, epochs,
               batch_size, learning_rate, rmse, mae, mape, trained, created_at
        FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		var rec RunRecord
		if err := rows.Scan(&rec.ID, &rec.Column, &rec.StartDate, &rec.EndDate,
			&rec.LookBack, &rec.Epochs, &rec.BatchSize, &rec.LearningRate,
			&rec.RMSE, &rec.MAE, &rec.MAPE, &rec.Trained, &rec.CreatedAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
