package db

import (
	"database/sql"
	"errors"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

var database *sql.DB

// InitDB initializes the SQLite database
func InitDB(path string) error {
	var err error
	database, err = sql.Open("sqlite3", path)
	if err != nil {
		return err
	}

	query := `
    CREATE TABLE IF NOT EXISTS predictions (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        gender TEXT NOT NULL,
        waist REAL NOT NULL,
        height REAL NOT NULL,
        weight REAL NOT NULL,
        age REAL NOT NULL,
        trunk_fat REAL NOT NULL,
        risk_level TEXT NOT NULL,
        created_at DATETIME NOT NULL
    );
    `

	_, err = database.Exec(query)
	return err
}

// Close closes the database handle
func Close() error {
	if database == nil {
		return nil
	}
	err := database.Close()
	database = nil
	return err
}

// PredictionRecord is one served prediction
type PredictionRecord struct {
	ID        int64     `json:"id"`
	Gender    string    `json:"gender"`
	Waist     float64   `json:"waist"`
	Height    float64   `json:"height"`
	Weight    float64   `json:"weight"`
	Age       float64   `json:"age"`
	TrunkFat  float64   `json:"trunk_fat"`
	RiskLevel string    `json:"risk_level"`
	CreatedAt time.Time `json:"created_at"`
}

// SavePrediction stores a served prediction
func SavePrediction(record PredictionRecord) error {
	if database == nil {
		return errors.New("database not initialized")
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	_, err := database.Exec(`
        INSERT INTO predictions (gender, waist, height, weight, age, trunk_fat, risk_level, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		record.Gender, record.Waist, record.Height, record.Weight, record.Age,
		record.TrunkFat, record.RiskLevel, record.CreatedAt)
	return err
}

// QueryPredictions returns the most recent predictions, newest first
func QueryPredictions(limit int) ([]PredictionRecord, error) {
	if database == nil {
		return nil, errors.New("database not initialized")
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := database.Query(`
        SELECT id, gender, waist, height, weight, age, trunk_fat, risk_level, created_at
        FROM predictions
        ORDER BY created_at DESC, id DESC
        LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]PredictionRecord, 0)
	for rows.Next() {
		var r PredictionRecord
		if err := rows.Scan(&r.ID, &r.Gender, &r.Waist, &r.Height, &r.Weight, &r.Age,
			&r.TrunkFat, &r.RiskLevel, &r.CreatedAt); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
