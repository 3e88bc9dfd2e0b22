package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"trunkfat/ml"
)

// Trains a trunk fat regressor from a CSV with columns
// gender,waist,height,weight,age,trunk_fat and writes the model artifact.
func main() {
	dataPath := flag.String("data", "", "training data CSV path")
	modelPath := flag.String("model_path", "./model/trunkfat_gbt.json", "model output path")
	flag.Parse()

	if *dataPath == "" {
		log.Fatal("data is required")
	}

	features, targets, err := loadTrainingData(*dataPath)
	if err != nil {
		log.Fatalf("failed to load training data: %v", err)
	}

	model := ml.NewGBRegressor(ml.CPUSafeDefaults())
	if err := model.Fit(features, targets); err != nil {
		log.Fatalf("failed to train model: %v", err)
	}

	rmse := evaluateModel(model, features, targets)
	log.Printf("samples=%d rmse=%.3f", len(targets), rmse)

	if err := os.MkdirAll(filepath.Dir(*modelPath), 0o755); err != nil {
		log.Fatalf("failed to create model dir: %v", err)
	}
	if err := model.Save(*modelPath); err != nil {
		log.Fatalf("failed to save model: %v", err)
	}

	fmt.Printf("model saved to %s\n", *modelPath)
}

func loadTrainingData(path string) ([][]float64, []float64, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer file.Close()

	rows, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, nil, err
	}
	if len(rows) < 2 {
		return nil, nil, fmt.Errorf("no data rows in %s", path)
	}

	features := make([][]float64, 0, len(rows)-1)
	targets := make([]float64, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if len(row) != 6 {
			return nil, nil, fmt.Errorf("row %d: expected 6 columns, got %d", i+2, len(row))
		}
		numeric := make([]float64, 5)
		for j, cell := range row[1:] {
			value, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, nil, fmt.Errorf("row %d column %d: %w", i+2, j+2, err)
			}
			numeric[j] = value
		}
		features = append(features, ml.BuildFeatures(row[0], numeric[0], numeric[1], numeric[2], numeric[3]))
		targets = append(targets, numeric[4])
	}
	return features, targets, nil
}

func evaluateModel(model *ml.GBRegressor, features [][]float64, targets []float64) float64 {
	sum := 0.0
	for i, feature := range features {
		predicted, err := model.Predict(feature)
		if err != nil {
			continue
		}
		diff := predicted - targets[i]
		sum += diff * diff
	}
	return math.Sqrt(sum / float64(len(targets)))
}
