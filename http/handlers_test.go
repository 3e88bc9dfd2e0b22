package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"trunkfat/db"
)

func TestHandleHealthNoModel(t *testing.T) {
	mux := setupPredict(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("health must answer 200 even without a model, got %d", w.Code)
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if payload["status"] != "model_not_loaded" {
		t.Fatalf("unexpected status: %v", payload["status"])
	}
	if payload["model_loaded"] != false {
		t.Fatal("model_loaded should be false")
	}
}

func TestHandleHealthLoaded(t *testing.T) {
	mux := setupPredict(t)
	SetModel(&fakeModel{value: 20})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	var payload map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if payload["status"] != "healthy" {
		t.Fatalf("unexpected status: %v", payload["status"])
	}
	if payload["model_loaded"] != true {
		t.Fatal("model_loaded should be true")
	}

	features := payload["features"].([]interface{})
	want := []string{"Female", "Waist", "Height", "Weight", "Age"}
	if len(features) != len(want) {
		t.Fatalf("unexpected feature count: %d", len(features))
	}
	for i, name := range want {
		if features[i] != name {
			t.Fatalf("feature %d = %v, want %s", i, features[i], name)
		}
	}
}

func TestHandleHistoryDisabled(t *testing.T) {
	mux := setupPredict(t)

	req := httptest.NewRequest(http.MethodGet, "/api/history", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 with history disabled, got %d", w.Code)
	}
}

func TestHandleHistory(t *testing.T) {
	mux := setupPredict(t)
	if err := db.InitDB(filepath.Join(t.TempDir(), "test.db")); err != nil {
		t.Fatalf("init db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	SetHistoryEnabled(true)
	SetModel(&fakeModel{value: 30})

	doPredict(t, mux, validBody())

	req := httptest.NewRequest(http.MethodGet, "/api/history?limit=10", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var payload struct {
		Count int                   `json:"count"`
		Data  []db.PredictionRecord `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if payload.Count != 1 {
		t.Fatalf("expected 1 record, got %d", payload.Count)
	}
	if payload.Data[0].TrunkFat != 30.0 {
		t.Fatalf("unexpected stored value: %v", payload.Data[0].TrunkFat)
	}
	if payload.Data[0].RiskLevel != "较高" {
		t.Fatalf("unexpected stored risk level: %v", payload.Data[0].RiskLevel)
	}
}

func TestHandleIndex(t *testing.T) {
	mux := setupPredict(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "predict-form") {
		t.Fatal("index should serve the input form")
	}
}

func TestHandleIndexUnknownPath(t *testing.T) {
	mux := setupPredict(t)

	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}
