package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"trunkfat/ml"
)

var errBroken = errors.New("booster unusable")

type fakeModel struct {
	value float64
	err   error
	calls int
	last  []float64
}

func (f *fakeModel) Predict(features []float64) (float64, error) {
	f.calls++
	f.last = append([]float64(nil), features...)
	return f.value, f.err
}

func setupPredict(t *testing.T) *http.ServeMux {
	t.Helper()
	mux := http.NewServeMux()
	RegisterHandlers(mux)
	t.Cleanup(func() {
		SetModel(nil)
		SetLoader(nil)
		SetMonitorHub(nil)
		SetHistoryEnabled(false)
		resultCache = nil
	})
	return mux
}

func validBody() map[string]interface{} {
	return map[string]interface{}{
		"gender": "male",
		"waist":  85,
		"height": 175,
		"weight": 72,
		"age":    45,
	}
}

func doPredict(t *testing.T, mux *http.ServeMux, body map[string]interface{}) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/predict", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func TestHandlePredictSuccess(t *testing.T) {
	mux := setupPredict(t)
	SetModel(&fakeModel{value: 30})

	w := doPredict(t, mux, validBody())
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if payload["success"] != true {
		t.Fatal("success should be true")
	}
	if payload["trunk_fat_percentage"].(float64) != 30.0 {
		t.Fatalf("unexpected percentage: %v", payload["trunk_fat_percentage"])
	}

	interpretation := payload["interpretation"].(map[string]interface{})
	if interpretation["risk_level"] != "较高" {
		t.Fatalf("unexpected risk level: %v", interpretation["risk_level"])
	}
	if got := len(interpretation["recommendation"].([]interface{})); got != 4 {
		t.Fatalf("expected 4 recommendations at 30.0, got %d", got)
	}
}

func TestHandlePredictOneDecimalRendering(t *testing.T) {
	mux := setupPredict(t)
	SetModel(&fakeModel{value: 30})

	w := doPredict(t, mux, validBody())
	if !strings.Contains(w.Body.String(), `"trunk_fat_percentage":30.0`) {
		t.Fatalf("percentage must render with one decimal digit: %s", w.Body.String())
	}
}

func TestHandlePredictFeatureOrder(t *testing.T) {
	mux := setupPredict(t)
	model := &fakeModel{value: 20}
	SetModel(model)

	doPredict(t, mux, validBody())

	want := []float64{0, 85, 175, 72, 45}
	if len(model.last) != len(want) {
		t.Fatalf("unexpected feature count: %d", len(model.last))
	}
	for i := range want {
		if model.last[i] != want[i] {
			t.Fatalf("feature %d = %v, want %v", i, model.last[i], want[i])
		}
	}
}

func TestHandlePredictGenderMapping(t *testing.T) {
	for gender, want := range map[string]float64{"female": 1, "Female": 1, "male": 0, "unknown": 0} {
		mux := setupPredict(t)
		model := &fakeModel{value: 20}
		SetModel(model)

		body := validBody()
		body["gender"] = gender
		doPredict(t, mux, body)

		if model.last[0] != want {
			t.Fatalf("gender %q mapped to %v, want %v", gender, model.last[0], want)
		}
	}
}

func TestHandlePredictMissingFields(t *testing.T) {
	for _, field := range []string{"gender", "waist", "height", "weight", "age"} {
		mux := setupPredict(t)
		SetModel(&fakeModel{value: 20})

		body := validBody()
		delete(body, field)
		w := doPredict(t, mux, body)

		if w.Code != http.StatusBadRequest {
			t.Fatalf("missing %s: expected 400, got %d", field, w.Code)
		}
		if !strings.Contains(w.Body.String(), field) {
			t.Fatalf("error message should name the field %q: %s", field, w.Body.String())
		}
	}
}

func TestHandlePredictInvalidNumber(t *testing.T) {
	mux := setupPredict(t)
	SetModel(&fakeModel{value: 20})

	body := validBody()
	body["waist"] = "abc"
	w := doPredict(t, mux, body)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "有效的数值") {
		t.Fatalf("unexpected message: %s", w.Body.String())
	}
}

func TestHandlePredictRangeChecks(t *testing.T) {
	cases := []struct {
		field    string
		value    float64
		status   int
		fragment string
	}{
		{"waist", 201, http.StatusBadRequest, "50-200"},
		{"waist", 200, http.StatusOK, ""},
		{"waist", 50, http.StatusOK, ""},
		{"waist", 49.9, http.StatusBadRequest, "50-200"},
		{"height", 251, http.StatusBadRequest, "100-250"},
		{"weight", 29, http.StatusBadRequest, "30-200"},
		{"age", 17, http.StatusBadRequest, "18-100"},
		{"age", 100, http.StatusOK, ""},
	}
	for _, tc := range cases {
		mux := setupPredict(t)
		SetModel(&fakeModel{value: 20})

		body := validBody()
		body[tc.field] = tc.value
		w := doPredict(t, mux, body)

		if w.Code != tc.status {
			t.Fatalf("%s=%v: expected %d, got %d: %s", tc.field, tc.value, tc.status, w.Code, w.Body.String())
		}
		if tc.fragment != "" && !strings.Contains(w.Body.String(), tc.fragment) {
			t.Fatalf("%s=%v: message should reference range %q: %s", tc.field, tc.value, tc.fragment, w.Body.String())
		}
	}
}

func TestHandlePredictNumericStrings(t *testing.T) {
	mux := setupPredict(t)
	model := &fakeModel{value: 20}
	SetModel(model)

	w := doPredict(t, mux, map[string]interface{}{
		"gender": "female",
		"waist":  "85.5",
		"height": "175",
		"weight": "72",
		"age":    "45",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if model.last[1] != 85.5 {
		t.Fatalf("waist = %v, want 85.5", model.last[1])
	}
}

func TestHandlePredictFullWidthDigits(t *testing.T) {
	mux := setupPredict(t)
	model := &fakeModel{value: 20}
	SetModel(model)

	body := validBody()
	body["waist"] = "８５"
	w := doPredict(t, mux, body)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if model.last[1] != 85 {
		t.Fatalf("full-width waist = %v, want 85", model.last[1])
	}
}

func TestHandlePredictClampAndRound(t *testing.T) {
	cases := []struct {
		raw  float64
		want string
	}{
		{120, `"trunk_fat_percentage":50.0`},
		{-3, `"trunk_fat_percentage":5.0`},
		{27.346, `"trunk_fat_percentage":27.3`},
	}
	for _, tc := range cases {
		mux := setupPredict(t)
		SetModel(&fakeModel{value: tc.raw})

		w := doPredict(t, mux, validBody())
		if !strings.Contains(w.Body.String(), tc.want) {
			t.Fatalf("raw %v: body should contain %s: %s", tc.raw, tc.want, w.Body.String())
		}
	}
}

func TestHandlePredictModelNotLoaded(t *testing.T) {
	mux := setupPredict(t)

	w := doPredict(t, mux, validBody())
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "模型未加载") {
		t.Fatalf("unexpected message: %s", w.Body.String())
	}
}

func writeModelArtifact(t *testing.T, dir string) string {
	t.Helper()
	features := make([][]float64, 20)
	targets := make([]float64, 20)
	for i := range features {
		features[i] = []float64{float64(i % 2), 60 + float64(i), 160 + float64(i), 50 + float64(i), 20 + float64(i)}
		targets[i] = 20 + float64(i)/2
	}
	model := ml.NewGBRegressor(ml.CPUSafeDefaults())
	if err := model.Fit(features, targets); err != nil {
		t.Fatalf("fit: %v", err)
	}
	path := filepath.Join(dir, "model.json")
	if err := model.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}
	return path
}

func TestHandlePredictReloadRetry(t *testing.T) {
	mux := setupPredict(t)
	path := writeModelArtifact(t, t.TempDir())
	SetLoader(ml.NewLoader(path, "", nil))
	SetModel(&fakeModel{err: errBroken})

	w := doPredict(t, mux, validBody())
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 after reload retry, got %d: %s", w.Code, w.Body.String())
	}
	if !ModelLoaded() {
		t.Fatal("reloaded model should be installed in the handle")
	}
}

func TestHandlePredictReloadFails(t *testing.T) {
	mux := setupPredict(t)
	dir := t.TempDir()
	SetLoader(ml.NewLoader(filepath.Join(dir, "a.json"), filepath.Join(dir, "b.json"), nil))
	SetModel(&fakeModel{err: errBroken})

	w := doPredict(t, mux, validBody())
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "模型修复失败") {
		t.Fatalf("unexpected message: %s", w.Body.String())
	}
	if ModelLoaded() {
		t.Fatal("handle should be cleared after a failed reload")
	}
}

func TestHandlePredictResultCache(t *testing.T) {
	mux := setupPredict(t)
	model := &fakeModel{value: 25}
	SetModel(model)
	if err := InitResultCache(8); err != nil {
		t.Fatal(err)
	}

	doPredict(t, mux, validBody())
	doPredict(t, mux, validBody())
	if model.calls != 1 {
		t.Fatalf("identical request should be served from cache, model called %d times", model.calls)
	}

	PurgeResultCache()
	doPredict(t, mux, validBody())
	if model.calls != 2 {
		t.Fatalf("purged cache should call the model again, got %d calls", model.calls)
	}
}

func TestHandlePredictInvalidJSON(t *testing.T) {
	mux := setupPredict(t)
	SetModel(&fakeModel{value: 20})

	req := httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader("not json"))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}
