package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"foodcal/internal/calorie"
	"foodcal/internal/config"
	"foodcal/internal/database"
	"foodcal/internal/domain"
	"foodcal/internal/handler"
	"foodcal/internal/metrics"
	"foodcal/internal/predictor"
	"foodcal/internal/repository"
	"foodcal/internal/server"
	"foodcal/internal/service"
)

type stubPredictor struct {
	result predictor.Result
	panics bool
}

func (s *stubPredictor) Name() string { return "stub" }

func (s *stubPredictor) Predict(context.Context, string) predictor.Result {
	if s.panics {
		panic("tensor shape mismatch")
	}
	return s.result
}

type testEnv struct {
	router  *gin.Engine
	records repository.PredictionRepository
	pred    *stubPredictor
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := database.Open(&config.DBConfig{Driver: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	mediaRoot := t.TempDir()
	images, err := repository.NewLocalImageStore(mediaRoot, "/media/", zap.NewNop())
	require.NoError(t, err)

	records := repository.NewPredictionRepository(db)
	pred := &stubPredictor{}
	m := metrics.New()
	svc := service.NewPredictionService(images, records, pred, m, service.UploadPolicy{
		MaxUploadSize:  1 << 20,
		AllowedFormats: []string{".jpg", ".jpeg", ".png"},
		RecentLimit:    10,
	}, zap.NewNop())

	router, err := server.NewRouter(server.RouterOptions{
		Handler:   handler.NewHandler(svc, 1<<20, zap.NewNop()),
		Metrics:   m,
		MediaURL:  "/media/",
		MediaRoot: mediaRoot,
		Log:       zap.NewNop(),
	})
	require.NoError(t, err)

	return &testEnv{router: router, records: records, pred: pred}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func multipartRequest(t *testing.T, field, filename string, content []byte) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if field != "" {
		part, err := writer.CreateFormFile(field, filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	} else {
		require.NoError(t, writer.WriteField("note", "no file here"))
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/predict", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func countRecords(t *testing.T, e *testEnv) int {
	t.Helper()
	records, err := e.records.ListRecent(context.Background(), 100)
	require.NoError(t, err)
	return len(records)
}

func TestPredictWithoutImage(t *testing.T) {
	env := newTestEnv(t)

	for name, req := range map[string]*http.Request{
		"multipart without image field": multipartRequest(t, "", "", nil),
		"plain post":                    httptest.NewRequest(http.MethodPost, "/api/predict", strings.NewReader("")),
	} {
		t.Run(name, func(t *testing.T) {
			w := env.do(req)
			assert.Equal(t, http.StatusOK, w.Code)

			out := decode(t, w)
			assert.Equal(t, false, out["success"])
			assert.Equal(t, "No image provided", out["error"])
		})
	}

	assert.Zero(t, countRecords(t, env))
}

func TestPredictEmptyImageIsNoImage(t *testing.T) {
	env := newTestEnv(t)

	out := decode(t, env.do(multipartRequest(t, "image", "empty.jpg", nil)))
	assert.Equal(t, false, out["success"])
	assert.Equal(t, "No image provided", out["error"])
	assert.Zero(t, countRecords(t, env))
}

func TestPredictPizza(t *testing.T) {
	env := newTestEnv(t)
	env.pred.result = predictor.Result{
		Label:      "pizza",
		Calories:   calorie.Food101.Lookup("pizza"),
		Confidence: 0.92,
		Outcome:    predictor.OutcomeConfident,
	}

	w := env.do(multipartRequest(t, "image", "pizza.jpg", []byte("jpeg")))
	responded := time.Now().UTC()
	require.Equal(t, http.StatusOK, w.Code)

	out := decode(t, w)
	assert.Equal(t, true, out["success"])
	assert.Equal(t, "pizza", out["food_type"])
	assert.Equal(t, 300.0, out["calories"])
	assert.Equal(t, 0.92, out["confidence"])
	imageURL, _ := out["image_url"].(string)
	assert.NotEmpty(t, imageURL)

	records, err := env.records.ListRecent(context.Background(), 100)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.False(t, records[0].UploadedAt.After(responded))
	assert.Equal(t, "pizza", *records[0].PredictedFood)

	// The stored image is served back from the media URL.
	img := env.do(httptest.NewRequest(http.MethodGet, imageURL, nil))
	assert.Equal(t, http.StatusOK, img.Code)
	assert.Equal(t, "jpeg", img.Body.String())
}

func TestPredictDonutsBelowThreshold(t *testing.T) {
	env := newTestEnv(t)
	env.pred.result = predictor.Result{Label: "donuts", Confidence: 0.40, Outcome: predictor.OutcomeLowConfidence}

	w := env.do(multipartRequest(t, "image", "donut.png", []byte("png")))
	out := decode(t, w)

	assert.Equal(t, true, out["success"])
	assert.Contains(t, out, "food_type")
	assert.Nil(t, out["food_type"])
	assert.Nil(t, out["calories"])
	assert.Nil(t, out["confidence"])
	assert.NotEmpty(t, out["image_url"])
	assert.Equal(t, 1, countRecords(t, env))
}

func TestPredictInvalidFormat(t *testing.T) {
	env := newTestEnv(t)

	out := decode(t, env.do(multipartRequest(t, "image", "menu.pdf", []byte("%PDF"))))
	assert.Equal(t, false, out["success"])
	assert.Contains(t, out["error"], "unsupported file format")
	assert.Zero(t, countRecords(t, env))
}

func TestPredictPanicIsStructured(t *testing.T) {
	env := newTestEnv(t)
	env.pred.panics = true

	w := env.do(multipartRequest(t, "image", "pizza.jpg", []byte("jpeg")))
	assert.Equal(t, http.StatusOK, w.Code)

	out := decode(t, w)
	assert.Equal(t, false, out["success"])
	assert.Equal(t, "tensor shape mismatch", out["error"])

	// The record was written before inference and stays in the stored state.
	records, err := env.records.ListRecent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Nil(t, records[0].PredictedFood)
}

func TestPredictGetNotAllowed(t *testing.T) {
	env := newTestEnv(t)

	out := decode(t, env.do(httptest.NewRequest(http.MethodGet, "/api/predict", nil)))
	assert.Equal(t, false, out["success"])
	assert.Equal(t, "Only POST method allowed", out["error"])
}

func TestListPredictions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	base := time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 13; i++ {
		require.NoError(t, env.records.Create(ctx, &domain.PredictionRecord{
			Image:      "food_images/" + string(rune('a'+i)) + ".jpg",
			UploadedAt: base.Add(time.Duration(i) * time.Hour),
		}))
	}

	w := env.do(httptest.NewRequest(http.MethodGet, "/api/predictions", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var out struct {
		Success     bool `json:"success"`
		Predictions []struct {
			FoodType   *string  `json:"food_type"`
			Calories   *float64 `json:"calories"`
			Confidence *float64 `json:"confidence"`
			ImageURL   string   `json:"image_url"`
			UploadedAt string   `json:"uploaded_at"`
		} `json:"predictions"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))

	assert.True(t, out.Success)
	require.Len(t, out.Predictions, 10)
	assert.Equal(t, "2024-03-10 20:00:00", out.Predictions[0].UploadedAt)
	assert.Equal(t, "/media/food_images/m.jpg", out.Predictions[0].ImageURL)
	for i := 1; i < len(out.Predictions); i++ {
		prev, err := time.Parse(domain.UploadedAtLayout, out.Predictions[i-1].UploadedAt)
		require.NoError(t, err)
		cur, err := time.Parse(domain.UploadedAtLayout, out.Predictions[i].UploadedAt)
		require.NoError(t, err)
		assert.True(t, cur.Before(prev))
	}
}

func TestLandingHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t)

	home := env.do(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, home.Code)
	assert.Contains(t, home.Body.String(), "Food Calorie Predictor")

	health := env.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, `{"status":"OK"}`, health.Body.String())

	js := env.do(httptest.NewRequest(http.MethodGet, "/static/app.js", nil))
	assert.Equal(t, http.StatusOK, js.Code)

	env.pred.result = predictor.Result{Outcome: predictor.OutcomeFailed}
	env.do(multipartRequest(t, "image", "x.jpg", []byte("x")))

	metricsResp := env.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, err := io.ReadAll(metricsResp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `foodcal_predictions_total{backend="stub",outcome="failed"} 1`)
}
