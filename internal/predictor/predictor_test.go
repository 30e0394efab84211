package predictor

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"foodcal/internal/calorie"
	"foodcal/internal/config"
	"foodcal/pkg/utils"
)

type fakeClassifier struct {
	probs []float32
	err   error
	input []float32
}

func (f *fakeClassifier) Classify(input []float32) ([]float32, error) {
	f.input = input
	return f.probs, f.err
}

var testClasses = []string{"donuts", "hamburger", "pizza", "mystery_stew"}

func writeJPEG(t *testing.T) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 120, B: 40, A: 255})
		}
	}

	path := filepath.Join(t.TempDir(), "meal.jpg")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, jpeg.Encode(f, img, nil))
	return path
}

func localWithClassifier(t *testing.T, c Classifier) *LocalPredictor {
	t.Helper()
	proc, err := utils.NewImageProcessor(224, utils.LayoutNHWC, zap.NewNop())
	require.NoError(t, err)
	return NewLocalPredictor(c, proc, testClasses, calorie.Food101, DefaultThreshold, zap.NewNop())
}

func TestLocalPredictorConfident(t *testing.T) {
	fc := &fakeClassifier{probs: []float32{0.02, 0.03, 0.92, 0.03}}
	p := localWithClassifier(t, fc)

	res := p.Predict(context.Background(), writeJPEG(t))

	assert.Equal(t, OutcomeConfident, res.Outcome)
	assert.NoError(t, res.Err)
	assert.Len(t, fc.input, 224*224*3)

	label, calories, confidence := res.Fields()
	require.NotNil(t, label)
	require.NotNil(t, calories)
	require.NotNil(t, confidence)
	assert.Equal(t, "pizza", *label)
	assert.Equal(t, 300.0, *calories)
	assert.InDelta(t, 0.92, *confidence, 1e-6)
}

func TestLocalPredictorCalorieRoundTrip(t *testing.T) {
	p := localWithClassifier(t, &fakeClassifier{probs: []float32{0, 1, 0, 0}})

	_, calories, _ := p.Predict(context.Background(), writeJPEG(t)).Fields()
	require.NotNil(t, calories)
	assert.Equal(t, calorie.Food101["hamburger"], *calories)
	assert.Equal(t, 500.0, *calories)
}

func TestLocalPredictorBelowThreshold(t *testing.T) {
	p := localWithClassifier(t, &fakeClassifier{probs: []float32{0.40, 0.30, 0.20, 0.10}})

	res := p.Predict(context.Background(), writeJPEG(t))

	assert.Equal(t, OutcomeLowConfidence, res.Outcome)
	assert.Equal(t, "donuts", res.Label)
	label, calories, confidence := res.Fields()
	assert.Nil(t, label)
	assert.Nil(t, calories)
	assert.Nil(t, confidence)
}

func TestLocalPredictorUnmappedLabel(t *testing.T) {
	p := localWithClassifier(t, &fakeClassifier{probs: []float32{0, 0, 0, 0.99}})

	label, calories, confidence := p.Predict(context.Background(), writeJPEG(t)).Fields()
	require.NotNil(t, label)
	assert.Equal(t, "mystery_stew", *label)
	assert.Nil(t, calories)
	assert.NotNil(t, confidence)
}

func TestLocalPredictorFailureIsAbsentButInspectable(t *testing.T) {
	t.Run("inference error", func(t *testing.T) {
		boom := errors.New("session exploded")
		p := localWithClassifier(t, &fakeClassifier{err: boom})

		res := p.Predict(context.Background(), writeJPEG(t))
		assert.Equal(t, OutcomeFailed, res.Outcome)
		assert.ErrorIs(t, res.Err, boom)

		label, calories, confidence := res.Fields()
		assert.Nil(t, label)
		assert.Nil(t, calories)
		assert.Nil(t, confidence)
	})

	t.Run("unreadable image", func(t *testing.T) {
		bad := filepath.Join(t.TempDir(), "bad.jpg")
		require.NoError(t, os.WriteFile(bad, []byte("garbage"), 0644))

		res := localWithClassifier(t, &fakeClassifier{probs: []float32{1}}).Predict(context.Background(), bad)
		assert.Equal(t, OutcomeFailed, res.Outcome)
		assert.Error(t, res.Err)
	})

	t.Run("empty output", func(t *testing.T) {
		res := localWithClassifier(t, &fakeClassifier{}).Predict(context.Background(), writeJPEG(t))
		assert.Equal(t, OutcomeFailed, res.Outcome)
	})
}

func TestLoadClassNames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "class_names.txt")
	require.NoError(t, os.WriteFile(path, []byte("apple_pie\n baby_back_ribs \n\nbaklava"), 0644))

	names, err := LoadClassNames(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"apple_pie", "baby_back_ribs", "baklava"}, names)

	empty := filepath.Join(t.TempDir(), "empty.txt")
	require.NoError(t, os.WriteFile(empty, nil, 0644))
	_, err = LoadClassNames(empty)
	assert.Error(t, err)
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "confident", OutcomeConfident.String())
	assert.Equal(t, "low_confidence", OutcomeLowConfidence.String())
	assert.Equal(t, "failed", OutcomeFailed.String())
}

func TestNewUnknownBackend(t *testing.T) {
	cfg := &config.Config{Predictor: config.PredictorConfig{Backend: "abacus"}}
	_, _, err := New(context.Background(), cfg, zap.NewNop())
	assert.ErrorIs(t, err, ErrUnknownBackend)
}

func TestNewClarifaiBackend(t *testing.T) {
	cfg := &config.Config{
		Predictor: config.PredictorConfig{Backend: config.PredictorClarifai},
		Clarifai: config.ClarifaiConfig{
			BaseURL: "https://api.clarifai.com", PAT: "pat",
			UserID: "clarifai", AppID: "main", ModelID: "food-item-recognition", ModelVersionID: "v1",
		},
	}

	p, closer, err := New(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "clarifai", p.Name())
	assert.NoError(t, closer.Close())
}
