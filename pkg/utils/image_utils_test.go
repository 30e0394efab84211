package utils

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writePNG(t *testing.T, w, h int, c color.Color) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}

	path := filepath.Join(t.TempDir(), "food.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
	return path
}

func TestLoadTensorNHWC(t *testing.T) {
	p, err := NewImageProcessor(224, "NHWC", zap.NewNop())
	require.NoError(t, err)

	path := writePNG(t, 50, 30, color.RGBA{R: 255, G: 0, B: 51, A: 255})
	data, err := p.LoadTensor(path)
	require.NoError(t, err)

	require.Len(t, data, 224*224*3)
	assert.Equal(t, []int64{1, 224, 224, 3}, p.InputShape())
	assert.InDelta(t, 1.0, data[0], 1e-6)
	assert.InDelta(t, 0.0, data[1], 1e-6)
	assert.InDelta(t, 0.2, data[2], 1e-6)
	for _, v := range data {
		assert.True(t, v >= 0 && v <= 1)
	}
}

func TestLoadTensorNCHW(t *testing.T) {
	p, err := NewImageProcessor(8, LayoutNCHW, nil)
	require.NoError(t, err)

	path := writePNG(t, 16, 16, color.RGBA{R: 0, G: 255, B: 0, A: 255})
	data, err := p.LoadTensor(path)
	require.NoError(t, err)

	require.Len(t, data, 3*8*8)
	assert.Equal(t, []int64{1, 3, 8, 8}, p.InputShape())
	assert.InDelta(t, 0.0, data[0], 1e-6)
	assert.InDelta(t, 1.0, data[64], 1e-6)
	assert.InDelta(t, 0.0, data[128], 1e-6)
}

func TestLoadTensorErrors(t *testing.T) {
	p, err := NewImageProcessor(224, LayoutNHWC, nil)
	require.NoError(t, err)

	_, err = p.LoadTensor(filepath.Join(t.TempDir(), "missing.jpg"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.jpg")
	require.NoError(t, os.WriteFile(bad, []byte("not an image"), 0644))
	_, err = p.LoadTensor(bad)
	assert.Error(t, err)
}

func TestNewImageProcessorRejectsBadArgs(t *testing.T) {
	_, err := NewImageProcessor(0, LayoutNHWC, nil)
	assert.Error(t, err)

	_, err = NewImageProcessor(224, "hwc", nil)
	assert.Error(t, err)
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "image/png", ContentTypeFor("a.PNG"))
	assert.Equal(t, "image/jpeg", ContentTypeFor("a.jpeg"))
	assert.True(t, AllowedFormat("pizza.JPG", []string{".jpg", ".png"}))
	assert.False(t, AllowedFormat("notes.txt", []string{".jpg", ".png"}))
}
