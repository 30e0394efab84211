package utils

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/nfnt/resize"
	"go.uber.org/zap"
)

// Tensor layouts accepted by ImageProcessor.
const (
	LayoutNHWC = "nhwc"
	LayoutNCHW = "nchw"
)

// ImageProcessor turns image files into normalized float32 model input.
type ImageProcessor struct {
	log    *zap.Logger
	size   uint
	layout string
}

func NewImageProcessor(size int, layout string, log *zap.Logger) (*ImageProcessor, error) {
	if size <= 0 {
		return nil, fmt.Errorf("invalid image size %d", size)
	}

	layout = strings.ToLower(layout)
	if layout != LayoutNHWC && layout != LayoutNCHW {
		return nil, fmt.Errorf("unsupported tensor layout %q", layout)
	}

	return &ImageProcessor{log: log, size: uint(size), layout: layout}, nil
}

// InputShape is the single-item batch shape of the produced tensor.
func (p *ImageProcessor) InputShape() []int64 {
	s := int64(p.size)
	if p.layout == LayoutNCHW {
		return []int64{1, 3, s, s}
	}
	return []int64{1, s, s, 3}
}

func (p *ImageProcessor) LoadImage(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}

	return img, nil
}

// LoadTensor decodes the image at path, resizes it to size x size and scales
// every RGB channel to [0,1].
func (p *ImageProcessor) LoadTensor(path string) ([]float32, error) {
	img, err := p.LoadImage(path)
	if err != nil {
		return nil, err
	}
	return p.ToTensor(img), nil
}

func (p *ImageProcessor) ToTensor(img image.Image) []float32 {
	// Nearest neighbour matches keras load_img, which the model was trained with.
	resized := resize.Resize(p.size, p.size, img, resize.NearestNeighbor)

	bounds := resized.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	plane := width * height
	data := make([]float32, 3*plane)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b, _ := resized.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			rgb := [3]float32{
				float32(r>>8) / 255.0,
				float32(g>>8) / 255.0,
				float32(b>>8) / 255.0,
			}

			pixel := y*width + x
			for c, v := range rgb {
				if p.layout == LayoutNCHW {
					data[c*plane+pixel] = v
				} else {
					data[pixel*3+c] = v
				}
			}
		}
	}

	if p.log != nil {
		p.log.Debug("Image preprocessed",
			zap.Int("width", width),
			zap.Int("height", height),
			zap.String("layout", p.layout))
	}

	return data
}

// ContentTypeFor guesses the MIME type of an image from its extension.
func ContentTypeFor(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	default:
		return "image/jpeg"
	}
}

// AllowedFormat reports whether filename has one of the allowed extensions.
func AllowedFormat(filename string, allowed []string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, a := range allowed {
		if strings.ToLower(a) == ext {
			return true
		}
	}
	return false
}
