package predictor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"foodcal/internal/calorie"
	"foodcal/pkg/utils"
)

const DefaultThreshold = 0.70

// Classifier runs one forward pass and returns the class probabilities.
type Classifier interface {
	Classify(input []float32) ([]float32, error)
}

type LocalPredictor struct {
	classifier Classifier
	proc       *utils.ImageProcessor
	classNames []string
	table      calorie.Table
	threshold  float64
	log        *zap.Logger
}

func NewLocalPredictor(classifier Classifier, proc *utils.ImageProcessor, classNames []string,
	table calorie.Table, threshold float64, log *zap.Logger) *LocalPredictor {
	return &LocalPredictor{
		classifier: classifier,
		proc:       proc,
		classNames: classNames,
		table:      table,
		threshold:  threshold,
		log:        log,
	}
}

func (p *LocalPredictor) Name() string { return "local" }

func (p *LocalPredictor) Predict(ctx context.Context, imagePath string) Result {
	if err := ctx.Err(); err != nil {
		return p.fail(imagePath, err)
	}

	input, err := p.proc.LoadTensor(imagePath)
	if err != nil {
		return p.fail(imagePath, fmt.Errorf("load image: %w", err))
	}

	probs, err := p.classifier.Classify(input)
	if err != nil {
		return p.fail(imagePath, fmt.Errorf("inference: %w", err))
	}

	idx, confidence, err := argmax(probs, len(p.classNames))
	if err != nil {
		return p.fail(imagePath, err)
	}

	label := p.classNames[idx]
	if confidence < p.threshold {
		p.log.Info("Prediction below threshold",
			zap.String("path", imagePath),
			zap.String("label", label),
			zap.Float64("confidence", confidence),
			zap.Float64("threshold", p.threshold))
		return lowConfidence(label, confidence)
	}

	return confident(label, p.table.Lookup(label), confidence)
}

func (p *LocalPredictor) fail(imagePath string, err error) Result {
	p.log.Error("Local prediction failed",
		zap.String("path", imagePath),
		zap.Error(err))
	return failed(err)
}

func argmax(probs []float32, classes int) (int, float64, error) {
	n := len(probs)
	if classes < n {
		n = classes
	}
	if n == 0 {
		return 0, 0, errors.New("empty model output")
	}

	maxIdx := 0
	maxVal := probs[0]
	for i := 1; i < n; i++ {
		if probs[i] > maxVal {
			maxVal = probs[i]
			maxIdx = i
		}
	}

	return maxIdx, float64(maxVal), nil
}

// LoadClassNames reads the newline-delimited label list written by training.
// Line i names output index i.
func LoadClassNames(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open class names: %w", err)
	}
	defer f.Close()

	var names []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		name := strings.TrimSpace(scanner.Text())
		if name == "" {
			continue
		}
		names = append(names, name)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read class names: %w", err)
	}

	if len(names) == 0 {
		return nil, fmt.Errorf("class names file %s is empty", path)
	}

	return names, nil
}
