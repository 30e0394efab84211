package predictor

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"foodcal/internal/calorie"
	"foodcal/internal/config"
	"foodcal/pkg/utils"
)

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

var nopCloser = closerFunc(func() error { return nil })

// New builds the single predictor selected by cfg.Predictor.Backend. The
// returned closer releases the model session or API client.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (Predictor, io.Closer, error) {
	log = log.With(zap.String("predictor", cfg.Predictor.Backend))

	switch cfg.Predictor.Backend {
	case config.PredictorLocal:
		return newLocal(cfg, log)

	case config.PredictorClarifai:
		p, err := NewClarifaiPredictor(ClarifaiOptions{
			BaseURL:        cfg.Clarifai.BaseURL,
			PAT:            cfg.Clarifai.PAT,
			UserID:         cfg.Clarifai.UserID,
			AppID:          cfg.Clarifai.AppID,
			ModelID:        cfg.Clarifai.ModelID,
			ModelVersionID: cfg.Clarifai.ModelVersionID,
			Timeout:        cfg.Clarifai.Timeout,
		}, nil, calorie.Remote, log)
		if err != nil {
			return nil, nil, err
		}
		log.Info("Clarifai predictor ready", zap.String("model", cfg.Clarifai.ModelID))
		return p, nopCloser, nil

	case config.PredictorVision:
		client, err := DialVision(ctx, cfg.Vision.CredentialsFile)
		if err != nil {
			return nil, nil, err
		}
		log.Info("Vision predictor ready", zap.Int("max_results", cfg.Vision.MaxResults))
		return NewVisionPredictor(NewVisionAnnotator(client), cfg.Vision.MaxResults, calorie.Remote, log), client, nil

	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Predictor.Backend)
	}
}

func newLocal(cfg *config.Config, log *zap.Logger) (Predictor, io.Closer, error) {
	classNames, err := LoadClassNames(cfg.Model.ClassNamesPath)
	if err != nil {
		return nil, nil, err
	}

	proc, err := utils.NewImageProcessor(cfg.Model.ImageSize, cfg.Model.Layout, log)
	if err != nil {
		return nil, nil, err
	}

	classifier, err := NewOnnxClassifier(OnnxOptions{
		ModelPath:      cfg.Model.Path,
		RuntimeLibPath: cfg.Model.RuntimeLibPath,
		InputName:      cfg.Model.InputName,
		OutputName:     cfg.Model.OutputName,
		InputShape:     proc.InputShape(),
		NumClasses:     len(classNames),
	})
	if err != nil {
		return nil, nil, err
	}

	log.Info("Local model loaded",
		zap.String("model", cfg.Model.Path),
		zap.Int("classes", len(classNames)),
		zap.Float64("threshold", cfg.Predictor.Threshold))

	p := NewLocalPredictor(classifier, proc, classNames, calorie.Food101, cfg.Predictor.Threshold, log)
	return p, classifier, nil
}
