package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"foodcal/internal/domain"
	"foodcal/internal/metrics"
	"foodcal/internal/predictor"
	"foodcal/internal/repository"
	"foodcal/pkg/utils"
)

var (
	ErrNoImage       = errors.New("no image provided")
	ErrInvalidUpload = errors.New("invalid upload")
)

type PredictionService interface {
	Predict(ctx context.Context, upload domain.Upload) (*domain.PredictionView, error)
	Recent(ctx context.Context) ([]domain.PredictionView, error)
}

type UploadPolicy struct {
	MaxUploadSize  int64
	AllowedFormats []string
	RecentLimit    int
}

type predictionService struct {
	images    repository.ImageStore
	records   repository.PredictionRepository
	predictor predictor.Predictor
	metrics   *metrics.Metrics
	policy    UploadPolicy
	log       *zap.Logger
	now       func() time.Time
}

func NewPredictionService(images repository.ImageStore, records repository.PredictionRepository,
	p predictor.Predictor, m *metrics.Metrics, policy UploadPolicy, log *zap.Logger) PredictionService {
	if policy.RecentLimit <= 0 {
		policy.RecentLimit = 10
	}
	return &predictionService{
		images:    images,
		records:   records,
		predictor: p,
		metrics:   m,
		policy:    policy,
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Validate checks an upload before anything is stored.
func (s *predictionService) Validate(upload domain.Upload) error {
	if len(upload.Data) == 0 {
		return ErrNoImage
	}
	if s.policy.MaxUploadSize > 0 && int64(len(upload.Data)) > s.policy.MaxUploadSize {
		return fmt.Errorf("%w: file too large (%d bytes, max %d)", ErrInvalidUpload, len(upload.Data), s.policy.MaxUploadSize)
	}
	if len(s.policy.AllowedFormats) > 0 && !utils.AllowedFormat(upload.Filename, s.policy.AllowedFormats) {
		return fmt.Errorf("%w: unsupported file format %q", ErrInvalidUpload, upload.Filename)
	}
	return nil
}

// Predict stores the image, records it, runs the predictor and writes the
// result back to the same record. The record exists even when prediction
// yields nothing.
func (s *predictionService) Predict(ctx context.Context, upload domain.Upload) (*domain.PredictionView, error) {
	if err := s.Validate(upload); err != nil {
		return nil, err
	}

	contentType := upload.ContentType
	if contentType == "" {
		contentType = utils.ContentTypeFor(upload.Filename)
	}

	key, err := s.images.Save(ctx, upload.Filename, upload.Data, contentType)
	if err != nil {
		return nil, fmt.Errorf("store image: %w", err)
	}

	record := &domain.PredictionRecord{
		Image:      key,
		UploadedAt: s.now(),
	}
	if err := s.records.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("create prediction record: %w", err)
	}

	result := s.runPredictor(ctx, key)
	food, calories, confidence := result.Fields()

	if err := s.records.UpdatePrediction(ctx, record.ID, food, calories, confidence); err != nil {
		return nil, fmt.Errorf("update prediction record: %w", err)
	}

	s.log.Info("Prediction stored",
		zap.Uint("id", record.ID),
		zap.String("image", key),
		zap.String("outcome", result.Outcome.String()),
		zap.String("label", result.Label),
		zap.Float64("confidence", result.Confidence))

	return &domain.PredictionView{
		FoodType:   food,
		Calories:   calories,
		Confidence: confidence,
		ImageURL:   s.images.URL(key),
	}, nil
}

func (s *predictionService) runPredictor(ctx context.Context, key string) predictor.Result {
	start := time.Now()

	var result predictor.Result
	path, release, err := s.images.LocalPath(ctx, key)
	if err != nil {
		s.log.Error("Failed to resolve image for prediction",
			zap.String("image", key),
			zap.Error(err))
		result = predictor.Result{Outcome: predictor.OutcomeFailed, Err: err}
	} else {
		result = s.predict(ctx, path, release)
	}

	if s.metrics != nil {
		s.metrics.ObservePrediction(s.predictor.Name(), result.Outcome.String(), time.Since(start))
	}
	return result
}

func (s *predictionService) predict(ctx context.Context, path string, release func()) predictor.Result {
	defer release()
	return s.predictor.Predict(ctx, path)
}

func (s *predictionService) Recent(ctx context.Context) ([]domain.PredictionView, error) {
	records, err := s.records.ListRecent(ctx, s.policy.RecentLimit)
	if err != nil {
		return nil, err
	}

	views := make([]domain.PredictionView, 0, len(records))
	for _, r := range records {
		views = append(views, domain.PredictionView{
			FoodType:   r.PredictedFood,
			Calories:   r.PredictedCalories,
			Confidence: r.ConfidenceScore,
			ImageURL:   s.images.URL(r.Image),
			UploadedAt: r.UploadedAt.UTC().Format(domain.UploadedAtLayout),
		})
	}
	return views, nil
}
