package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"foodcal/internal/domain"
)

var (
	ErrDBNotInitialized = errors.New("gorm db is not initialized")
	ErrInvalidID        = errors.New("invalid id")
	ErrNilRecord        = errors.New("record is nil")
)

const maxListLimit = 100

type PredictionRepository interface {
	Create(ctx context.Context, record *domain.PredictionRecord) error
	UpdatePrediction(ctx context.Context, id uint, food *string, calories, confidence *float64) error
	FindByID(ctx context.Context, id uint) (*domain.PredictionRecord, error)
	ListRecent(ctx context.Context, limit int) ([]domain.PredictionRecord, error)
}

type predictionRepository struct {
	db *gorm.DB
}

func NewPredictionRepository(db *gorm.DB) PredictionRepository {
	return &predictionRepository{db: db}
}

func (r *predictionRepository) withContext(ctx context.Context) (*gorm.DB, error) {
	if r.db == nil {
		return nil, ErrDBNotInitialized
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return r.db.WithContext(ctx), nil
}

func (r *predictionRepository) Create(ctx context.Context, record *domain.PredictionRecord) error {
	if record == nil {
		return ErrNilRecord
	}

	db, err := r.withContext(ctx)
	if err != nil {
		return fmt.Errorf("create prediction failed: %w", err)
	}
	return db.Create(record).Error
}

// UpdatePrediction writes the three prediction columns of an existing row.
// nil values are stored as NULL.
func (r *predictionRepository) UpdatePrediction(ctx context.Context, id uint, food *string, calories, confidence *float64) error {
	if id == 0 {
		return ErrInvalidID
	}

	db, err := r.withContext(ctx)
	if err != nil {
		return fmt.Errorf("update prediction failed: %w", err)
	}

	res := db.Model(&domain.PredictionRecord{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"predicted_food":     food,
			"predicted_calories": calories,
			"confidence_score":   confidence,
		})
	if res.Error != nil {
		return fmt.Errorf("update prediction %d failed: %w", id, res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	// MySQL reports zero affected rows when the values are unchanged.
	var count int64
	if err := db.Model(&domain.PredictionRecord{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return fmt.Errorf("update prediction %d failed: %w", id, err)
	}
	if count == 0 {
		return fmt.Errorf("update prediction %d: %w", id, gorm.ErrRecordNotFound)
	}
	return nil
}

func (r *predictionRepository) FindByID(ctx context.Context, id uint) (*domain.PredictionRecord, error) {
	if id == 0 {
		return nil, ErrInvalidID
	}

	db, err := r.withContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("find prediction by id failed: %w", err)
	}

	var record domain.PredictionRecord
	if err := db.First(&record, id).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

// ListRecent returns up to limit records, newest first.
func (r *predictionRepository) ListRecent(ctx context.Context, limit int) ([]domain.PredictionRecord, error) {
	if limit <= 0 {
		limit = 1
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	db, err := r.withContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("list predictions failed: %w", err)
	}

	var records []domain.PredictionRecord
	err = db.Order("uploaded_at DESC").Order("id DESC").Limit(limit).Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("query predictions failed: %w", err)
	}
	return records, nil
}
