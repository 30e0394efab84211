package domain

import (
	"time"
)

// UploadedAtLayout is the timestamp format used in API payloads.
const UploadedAtLayout = "2006-01-02 15:04:05"

// PredictionRecord is one uploaded food image and the prediction made for it.
// The prediction fields stay NULL until the predictor has run, and remain
// NULL when it returned no confident prediction.
type PredictionRecord struct {
	ID                uint      `gorm:"primaryKey;column:id" json:"id"`
	Image             string    `gorm:"column:image;size:255;not null" json:"image"`
	UploadedAt        time.Time `gorm:"column:uploaded_at;index" json:"uploaded_at"`
	PredictedFood     *string   `gorm:"column:predicted_food;size:200" json:"predicted_food"`
	PredictedCalories *float64  `gorm:"column:predicted_calories" json:"predicted_calories"`
	ConfidenceScore   *float64  `gorm:"column:confidence_score" json:"confidence_score"`
}

func (PredictionRecord) TableName() string {
	return "food_calorie_predictor_foodimage"
}

// PredictionView is the API representation of a prediction.
type PredictionView struct {
	FoodType   *string  `json:"food_type"`
	Calories   *float64 `json:"calories"`
	Confidence *float64 `json:"confidence"`
	ImageURL   string   `json:"image_url"`
	UploadedAt string   `json:"uploaded_at,omitempty"`
}

// Upload is an image received from a client.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}
