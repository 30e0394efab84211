package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"foodcal/internal/domain"
	"foodcal/internal/service"
)

type Handler struct {
	service       service.PredictionService
	maxUploadSize int64
	log           *zap.Logger
}

func NewHandler(service service.PredictionService, maxUploadSize int64, log *zap.Logger) *Handler {
	return &Handler{
		service:       service,
		maxUploadSize: maxUploadSize,
		log:           log,
	}
}

func fail(c *gin.Context, msg string) {
	c.JSON(http.StatusOK, gin.H{"success": false, "error": msg})
}

func (h *Handler) Predict(c *gin.Context) {
	file, err := c.FormFile("image")
	if err != nil {
		h.log.Info("Predict request without image", zap.Error(err))
		fail(c, "No image provided")
		return
	}

	if h.maxUploadSize > 0 && file.Size > h.maxUploadSize {
		fail(c, "File too large")
		return
	}

	f, err := file.Open()
	if err != nil {
		h.log.Error("Failed to open file", zap.Error(err))
		fail(c, fmt.Sprintf("Failed to read image: %v", err))
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		h.log.Error("Failed to read file", zap.Error(err))
		fail(c, fmt.Sprintf("Failed to read image: %v", err))
		return
	}

	view, err := h.service.Predict(c.Request.Context(), domain.Upload{
		Filename:    file.Filename,
		ContentType: file.Header.Get("Content-Type"),
		Data:        data,
	})
	if err != nil {
		if errors.Is(err, service.ErrNoImage) {
			fail(c, "No image provided")
			return
		}
		h.log.Error("Prediction request failed", zap.Error(err))
		fail(c, err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"food_type":  view.FoodType,
		"calories":   view.Calories,
		"confidence": view.Confidence,
		"image_url":  view.ImageURL,
	})
}

func (h *Handler) PredictMethodNotAllowed(c *gin.Context) {
	fail(c, "Only POST method allowed")
}

func (h *Handler) ListPredictions(c *gin.Context) {
	views, err := h.service.Recent(c.Request.Context())
	if err != nil {
		h.log.Error("Failed to list predictions", zap.Error(err))
		fail(c, err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"predictions": views,
	})
}

func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "OK"})
}

func (h *Handler) GetUI(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", gin.H{})
}

// Recover turns a panic in an API handler into the structured failure payload.
func (h *Handler) Recover(c *gin.Context, recovered any) {
	h.log.Error("Recovered from panic",
		zap.String("path", c.Request.URL.Path),
		zap.Any("panic", recovered))
	c.AbortWithStatusJSON(http.StatusOK, gin.H{
		"success": false,
		"error":   fmt.Sprint(recovered),
	})
}
