package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var (
	ErrUnknownBackend = errors.New("unknown backend")
	ErrInvalidConfig  = errors.New("invalid config")
)

const (
	PredictorLocal    = "local"
	PredictorClarifai = "clarifai"
	PredictorVision   = "vision"

	StorageLocal = "local"
	StorageS3    = "s3"
)

type Config struct {
	Server    ServerConfig
	DB        DBConfig
	Storage   StorageConfig
	S3        S3Config
	App       AppConfig
	Predictor PredictorConfig
	Model     ModelConfig
	Clarifai  ClarifaiConfig
	Vision    VisionConfig
	Log       LogConfig
}

type ServerConfig struct {
	Host string
	Port string
}

type DBConfig struct {
	Driver string
	DSN    string
}

type StorageConfig struct {
	Backend string
}

type S3Config struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	BucketName      string
	Region          string
	PublicURL       string
}

type AppConfig struct {
	MediaRoot      string
	MediaURL       string
	MaxUploadSize  int64
	AllowedFormats []string
	RecentLimit    int
}

type PredictorConfig struct {
	Backend   string
	Threshold float64
}

// ModelConfig describes the ONNX export of the trained classifier.
type ModelConfig struct {
	Path           string
	ClassNamesPath string
	ImageSize      int
	Layout         string
	InputName      string
	OutputName     string
	RuntimeLibPath string
}

type ClarifaiConfig struct {
	PAT            string
	UserID         string
	AppID          string
	ModelID        string
	ModelVersionID string
	BaseURL        string
	Timeout        time.Duration
}

type VisionConfig struct {
	CredentialsFile string
	MaxResults      int
}

type LogConfig struct {
	File string
}

func Load() (*Config, error) {
	// A missing .env is fine: the environment alone may configure the service.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	cfg := &Config{
		Server: ServerConfig{
			Host: v.GetString("SERVER_HOST"),
			Port: v.GetString("SERVER_PORT"),
		},
		DB: DBConfig{
			Driver: strings.ToLower(v.GetString("DB_DRIVER")),
			DSN:    v.GetString("DB_DSN"),
		},
		Storage: StorageConfig{
			Backend: strings.ToLower(v.GetString("STORAGE_BACKEND")),
		},
		S3: S3Config{
			Endpoint:        v.GetString("S3_ENDPOINT"),
			AccessKeyID:     v.GetString("S3_ACCESS_KEY_ID"),
			SecretAccessKey: v.GetString("S3_SECRET_ACCESS_KEY"),
			UseSSL:          v.GetBool("S3_USE_SSL"),
			BucketName:      v.GetString("S3_BUCKET_NAME"),
			Region:          v.GetString("S3_REGION"),
			PublicURL:       v.GetString("S3_PUBLIC_URL"),
		},
		App: AppConfig{
			MediaRoot:      v.GetString("APP_MEDIA_ROOT"),
			MediaURL:       v.GetString("APP_MEDIA_URL"),
			MaxUploadSize:  v.GetInt64("APP_MAX_UPLOAD_SIZE"),
			AllowedFormats: splitList(v.GetString("APP_ALLOWED_FORMATS")),
			RecentLimit:    v.GetInt("APP_RECENT_LIMIT"),
		},
		Predictor: PredictorConfig{
			Backend:   strings.ToLower(v.GetString("PREDICTOR_BACKEND")),
			Threshold: v.GetFloat64("PREDICTOR_THRESHOLD"),
		},
		Model: ModelConfig{
			Path:           v.GetString("MODEL_PATH"),
			ClassNamesPath: v.GetString("MODEL_CLASS_NAMES_PATH"),
			ImageSize:      v.GetInt("MODEL_IMAGE_SIZE"),
			Layout:         strings.ToLower(v.GetString("MODEL_LAYOUT")),
			InputName:      v.GetString("MODEL_INPUT_NAME"),
			OutputName:     v.GetString("MODEL_OUTPUT_NAME"),
			RuntimeLibPath: v.GetString("ONNXRUNTIME_LIB_PATH"),
		},
		Clarifai: ClarifaiConfig{
			PAT:            v.GetString("CLARIFAI_PAT"),
			UserID:         v.GetString("CLARIFAI_USER_ID"),
			AppID:          v.GetString("CLARIFAI_APP_ID"),
			ModelID:        v.GetString("CLARIFAI_MODEL_ID"),
			ModelVersionID: v.GetString("CLARIFAI_MODEL_VERSION_ID"),
			BaseURL:        v.GetString("CLARIFAI_BASE_URL"),
			Timeout:        v.GetDuration("CLARIFAI_TIMEOUT"),
		},
		Vision: VisionConfig{
			CredentialsFile: v.GetString("VISION_CREDENTIALS_FILE"),
			MaxResults:      v.GetInt("VISION_MAX_RESULTS"),
		},
		Log: LogConfig{
			File: v.GetString("LOG_FILE"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := createDirs(cfg); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_HOST", "localhost")
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("DB_DRIVER", "sqlite")
	v.SetDefault("DB_DSN", "foodcal.db")
	v.SetDefault("STORAGE_BACKEND", StorageLocal)
	v.SetDefault("S3_ENDPOINT", "localhost:9000")
	v.SetDefault("S3_ACCESS_KEY_ID", "minioadmin")
	v.SetDefault("S3_SECRET_ACCESS_KEY", "minioadmin")
	v.SetDefault("S3_USE_SSL", false)
	v.SetDefault("S3_BUCKET_NAME", "food-images")
	v.SetDefault("S3_REGION", "us-east-1")
	v.SetDefault("S3_PUBLIC_URL", "")
	v.SetDefault("APP_MEDIA_ROOT", "./media")
	v.SetDefault("APP_MEDIA_URL", "/media/")
	v.SetDefault("APP_MAX_UPLOAD_SIZE", 10*1024*1024) // 10MB
	v.SetDefault("APP_ALLOWED_FORMATS", ".jpg,.jpeg,.png,.gif")
	v.SetDefault("APP_RECENT_LIMIT", 10)
	v.SetDefault("PREDICTOR_BACKEND", PredictorLocal)
	v.SetDefault("PREDICTOR_THRESHOLD", 0.70)
	v.SetDefault("MODEL_PATH", "./models/food101_model.onnx")
	v.SetDefault("MODEL_CLASS_NAMES_PATH", "./models/class_names.txt")
	v.SetDefault("MODEL_IMAGE_SIZE", 224)
	v.SetDefault("MODEL_LAYOUT", "nhwc")
	v.SetDefault("MODEL_INPUT_NAME", "input")
	v.SetDefault("MODEL_OUTPUT_NAME", "output")
	v.SetDefault("ONNXRUNTIME_LIB_PATH", "")
	v.SetDefault("CLARIFAI_PAT", "")
	v.SetDefault("CLARIFAI_USER_ID", "clarifai")
	v.SetDefault("CLARIFAI_APP_ID", "main")
	v.SetDefault("CLARIFAI_MODEL_ID", "food-item-recognition")
	v.SetDefault("CLARIFAI_MODEL_VERSION_ID", "1d5fd481e0cf4826aa72ec3ff049e044")
	v.SetDefault("CLARIFAI_BASE_URL", "https://api.clarifai.com")
	v.SetDefault("CLARIFAI_TIMEOUT", time.Duration(0))
	v.SetDefault("VISION_CREDENTIALS_FILE", "")
	v.SetDefault("VISION_MAX_RESULTS", 10)
	v.SetDefault("LOG_FILE", "")
}

// splitList parses a comma-separated env value, dropping blank entries.
func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.ToLower(strings.TrimSpace(item)); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func (c *Config) Validate() error {
	switch c.Predictor.Backend {
	case PredictorLocal, PredictorClarifai, PredictorVision:
	default:
		return fmt.Errorf("%w: predictor %q", ErrUnknownBackend, c.Predictor.Backend)
	}

	switch c.Storage.Backend {
	case StorageLocal, StorageS3:
	default:
		return fmt.Errorf("%w: storage %q", ErrUnknownBackend, c.Storage.Backend)
	}

	if c.Predictor.Threshold < 0 || c.Predictor.Threshold > 1 {
		return fmt.Errorf("%w: threshold %v is outside [0,1]", ErrInvalidConfig, c.Predictor.Threshold)
	}

	if c.Predictor.Backend == PredictorClarifai && c.Clarifai.PAT == "" {
		return fmt.Errorf("%w: CLARIFAI_PAT is required for the clarifai predictor", ErrInvalidConfig)
	}

	if c.App.RecentLimit <= 0 {
		return fmt.Errorf("%w: recent limit must be positive", ErrInvalidConfig)
	}

	return nil
}

func createDirs(cfg *Config) error {
	if cfg.Storage.Backend != StorageLocal {
		return nil
	}

	if err := os.MkdirAll(cfg.App.MediaRoot, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", cfg.App.MediaRoot, err)
	}

	return nil
}
