package repository

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"foodcal/internal/config"
)

// ImagePrefix is the storage area uploaded food images are kept under.
const ImagePrefix = "food_images/"

// ImageStore persists uploaded image bytes and hands them back as a local
// file for the predictor.
type ImageStore interface {
	Save(ctx context.Context, filename string, data []byte, contentType string) (string, error)
	// LocalPath returns a readable file for key. release must be called once
	// the caller is done with the file.
	LocalPath(ctx context.Context, key string) (string, func(), error)
	URL(key string) string
}

func newImageKey(filename string) string {
	return ImagePrefix + uuid.New().String() + strings.ToLower(filepath.Ext(filename))
}

type localImageStore struct {
	root    string
	baseURL string
	log     *zap.Logger
}

func NewLocalImageStore(root, baseURL string, log *zap.Logger) (ImageStore, error) {
	if err := os.MkdirAll(filepath.Join(root, filepath.FromSlash(ImagePrefix)), 0755); err != nil {
		return nil, fmt.Errorf("failed to create media directory: %w", err)
	}

	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}

	return &localImageStore{root: root, baseURL: baseURL, log: log}, nil
}

func (s *localImageStore) Save(_ context.Context, filename string, data []byte, _ string) (string, error) {
	key := newImageKey(filename)
	dest := filepath.Join(s.root, filepath.FromSlash(key))

	if err := os.WriteFile(dest, data, 0644); err != nil {
		s.log.Error("Failed to save image",
			zap.String("path", dest),
			zap.Error(err))
		return "", err
	}

	s.log.Info("Image saved",
		zap.String("key", key),
		zap.Int("size", len(data)))

	return key, nil
}

func (s *localImageStore) LocalPath(_ context.Context, key string) (string, func(), error) {
	p := filepath.Join(s.root, filepath.FromSlash(key))
	if _, err := os.Stat(p); err != nil {
		return "", nil, err
	}
	return p, func() {}, nil
}

func (s *localImageStore) URL(key string) string {
	return s.baseURL + key
}

type s3ImageStore struct {
	repo      S3Repository
	publicURL string
	log       *zap.Logger
}

// NewS3ImageStore stores images in the configured bucket. Prediction works
// on a temporary local copy of the object.
func NewS3ImageStore(repo S3Repository, cfg *config.S3Config, log *zap.Logger) ImageStore {
	publicURL := cfg.PublicURL
	if publicURL == "" {
		publicURL = endpointURL(cfg) + "/" + cfg.BucketName
	}

	return &s3ImageStore{
		repo:      repo,
		publicURL: strings.TrimSuffix(publicURL, "/"),
		log:       log,
	}
}

func (s *s3ImageStore) Save(ctx context.Context, filename string, data []byte, contentType string) (string, error) {
	key := newImageKey(filename)

	if err := s.repo.UploadFile(ctx, key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		return "", err
	}

	return key, nil
}

func (s *s3ImageStore) LocalPath(ctx context.Context, key string) (string, func(), error) {
	reader, err := s.repo.DownloadFile(ctx, key)
	if err != nil {
		return "", nil, err
	}
	defer reader.Close()

	file, err := os.CreateTemp("", "foodcal_*"+path.Ext(key))
	if err != nil {
		return "", nil, fmt.Errorf("create temporary file: %w", err)
	}

	release := func() {
		if err := os.Remove(file.Name()); err != nil {
			s.log.Warn("Failed to remove temporary image",
				zap.String("path", file.Name()),
				zap.Error(err))
		}
	}

	if _, err := io.Copy(file, reader); err != nil {
		file.Close()
		release()
		return "", nil, fmt.Errorf("copy %s: %w", key, err)
	}

	if err := file.Close(); err != nil {
		release()
		return "", nil, err
	}

	return file.Name(), release, nil
}

func (s *s3ImageStore) URL(key string) string {
	return s.publicURL + "/" + key
}
