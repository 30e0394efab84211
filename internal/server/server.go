package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"foodcal/internal/config"
	"foodcal/internal/database"
	"foodcal/internal/handler"
	"foodcal/internal/metrics"
	"foodcal/internal/predictor"
	"foodcal/internal/repository"
	"foodcal/internal/service"
	"foodcal/web"
)

type Server struct {
	httpServer *http.Server
	cfg        *config.Config
	log        *zap.Logger
	closers    []io.Closer
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// RouterOptions carries the wired dependencies of the HTTP layer.
type RouterOptions struct {
	Handler   *handler.Handler
	Metrics   *metrics.Metrics
	MediaURL  string
	MediaRoot string
	Log       *zap.Logger
}

func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Server, error) {
	s := &Server{cfg: cfg, log: log}

	db, err := database.Open(&cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	s.closers = append(s.closers, closerFunc(func() error { return database.Close(db) }))

	images, err := newImageStore(ctx, cfg, log)
	if err != nil {
		s.close()
		return nil, err
	}

	p, pCloser, err := predictor.New(ctx, cfg, log)
	if err != nil {
		s.close()
		return nil, fmt.Errorf("failed to create predictor: %w", err)
	}
	s.closers = append(s.closers, pCloser)

	m := metrics.New()
	predictionService := service.NewPredictionService(images, repository.NewPredictionRepository(db), p, m,
		service.UploadPolicy{
			MaxUploadSize:  cfg.App.MaxUploadSize,
			AllowedFormats: cfg.App.AllowedFormats,
			RecentLimit:    cfg.App.RecentLimit,
		}, log)

	opts := RouterOptions{
		Handler: handler.NewHandler(predictionService, cfg.App.MaxUploadSize, log),
		Metrics: m,
		Log:     log,
	}
	if cfg.Storage.Backend == config.StorageLocal {
		opts.MediaURL = cfg.App.MediaURL
		opts.MediaRoot = cfg.App.MediaRoot
	}

	router, err := NewRouter(opts)
	if err != nil {
		s.close()
		return nil, err
	}

	s.httpServer = &http.Server{
		Addr:           cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:        router,
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   60 * time.Second,
		MaxHeaderBytes: 1 << 20, // 1 MB
	}

	log.Info("Server created successfully",
		zap.String("host", cfg.Server.Host),
		zap.String("port", cfg.Server.Port),
		zap.String("predictor", p.Name()),
		zap.String("storage", cfg.Storage.Backend),
		zap.String("db", cfg.DB.Driver))

	return s, nil
}

func newImageStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (repository.ImageStore, error) {
	if cfg.Storage.Backend == config.StorageS3 {
		s3Repo, err := repository.NewS3Repository(ctx, &cfg.S3, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create S3 repository: %w", err)
		}
		return repository.NewS3ImageStore(s3Repo, &cfg.S3, log), nil
	}

	store, err := repository.NewLocalImageStore(cfg.App.MediaRoot, cfg.App.MediaURL, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create image store: %w", err)
	}
	return store, nil
}

func NewRouter(opts RouterOptions) (*gin.Engine, error) {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(requestLogger(opts.Log, opts.Metrics))
	router.Use(gin.CustomRecovery(opts.Handler.Recover))

	tmpl, err := web.Templates()
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	router.SetHTMLTemplate(tmpl)

	h := opts.Handler
	router.GET("/", h.GetUI)
	router.GET("/health", h.HealthCheck)
	if opts.Metrics != nil {
		router.GET("/metrics", gin.WrapH(opts.Metrics.Handler()))
	}

	api := router.Group("/api")
	{
		api.POST("/predict", h.Predict)
		api.GET("/predict", h.PredictMethodNotAllowed)
		api.GET("/predictions", h.ListPredictions)
	}

	router.StaticFS("/static", http.FS(web.Static()))
	if opts.MediaRoot != "" {
		router.Static(opts.MediaURL, opts.MediaRoot)
	}

	return router, nil
}

func requestLogger(log *zap.Logger, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		elapsed := time.Since(start)

		if m != nil {
			m.ObserveRequest(path, c.Request.Method, c.Writer.Status(), elapsed)
		}
		log.Info("Request handled",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", elapsed))
	}
}

func (s *Server) Run() error {
	s.log.Info("Server is running",
		zap.String("host", s.cfg.Server.Host),
		zap.String("port", s.cfg.Server.Port),
		zap.String("address", s.httpServer.Addr))

	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down server")
	err := s.httpServer.Shutdown(ctx)
	return errors.Join(err, s.close())
}

func (s *Server) close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}
