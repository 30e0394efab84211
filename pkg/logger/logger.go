package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

func encoderConfig() zapcore.EncoderConfig {
	config := zap.NewProductionEncoderConfig()
	config.EncodeTime = zapcore.ISO8601TimeEncoder
	config.TimeKey = "timestamp"
	config.MessageKey = "message"
	config.LevelKey = "level"
	return config
}

// New builds the production logger. When file is set, entries are also
// written to a size-rotated log file.
func New(file string) (*zap.Logger, error) {
	if file == "" {
		config := zap.NewProductionConfig()
		config.EncoderConfig = encoderConfig()
		return config.Build()
	}

	rotated := &lumberjack.Logger{
		Filename:   file,
		MaxSize:    100, // MB
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   true,
	}

	encoder := zapcore.NewJSONEncoder(encoderConfig())
	core := zapcore.NewTee(
		zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), zap.InfoLevel),
		zapcore.NewCore(encoder, zapcore.AddSync(rotated), zap.InfoLevel),
	)

	return zap.New(core, zap.AddCaller(), zap.AddStacktrace(zap.ErrorLevel)), nil
}

func NewSugared(file string) (*zap.SugaredLogger, error) {
	logger, err := New(file)
	if err != nil {
		return nil, err
	}
	return logger.Sugar(), nil
}
