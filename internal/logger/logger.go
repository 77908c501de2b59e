package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps zap.Logger with additional functionality
type Logger struct {
	*zap.Logger
}

// Config contains logger configuration
type Config struct {
	Level  string
	Format string // json or console
	File   *FileConfig
}

// FileConfig contains file logging configuration
type FileConfig struct {
	Enabled bool
	Path    string
}

// New creates a new logger instance
func New(config Config) (*Logger, error) {
	level, err := zapcore.ParseLevel(config.Level)
	if err != nil {
		return nil, err
	}

	var encoderConfig zapcore.EncoderConfig
	if config.Format == "console" {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	var encoder zapcore.Encoder
	if config.Format == "console" {
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	} else {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	}

	// Logs go to stderr so stdout stays free for redacted output
	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.AddSync(os.Stderr), level),
	}

	if config.File != nil && config.File.Enabled {
		file, err := os.OpenFile(config.File.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
		if err != nil {
			return nil, err
		}

		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			zapcore.AddSync(file),
			level,
		))
	}

	logger := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))

	return &Logger{Logger: logger}, nil
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	return &Logger{Logger: zap.NewNop()}
}

// WithRequestID adds a request ID to the logger context
func (l *Logger) WithRequestID(requestID string) *Logger {
	return &Logger{Logger: l.Logger.With(zap.String("request_id", requestID))}
}

// WithRunID adds an anonymization run ID to the logger context
func (l *Logger) WithRunID(runID string) *Logger {
	return &Logger{Logger: l.Logger.With(zap.String("run_id", runID))}
}

// WithComponent adds a component name to the logger context
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{Logger: l.Logger.With(zap.String("component", component))}
}

// LogRequest logs an HTTP request. Bodies are never logged; only their size.
func (l *Logger) LogRequest(method, path string, bodySize int64) {
	l.Info("HTTP request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int64("body_size", bodySize),
	)
}
