package logger

import (
	"context"
	"os"
	"path/filepath"

	"github.com/KretovDmitry/backoffice/internal/config"
	"github.com/go-chi/chi/v5/middleware"
	sqldblogger "github.com/simukti/sqldb-logger"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is a logger that supports log levels, context and structured logging.
type Logger interface {
	// With returns a logger based off the root logger and decorates it with
	// the given context and arguments.
	With(ctx context.Context, args ...any) Logger

	Debug(args ...any)
	Info(args ...any)
	Warn(args ...any)
	Error(args ...any)

	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)

	// Log makes the logger usable by sqldb-logger.
	Log(ctx context.Context, level sqldblogger.Level, msg string, data map[string]any)

	Sync() error
}

type logger struct {
	*zap.SugaredLogger
}

var _ Logger = (*logger)(nil)

// New creates a new logger using the application configuration.
// Logs go to stdout and, when a path is configured, to a rotated file.
func New(cfg *config.Config) Logger {
	level := zap.NewAtomicLevelAt(zap.InfoLevel)
	if cfg.Logger.Level != "" {
		if l, err := zapcore.ParseLevel(cfg.Logger.Level); err == nil {
			level.SetLevel(l)
		}
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "timestamp"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(encoderCfg), zapcore.AddSync(os.Stdout), level),
	}

	if cfg.Logger.Path != "" {
		file := zapcore.AddSync(&lumberjack.Logger{
			Filename:   filepath.Join(cfg.Logger.Path, "backoffice.log"),
			MaxSize:    cfg.Logger.MaxSizeMB,
			MaxBackups: cfg.Logger.MaxBackups,
			MaxAge:     cfg.Logger.MaxAgeDays,
		})
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), file, level))
	}

	l := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddCallerSkip(1))

	return NewWithZap(l)
}

// NewWithZap creates a new logger using the pre-configured zap logger.
func NewWithZap(l *zap.Logger) Logger {
	return &logger{l.Sugar()}
}

// NewForTest returns a logger that discards everything.
func NewForTest() Logger {
	return NewWithZap(zap.NewNop())
}

// With returns a logger based off the root logger and decorates it with
// the given context and arguments.
//
// If the context contains a request ID, it is added as a field as well.
func (l *logger) With(ctx context.Context, args ...any) Logger {
	if ctx != nil {
		if id := middleware.GetReqID(ctx); id != "" {
			args = append(args, "request_id", id)
		}
	}
	if len(args) > 0 {
		return &logger{l.SugaredLogger.With(args...)}
	}
	return l
}

func (l *logger) Log(_ context.Context, level sqldblogger.Level, msg string, data map[string]any) {
	fields := make([]any, 0, len(data)*2)
	for k, v := range data {
		fields = append(fields, k, v)
	}

	switch level {
	case sqldblogger.LevelError:
		l.SugaredLogger.Errorw(msg, fields...)
	case sqldblogger.LevelInfo:
		l.SugaredLogger.Infow(msg, fields...)
	default:
		l.SugaredLogger.Debugw(msg, fields...)
	}
}
