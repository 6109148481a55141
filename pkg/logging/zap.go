package logging

import (
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// callerSkip covers Logger.Infof and logf between the call site and the sugar
const callerSkip = 2

// ZapOptions configures the zap backend behind Logger.
type ZapOptions struct {
	// Level is one of debug, info, warn, error. Empty means info.
	Level string

	// OutputPaths are zap sink URLs or file paths. Empty means stderr.
	OutputPaths []string

	// Development switches to the console encoder with caller info.
	Development bool

	// Writers replace OutputPaths when set, e.g. an already opened log file.
	Writers []io.Writer
}

// ZapLogger is a Logger backed by a zap sugared logger. Hand the embedded
// Logger to components; calls through *ZapLogger itself add a frame.
type ZapLogger struct {
	Logger
	zapLogger *zap.Logger
}

// NewZapLogger builds a zap logger from options and wraps it into Logger.
func NewZapLogger(options ZapOptions) (*ZapLogger, error) {
	level, err := ParseLevel(options.Level)
	if err != nil {
		return nil, err
	}

	config := zap.NewProductionConfig()
	if options.Development {
		config = zap.NewDevelopmentConfig()
	}
	config.Level = zap.NewAtomicLevelAt(level)
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.DisableStacktrace = true
	if len(options.OutputPaths) > 0 {
		config.OutputPaths = options.OutputPaths
	}

	var zapLogger *zap.Logger
	if len(options.Writers) > 0 {
		syncers := make([]zapcore.WriteSyncer, 0, len(options.Writers))
		for _, w := range options.Writers {
			syncers = append(syncers, zapcore.Lock(zapcore.AddSync(w)))
		}
		encoder := zapcore.NewJSONEncoder(config.EncoderConfig)
		if options.Development {
			encoder = zapcore.NewConsoleEncoder(config.EncoderConfig)
		}
		core := zapcore.NewCore(encoder, zapcore.NewMultiWriteSyncer(syncers...), config.Level)
		zapLogger = zap.New(core, zap.AddCaller(), zap.AddCallerSkip(callerSkip))
	} else {
		zapLogger, err = config.Build(zap.AddCallerSkip(callerSkip))
		if err != nil {
			return nil, fmt.Errorf("failed to build zap logger: %w", err)
		}
	}

	return &ZapLogger{
		Logger:    FromZap(zapLogger),
		zapLogger: zapLogger,
	}, nil
}

// FromZap adapts an existing zap logger, e.g. one created by zaptest.
func FromZap(zapLogger *zap.Logger) Logger {
	sugar := zapLogger.Sugar()
	return NewLogger("", LogFuncs{
		Debugf: sugar.Debugf,
		Infof:  sugar.Infof,
		Warnf:  sugar.Warnf,
		Errorf: sugar.Errorf,
	})
}

// Sync flushes buffered entries.
func (z *ZapLogger) Sync() error {
	return z.zapLogger.Sync()
}

// ParseLevel maps a textual level onto zap's levels.
func ParseLevel(level string) (zapcore.Level, error) {
	if level == "" {
		return zapcore.InfoLevel, nil
	}
	var parsed zapcore.Level
	if err := parsed.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
		return zapcore.InfoLevel, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return parsed, nil
}
