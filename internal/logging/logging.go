// Package logging builds the process-wide zap logger.
package logging

import (
	"fmt"
	"io"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/alisary1394-u/qelwa-healthy-city-sub001/internal/gelf"
)

const serviceName = "healthy-city"

// Options selects encoder, level and the optional GELF sink.
type Options struct {
	Level       string
	Development bool
	GelfAddr    string
}

// New returns the logger and a closer for any sinks it opened. When the GELF
// sink cannot be reached the logger still works and reports the failure.
func New(opts Options) (*zap.Logger, io.Closer, error) {
	var config zap.Config
	if opts.Development {
		config = zap.NewDevelopmentConfig()
	} else {
		config = zap.NewProductionConfig()
	}
	if opts.Level != "" {
		lvl, err := zap.ParseAtomicLevel(opts.Level)
		if err != nil {
			return nil, nil, fmt.Errorf("log level %q: %w", opts.Level, err)
		}
		config.Level = lvl
	}
	base, err := config.Build()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	if opts.GelfAddr == "" {
		return withSink(base, nil), nopCloser{}, nil
	}
	w, err := gelf.New(opts.GelfAddr, serviceName)
	if err != nil {
		logger := withSink(base, nil)
		logger.Warn("GELF init failed", zap.String("addr", opts.GelfAddr), zap.Error(err))
		return logger, nopCloser{}, nil
	}
	gelfCore := zapcore.NewCore(
		zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
		zapcore.AddSync(w),
		config.Level,
	)
	logger := withSink(base, gelfCore)
	logger.Info("GELF logging enabled", zap.String("addr", opts.GelfAddr))
	return logger, w, nil
}

// withSink tees base into sink, when given, and only then adds the service
// field so every core sees it.
func withSink(base *zap.Logger, sink zapcore.Core) *zap.Logger {
	if sink != nil {
		base = base.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
			return zapcore.NewTee(c, sink)
		}))
	}
	return base.With(zap.String("service", serviceName))
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
