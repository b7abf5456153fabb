// Package logger builds the zap.SugaredLogger every cmd entry point
// uses, mirroring the teacher's foundation/logger construction: JSON
// output, ISO8601 timestamps, and a fixed "service" field so log lines
// from multiple node processes can be told apart in aggregate.
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New constructs a production-mode logger tagged with service.
func New(service string) (*zap.SugaredLogger, error) {
	config := zap.NewProductionConfig()
	config.OutputPaths = []string{"stdout"}
	config.EncoderConfig.TimeKey = "date"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	log, err := config.Build(zap.WithCaller(true), zap.AddCallerSkip(1))
	if err != nil {
		return nil, err
	}

	return log.Sugar().With("service", service), nil
}
