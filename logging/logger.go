// Package logging builds the process logger.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a production zap logger at the given level. Unknown
// levels fall back to info.
func New(level string) (*zap.Logger, error) {
	config := zap.NewProductionConfig()

	if level != "" {
		if parsed, err := zapcore.ParseLevel(level); err == nil {
			config.Level.SetLevel(parsed)
		}
	}

	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return config.Build()
}
