// Package logging builds the zap logger shared by the server.
package logging

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a JSON production logger, or a console logger with debug
// output when env is "dev", "development" or "local".  LOG_LEVEL
// overrides the level in either mode.
func New(env string) (*zap.Logger, error) {
	var config zap.Config
	switch strings.ToLower(env) {
	case "dev", "development", "local":
		config = zap.NewDevelopmentConfig()
	default:
		config = zap.NewProductionConfig()
		config.EncoderConfig.TimeKey = "ts"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		level, err := zapcore.ParseLevel(lvl)
		if err != nil {
			return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", lvl, err)
		}
		config.Level = zap.NewAtomicLevelAt(level)
	}
	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger.With(zap.String("env", env)), nil
}
