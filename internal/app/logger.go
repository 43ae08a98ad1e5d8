package app

import (
	"github.com/dencamenew/vsuet-attendance/pkg/logger"
)

// ConfigureLogging initialises the global zap logger from configuration.
func ConfigureLogging(level string) error {
	return logger.Init(level)
}
