// Package logging hands out the scoped loggers used across avcapture. Levels
// come from the PION_LOG_* environment variables.
package logging

import (
	"github.com/pion/logging"
)

var loggerFactory = logging.NewDefaultLoggerFactory()

// NewLogger returns a leveled logger for scope, e.g. "avcapture/ring".
func NewLogger(scope string) logging.LeveledLogger {
	return loggerFactory.NewLogger(scope)
}
