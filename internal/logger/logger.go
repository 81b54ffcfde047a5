package logger

import (
	"go.uber.org/zap"
)

const (
	envLocal = "local"
	envDev   = "development"
)

// New returns a console logger for local and development environments
// and a JSON production logger for anything else.
func New(env string) (*zap.Logger, error) {
	switch env {
	case envLocal, envDev:
		return zap.NewDevelopment()
	default:
		return zap.NewProduction()
	}
}
