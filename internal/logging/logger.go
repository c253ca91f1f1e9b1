package logging

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// NewLogger builds the process logger. Production logs JSON to a rotated
// file; development adds a console core on stderr at debug level.
func NewLogger(logDir, environment string) (*zap.Logger, error) {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, err
	}

	w := zapcore.AddSync(&lumberjack.Logger{
		Filename:   filepath.Join(logDir, "probewatch.log"),
		MaxSize:    10, // MB
		MaxBackups: 5,
		MaxAge:     14, // days
		Compress:   true,
	})

	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "ts"
	fileCore := zapcore.NewCore(zapcore.NewJSONEncoder(cfg), w, zap.InfoLevel)

	if environment == "development" {
		consoleCfg := zap.NewDevelopmentEncoderConfig()
		consoleCore := zapcore.NewCore(
			zapcore.NewConsoleEncoder(consoleCfg),
			zapcore.AddSync(os.Stderr),
			zap.DebugLevel,
		)
		return zap.New(zapcore.NewTee(fileCore, consoleCore)), nil
	}

	return zap.New(fileCore), nil
}
