// Package logging builds the root structured logger shared by every
// component, mirroring the per-subsystem logger handles of the
// original C++ LogCtx/logger_manager concept.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level wraps zap's atomic level so the control plane's l+/l- commands
// can step it up or down at runtime without rebuilding the logger.
type Level struct {
	atom zap.AtomicLevel
}

// New builds the root logger at the given initial level ("debug",
// "info", "warn", "error"), writing to stdout or stderr per output.
func New(level, output string) (*zap.Logger, *Level, error) {
	atom := zap.NewAtomicLevel()
	if err := atom.UnmarshalText([]byte(level)); err != nil {
		atom.SetLevel(zapcore.InfoLevel)
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = atom
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if output == "stderr" {
		cfg.OutputPaths = []string{"stderr"}
	} else {
		cfg.OutputPaths = []string{"stdout"}
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, nil, err
	}
	return logger, &Level{atom: atom}, nil
}

// Up makes logging one step more verbose by lowering the minimum
// level (error -> warn -> info -> debug).
func (l *Level) Up() {
	l.step(-1)
}

// Down makes logging one step less verbose by raising the minimum
// level (debug -> info -> warn -> error).
func (l *Level) Down() {
	l.step(1)
}

var ladder = []zapcore.Level{
	zapcore.DebugLevel,
	zapcore.InfoLevel,
	zapcore.WarnLevel,
	zapcore.ErrorLevel,
}

func (l *Level) step(dir int) {
	cur := l.atom.Level()
	idx := 1
	for i, lv := range ladder {
		if lv == cur {
			idx = i
			break
		}
	}
	idx += dir
	if idx < 0 {
		idx = 0
	}
	if idx >= len(ladder) {
		idx = len(ladder) - 1
	}
	l.atom.SetLevel(ladder[idx])
}
