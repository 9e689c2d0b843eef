// Package logx builds the single *zap.Logger every component receives as
// an explicit dependency (see spec.md §9 on avoiding process-wide mutable
// globals). Logging setup itself is out of scope as a Cerberus component
// (spec.md §1), but the ambient logging it configures is not: every other
// package logs through the instance this package constructs.
package logx

import (
	"io"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options controls how the root logger is built.
type Options struct {
	// MachineMode suppresses the human-readable console encoder, leaving
	// only structured JSON on Output. This is the "flag to suppress
	// console logging" spec.md §6 names.
	MachineMode bool
	// Output receives JSON logs in machine mode, and both encoders
	// otherwise. Defaults to os.Stderr.
	Output io.Writer
	// Debug enables debug-level logging; otherwise info and above.
	Debug bool
}

// New builds a root logger per Options. Call once per process and thread
// the result into components; never store it in a package-level var.
func New(opts Options) *zap.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	level := zap.InfoLevel
	if opts.Debug {
		level = zap.DebugLevel
	}
	sink := zapcore.AddSync(out)

	jsonEncoder := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	if opts.MachineMode {
		return zap.New(zapcore.NewCore(jsonEncoder, sink, level))
	}

	consoleCfg := zap.NewDevelopmentEncoderConfig()
	consoleEncoder := zapcore.NewConsoleEncoder(consoleCfg)
	core := zapcore.NewTee(
		zapcore.NewCore(jsonEncoder, sink, level),
		zapcore.NewCore(consoleEncoder, sink, level),
	)
	return zap.New(core)
}

var (
	noopOnce sync.Once
	noop     *zap.Logger
)

// Noop returns a logger that discards everything, for tests that don't
// want to assert on log output.
func Noop() *zap.Logger {
	noopOnce.Do(func() { noop = zap.NewNop() })
	return noop
}
