// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package logging configures the process-wide zerolog logger. Logs go to
// stderr by default; stdout is kept for the CLI's own messages.
package logging

import (
	"io"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/pdiddy/registrar-json/pkg/types"
)

// Options configures the logger.
type Options struct {
	Level     string
	Format    string
	Component string
	Writer    io.Writer
}

// FromConfig maps the logging section of the run configuration to Options.
func FromConfig(cfg types.LoggingConfig) Options {
	return Options{
		Level:  cfg.Level,
		Format: cfg.Format,
	}
}

var root atomic.Pointer[zerolog.Logger]

// New builds a logger from opt without installing it.
func New(opt Options) zerolog.Logger {
	var w io.Writer = os.Stderr
	if opt.Writer != nil {
		w = opt.Writer
	}
	if strings.ToLower(opt.Format) != "json" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	ctx := zerolog.New(w).Level(ParseLevel(opt.Level)).With().Timestamp()
	if opt.Component != "" {
		ctx = ctx.Str("component", opt.Component)
	}
	return ctx.Logger()
}

// Init builds the root logger and installs it. Later calls replace it.
func Init(opt Options) *zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	l := New(opt)
	root.Store(&l)
	return &l
}

// Get returns the root logger, initializing it with defaults if needed.
func Get() *zerolog.Logger {
	if l := root.Load(); l != nil {
		return l
	}
	return Init(Options{})
}

// Named returns a child of the root logger with a component field.
func Named(component string) zerolog.Logger {
	if component == "" {
		return *Get()
	}
	return Get().With().Str("component", component).Logger()
}

// ParseLevel maps a level name to a zerolog level. Unknown or empty names
// give info.
func ParseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}
