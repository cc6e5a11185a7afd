// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Agora Contributors

// Package logging builds the process logger: slog records stamped with the
// service identity and any OpenTelemetry trace context.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"go.opentelemetry.io/otel/trace"
)

// Supported output formats.
const (
	FormatJSON    = "json"
	FormatText    = "text"
	FormatConsole = "console"
)

// Options tunes Setup beyond the output format.
type Options struct {
	Level   slog.Level
	NoColor bool
}

// identityHandler stamps records with service, version and trace context.
type identityHandler struct {
	handler slog.Handler
	service string
	version string
}

func (h *identityHandler) Handle(ctx context.Context, r slog.Record) error {
	r.AddAttrs(
		slog.String("service", h.service),
		slog.String("version", h.version),
	)

	spanCtx := trace.SpanContextFromContext(ctx)
	if spanCtx.HasTraceID() {
		r.AddAttrs(slog.String("trace_id", spanCtx.TraceID().String()))
	}
	if spanCtx.HasSpanID() {
		r.AddAttrs(slog.String("span_id", spanCtx.SpanID().String()))
	}

	//nolint:wrapcheck // Handler interface requires unwrapped error passthrough
	return h.handler.Handle(ctx, r)
}

func (h *identityHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

func (h *identityHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &identityHandler{handler: h.handler.WithAttrs(attrs), service: h.service, version: h.version}
}

func (h *identityHandler) WithGroup(name string) slog.Handler {
	return &identityHandler{handler: h.handler.WithGroup(name), service: h.service, version: h.version}
}

// Setup creates a logger writing format ("json", "text" or "console") to w.
// An unknown or empty format selects JSON and a nil w selects os.Stderr.
func Setup(service, version, format string, w io.Writer) *slog.Logger {
	return SetupWithOptions(service, version, format, w, Options{Level: slog.LevelDebug})
}

// SetupWithOptions is Setup with an explicit level and color choice.
func SetupWithOptions(service, version, format string, w io.Writer, opts Options) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}

	var base slog.Handler
	switch strings.ToLower(format) {
	case FormatText:
		base = slog.NewTextHandler(w, &slog.HandlerOptions{Level: opts.Level})
	case FormatConsole:
		base = tint.NewHandler(w, &tint.Options{
			Level:      opts.Level,
			TimeFormat: time.Kitchen,
			NoColor:    opts.NoColor,
		})
	default:
		base = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: opts.Level})
	}

	return slog.New(&identityHandler{handler: base, service: service, version: version})
}

// ParseLevel maps a level name to a slog.Level, defaulting to info.
func ParseLevel(name string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// SetDefault installs a Setup logger writing to stderr as the slog default.
func SetDefault(service, version, format string) *slog.Logger {
	logger := Setup(service, version, format, nil)
	slog.SetDefault(logger)
	return logger
}
