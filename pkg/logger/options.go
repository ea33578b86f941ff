package logger

import (
	"io"
	"log/slog"
)

// Option configures a Logger created with New.
type Option func(*config)

// WithLevel sets the minimum level.
func WithLevel(level slog.Level) Option {
	return func(c *config) { c.level = level }
}

// WithDebug lowers the level to debug when debug is true.
func WithDebug(debug bool) Option {
	return func(c *config) {
		if debug {
			c.level = slog.LevelDebug
		}
	}
}

// WithFormat selects the handler.
func WithFormat(f Format) Option {
	return func(c *config) { c.format = f }
}

// WithWriter sets the output writer.
func WithWriter(w io.Writer) Option {
	return func(c *config) { c.writer = w }
}

// WithSource includes the caller's file:line.
func WithSource(source bool) Option {
	return func(c *config) { c.source = source }
}

// WithAttrs binds key/value pairs to every record, e.g. the service name.
func WithAttrs(args ...any) Option {
	return func(c *config) { c.attrs = append(c.attrs, args...) }
}
