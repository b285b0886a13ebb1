// Package logging provides structured logging for Hearth Core.
//
// It wraps log/slog with configuration-driven level filtering, JSON or text
// output, and default service attributes. All components receive a *Logger
// (usually narrowed with With("component", ...)) rather than creating their
// own handlers.
package logging
