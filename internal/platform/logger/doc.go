// Package logger provides structured logging functionality for the application.
//
// It utilizes Go's standard library log/slog package to implement structured JSON logging
// with configurable log levels, writes to a size-rotated file via lumberjack, and
// carries request-scoped loggers (session id, command) through context.Context.
package logger
