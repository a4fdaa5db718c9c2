// Package logging provides structured logging for LockerHub Core.
//
// It wraps log/slog with configuration-driven level, format, and output
// selection, plus default service/version fields. Components should take
// a narrow logger interface and receive a *Logger (or a derived one via
// With) from the composition root.
package logging
