// Package logging provides slog helpers shared across drivebridge:
// canonical attribute keys, scoped-logger constructors, and sanitizers
// for credential material.
//
// All packages log through log/slog with these helpers so that log
// output stays machine-parseable with consistent attribute names.
package logging
