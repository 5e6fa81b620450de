// Package logging provides structured logging for the gray-bus-tools
// daemons.
//
// It wraps log/slog with configuration-driven level, format and output
// selection and attaches daemon name and version as default fields. The
// daemons pass a *Logger down to their components through small Logger
// interfaces so that packages stay decoupled from this one in tests.
//
// The original tools mapped repeated -v flags onto syslog levels; Verbosity
// provides the same mapping onto slog levels for the command line layer.
package logging
