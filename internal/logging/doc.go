// Package logging provides the leveled logging interface used across the
// media streamer. Messages are written through zerolog, either as
// human-readable console lines or as JSON (LOG_FORMAT=json).
//
// It supports the following log levels:
//   - DEBUG: Verbose debugging information
//   - INFO: General operational messages
//   - WARN: Warning conditions
//   - ERROR: Error conditions
//   - FATAL: Fatal errors that terminate the application
//
// The log level is configured via the LOG_LEVEL environment variable, or
// forced to DEBUG by setting DEBUG=true.
package logging
