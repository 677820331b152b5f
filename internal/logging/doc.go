// Package logging provides a simple leveled logging interface for the
// annotator service.
//
// It supports the following log levels:
//   - DEBUG: Verbose debugging information (prefetch passes, evictions)
//   - INFO: General operational messages
//   - WARN: Warning conditions
//   - ERROR: Error conditions
//   - FATAL: Fatal errors that terminate the application
//
// The log level is configured via the LOG_LEVEL environment variable, or
// DEBUG=true. Session returns a logger tagged with an annotation session ID.
package logging
