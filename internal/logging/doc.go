// Package logging provides structured JSON logging with size-based file
// rotation for partfuse. The serving process logs to ~/.partfuse/logs/ and
// optionally mirrors to stderr; one-shot CLI commands log to stderr only
// unless --debug is set.
package logging
