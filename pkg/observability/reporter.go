// Package observability provides pluggable error tracking and breadcrumb
// trails for the daemon.
//
// If no reporter is configured via SetErrorReporter, errors are silently
// ignored with zero overhead beyond a nil check. Development deployments
// typically install ConsoleReporter; production installs SentryReporter.
package observability

import (
	"sync/atomic"
	"time"
)

// ErrorReporter is a pluggable interface for error tracking backends.
//
// Thread-safe: all methods must be safe for concurrent use; the daemon
// reports from module dispatch goroutines, the render worker and socket
// handlers simultaneously.
type ErrorReporter interface {
	// ReportError reports an error with its context. Recovered module
	// panics arrive here wrapped in core.ModulePanicError.
	ReportError(err error, ctx *ErrorContext)

	// Flush ensures all pending errors are sent before shutdown. Returns
	// a non-nil error if flushing failed or timed out.
	Flush(timeout time.Duration) error
}

// ErrorContext carries where and when an error occurred. All fields are
// optional; more context makes better reports.
type ErrorContext struct {
	// ModuleName is the module involved, if any.
	ModuleName string

	// Callback is the module callback that failed ("event",
	// "add_component", ...).
	Callback string

	// SerialNumber is the device involved, if any.
	SerialNumber string

	// RequestType is the socket message type being handled, if any.
	RequestType string

	// Timestamp is when the error occurred.
	Timestamp time.Time

	// StackTrace is the stack at the point of recovery.
	StackTrace []byte

	// Breadcrumbs is the trail of events leading up to the error.
	// Populated automatically from the global trail when nil.
	Breadcrumbs []Breadcrumb
}

var globalReporter atomic.Value

type reporterBox struct{ r ErrorReporter }

// SetErrorReporter installs the global error reporter. Passing nil disables
// reporting.
func SetErrorReporter(r ErrorReporter) {
	globalReporter.Store(reporterBox{r: r})
}

// GetErrorReporter returns the current global reporter, or nil when
// reporting is disabled.
func GetErrorReporter() ErrorReporter {
	box, ok := globalReporter.Load().(reporterBox)
	if !ok {
		return nil
	}
	return box.r
}
