package observability

import (
	"time"

	log "github.com/sirupsen/logrus"
)

// ConsoleReporter logs errors through the daemon logger. Intended for
// development; it never buffers, so Flush is trivial.
type ConsoleReporter struct {
	// verbose includes stack traces and breadcrumbs in the output.
	verbose bool
}

// NewConsoleReporter creates a console reporter. Set verbose to true for
// stack traces and breadcrumb trails.
func NewConsoleReporter(verbose bool) *ConsoleReporter {
	return &ConsoleReporter{verbose: verbose}
}

// ReportError logs the error with its context fields.
func (r *ConsoleReporter) ReportError(err error, ctx *ErrorContext) {
	entry := log.WithField("error", err)
	if ctx != nil {
		if ctx.ModuleName != "" {
			entry = entry.WithField("module", ctx.ModuleName)
		}
		if ctx.Callback != "" {
			entry = entry.WithField("callback", ctx.Callback)
		}
		if ctx.SerialNumber != "" {
			entry = entry.WithField("serial", ctx.SerialNumber)
		}
		if ctx.RequestType != "" {
			entry = entry.WithField("request", ctx.RequestType)
		}
	}
	entry.Error("error reported")

	if r.verbose && ctx != nil {
		if len(ctx.StackTrace) > 0 {
			log.Errorf("stack trace:\n%s", ctx.StackTrace)
		}
		trail := ctx.Breadcrumbs
		if trail == nil {
			trail = GetBreadcrumbs()
		}
		for _, bc := range trail {
			log.Debugf("breadcrumb [%s] %s", bc.Category, bc.Message)
		}
	}
}

// Flush is a no-op; console output is unbuffered.
func (r *ConsoleReporter) Flush(time.Duration) error { return nil }
