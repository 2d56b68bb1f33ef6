package observability

import (
	"time"

	"github.com/getsentry/sentry-go"
)

// SentryReporter sends errors to Sentry for centralized production
// tracking, with tags, breadcrumbs and stack context attached.
//
// The reporter uses its own Hub so it never interferes with other Sentry
// users in the process.
//
// Thread-safe: all methods are safe for concurrent use.
type SentryReporter struct {
	hub *sentry.Hub
}

// SentryOption configures the Sentry client during initialization.
type SentryOption func(*sentry.ClientOptions)

// WithEnvironment sets the environment tag for all events.
func WithEnvironment(environment string) SentryOption {
	return func(opts *sentry.ClientOptions) {
		opts.Environment = environment
	}
}

// WithRelease sets the release version for all events.
func WithRelease(release string) SentryOption {
	return func(opts *sentry.ClientOptions) {
		opts.Release = release
	}
}

// WithDebug enables the Sentry SDK's own debug logging.
func WithDebug(debug bool) SentryOption {
	return func(opts *sentry.ClientOptions) {
		opts.Debug = debug
	}
}

// WithBeforeSend sets a hook to filter or modify events before sending;
// returning nil from the hook drops the event.
func WithBeforeSend(fn func(*sentry.Event, *sentry.EventHint) *sentry.Event) SentryOption {
	return func(opts *sentry.ClientOptions) {
		opts.BeforeSend = fn
	}
}

// NewSentryReporter creates a Sentry reporter for the given DSN. An empty
// DSN initializes the SDK without sending, which is useful in tests.
func NewSentryReporter(dsn string, opts ...SentryOption) (*SentryReporter, error) {
	clientOpts := sentry.ClientOptions{Dsn: dsn}
	for _, opt := range opts {
		opt(&clientOpts)
	}
	client, err := sentry.NewClient(clientOpts)
	if err != nil {
		return nil, err
	}
	hub := sentry.NewHub(client, sentry.NewScope())
	return &SentryReporter{hub: hub}, nil
}

// ReportError captures the error with its context as tags and breadcrumbs.
func (r *SentryReporter) ReportError(err error, ctx *ErrorContext) {
	r.hub.WithScope(func(scope *sentry.Scope) {
		if ctx != nil {
			if ctx.ModuleName != "" {
				scope.SetTag("module", ctx.ModuleName)
			}
			if ctx.Callback != "" {
				scope.SetTag("callback", ctx.Callback)
			}
			if ctx.SerialNumber != "" {
				scope.SetTag("serial", ctx.SerialNumber)
			}
			if ctx.RequestType != "" {
				scope.SetTag("request", ctx.RequestType)
			}
			if len(ctx.StackTrace) > 0 {
				scope.SetExtra("stack_trace", string(ctx.StackTrace))
			}
			trail := ctx.Breadcrumbs
			if trail == nil {
				trail = GetBreadcrumbs()
			}
			for _, bc := range trail {
				scope.AddBreadcrumb(&sentry.Breadcrumb{
					Category:  bc.Category,
					Message:   bc.Message,
					Data:      bc.Data,
					Timestamp: bc.Timestamp,
				}, MaxBreadcrumbs)
			}
		}
		r.hub.CaptureException(err)
	})
}

// Flush waits for pending events to be delivered, up to timeout.
func (r *SentryReporter) Flush(timeout time.Duration) error {
	if !r.hub.Flush(timeout) {
		return errFlushTimeout
	}
	return nil
}

var errFlushTimeout = flushTimeoutError{}

type flushTimeoutError struct{}

func (flushTimeoutError) Error() string { return "sentry flush timed out" }
