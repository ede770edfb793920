// Package observability wires optional error tracking. With an empty DSN
// every call is a no-op.
package observability

import (
	"time"

	"github.com/getsentry/sentry-go"
)

// InitSentry configures the error tracker and returns a flush function for
// shutdown.
func InitSentry(dsn, env, release string) (func(), error) {
	if dsn == "" {
		return func() {}, nil
	}
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: env,
		Release:     release,
	}); err != nil {
		return func() {}, err
	}
	return func() { sentry.Flush(2 * time.Second) }, nil
}

// CaptureErr reports err when a client is configured.
func CaptureErr(err error) {
	if err != nil && sentry.CurrentHub().Client() != nil {
		sentry.CaptureException(err)
	}
}

// CapturePanic reports a recovered panic value.
func CapturePanic(v interface{}) {
	if sentry.CurrentHub().Client() != nil {
		sentry.CurrentHub().Recover(v)
	}
}
