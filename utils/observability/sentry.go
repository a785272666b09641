package observability

import (
	"time"

	"github.com/getsentry/sentry-go"
)

// InitSentry sets up error reporting when a DSN is configured. With an empty
// DSN it is a no-op, so local development needs no Sentry project.
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

func CaptureErr(err error) {
	if err != nil {
		sentry.CaptureException(err)
	}
}
