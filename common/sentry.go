package common

import (
	"time"

	"emperror.dev/errors"
	"github.com/getsentry/sentry-go"
)

var sentryEnabled bool

// InitSentry enables error capture if a dsn is configured
func InitSentry(conf *CoreConfig, release string) error {
	if conf.SentryDSN == "" {
		return nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:         conf.SentryDSN,
		Environment: conf.Environment,
		Release:     release,
	})
	if err != nil {
		return errors.WrapIf(err, "sentry.Init")
	}

	sentryEnabled = true
	return nil
}

// CaptureError forwards err to sentry with the given tags
func CaptureError(err error, tags map[string]string) {
	if !sentryEnabled || err == nil {
		return
	}

	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTags(tags)
		sentry.CaptureException(err)
	})
}

func FlushSentry() {
	if sentryEnabled {
		sentry.Flush(2 * time.Second)
	}
}
