package bot

import (
	"context"

	"emperror.dev/errors"
)

var ErrTimeout = errors.NewPlain("timed out waiting for a response")

type RemoteErrorKind int

const (
	RemoteUnknown RemoteErrorKind = iota
	RemotePermission
	RemoteNotFound
	RemoteRateLimited
	RemoteNetwork
)

func (k RemoteErrorKind) String() string {
	switch k {
	case RemotePermission:
		return "missing permissions"
	case RemoteNotFound:
		return "not found"
	case RemoteRateLimited:
		return "rate limited"
	case RemoteNetwork:
		return "network error"
	}

	return "unknown error"
}

// RemoteError is returned by every failed Platform call
type RemoteError struct {
	Op   string
	Kind RemoteErrorKind
	Err  error
}

func (e *RemoteError) Error() string {
	return e.Op + ": " + e.Kind.String() + ": " + e.Err.Error()
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// IsRemoteErr reports whether err is a remote error of one of the kinds
func IsRemoteErr(err error, kinds ...RemoteErrorKind) bool {
	var re *RemoteError
	if !errors.As(err, &re) {
		return false
	}

	for _, k := range kinds {
		if re.Kind == k {
			return true
		}
	}

	return false
}

func timeoutErr(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrTimeout
	}

	return ctx.Err()
}
