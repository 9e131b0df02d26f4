package optimizer

import (
	"errors"
	"fmt"
)

// ErrNotConfigured is returned when no API key is set. Callers skip optimization
// entirely on this error.
var ErrNotConfigured = errors.New("image optimization not configured")

type ErrorKind string

const (
	KindAccount    ErrorKind = "account"
	KindClient     ErrorKind = "client"
	KindServer     ErrorKind = "server"
	KindConnection ErrorKind = "connection"
)

// Error is a compression service failure classified by kind.
type Error struct {
	Kind    ErrorKind
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("tinify %s error (status %d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("tinify %s error: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is an optimizer *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var oerr *Error
	return errors.As(err, &oerr) && oerr.Kind == kind
}

func kindForStatus(status int) ErrorKind {
	switch {
	case status == 401 || status == 429:
		return KindAccount
	case status >= 400 && status < 500:
		return KindClient
	default:
		return KindServer
	}
}
