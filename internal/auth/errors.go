package auth

import (
	"errors"
	"strings"
)

type ErrorKind string

const (
	KindNotAuthenticated           ErrorKind = "not_authenticated"
	KindTokenRefreshExpired        ErrorKind = "token_refresh_expired"
	KindTokenRefreshFailed         ErrorKind = "token_refresh_failed"
	KindCredentialStoreUnavailable ErrorKind = "credential_store_unavailable"
	KindNetworkFailure             ErrorKind = "network_failure"
	KindAuthorizationDenied        ErrorKind = "authorization_denied"
	KindAuthorizationExpired       ErrorKind = "authorization_expired"
)

type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if strings.TrimSpace(e.Message) != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newError(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// IsKind reports whether err carries an auth error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var authErr *Error
	if !errors.As(err, &authErr) {
		return false
	}
	return authErr.Kind == kind
}

// NeedsLogin reports whether the user must authenticate again.
func NeedsLogin(err error) bool {
	return IsKind(err, KindNotAuthenticated) || IsKind(err, KindTokenRefreshExpired) || IsKind(err, KindTokenRefreshFailed)
}
