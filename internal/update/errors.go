package update

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindNetworkFailure           ErrorKind = "network_failure"
	KindNoCompatibleAsset        ErrorKind = "no_compatible_asset"
	KindIntegrityMismatch        ErrorKind = "integrity_mismatch"
	KindUpdateVerificationFailed ErrorKind = "update_verification_failed"
	KindRollbackFailed           ErrorKind = "rollback_failed"
	KindStaging                  ErrorKind = "staging"
)

type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e == nil:
		return ""
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	default:
		return string(e.Kind)
	}
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

func IsKind(err error, kind ErrorKind) bool {
	var updateErr *Error
	if !errors.As(err, &updateErr) {
		return false
	}
	return updateErr.Kind == kind
}

// IsCritical reports a failed rollback. The installed binary can no longer
// be trusted and the user must reinstall.
func IsCritical(err error) bool {
	return IsKind(err, KindRollbackFailed)
}
