// Package errors provides the error type used throughout the node, the protocol
// error taxonomy shared with peers and helpers for categorizing errors.
package errors

import (
	"context"
	"errors"
)

// ProtocolCode returns the outermost protocol error code in the chain of err.
func ProtocolCode(err error) (ERR, bool) {
	for err != nil {
		var tErr *Error
		if !errors.As(err, &tErr) {
			return ERR_UNKNOWN, false
		}

		if tErr.code.IsProtocol() {
			return tErr.code, true
		}

		err = tErr.wrappedErr
	}

	return ERR_UNKNOWN, false
}

// WireName returns the name a peer expects in an error message, e.g. INVALID_FORMAT.
func WireName(err error) (string, bool) {
	code, ok := ProtocolCode(err)
	if !ok {
		return "", false
	}

	return code.String(), true
}

// IsTransient reports whether err may succeed later without the input changing.
// An object that could not be found in time can show up, a malformed one never will.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	if code, ok := ProtocolCode(err); ok {
		return code == ERR_UNFINDABLE_OBJECT || code == ERR_UNKNOWN_OBJECT
	}

	return IsContextError(err) || IsTemporaryError(err)
}

// IsFatalForPeer reports whether the peer that sent the object causing err
// should be disconnected.
func IsFatalForPeer(err error) bool {
	if err == nil {
		return false
	}

	if _, ok := ProtocolCode(err); !ok {
		return false
	}

	return !IsTransient(err)
}

// IsTemporaryError determines if an error is temporary and might succeed if retried later.
func IsTemporaryError(err error) bool {
	if err == nil {
		return false
	}

	var tErr *Error
	if As(err, &tErr) {
		switch tErr.Code() {
		case ERR_SERVICE_UNAVAILABLE,
			ERR_STORAGE_UNAVAILABLE:
			return true
		}
	}

	return false
}

// IsContextError determines if an error is related to context cancellation or deadline.
func IsContextError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var tErr *Error
	if As(err, &tErr) {
		if tErr.Code() == ERR_CONTEXT_CANCELED || tErr.Code() == ERR_CONTEXT {
			return true
		}
	}

	return false
}

// GetErrorCategory returns a short label for the error, used for logging and metrics.
func GetErrorCategory(err error) string {
	if err == nil {
		return "none"
	}

	if IsContextError(err) {
		return "context"
	}

	var tErr *Error
	if As(err, &tErr) {
		code := tErr.Code()

		switch {
		case code >= 10 && code <= 19:
			return "object"
		case code >= 30 && code <= 39:
			return "transaction"
		case code >= 50 && code <= 59:
			return "service"
		case code >= 60 && code <= 69:
			return "storage"
		}
	}

	return "unknown"
}

// GetData returns the value stored under key by the first error in the chain of
// err that carries it, or nil.
func GetData(err error, key string) interface{} {
	for err != nil {
		var tErr *Error
		if !errors.As(err, &tErr) {
			return nil
		}

		if value := tErr.GetData(key); value != nil {
			return value
		}

		err = tErr.wrappedErr
	}

	return nil
}
