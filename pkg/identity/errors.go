package identity

import (
	"errors"
	"fmt"
)

type Code string

const (
	CodeInvalidEmail         Code = "auth/invalid-email"
	CodeUserDisabled         Code = "auth/user-disabled"
	CodeUserNotFound         Code = "auth/user-not-found"
	CodeWrongPassword        Code = "auth/wrong-password"
	CodeTooManyRequests      Code = "auth/too-many-requests"
	CodeNetworkRequestFailed Code = "auth/network-request-failed"
	CodeEmailAlreadyInUse    Code = "auth/email-already-in-use"
	CodeWeakPassword         Code = "auth/weak-password"
	CodeSessionExpired       Code = "auth/session-expired"
	CodeProviderError        Code = "auth/provider-error"
	CodeInternal             Code = "auth/internal-error"
)

/*
Error is returned by every identity operation that fails for a reason
the user can act on. Anything the gateway can't classify is wrapped
with CodeInternal.
*/
type Error struct {
	Code    Code
	Message string
	Err     error
}

func NewError(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func WrapError(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s (%s): %s", e.Message, e.Code, e.Err.Error())
	}

	return fmt.Sprintf("%s (%s)", e.Message, e.Code)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on code so callers can write errors.Is(err, identity.NewError(code, "")).
func (e *Error) Is(target error) bool {
	var t *Error

	if !errors.As(target, &t) {
		return false
	}

	return t.Code == e.Code
}

func CodeOf(err error) Code {
	var e *Error

	if errors.As(err, &e) {
		return e.Code
	}

	return ""
}

/*
UserMessage turns an identity error into the text shown on the login
and signup pages. action is the verb used for the generic fallback,
e.g. "Login" gives "Login failed: <message>".
*/
func UserMessage(action string, err error) string {
	if err == nil {
		return ""
	}

	switch CodeOf(err) {
	case CodeInvalidEmail:
		return "Invalid email address format"
	case CodeUserDisabled:
		return "This account has been disabled"
	case CodeUserNotFound:
		return "No account found with this email. Please sign up first."
	case CodeWrongPassword:
		return "Incorrect password. Please try again."
	case CodeTooManyRequests:
		return "Too many failed attempts. Please try again later."
	case CodeNetworkRequestFailed:
		return "Network error. Please check your internet connection."
	case CodeEmailAlreadyInUse:
		return "An account already exists with this email. Please log in instead."
	case CodeWeakPassword:
		return "Password is too weak. Please choose a longer password."
	}

	var e *Error

	if errors.As(err, &e) {
		return fmt.Sprintf("%s failed: %s", action, e.Message)
	}

	return fmt.Sprintf("%s failed: %s", action, err.Error())
}
