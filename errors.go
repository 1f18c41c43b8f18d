package accounts

import (
	goerrors "github.com/goliatone/go-errors"
)

// Text codes returned alongside error categories so API layers can map
// failures to stable, machine-readable identifiers.
const (
	TextCodeInvalidCredentials = "INVALID_CREDENTIALS"
	TextCodeAccountUnverified  = "ACCOUNT_UNVERIFIED"
	TextCodeEmailTaken         = "EMAIL_TAKEN"
	TextCodeTokenNotFound      = "TOKEN_NOT_FOUND"
	TextCodeAccountNotFound    = "ACCOUNT_NOT_FOUND"
	TextCodeRequestNotFound    = "FRIEND_REQUEST_NOT_FOUND"
	TextCodeAlreadyFriends     = "ALREADY_FRIENDS"
	TextCodeRequestPending     = "FRIEND_REQUEST_PENDING"
	TextCodeStaleRecord        = "STALE_RECORD"
	TextCodeUpstreamFailure    = "UPSTREAM_FAILURE"
	TextCodeTokenExpired       = "TOKEN_EXPIRED"
)

// ErrInvalidCredentials is returned on any login failure that involves the
// submitted credentials. It never distinguishes a missing account from a
// wrong password.
var ErrInvalidCredentials = goerrors.New("invalid credentials", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(goerrors.CodeUnauthorized)

// ErrAccountUnverified is returned when credentials check out but the
// account has not redeemed its verification code yet.
var ErrAccountUnverified = goerrors.New("please verify your email address", goerrors.CategoryAuth).
	WithTextCode(TextCodeAccountUnverified).
	WithCode(goerrors.CodeForbidden)

// ErrNoEmptyString is returned when hashing an empty secret.
var ErrNoEmptyString = goerrors.New("value must not be an empty string", goerrors.CategoryBadInput)

// ErrMismatchedHashAndPassword wraps the bcrypt mismatch sentinel.
var ErrMismatchedHashAndPassword = goerrors.New("passwords do not match", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials)

// ErrSessionExpired is returned when a session credential is valid but past
// its expiration.
var ErrSessionExpired = goerrors.New("session token has expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(goerrors.CodeUnauthorized)

// ErrSessionMalformed is returned for session credentials we cannot parse
// or whose signature does not verify.
var ErrSessionMalformed = goerrors.New("session token is malformed", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized)

// ErrStaleRecord signals that an optimistic pair update lost a race and
// should be retried against fresh records.
var ErrStaleRecord = goerrors.New("record was modified concurrently", goerrors.CategoryConflict).
	WithTextCode(TextCodeStaleRecord).
	WithCode(goerrors.CodeConflict)

func newValidationError(msg string) *goerrors.Error {
	return goerrors.New(msg, goerrors.CategoryValidation).
		WithCode(goerrors.CodeBadRequest)
}

func newConflictError(msg, textCode string) *goerrors.Error {
	return goerrors.New(msg, goerrors.CategoryConflict).
		WithTextCode(textCode).
		WithCode(goerrors.CodeConflict)
}

func newNotFoundError(msg, textCode string) *goerrors.Error {
	return goerrors.New(msg, goerrors.CategoryNotFound).
		WithTextCode(textCode).
		WithCode(goerrors.CodeNotFound)
}

func newUpstreamError(err error, msg string) *goerrors.Error {
	return goerrors.Wrap(err, goerrors.CategoryInternal, msg).
		WithTextCode(TextCodeUpstreamFailure)
}

// IsValidation reports whether err is a malformed-input failure the client
// can correct and retry.
func IsValidation(err error) bool {
	return hasCategory(err, goerrors.CategoryValidation) || hasCategory(err, goerrors.CategoryBadInput)
}

// IsConflict reports whether err means the requested transition's
// precondition is already satisfied.
func IsConflict(err error) bool {
	return hasCategory(err, goerrors.CategoryConflict)
}

// IsAuth reports whether err is a credential failure.
func IsAuth(err error) bool {
	return hasCategory(err, goerrors.CategoryAuth)
}

// IsUnverified reports whether err is the unverified-account login gate.
func IsUnverified(err error) bool {
	return hasTextCode(err, TextCodeAccountUnverified)
}

// IsNotFound reports whether err means a referenced account or token is
// absent or already consumed. Expired tokens report true here as well.
func IsNotFound(err error) bool {
	return goerrors.IsNotFound(err)
}

// IsUpstream reports whether err originated in a collaborator (image
// storage or mail delivery).
func IsUpstream(err error) bool {
	return hasTextCode(err, TextCodeUpstreamFailure)
}

func hasCategory(err error, category goerrors.Category) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.Category == category
	}
	return false
}

func hasTextCode(err error, textCode string) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.TextCode == textCode
	}
	return false
}
