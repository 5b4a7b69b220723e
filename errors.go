package appauth

import (
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeValidation         = "VALIDATION_ERROR"
	TextCodeInvalidCredentials = "INVALID_CREDENTIALS"
	TextCodeEmailNotConfirmed  = "EMAIL_NOT_CONFIRMED"
	TextCodeRateLimited        = "RATE_LIMITED"
	TextCodeDuplicateAccount   = "DUPLICATE_ACCOUNT"
	TextCodeProfileError       = "PROFILE_ERROR"
	TextCodeAuthUnknown        = "AUTH_UNKNOWN"
)

// ErrInvalidCredentials is returned when the backend rejects a login.
var ErrInvalidCredentials = goerrors.New("Invalid email or password. Please try again.", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(goerrors.CodeUnauthorized)

// ErrEmailNotConfirmed is returned while the account awaits email confirmation.
var ErrEmailNotConfirmed = goerrors.New("Please confirm your email address before signing in.", goerrors.CategoryAuth).
	WithTextCode(TextCodeEmailNotConfirmed).
	WithCode(goerrors.CodeUnauthorized)

// ErrRateLimited is returned when the backend throttles the caller.
var ErrRateLimited = goerrors.New("Too many attempts. Please try again later.", goerrors.CategoryRateLimit).
	WithTextCode(TextCodeRateLimited)

// ErrDuplicateAccount is returned when signing up an email that already has an account.
var ErrDuplicateAccount = goerrors.New("An account with this email already exists.", goerrors.CategoryConflict).
	WithTextCode(TextCodeDuplicateAccount).
	WithCode(goerrors.CodeConflict)

// ErrProfileUnavailable marks a failed profile fetch or create. The user
// stays authenticated with a nil profile until RefreshProfile succeeds.
var ErrProfileUnavailable = goerrors.New("Failed to load user profile", goerrors.CategoryInternal).
	WithTextCode(TextCodeProfileError)

// ErrNotAuthenticated is returned by operations that require a signed-in user.
var ErrNotAuthenticated = goerrors.New("no user is signed in", goerrors.CategoryAuth).
	WithTextCode(TextCodeAuthUnknown).
	WithCode(goerrors.CodeUnauthorized)

// TranslateAuthError maps a raw backend error onto the closed taxonomy by
// matching message content, falling back to a generic categorized error.
// Errors that already carry one of our text codes pass through unchanged.
func TranslateAuthError(err error, fallback string) *goerrors.Error {
	if err == nil {
		return nil
	}

	var rich *goerrors.Error
	if goerrors.As(err, &rich) && isTaxonomyCode(rich.TextCode) {
		return rich
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "invalid login credentials"),
		strings.Contains(msg, "invalid_credentials"),
		strings.Contains(msg, "invalid grant"):
		return ErrInvalidCredentials
	case strings.Contains(msg, "email not confirmed"),
		strings.Contains(msg, "email_not_confirmed"):
		return ErrEmailNotConfirmed
	case strings.Contains(msg, "rate limit"),
		strings.Contains(msg, "too many requests"):
		return ErrRateLimited
	case strings.Contains(msg, "already registered"),
		strings.Contains(msg, "already been registered"),
		strings.Contains(msg, "user_already_exists"):
		return ErrDuplicateAccount
	}

	if fallback == "" {
		fallback = "Authentication failed. Please try again."
	}

	return goerrors.Wrap(err, goerrors.CategoryAuth, fallback).
		WithTextCode(TextCodeAuthUnknown)
}

// TranslateValidationError wraps a local validation failure. It never
// reaches the network layer.
func TranslateValidationError(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	return goerrors.Wrap(err, goerrors.CategoryValidation, err.Error()).
		WithTextCode(TextCodeValidation).
		WithCode(goerrors.CodeBadRequest)
}

// TranslateProfileError wraps a failed profile read or write.
func TranslateProfileError(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	return goerrors.Wrap(err, goerrors.CategoryInternal, "Failed to load user profile").
		WithTextCode(TextCodeProfileError)
}

// IsValidationError reports whether err came from local payload validation.
func IsValidationError(err error) bool {
	return hasTextCode(err, TextCodeValidation)
}

// IsCredentialError reports whether err is a rejected login.
func IsCredentialError(err error) bool {
	return hasTextCode(err, TextCodeInvalidCredentials)
}

// IsProfileError reports whether err is a profile fetch/create failure.
func IsProfileError(err error) bool {
	return hasTextCode(err, TextCodeProfileError)
}

// IsConflictError detects duplicate-row failures from the profile store so
// the bootstrapper can treat "already exists" as success.
func IsConflictError(err error) bool {
	if err == nil {
		return false
	}

	var rich *goerrors.Error
	if goerrors.As(err, &rich) && rich.Category == goerrors.CategoryConflict {
		return true
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key")
}

func hasTextCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var rich *goerrors.Error
	return goerrors.As(err, &rich) && rich.TextCode == code
}

func isTaxonomyCode(code string) bool {
	switch code {
	case TextCodeValidation, TextCodeInvalidCredentials, TextCodeEmailNotConfirmed,
		TextCodeRateLimited, TextCodeDuplicateAccount, TextCodeProfileError,
		TextCodeAuthUnknown:
		return true
	}
	return false
}
