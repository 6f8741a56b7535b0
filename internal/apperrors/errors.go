// Package apperrors holds the error taxonomy shared by the gateway, the
// report pipeline, the stores and the account directory.
package apperrors

import (
	"errors"
	"net/http"
)

var (
	ErrInvalidInput = errors.New("invalid input")

	ErrUnreachable     = errors.New("classifier unreachable")
	ErrTimeout         = errors.New("classifier timed out")
	ErrMalformedOutput = errors.New("malformed classifier output")

	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrNotFound           = errors.New("not found")

	ErrDuplicateUsername  = errors.New("username already exists")
	ErrInvalidCredentials = errors.New("invalid username or password")

	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
)

// IsGatewayFailure reports whether err came from the classifier call.
func IsGatewayFailure(err error) bool {
	return errors.Is(err, ErrUnreachable) || errors.Is(err, ErrTimeout) || errors.Is(err, ErrMalformedOutput)
}

func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, ErrUnreachable):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrMalformedOutput):
		return http.StatusBadGateway
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicateUsername):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the text shown to end users. Classifier failures
// collapse into one message; the cause is only logged.
func PublicMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case IsGatewayFailure(err):
		return "Prediction failed. Please try again later."
	case errors.Is(err, ErrInvalidCredentials):
		return ErrInvalidCredentials.Error()
	case errors.Is(err, ErrDuplicateUsername):
		return "Username already exists"
	case errors.Is(err, ErrStorageUnavailable):
		return "Service temporarily unavailable"
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrNotFound),
		errors.Is(err, ErrForbidden), errors.Is(err, ErrUnauthorized):
		return err.Error()
	default:
		return "Server error"
	}
}
