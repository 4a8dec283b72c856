package domain

import (
	"errors"
	"net/http"
)

// Error is the failure envelope sent back over the bus: a human-readable
// message plus a coarse HTTP-equivalent status code.
type Error struct {
	Message    string `json:"message"`
	StatusCode int    `json:"statusCode"`
}

func (e *Error) Error() string {
	return e.Message
}

func NewNotFound(message string) *Error {
	return &Error{Message: message, StatusCode: http.StatusNotFound}
}

func NewForbidden(message string) *Error {
	return &Error{Message: message, StatusCode: http.StatusForbidden}
}

func NewValidation(message string) *Error {
	return &Error{Message: message, StatusCode: http.StatusBadRequest}
}

func NewUnavailable(message string) *Error {
	return &Error{Message: message, StatusCode: http.StatusBadGateway}
}

func NewInternal(message string) *Error {
	return &Error{Message: message, StatusCode: http.StatusInternalServerError}
}

// StatusCode extracts the status code from err, defaulting to 500.
func StatusCode(err error) int {
	var de *Error
	if errors.As(err, &de) {
		return de.StatusCode
	}
	return http.StatusInternalServerError
}

// AsError converts err into an *Error, wrapping unknown errors as the
// given fallback status.
func AsError(err error, fallbackStatus int) *Error {
	var de *Error
	if errors.As(err, &de) {
		return de
	}
	return &Error{Message: err.Error(), StatusCode: fallbackStatus}
}
