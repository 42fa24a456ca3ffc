// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package errors defines the error kinds surfaced by the Square OAuth flow.
package errors

import (
	"errors"
	"fmt"
)

// Error types
const (
	// ErrInvalidArgument is returned when an invalid argument is provided
	ErrInvalidArgument = "invalid_argument"

	// ErrInvalidState is returned when a flow operation is attempted from the wrong state
	ErrInvalidState = "invalid_state"

	// ErrAuthorizationDenied is returned when the provider redirects back with an error instead of a code
	ErrAuthorizationDenied = "authorization_denied"

	// ErrTokenExchange is returned when the token endpoint does not return a usable access token
	ErrTokenExchange = "token_exchange"

	// ErrMalformedResponse is returned when a provider response cannot be interpreted
	ErrMalformedResponse = "malformed_response"

	// ErrTransport is returned when the HTTP client collaborator fails
	ErrTransport = "transport"

	// ErrProfileFetch is returned when the profile endpoint responds with a non-success status
	ErrProfileFetch = "profile_fetch"
)

// Error represents an error in the OAuth flow
type Error struct {
	// Type is the error type
	Type string

	// Message is the error message
	Message string

	// Cause is the underlying error
	Cause error

	// StatusCode is the HTTP status of the response that triggered the error, if any
	StatusCode int

	// Body is a bounded preview of the response body that triggered the error, if any
	Body []byte
}

// Error returns the error message
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Type, e.Message)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %s", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithResponse attaches the status code and body preview of an HTTP response
func (e *Error) WithResponse(statusCode int, body []byte) *Error {
	e.StatusCode = statusCode
	e.Body = body
	return e
}

// NewError creates a new error
func NewError(errorType, message string, cause error) *Error {
	return &Error{
		Type:    errorType,
		Message: message,
		Cause:   cause,
	}
}

// NewInvalidArgumentError creates a new invalid argument error
func NewInvalidArgumentError(message string, cause error) *Error {
	return NewError(ErrInvalidArgument, message, cause)
}

// NewInvalidStateError creates a new invalid state error
func NewInvalidStateError(message string, cause error) *Error {
	return NewError(ErrInvalidState, message, cause)
}

// NewAuthorizationDeniedError creates a new authorization denied error
func NewAuthorizationDeniedError(message string, cause error) *Error {
	return NewError(ErrAuthorizationDenied, message, cause)
}

// NewTokenExchangeError creates a new token exchange error
func NewTokenExchangeError(message string, cause error) *Error {
	return NewError(ErrTokenExchange, message, cause)
}

// NewMalformedResponseError creates a new malformed response error
func NewMalformedResponseError(message string, cause error) *Error {
	return NewError(ErrMalformedResponse, message, cause)
}

// NewTransportError creates a new transport error
func NewTransportError(message string, cause error) *Error {
	return NewError(ErrTransport, message, cause)
}

// NewProfileFetchError creates a new profile fetch error
func NewProfileFetchError(message string, cause error) *Error {
	return NewError(ErrProfileFetch, message, cause)
}

// IsInvalidArgument checks if the error is an invalid argument error
func IsInvalidArgument(err error) bool {
	return isType(err, ErrInvalidArgument)
}

// IsInvalidState checks if the error is an invalid state error
func IsInvalidState(err error) bool {
	return isType(err, ErrInvalidState)
}

// IsAuthorizationDenied checks if the error is an authorization denied error
func IsAuthorizationDenied(err error) bool {
	return isType(err, ErrAuthorizationDenied)
}

// IsTokenExchange checks if the error is a token exchange error
func IsTokenExchange(err error) bool {
	return isType(err, ErrTokenExchange)
}

// IsMalformedResponse checks if the error is a malformed response error
func IsMalformedResponse(err error) bool {
	return isType(err, ErrMalformedResponse)
}

// IsTransport checks if the error is a transport error
func IsTransport(err error) bool {
	return isType(err, ErrTransport)
}

// IsProfileFetch checks if the error is a profile fetch error
func IsProfileFetch(err error) bool {
	return isType(err, ErrProfileFetch)
}

// isType reports whether any error in err's chain is an *Error of the given type.
func isType(err error, errorType string) bool {
	var e *Error
	return errors.As(err, &e) && e.Type == errorType
}
