// Package server provides the HTTP REST API for the ideation pipeline.
package server

import (
	"fmt"
	"net/http"
)

// ErrRunNotFound indicates the run id does not exist
type ErrRunNotFound struct {
	RunID string
}

func (e *ErrRunNotFound) Error() string {
	return fmt.Sprintf("run not found: %s", e.RunID)
}

// ErrInvalidRunID indicates the run id fails the strict charset check
type ErrInvalidRunID struct {
	RunID string
}

func (e *ErrInvalidRunID) Error() string {
	return "invalid run ID format"
}

// ErrWebhookUnauthorized indicates the webhook secret was missing or wrong
type ErrWebhookUnauthorized struct{}

func (e *ErrWebhookUnauthorized) Error() string {
	return "unauthorized"
}

// ErrServerMisconfigured indicates required server configuration is absent.
// Kept distinct from auth failures so operators can tell "nobody can call
// this" apart from "someone without credentials tried".
type ErrServerMisconfigured struct {
	Setting string
}

func (e *ErrServerMisconfigured) Error() string {
	return fmt.Sprintf("server configuration error: %s is not set", e.Setting)
}

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	switch err.(type) {
	case *ErrRunNotFound:
		return http.StatusNotFound
	case *ErrInvalidRunID, *ErrValidation:
		return http.StatusBadRequest
	case *ErrWebhookUnauthorized:
		return http.StatusUnauthorized
	case *ErrServerMisconfigured:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
