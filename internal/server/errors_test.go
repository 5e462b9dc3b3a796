package server

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"run not found", &ErrRunNotFound{RunID: "run-1"}, http.StatusNotFound},
		{"invalid run id", &ErrInvalidRunID{RunID: "bad id"}, http.StatusBadRequest},
		{"validation", &ErrValidation{Field: "stageNumber", Message: "out of range"}, http.StatusBadRequest},
		{"webhook unauthorized", &ErrWebhookUnauthorized{}, http.StatusUnauthorized},
		{"misconfigured", &ErrServerMisconfigured{Setting: "WEBHOOK_SECRET"}, http.StatusInternalServerError},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestWebhookErrorMessage(t *testing.T) {
	// Internal detail (which setting is missing, why auth failed) stays out
	// of responses.
	assert.Equal(t, "Server configuration error",
		webhookErrorMessage(&ErrServerMisconfigured{Setting: "WEBHOOK_SECRET"}))
	assert.Equal(t, "Unauthorized", webhookErrorMessage(&ErrWebhookUnauthorized{}))
	assert.Equal(t, "Internal server error", webhookErrorMessage(errors.New("boom")))
}
