// Package types provides request/response type definitions shared across the API surface.
package types

import (
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"
)

// runIDPattern restricts run identifiers to a strict charset so an ID can
// never carry injection payloads into downstream query or path construction.
var runIDPattern = regexp.MustCompile(`^[a-zA-Z0-9-]+$`)

// ValidRunID reports whether an identifier matches the allowed charset.
func ValidRunID(id string) bool {
	return id != "" && runIDPattern.MatchString(id)
}

// StageUpdateRequest is the stage-progress webhook payload posted by the
// external pipeline for a run identified in the path.
type StageUpdateRequest struct {
	StageNumber int    `json:"stageNumber" validate:"required,min=1,max=5"`
	StageName   string `json:"stageName" validate:"required"`
	Status      string `json:"status" validate:"required,oneof=PROCESSING COMPLETED FAILED"`
	Output      string `json:"output,omitempty"`
	CompletedAt string `json:"completedAt,omitempty" validate:"omitempty"`
}

// Validate validates the StageUpdateRequest using the validator.
func (r *StageUpdateRequest) Validate() error {
	validate := validator.New()
	if err := validate.Struct(r); err != nil {
		return err
	}
	if r.CompletedAt != "" {
		if _, err := time.Parse(time.RFC3339, r.CompletedAt); err != nil {
			return &FieldError{Field: "completedAt", Message: "must be an RFC3339 timestamp"}
		}
	}
	return nil
}

// CompletedAtTime returns the parsed completedAt timestamp, or nil if unset.
// Validate must have been called first.
func (r *StageUpdateRequest) CompletedAtTime() *time.Time {
	if r.CompletedAt == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, r.CompletedAt)
	if err != nil {
		return nil
	}
	return &t
}

// InitRequest is the payload for initializing a run record when the external
// pipeline was started outside the web trigger (e.g. from an MCP client).
type InitRequest struct {
	RunID        string `json:"runId" validate:"required"`
	BlobURL      string `json:"blobUrl" validate:"required,url"`
	BrandName    string `json:"brandName" validate:"required"`
	DocumentName string `json:"documentName,omitempty"`
}

// Validate validates the InitRequest using the validator.
func (r *InitRequest) Validate() error {
	validate := validator.New()
	if err := validate.Struct(r); err != nil {
		return err
	}
	if !ValidRunID(r.RunID) {
		return &FieldError{Field: "runId", Message: "contains characters outside [a-z0-9-]"}
	}
	return nil
}

// CompleteOpportunity is one opportunity in the completion payload. The
// external pipeline has shipped the body under three different field names
// over time; Body() resolves them in preference order.
type CompleteOpportunity struct {
	Number      int    `json:"number,omitempty"`
	Title       string `json:"title"`
	Markdown    string `json:"markdown,omitempty"`
	FullContent string `json:"fullContent,omitempty"`
	Content     string `json:"content,omitempty"`
}

// Body returns the card content, trying fullContent, markdown, then content.
func (o *CompleteOpportunity) Body() string {
	if o.FullContent != "" {
		return o.FullContent
	}
	if o.Markdown != "" {
		return o.Markdown
	}
	return o.Content
}

// CompleteRequest is the run-completion webhook payload. It owns the
// PROCESSING -> COMPLETED transition; stage-update never makes it.
type CompleteRequest struct {
	CompletedAt        string                `json:"completedAt,omitempty"`
	Duration           *int                  `json:"duration,omitempty"`
	Opportunities      []CompleteOpportunity `json:"opportunities" validate:"required,min=1"`
	FullReportMarkdown string                `json:"fullReportMarkdown,omitempty"`
}

// Validate validates the CompleteRequest using the validator.
func (r *CompleteRequest) Validate() error {
	validate := validator.New()
	if err := validate.Struct(r); err != nil {
		return err
	}
	if r.CompletedAt != "" {
		if _, err := time.Parse(time.RFC3339, r.CompletedAt); err != nil {
			return &FieldError{Field: "completedAt", Message: "must be an RFC3339 timestamp"}
		}
	}
	return nil
}

// TriggerRequest is the body of the run trigger endpoint.
type TriggerRequest struct {
	BlobURL  string `json:"blob_url" validate:"required,url"`
	UploadID string `json:"upload_id" validate:"required"`
}

// Validate validates the TriggerRequest using the validator.
func (r *TriggerRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}

// FieldError is a validation error tied to a specific payload field.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return e.Field + ": " + e.Message
}
