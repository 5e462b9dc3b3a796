package db

import (
	"time"
)

// RunStatus constants. PROCESSING is the only non-terminal status.
const (
	RunStatusProcessing = "PROCESSING"
	RunStatusCompleted  = "COMPLETED"
	RunStatusFailed     = "FAILED"
	RunStatusCancelled  = "CANCELLED"
)

// IsTerminalStatus reports whether a run in the given status will never
// receive further progress updates.
func IsTerminalStatus(status string) bool {
	switch status {
	case RunStatusCompleted, RunStatusFailed, RunStatusCancelled:
		return true
	}
	return false
}

// Run represents one end-to-end pipeline invocation against one document.
// The ID is generated by the trigger endpoint (or supplied by an external
// initiator) and is immutable once set.
//
// Stage1Output..Stage4Output are denormalized snapshots of the corresponding
// StageOutput rows, maintained best-effort for fast reads; the stage_outputs
// table remains the source of truth. Stage 5 has no snapshot column because
// its result fans out into opportunity_cards rows instead.
type Run struct {
	ID                 string     `json:"id"`
	UserID             string     `json:"user_id"`
	DocumentName       string     `json:"document_name"`
	DocumentURL        string     `json:"document_url"`
	CompanyName        string     `json:"company_name"`
	Status             string     `json:"status"`
	CreatedAt          time.Time  `json:"created_at"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
	Duration           *int       `json:"duration,omitempty"`
	Stage1Output       *string    `json:"stage1_output,omitempty"`
	Stage2Output       *string    `json:"stage2_output,omitempty"`
	Stage3Output       *string    `json:"stage3_output,omitempty"`
	Stage4Output       *string    `json:"stage4_output,omitempty"`
	FullReportMarkdown *string    `json:"full_report_markdown,omitempty"`
}

// RunInput represents input for creating a run record.
type RunInput struct {
	ID           string
	UserID       string
	DocumentName string
	DocumentURL  string
	CompanyName  string
}
