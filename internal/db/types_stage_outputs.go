package db

import (
	"time"

	"github.com/google/uuid"
)

// StageStatus constants for per-stage progress reports.
const (
	StageStatusProcessing = "PROCESSING"
	StageStatusCompleted  = "COMPLETED"
	StageStatusFailed     = "FAILED"
)

// Stage numbers of the five pipeline phases.
const (
	StageInputProcessing        = 1
	StageSignalAmplification    = 2
	StageGeneralTranslation     = 3
	StageBrandContextualization = 4
	StageOpportunityGeneration  = 5
)

// StageNames maps stage numbers to the names the external pipeline reports.
var StageNames = map[int]string{
	1: "Input Processing",
	2: "Signal Amplification",
	3: "General Translation",
	4: "Brand Contextualization",
	5: "Opportunity Generation",
}

// StageOutput is the progress record for one stage of one run. At most one
// row exists per (run_id, stage_number); writes go through an upsert because
// the external pipeline may re-report a stage on retry.
//
// Output is an opaque string (JSON for structured stages, markdown for
// free-form ones); interpretation happens at the status projection boundary.
type StageOutput struct {
	ID          uuid.UUID  `json:"id"`
	RunID       string     `json:"run_id"`
	StageNumber int        `json:"stage_number"`
	StageName   string     `json:"stage_name"`
	Status      string     `json:"status"`
	Output      string     `json:"output"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// StageOutputInput represents input for upserting a stage output.
type StageOutputInput struct {
	StageNumber int
	StageName   string
	Status      string
	Output      string
	CompletedAt *time.Time
}
