package server

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/jonathan/board-of-ideators/internal/db"
	"github.com/jonathan/board-of-ideators/internal/schemas"
	"github.com/jonathan/board-of-ideators/internal/types"
)

// webhookSecretHeader carries the shared secret on every inbound webhook.
const webhookSecretHeader = "X-Webhook-Secret"

// authenticateWebhook verifies the shared secret header. An unconfigured
// server secret is a misconfiguration, not an auth failure, and is reported
// (and logged) distinctly so operators triage it as an operational issue.
func (s *Server) authenticateWebhook(r *http.Request, component string) error {
	if s.webhookSecret == "" {
		log.Printf("[%s] WEBHOOK_SECRET environment variable is not set", component)
		return &ErrServerMisconfigured{Setting: "WEBHOOK_SECRET"}
	}

	provided := r.Header.Get(webhookSecretHeader)
	if subtle.ConstantTimeCompare([]byte(provided), []byte(s.webhookSecret)) != 1 {
		log.Printf("[%s] Authentication failed: invalid secret", component)
		return &ErrWebhookUnauthorized{}
	}
	return nil
}

// StageUpdateResponse is the stage-update webhook's success body.
type StageUpdateResponse struct {
	Success     bool              `json:"success"`
	StageOutput StageOutputDigest `json:"stageOutput"`
}

// StageOutputDigest is the persisted stage record echoed back to the pipeline.
type StageOutputDigest struct {
	ID          string `json:"id"`
	StageNumber int    `json:"stageNumber"`
	Status      string `json:"status"`
}

// handleStageUpdate ingests an asynchronous stage-progress report from the
// external pipeline and reconciles it into storage.
//
// POST /pipeline/{runId}/stage-update
//
// The upsert is keyed on (runId, stageNumber), so re-reported stages (pipeline
// retries, duplicate deliveries) are idempotent. This handler never
// transitions the run to COMPLETED: that transition belongs exclusively to
// the completion webhook, which must persist opportunity cards first. Marking
// COMPLETED here would let the completion webhook observe a terminal run and
// skip card persistence.
func (s *Server) handleStageUpdate(w http.ResponseWriter, r *http.Request) {
	if err := s.authenticateWebhook(r, "StageUpdate"); err != nil {
		s.errorResponse(w, HTTPStatus(err), webhookErrorMessage(err))
		return
	}

	runID := r.PathValue("runId")
	if !types.ValidRunID(runID) {
		s.errorResponse(w, http.StatusBadRequest, "Invalid run ID format")
		return
	}

	var req types.StageUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid payload: "+err.Error())
		return
	}

	log.Printf("[StageUpdate] Updating run %s stage %d to %s", runID, req.StageNumber, req.Status)

	// The trigger endpoint persists the run before the pipeline can report,
	// so a missing run is a genuine 404, never a creation race.
	run, err := s.store.GetRun(r.Context(), runID)
	if err != nil {
		log.Printf("[StageUpdate] Database error: %v", err)
		s.errorResponse(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if run == nil {
		log.Printf("[StageUpdate] Run not found: %s", runID)
		s.errorResponse(w, http.StatusNotFound, "Run not found")
		return
	}

	// A terminal stage report carries a completion time even when the
	// pipeline omitted one.
	var completedAt *time.Time
	if req.Status == db.StageStatusCompleted || req.Status == db.StageStatusFailed {
		if completedAt = req.CompletedAtTime(); completedAt == nil {
			now := time.Now().UTC()
			completedAt = &now
		}
	}

	stageOutput, err := s.store.UpsertStageOutput(r.Context(), runID, &db.StageOutputInput{
		StageNumber: req.StageNumber,
		StageName:   req.StageName,
		Status:      req.Status,
		Output:      req.Output,
		CompletedAt: completedAt,
	})
	if err != nil {
		log.Printf("[StageUpdate] Failed to upsert stage output: %v", err)
		s.errorResponse(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	// Mirror stages 1-4 onto the run's snapshot column. Stage 5 fans out into
	// opportunity cards instead. The stage_outputs row is the source of
	// truth, so a failed mirror write is logged and the request still
	// succeeds.
	if req.StageNumber >= 1 && req.StageNumber <= 4 && req.Output != "" {
		if err := s.store.SetStageSnapshot(r.Context(), runID, req.StageNumber, req.Output); err != nil {
			log.Printf("[StageUpdate] Snapshot mirror failed for stage %d: %v", req.StageNumber, err)
		}
	}

	// Failure is terminal and propagates immediately, without waiting for
	// other stages.
	if req.Status == db.StageStatusFailed {
		if err := s.store.MarkRunFailed(r.Context(), runID, time.Now().UTC()); err != nil {
			log.Printf("[StageUpdate] Failed to mark run failed: %v", err)
			s.errorResponse(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		log.Printf("[StageUpdate] Pipeline %s marked as FAILED", runID)
	}

	s.jsonResponse(w, http.StatusOK, StageUpdateResponse{
		Success: true,
		StageOutput: StageOutputDigest{
			ID:          stageOutput.ID.String(),
			StageNumber: stageOutput.StageNumber,
			Status:      stageOutput.Status,
		},
	})
}

// handleInit creates the run record for externally-initiated runs (the
// pipeline was started outside the web trigger and generated its own id).
//
// POST /pipeline/init
//
// Idempotent: both the create and already-exists paths return 200, so the
// initiator can safely call it before every report.
func (s *Server) handleInit(w http.ResponseWriter, r *http.Request) {
	if err := s.authenticateWebhook(r, "PipelineInit"); err != nil {
		s.errorResponse(w, HTTPStatus(err), webhookErrorMessage(err))
		return
	}

	var req types.InitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid payload: "+err.Error())
		return
	}

	documentName := req.DocumentName
	if documentName == "" {
		documentName = "document.pdf"
	}

	created, err := s.store.InitRun(r.Context(), &db.RunInput{
		ID:           req.RunID,
		UserID:       "system-backend",
		DocumentName: documentName,
		DocumentURL:  req.BlobURL,
		CompanyName:  req.BrandName,
	})
	if err != nil {
		log.Printf("[PipelineInit] Failed to init run: %v", err)
		s.errorResponse(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	if created {
		log.Printf("[PipelineInit] Created run record: %s", req.RunID)
	} else {
		log.Printf("[PipelineInit] Run %s already exists - skipping creation", req.RunID)
	}

	s.jsonResponse(w, http.StatusOK, map[string]any{
		"success": true,
		"runId":   req.RunID,
		"status":  db.RunStatusProcessing,
	})
}

// CompleteResponse is the completion webhook's success body.
type CompleteResponse struct {
	Success            bool `json:"success"`
	CardsCreated       int  `json:"cardsCreated"`
	TotalOpportunities int  `json:"totalOpportunities"`
}

// handleComplete finalizes a run: persists opportunity cards, stores the full
// report, and marks the run COMPLETED.
//
// POST /pipeline/{runId}/complete
//
// Cards are persisted before the status flips to COMPLETED so no reader can
// observe a completed run with missing cards. Redelivery is safe: the card
// insert skips duplicates and the status update is guarded.
func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	if err := s.authenticateWebhook(r, "Webhook"); err != nil {
		s.errorResponse(w, HTTPStatus(err), webhookErrorMessage(err))
		return
	}

	runID := r.PathValue("runId")
	if !types.ValidRunID(runID) {
		s.errorResponse(w, http.StatusBadRequest, "Invalid run ID format")
		return
	}

	var req types.CompleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid payload: "+err.Error())
		return
	}

	// Schema-check the opportunities array so malformed cards are rejected
	// with field-level errors before any write happens.
	if raw, err := json.Marshal(req.Opportunities); err == nil {
		if err := schemas.ValidateOpportunities(string(raw)); err != nil {
			var ve *schemas.ValidationError
			if errors.As(err, &ve) {
				s.errorResponse(w, http.StatusBadRequest, "Invalid opportunities: "+ve.Error())
				return
			}
			log.Printf("[Webhook] Opportunity schema error: %v", err)
		}
	}

	log.Printf("[Webhook] Received completion for run %s with %d opportunities", runID, len(req.Opportunities))

	run, err := s.store.GetRun(r.Context(), runID)
	if err != nil {
		log.Printf("[Webhook] Database error: %v", err)
		s.errorResponse(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if run == nil {
		log.Printf("[Webhook] Run not found: %s", runID)
		s.errorResponse(w, http.StatusNotFound, "Run not found")
		return
	}

	if run.Status == db.RunStatusCompleted {
		log.Printf("[Webhook] Run %s already completed (idempotent)", runID)
		s.jsonResponse(w, http.StatusOK, map[string]any{
			"success": true,
			"message": "Run already completed",
		})
		return
	}

	cards := make([]db.OpportunityCardInput, 0, len(req.Opportunities))
	for i, opp := range req.Opportunities {
		number := opp.Number
		if number == 0 {
			number = i + 1
		}
		cards = append(cards, db.OpportunityCardInput{
			Number:  number,
			Title:   opp.Title,
			Content: opp.Body(),
		})
	}

	created, err := s.store.CreateOpportunityCards(r.Context(), runID, cards)
	if err != nil {
		log.Printf("[Webhook] Failed to create opportunity cards: %v", err)
		s.errorResponse(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	log.Printf("[Webhook] Created %d/%d opportunity cards", created, len(req.Opportunities))

	completedAt := time.Now().UTC()
	if t, err := time.Parse(time.RFC3339, req.CompletedAt); req.CompletedAt != "" && err == nil {
		completedAt = t
	}

	var fullReport *string
	if req.FullReportMarkdown != "" {
		fullReport = &req.FullReportMarkdown
	}

	if err := s.store.CompleteRun(r.Context(), runID, completedAt, req.Duration, fullReport); err != nil {
		log.Printf("[Webhook] Failed to update run status: %v", err)
		s.errorResponse(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	log.Printf("[Webhook] Pipeline %s completed: %d cards saved", runID, created)

	s.jsonResponse(w, http.StatusOK, CompleteResponse{
		Success:            true,
		CardsCreated:       created,
		TotalOpportunities: len(req.Opportunities),
	})
}

// webhookErrorMessage returns the generic client-facing message for a webhook
// auth or config error, keeping internal detail out of responses.
func webhookErrorMessage(err error) string {
	switch err.(type) {
	case *ErrServerMisconfigured:
		return "Server configuration error"
	case *ErrWebhookUnauthorized:
		return "Unauthorized"
	default:
		return "Internal server error"
	}
}
