package server

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/jonathan/board-of-ideators/internal/db"
	"github.com/jonathan/board-of-ideators/internal/types"
)

// totalStages is the number of phases the external pipeline reports.
const totalStages = 5

// StatusResponse is the status projection returned to polling clients.
type StatusResponse struct {
	RunID                string                     `json:"run_id"`
	Status               string                     `json:"status"`
	CurrentStage         int                        `json:"current_stage"`
	Stages               map[string]StageProjection `json:"stages"`
	BrandName            string                     `json:"brand_name"`
	PartialOpportunities []PartialOpportunity       `json:"partialOpportunities,omitempty"`
	HasFullReport        bool                       `json:"hasFullReport"`
}

// StageProjection is one slot of the fixed-shape stages map.
type StageProjection struct {
	Status      string  `json:"status"`
	Output      any     `json:"output,omitempty"`
	CompletedAt *string `json:"completed_at,omitempty"`
}

// PartialOpportunity is a summary of a card surfaced while stage 5 streams in.
type PartialOpportunity struct {
	ID         string `json:"id"`
	Number     int    `json:"number"`
	Title      string `json:"title"`
	Summary    string `json:"summary"`
	IsComplete bool   `json:"isComplete"`
}

// handleStatus assembles the current run state from persisted stage records.
//
// GET /pipeline/{runId}/status
//
// The stages map always contains keys "1".."5" so clients receive a fixed
// shape regardless of how many stages have reported; unreported slots are
// {"status":"pending"}. current_stage is the highest stage number with any
// persisted data (0 if none) - NOT the stage currently running - and must be
// interpreted alongside status. Read-only.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("runId")
	if !types.ValidRunID(runID) {
		s.errorResponse(w, http.StatusBadRequest, "Invalid run ID format")
		return
	}

	run, err := s.store.GetRun(r.Context(), runID)
	if err != nil {
		log.Printf("[Status] Database error: %v", err)
		s.errorResponse(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if run == nil {
		s.errorResponse(w, http.StatusNotFound, "Run ID not found")
		return
	}

	outputs, err := s.store.ListStageOutputs(r.Context(), runID)
	if err != nil {
		log.Printf("[Status] Database error: %v", err)
		s.errorResponse(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	stages := make(map[string]StageProjection, totalStages)
	for i := 1; i <= totalStages; i++ {
		stages[strconv.Itoa(i)] = StageProjection{Status: "pending"}
	}

	currentStage := 0
	stage5Reported := false
	for _, out := range outputs {
		var completedAt *string
		if out.CompletedAt != nil {
			ts := out.CompletedAt.UTC().Format(time.RFC3339)
			completedAt = &ts
		}
		stages[strconv.Itoa(out.StageNumber)] = StageProjection{
			Status:      strings.ToLower(out.Status),
			Output:      parseStageOutput(out.Output),
			CompletedAt: completedAt,
		}
		if out.StageNumber > currentStage {
			currentStage = out.StageNumber
		}
		if out.StageNumber == totalStages {
			stage5Reported = true
		}
	}

	resp := StatusResponse{
		RunID:         run.ID,
		Status:        strings.ToLower(run.Status),
		CurrentStage:  currentStage,
		Stages:        stages,
		BrandName:     run.CompanyName,
		HasFullReport: run.FullReportMarkdown != nil && *run.FullReportMarkdown != "",
	}

	// Surface card summaries as soon as stage 5 has a row, so the client can
	// preview sparks while the final stage streams in.
	if stage5Reported {
		cards, err := s.store.ListOpportunityCards(r.Context(), runID)
		if err != nil {
			log.Printf("[Status] Failed to list opportunity cards: %v", err)
		} else if len(cards) > 0 {
			complete := run.Status == db.RunStatusCompleted
			resp.PartialOpportunities = make([]PartialOpportunity, 0, len(cards))
			for _, card := range cards {
				resp.PartialOpportunities = append(resp.PartialOpportunities, PartialOpportunity{
					ID:         card.ID.String(),
					Number:     card.Number,
					Title:      card.Title,
					Summary:    summarize(card.Content, 200),
					IsComplete: complete,
				})
			}
		}
	}

	s.jsonResponse(w, http.StatusOK, resp)
}

// parseStageOutput opportunistically decodes a stage output as JSON, falling
// back to the raw string. Stage outputs are sometimes structured JSON and
// sometimes free-form markdown; both travel in the same field.
func parseStageOutput(output string) any {
	if output == "" {
		return nil
	}
	var parsed any
	if err := json.Unmarshal([]byte(output), &parsed); err != nil {
		return output
	}
	return parsed
}

// summarize truncates markdown content to a preview of at most n bytes,
// cutting on a rune boundary so the result stays valid UTF-8.
func summarize(content string, n int) string {
	if len(content) <= n {
		return content
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(content[cut]) {
		cut--
	}
	return content[:cut] + "..."
}

// OpportunityCardsResponse is the body of the card listing endpoint.
type OpportunityCardsResponse struct {
	RunID            string               `json:"run_id"`
	OpportunityCards []db.OpportunityCard `json:"opportunityCards"`
}

// handleListOpportunityCards returns all cards for a completed run.
//
// GET /pipeline/{runId}/opportunity-cards
func (s *Server) handleListOpportunityCards(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("runId")
	if !types.ValidRunID(runID) {
		s.errorResponse(w, http.StatusBadRequest, "Invalid run ID format")
		return
	}

	run, err := s.store.GetRun(r.Context(), runID)
	if err != nil {
		log.Printf("[Cards] Database error: %v", err)
		s.errorResponse(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if run == nil {
		s.errorResponse(w, http.StatusNotFound, "Run ID not found")
		return
	}

	cards, err := s.store.ListOpportunityCards(r.Context(), runID)
	if err != nil {
		log.Printf("[Cards] Database error: %v", err)
		s.errorResponse(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if cards == nil {
		cards = []db.OpportunityCard{}
	}

	s.jsonResponse(w, http.StatusOK, OpportunityCardsResponse{
		RunID:            runID,
		OpportunityCards: cards,
	})
}

// handleStarCard toggles the starred flag on a card.
//
// PATCH /pipeline/{runId}/opportunity-cards/{cardId}/star
func (s *Server) handleStarCard(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("runId")
	if !types.ValidRunID(runID) {
		s.errorResponse(w, http.StatusBadRequest, "Invalid run ID format")
		return
	}

	cardID, err := uuid.Parse(r.PathValue("cardId"))
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid card ID format")
		return
	}

	var req struct {
		Starred bool `json:"starred"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if err := s.store.SetCardStarred(r.Context(), cardID, req.Starred); err != nil {
		s.errorResponse(w, http.StatusNotFound, "Card not found")
		return
	}

	s.jsonResponse(w, http.StatusOK, map[string]any{
		"success": true,
		"cardId":  cardID.String(),
		"starred": req.Starred,
	})
}
