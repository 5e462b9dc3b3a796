package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/board-of-ideators/internal/backend"
	"github.com/jonathan/board-of-ideators/internal/db"
	"github.com/jonathan/board-of-ideators/internal/server/middleware"
	"github.com/jonathan/board-of-ideators/internal/types"
)

var companyIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// uploadPrefixPattern matches the millisecond-timestamp prefix that the
// upload service prepends to stored blob names.
var uploadPrefixPattern = regexp.MustCompile(`^\d{13}-`)

// TriggerResponse acknowledges a pipeline run without waiting for it.
type TriggerResponse struct {
	RunID  string `json:"run_id"`
	Status string `json:"status"`
}

// handleTriggerRun starts an analysis run against the external pipeline.
//
// POST /pipeline/run
//
// The run row is persisted before the pipeline is contacted, so webhooks that
// arrive immediately after the backend accepts the job always find their run.
// A backend failure marks the run FAILED best-effort and maps to 504/503/500
// without leaking upstream response bodies.
func (s *Server) handleTriggerRun(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserID(r)
	if err != nil {
		s.errorResponse(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	companyID, companyName, err := companyContext(r)
	if err != nil {
		s.errorResponse(w, http.StatusUnauthorized, "No company selected")
		return
	}
	if !companyIDPattern.MatchString(companyID) {
		s.errorResponse(w, http.StatusBadRequest, "Invalid company identifier")
		return
	}

	var req types.TriggerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		s.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	blobURL, err := url.Parse(req.BlobURL)
	if err != nil || (blobURL.Scheme != "http" && blobURL.Scheme != "https") {
		s.errorResponse(w, http.StatusBadRequest, "blob_url must be an http(s) URL")
		return
	}

	runID := newRunID()
	input := db.RunInput{
		ID:           runID,
		UserID:       userID,
		DocumentName: documentNameFromBlobURL(blobURL),
		DocumentURL:  req.BlobURL,
		CompanyName:  companyName,
	}
	if _, err := s.store.CreateRun(r.Context(), &input); err != nil {
		log.Printf("[Trigger] Failed to create run: %v", err)
		s.errorResponse(w, http.StatusInternalServerError, "Failed to create run")
		return
	}

	if _, err := s.pipeline.Run(r.Context(), req.BlobURL, companyID, runID); err != nil {
		log.Printf("[Trigger] Pipeline dispatch failed for run %s: %v", runID, err)
		if markErr := s.store.MarkRunFailed(r.Context(), runID, time.Now()); markErr != nil {
			log.Printf("[Trigger] Failed to mark run %s as failed: %v", runID, markErr)
		}
		switch {
		case errors.Is(err, backend.ErrTimeout):
			s.errorResponse(w, http.StatusGatewayTimeout, "Pipeline timed out accepting the run")
		case errors.Is(err, backend.ErrUnavailable):
			s.errorResponse(w, http.StatusServiceUnavailable, "Pipeline is unavailable")
		default:
			s.errorResponse(w, http.StatusInternalServerError, "Failed to start pipeline run")
		}
		return
	}

	log.Printf("[Trigger] Started run %s for user %s (company %s)", runID, userID, companyID)
	s.jsonResponse(w, http.StatusOK, TriggerResponse{
		RunID:  runID,
		Status: db.RunStatusProcessing,
	})
}

// handleListRuns returns the caller's recent run history, newest first.
//
// GET /pipeline/runs
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserID(r)
	if err != nil {
		s.errorResponse(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 200 {
			s.errorResponse(w, http.StatusBadRequest, "limit must be between 1 and 200")
			return
		}
		limit = n
	}

	runs, err := s.store.ListRuns(r.Context(), userID, limit)
	if err != nil {
		log.Printf("[Runs] Database error: %v", err)
		s.errorResponse(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if runs == nil {
		runs = []db.Run{}
	}

	s.jsonResponse(w, http.StatusOK, map[string]any{"runs": runs})
}

// companyContext reads the active company from the session cookies set at
// company selection time.
func companyContext(r *http.Request) (id, name string, err error) {
	idCookie, err := r.Cookie("company_id")
	if err != nil || idCookie.Value == "" {
		return "", "", errors.New("company_id cookie missing")
	}
	nameCookie, err := r.Cookie("company_name")
	if err != nil || nameCookie.Value == "" {
		return "", "", errors.New("company_name cookie missing")
	}
	name, err = url.QueryUnescape(nameCookie.Value)
	if err != nil {
		name = nameCookie.Value
	}
	return idCookie.Value, name, nil
}

// newRunID generates a run identifier that sorts by creation time and stays
// within the [a-zA-Z0-9-] charset accepted by the webhook routes.
func newRunID() string {
	return "run-" + strconv.FormatInt(time.Now().UnixMilli(), 10) + "-" + uuid.NewString()[:8]
}

// documentNameFromBlobURL recovers the original filename from the stored
// blob path, stripping the upload timestamp prefix and URL encoding.
func documentNameFromBlobURL(blobURL *url.URL) string {
	name := path.Base(blobURL.Path)
	if decoded, err := url.PathUnescape(name); err == nil {
		name = decoded
	}
	name = uploadPrefixPattern.ReplaceAllString(name, "")
	if name == "" || name == "." || name == "/" {
		return "document.pdf"
	}
	return name
}
