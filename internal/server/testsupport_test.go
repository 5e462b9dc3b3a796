package server

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/board-of-ideators/internal/backend"
	"github.com/jonathan/board-of-ideators/internal/db"
)

// fakeStore is an in-memory Store with the same conflict semantics as the
// SQL layer (idempotent upserts, guarded completion).
type fakeStore struct {
	mu           sync.Mutex
	runs         map[string]*db.Run
	stageOutputs map[string]map[int]db.StageOutput
	cards        map[string][]db.OpportunityCard

	failMirror error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		runs:         make(map[string]*db.Run),
		stageOutputs: make(map[string]map[int]db.StageOutput),
		cards:        make(map[string][]db.OpportunityCard),
	}
}

func (f *fakeStore) CreateRun(_ context.Context, input *db.RunInput) (*db.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.runs[input.ID]; exists {
		return nil, errors.New("duplicate run id")
	}
	run := &db.Run{
		ID:           input.ID,
		UserID:       input.UserID,
		DocumentName: input.DocumentName,
		DocumentURL:  input.DocumentURL,
		CompanyName:  input.CompanyName,
		Status:       db.RunStatusProcessing,
		CreatedAt:    time.Now().UTC(),
	}
	f.runs[input.ID] = run
	return run, nil
}

func (f *fakeStore) InitRun(_ context.Context, input *db.RunInput) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.runs[input.ID]; exists {
		return false, nil
	}
	f.runs[input.ID] = &db.Run{
		ID:           input.ID,
		UserID:       input.UserID,
		DocumentName: input.DocumentName,
		DocumentURL:  input.DocumentURL,
		CompanyName:  input.CompanyName,
		Status:       db.RunStatusProcessing,
		CreatedAt:    time.Now().UTC(),
	}
	return true, nil
}

func (f *fakeStore) GetRun(_ context.Context, runID string) (*db.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	run, ok := f.runs[runID]
	if !ok {
		return nil, nil
	}
	copied := *run
	return &copied, nil
}

func (f *fakeStore) ListRuns(_ context.Context, userID string, limit int) ([]db.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var runs []db.Run
	for _, run := range f.runs {
		if run.UserID != userID {
			continue
		}
		runs = append(runs, *run)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].CreatedAt.After(runs[j].CreatedAt) })
	if len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

func (f *fakeStore) MarkRunFailed(_ context.Context, runID string, completedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	run, ok := f.runs[runID]
	if !ok {
		return errors.New("run not found")
	}
	if run.Status != db.RunStatusProcessing {
		return nil
	}
	run.Status = db.RunStatusFailed
	run.CompletedAt = &completedAt
	return nil
}

func (f *fakeStore) CompleteRun(_ context.Context, runID string, completedAt time.Time, duration *int, fullReport *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	run, ok := f.runs[runID]
	if !ok {
		return errors.New("run not found")
	}
	if run.Status == db.RunStatusCompleted {
		return nil
	}
	run.Status = db.RunStatusCompleted
	run.CompletedAt = &completedAt
	run.Duration = duration
	if fullReport != nil {
		run.FullReportMarkdown = fullReport
	}
	return nil
}

func (f *fakeStore) SetStageSnapshot(_ context.Context, runID string, stageNumber int, output string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failMirror != nil {
		return f.failMirror
	}
	run, ok := f.runs[runID]
	if !ok {
		return errors.New("run not found")
	}
	switch stageNumber {
	case 1:
		run.Stage1Output = &output
	case 2:
		run.Stage2Output = &output
	case 3:
		run.Stage3Output = &output
	case 4:
		run.Stage4Output = &output
	default:
		return errors.New("invalid stage number")
	}
	return nil
}

func (f *fakeStore) UpsertStageOutput(_ context.Context, runID string, input *db.StageOutputInput) (*db.StageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stages, ok := f.stageOutputs[runID]
	if !ok {
		stages = make(map[int]db.StageOutput)
		f.stageOutputs[runID] = stages
	}
	out, exists := stages[input.StageNumber]
	if !exists {
		out = db.StageOutput{
			ID:          uuid.New(),
			RunID:       runID,
			StageNumber: input.StageNumber,
			StageName:   input.StageName,
		}
	}
	out.Status = input.Status
	out.Output = input.Output
	out.CompletedAt = input.CompletedAt
	stages[input.StageNumber] = out
	return &out, nil
}

func (f *fakeStore) ListStageOutputs(_ context.Context, runID string) ([]db.StageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var outs []db.StageOutput
	for _, out := range f.stageOutputs[runID] {
		outs = append(outs, out)
	}
	sort.Slice(outs, func(i, j int) bool { return outs[i].StageNumber < outs[j].StageNumber })
	return outs, nil
}

func (f *fakeStore) CreateOpportunityCards(_ context.Context, runID string, inputs []db.OpportunityCardInput) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing := make(map[int]bool)
	for _, card := range f.cards[runID] {
		existing[card.Number] = true
	}
	created := 0
	for _, input := range inputs {
		if existing[input.Number] {
			continue
		}
		f.cards[runID] = append(f.cards[runID], db.OpportunityCard{
			ID:      uuid.New(),
			RunID:   runID,
			Number:  input.Number,
			Title:   input.Title,
			Content: input.Content,
		})
		existing[input.Number] = true
		created++
	}
	return created, nil
}

func (f *fakeStore) ListOpportunityCards(_ context.Context, runID string) ([]db.OpportunityCard, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cards := append([]db.OpportunityCard(nil), f.cards[runID]...)
	sort.Slice(cards, func(i, j int) bool { return cards[i].Number < cards[j].Number })
	return cards, nil
}

func (f *fakeStore) SetCardStarred(_ context.Context, cardID uuid.UUID, starred bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for runID, cards := range f.cards {
		for i := range cards {
			if cards[i].ID == cardID {
				f.cards[runID][i].IsStarred = starred
				return nil
			}
		}
	}
	return errors.New("card not found")
}

// fakePipeline records trigger calls and returns a configured error.
type fakePipeline struct {
	mu     sync.Mutex
	calls  []string
	err    error
	result *backend.RunResponse
}

func (f *fakePipeline) Run(_ context.Context, _, _, runID string) (*backend.RunResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, runID)
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &backend.RunResponse{RunID: runID, Status: "started"}, nil
}

// newTestServer wires a Server around fakes, skipping database and JWT setup.
func newTestServer(store Store, pipeline PipelineRunner) *Server {
	return &Server{
		store:         store,
		pipeline:      pipeline,
		webhookSecret: "test-secret",
	}
}
