package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidRunID(t *testing.T) {
	valid := []string{
		"run-1716200000000-a1b2c3d4",
		"RUN-ABC",
		"123",
	}
	for _, id := range valid {
		assert.True(t, ValidRunID(id), "expected %q to be valid", id)
	}

	invalid := []string{
		"",
		"run_1",
		"run 1",
		"run-1; DROP TABLE runs",
		"run-1/../other",
		"run-1%20x",
	}
	for _, id := range invalid {
		assert.False(t, ValidRunID(id), "expected %q to be invalid", id)
	}
}

func TestStageUpdateRequestValidate(t *testing.T) {
	base := func() StageUpdateRequest {
		return StageUpdateRequest{
			StageNumber: 2,
			StageName:   "Signal Amplification",
			Status:      "PROCESSING",
		}
	}

	t.Run("valid", func(t *testing.T) {
		req := base()
		assert.NoError(t, req.Validate())
	})

	t.Run("valid with completedAt", func(t *testing.T) {
		req := base()
		req.Status = "COMPLETED"
		req.CompletedAt = "2026-05-20T10:30:00Z"
		require.NoError(t, req.Validate())

		parsed := req.CompletedAtTime()
		require.NotNil(t, parsed)
		assert.Equal(t, 2026, parsed.Year())
	})

	t.Run("stage number zero", func(t *testing.T) {
		req := base()
		req.StageNumber = 0
		assert.Error(t, req.Validate())
	})

	t.Run("stage number too large", func(t *testing.T) {
		req := base()
		req.StageNumber = 6
		assert.Error(t, req.Validate())
	})

	t.Run("unknown status", func(t *testing.T) {
		req := base()
		req.Status = "DONE"
		assert.Error(t, req.Validate())
	})

	t.Run("malformed completedAt", func(t *testing.T) {
		req := base()
		req.CompletedAt = "May 20th"
		err := req.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "completedAt")
	})
}

func TestCompleteOpportunityBody(t *testing.T) {
	assert.Equal(t, "full", (&CompleteOpportunity{
		FullContent: "full", Markdown: "md", Content: "c",
	}).Body())
	assert.Equal(t, "md", (&CompleteOpportunity{
		Markdown: "md", Content: "c",
	}).Body())
	assert.Equal(t, "c", (&CompleteOpportunity{Content: "c"}).Body())
	assert.Equal(t, "", (&CompleteOpportunity{Title: "only title"}).Body())
}

func TestCompleteRequestValidate(t *testing.T) {
	t.Run("requires at least one opportunity", func(t *testing.T) {
		req := CompleteRequest{}
		assert.Error(t, req.Validate())

		req.Opportunities = []CompleteOpportunity{}
		assert.Error(t, req.Validate())
	})

	t.Run("valid", func(t *testing.T) {
		req := CompleteRequest{
			Opportunities: []CompleteOpportunity{{Title: "Spark", Markdown: "# Spark"}},
			CompletedAt:   time.Now().UTC().Format(time.RFC3339),
		}
		assert.NoError(t, req.Validate())
	})
}

func TestInitRequestValidate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		req := InitRequest{
			RunID:     "run-ext-1",
			BlobURL:   "https://blob.example.com/doc.pdf",
			BrandName: "Acme",
		}
		assert.NoError(t, req.Validate())
	})

	t.Run("bad run id charset", func(t *testing.T) {
		req := InitRequest{
			RunID:     "run ext 1",
			BlobURL:   "https://blob.example.com/doc.pdf",
			BrandName: "Acme",
		}
		assert.Error(t, req.Validate())
	})

	t.Run("blob url required", func(t *testing.T) {
		req := InitRequest{RunID: "run-1", BrandName: "Acme"}
		assert.Error(t, req.Validate())
	})
}

func TestTriggerRequestValidate(t *testing.T) {
	assert.NoError(t, (&TriggerRequest{
		BlobURL:  "https://blob.example.com/doc.pdf",
		UploadID: "upload-1",
	}).Validate())

	assert.Error(t, (&TriggerRequest{UploadID: "upload-1"}).Validate())
	assert.Error(t, (&TriggerRequest{BlobURL: "not a url", UploadID: "u"}).Validate())
	assert.Error(t, (&TriggerRequest{BlobURL: "https://x/doc.pdf"}).Validate())
}
