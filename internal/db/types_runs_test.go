package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsTerminalStatus(t *testing.T) {
	assert.False(t, IsTerminalStatus(RunStatusProcessing))
	assert.True(t, IsTerminalStatus(RunStatusCompleted))
	assert.True(t, IsTerminalStatus(RunStatusFailed))
	assert.True(t, IsTerminalStatus(RunStatusCancelled))
	assert.False(t, IsTerminalStatus("UNKNOWN"))
}

func TestStageNames(t *testing.T) {
	assert.Len(t, StageNames, 5)
	assert.Equal(t, "Input Processing", StageNames[StageInputProcessing])
	assert.Equal(t, "Opportunity Generation", StageNames[StageOpportunityGeneration])
}
