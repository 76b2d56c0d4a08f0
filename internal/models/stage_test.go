package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStageKindTerminal(t *testing.T) {
	require.True(t, StageKindTerminalAccept.Terminal())
	require.True(t, StageKindTerminalReject.Terminal())
	require.False(t, StageKindScreening.Terminal())
	require.False(t, StageKindInterview.Terminal())
	require.False(t, StageKindOffer.Terminal())
}

func TestStageKindValid(t *testing.T) {
	require.True(t, StageKindAssessment.Valid())
	require.False(t, StageKind("FINAL_ROUND").Valid())
	require.False(t, StageKind("").Valid())
}

func TestStageSequenceFirstSkipsInactive(t *testing.T) {
	sequence := StageSequence{
		{ID: "stage-1", Ordinal: 1, Active: false},
		{ID: "stage-2", Ordinal: 2, Active: true},
		{ID: "stage-3", Ordinal: 3, Active: true},
	}
	first := sequence.First()
	require.NotNil(t, first)
	require.Equal(t, "stage-2", first.ID)

	require.Nil(t, StageSequence{}.First())
}

func TestStageSequenceFind(t *testing.T) {
	sequence := StageSequence{
		{ID: "stage-1"},
		{ID: "stage-2"},
	}
	require.NotNil(t, sequence.Find("stage-2"))
	require.Nil(t, sequence.Find("stage-9"))
}
