package reports

import (
	"bytes"
	"testing"
	"time"

	"github.com/mroshb/debate_hub/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestWorkbook_MatchesAndResults(t *testing.T) {
	created := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	started := created.Add(time.Minute)
	ended := started.Add(10 * time.Minute)
	winner := "A"

	wb := NewWorkbook()
	defer wb.Close()

	require.NoError(t, wb.AddMatches([]models.Match{
		{ID: 1, UserAID: "A", UserBID: "B", DebateType: models.DebateTypeProfessional, Mode: models.ModeText, Score: 0.9, Status: models.MatchStatusPending, CreatedAt: created},
	}))
	require.NoError(t, wb.AddResults([]models.DebateSessionRecord{
		{ID: "s1", Topic: "Cities", DebateType: models.DebateTypeProfessional, Mode: models.ModeText, WinnerID: &winner, Summary: "Winner is A (pro) with score 3.", StartedAt: &started, EndedAt: &ended},
		{ID: "s2", DebateType: models.DebateTypeUnprofessional, Mode: models.ModeAudio},
	}))

	var buf bytes.Buffer
	_, err := wb.WriteTo(&buf)
	require.NoError(t, err)

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{MatchesSheet, ResultsSheet}, f.GetSheetList())

	matches, err := f.GetRows(MatchesSheet)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "User A", matches[0][1])
	assert.Equal(t, []string{"1", "A", "B", "professional", "text", "", "0.9", "PENDING", "2024-03-01 09:30:00"}, matches[1])

	results, err := f.GetRows(ResultsSheet)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "A", results[1][4])
	assert.Equal(t, "10", results[1][8])
	assert.Equal(t, "draw", results[2][4])
}
