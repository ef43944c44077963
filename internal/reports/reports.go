// Package reports builds xlsx exports of match history and debate results.
package reports

import (
	"fmt"
	"io"
	"time"

	"github.com/mroshb/debate_hub/internal/models"
	"github.com/xuri/excelize/v2"
)

const (
	MatchesSheet = "Matches"
	ResultsSheet = "Results"

	timeLayout   = "2006-01-02 15:04:05"
	defaultSheet = "Sheet1"
)

var (
	matchHeader  = []interface{}{"ID", "User A", "User B", "Debate Type", "Mode", "Language", "Score", "Status", "Created At"}
	resultHeader = []interface{}{"Session", "Topic", "Debate Type", "Mode", "Winner", "Summary", "Started At", "Ended At", "Duration (min)"}
)

// Workbook collects sheets before writing them out.
type Workbook struct {
	f *excelize.File
}

func NewWorkbook() *Workbook {
	return &Workbook{f: excelize.NewFile()}
}

// AddMatches writes the match history sheet.
func (w *Workbook) AddMatches(matches []models.Match) error {
	rows := make([][]interface{}, 0, len(matches))
	for _, m := range matches {
		rows = append(rows, []interface{}{
			m.ID, m.UserAID, m.UserBID, m.DebateType, m.Mode, m.Language, m.Score, m.Status,
			m.CreatedAt.UTC().Format(timeLayout),
		})
	}
	return w.addSheet(MatchesSheet, matchHeader, rows)
}

// AddResults writes one row per finished debate.
func (w *Workbook) AddResults(records []models.DebateSessionRecord) error {
	rows := make([][]interface{}, 0, len(records))
	for _, r := range records {
		winner := "draw"
		if r.WinnerID != nil {
			winner = *r.WinnerID
		}
		rows = append(rows, []interface{}{
			r.ID, r.Topic, r.DebateType, r.Mode, winner, r.Summary,
			formatTime(r.StartedAt), formatTime(r.EndedAt), durationMinutes(r.StartedAt, r.EndedAt),
		})
	}
	return w.addSheet(ResultsSheet, resultHeader, rows)
}

func (w *Workbook) WriteTo(out io.Writer) (int64, error) {
	if err := w.dropDefaultSheet(); err != nil {
		return 0, err
	}
	return w.f.WriteTo(out)
}

func (w *Workbook) SaveAs(path string) error {
	if err := w.dropDefaultSheet(); err != nil {
		return err
	}
	return w.f.SaveAs(path)
}

func (w *Workbook) Close() error {
	return w.f.Close()
}

func (w *Workbook) addSheet(name string, header []interface{}, rows [][]interface{}) error {
	if _, err := w.f.NewSheet(name); err != nil {
		return fmt.Errorf("create sheet %s: %w", name, err)
	}
	if err := w.f.SetSheetRow(name, "A1", &header); err != nil {
		return err
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := row
		if err := w.f.SetSheetRow(name, cell, &row); err != nil {
			return err
		}
	}

	style, err := w.f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return err
	}
	if err := w.f.SetCellStyle(name, "A1", last, style); err != nil {
		return err
	}
	return w.f.SetPanes(name, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
}

// dropDefaultSheet removes the blank sheet excelize starts with once real sheets exist.
func (w *Workbook) dropDefaultSheet() error {
	if len(w.f.GetSheetList()) < 2 {
		return nil
	}
	idx, err := w.f.GetSheetIndex(defaultSheet)
	if err != nil || idx < 0 {
		return nil
	}
	return w.f.DeleteSheet(defaultSheet)
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func durationMinutes(start, end *time.Time) float64 {
	if start == nil || end == nil || end.Before(*start) {
		return 0
	}
	return float64(end.Sub(*start).Round(time.Second)) / float64(time.Minute)
}
