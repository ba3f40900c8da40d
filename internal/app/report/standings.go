// Package report renders contest standings and player XP history into files
// users download: XLSX workbooks and PNG charts.
package report

import (
	"bytes"
	"fmt"
	"time"
	"tle_arena/internal/domain/model"

	"github.com/xuri/excelize/v2"
)

const (
	XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	PNGContentType  = "image/png"

	standingsSheet = "Standings"
)

var standingsHeader = []any{
	"Rank", "Player", "Tier", "Mode", "Final Rating", "Raw Score",
	"Accuracy Score", "XP Score", "Solved", "Penalty (min)", "Last Solve (UTC)",
}

// StandingsXLSX writes one contest's board to a single-sheet workbook. Rows are
// expected in board order.
func StandingsXLSX(contest *model.Contest, rows []model.ContestLeaderboardEntry) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(f.GetActiveSheetIndex()), standingsSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	title := fmt.Sprintf("%s (%s)", contest.Title, contest.Status)
	if err := f.SetCellValue(standingsSheet, "A1", title); err != nil {
		return nil, err
	}
	if err := f.SetSheetRow(standingsSheet, "A2", &standingsHeader); err != nil {
		return nil, err
	}

	for i, e := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+3)
		if err != nil {
			return nil, err
		}
		rank := e.Rank
		if e.FinalRank != nil {
			rank = *e.FinalRank
		}
		lastSolve := ""
		if e.LastSolvedAt != nil {
			lastSolve = e.LastSolvedAt.UTC().Format(time.RFC3339)
		}
		row := []any{
			rank, e.Name, string(e.Tier), string(e.Mode), e.FinalRating, e.RawScore,
			e.AccuracyScore, e.XPScore, e.ProblemsSolved, e.PenaltyMins, lastSolve,
		}
		if err := f.SetSheetRow(standingsSheet, cell, &row); err != nil {
			return nil, err
		}
	}

	if err := f.SetColWidth(standingsSheet, "B", "B", 24); err != nil {
		return nil, err
	}
	if err := f.SetColWidth(standingsSheet, "K", "K", 22); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// StandingsFilename is the download name for a contest export.
func StandingsFilename(contest *model.Contest) string {
	return contest.Slug + "-standings.xlsx"
}
