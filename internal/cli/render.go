package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"

	"github.com/ppiankov/veracity/internal/model"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

const (
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiRed    = "\033[31m"
	ansiReset  = "\033[0m"

	maxCellWidth = 60
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := 0; i < columns; i++ {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
			WidthMax:    maxCellWidth,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func leaderboardTable(entries []model.LeaderboardEntry) string {
	headers := []string{"#", "Subject", "Name", "Trust", "Claims", "Followers", "Categories"}
	aligns := []columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft}

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{
			fmt.Sprintf("%d", e.Rank),
			e.SubjectID,
			e.Name,
			formatAverage(e),
			humanize.Comma(int64(e.VerifiedClaimsCount)),
			e.FollowersCount,
			strings.Join(e.Categories, ", "),
		})
	}
	return renderTable(headers, rows, aligns)
}

func claimsTable(claims []model.ClaimRecord, colorize bool) string {
	headers := []string{"#", "Statement", "Status", "Trust", "Categories", "Citations"}
	aligns := []columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft, alignRight}

	rows := make([][]string, 0, len(claims))
	for i, c := range claims {
		rows = append(rows, []string{
			fmt.Sprintf("%d", i+1),
			orDash(c.Statement),
			colorStatus(c.Status, colorize),
			orDash(c.TrustScore),
			orDash(c.Categories),
			fmt.Sprintf("%d", len(c.Citations)),
		})
	}
	return renderTable(headers, rows, aligns)
}

// formatAverage renders an undefined average as "n/a" rather than a number
func formatAverage(e model.LeaderboardEntry) string {
	if !e.HasAverage() {
		return "n/a"
	}
	return e.AverageTrustScore
}

func colorStatus(s model.Status, colorize bool) string {
	label := orDash(string(s))
	if !colorize {
		return label
	}
	switch s {
	case model.StatusVerified:
		return ansiGreen + label + ansiReset
	case model.StatusQuestionable:
		return ansiYellow + label + ansiReset
	case model.StatusDebunked:
		return ansiRed + label + ansiReset
	}
	return label
}

func updatedAgo(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return humanize.Time(t)
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode JSON: %w", err)
	}
	return nil
}
