package ui

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"mixtape/internal/services"
	"mixtape/internal/tasks"
)

const maxNameWidth = 40

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#1DB954"))
	cellStyle   = lipgloss.NewStyle().PaddingLeft(1).PaddingRight(1)
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("#626262"))).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(headers...)
}

func truncate(s string, width int) string {
	if len(s) <= width {
		return s
	}
	return s[:width-1] + "…"
}

// PlaylistTable renders search results or a user's playlists.
func PlaylistTable(playlists []services.PlaylistSummary) string {
	t := newTable("Name", "Owner", "Tracks", "ID")
	for _, pl := range playlists {
		t.Row(truncate(pl.Name, maxNameWidth), pl.Owner, strconv.Itoa(pl.TrackCount), pl.ID)
	}
	return t.Render()
}

// ResultTable renders the outcome of a generation run.
func ResultTable(result *tasks.Result) string {
	t := newTable("Name", "Status", "Tracks", "URL")
	for _, pl := range result.Playlists {
		status := string(pl.Status)
		switch pl.Status {
		case tasks.StatusPublished:
			status = OK(status)
		case tasks.StatusFailed:
			status = Err(status)
		case tasks.StatusPartiallyPublished:
			status = Warn(fmt.Sprintf("%s (%d/%d)", status, pl.Committed, pl.TrackCount))
		}
		t.Row(truncate(pl.Name, maxNameWidth), status, strconv.Itoa(pl.TrackCount), pl.URL)
	}
	return t.Render()
}
