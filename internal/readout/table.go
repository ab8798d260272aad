package readout

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/olekukonko/tablewriter"

	"github.com/sakif/shamebot/internal/todoist"
)

// Table limits.
const (
	MaxRows      = 10
	ContentWidth = 70
	DueWidth     = 20
)

// Shorten trims s and, if it is still longer than limit characters, cuts it
// so that the result including a trailing "..." is exactly limit characters.
func Shorten(s string, limit int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	if limit <= 3 {
		return string([]rune(s)[:limit])
	}
	return string([]rune(s)[:limit-3]) + "..."
}

// Rows turns tasks into table rows. When there are more than MaxRows tasks,
// the last row is replaced by a summary of how many were left out.
func Rows(tasks []todoist.Task) [][]string {
	shown := tasks
	overflow := 0
	if len(tasks) > MaxRows {
		shown = tasks[:MaxRows-1]
		overflow = len(tasks) - (MaxRows - 1)
	}

	rows := make([][]string, 0, len(shown)+1)
	for i := range shown {
		rows = append(rows, []string{
			Shorten(shown[i].Content, ContentWidth),
			Shorten(shown[i].DueString(), DueWidth),
		})
	}
	if overflow > 0 {
		rows = append(rows, []string{fmt.Sprintf("...%d more task(s)", overflow), ""})
	}
	return rows
}

// RenderTable draws the Task/Due table for one member.
func RenderTable(tasks []todoist.Task) string {
	var b strings.Builder

	table := tablewriter.NewWriter(&b)
	table.SetHeader([]string{"Task", "Due"})
	// Cells are already shortened; wrapping would break the row count.
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.AppendBulk(Rows(tasks))
	table.Render()

	return strings.TrimRight(b.String(), "\n")
}
