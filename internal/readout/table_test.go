package readout

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/shamebot/internal/todoist"
)

func makeTasks(n int) []todoist.Task {
	tasks := make([]todoist.Task, n)
	for i := range tasks {
		tasks[i] = todoist.Task{
			ID:      fmt.Sprintf("t%d", i+1),
			Content: fmt.Sprintf("Task number %d", i+1),
			Due:     &todoist.Due{Date: "2024-03-05", String: "today"},
		}
	}
	return tasks
}

// dataRows counts the body rows of a rendered table: every line drawn with a
// vertical bar, minus the header.
func dataRows(table string) int {
	n := 0
	for _, line := range strings.Split(table, "\n") {
		if strings.HasPrefix(line, "|") {
			n++
		}
	}
	return n - 1
}

func TestShorten(t *testing.T) {
	assert.Equal(t, "abc", Shorten("  abc \n", 70))
	assert.Equal(t, "", Shorten("", 20))

	long := strings.Repeat("a", 75)
	got := Shorten(long, ContentWidth)
	assert.Equal(t, ContentWidth, utf8.RuneCountInString(got))
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.Equal(t, strings.Repeat("a", ContentWidth-3), strings.TrimSuffix(got, "..."))

	exact := strings.Repeat("b", DueWidth)
	assert.Equal(t, exact, Shorten(exact, DueWidth))

	assert.Equal(t, "ééééééé...", Shorten(strings.Repeat("é", 30), 10))
}

func TestRows_Overflow(t *testing.T) {
	rows := Rows(makeTasks(15))
	require.Len(t, rows, MaxRows)
	assert.Equal(t, "Task number 9", rows[8][0])
	assert.Equal(t, "...6 more task(s)", rows[9][0])
	assert.Equal(t, "", rows[9][1])
}

func TestRows_AtLimit(t *testing.T) {
	rows := Rows(makeTasks(MaxRows))
	require.Len(t, rows, MaxRows)
	assert.Equal(t, "Task number 10", rows[9][0])
	assert.Equal(t, "today", rows[9][1])
}

func TestRows_DueFallsBackToDate(t *testing.T) {
	rows := Rows([]todoist.Task{
		{ID: "1", Content: "a", Due: &todoist.Due{Date: "2024-03-05"}},
		{ID: "2", Content: "b"},
	})
	assert.Equal(t, "2024-03-05", rows[0][1])
	assert.Equal(t, "", rows[1][1])
}

func TestRenderTable(t *testing.T) {
	t.Run("fifteen tasks", func(t *testing.T) {
		table := RenderTable(makeTasks(15))
		assert.Equal(t, 10, dataRows(table))
		assert.Contains(t, table, "6 more task(s)")
		assert.NotContains(t, table, "Task number 10")
	})

	t.Run("two tasks", func(t *testing.T) {
		table := RenderTable(makeTasks(2))
		assert.Equal(t, 2, dataRows(table))
		assert.Contains(t, table, "Task")
		assert.Contains(t, table, "Due")
		assert.False(t, strings.HasSuffix(table, "\n"))
	})

	t.Run("long content is not wrapped", func(t *testing.T) {
		tasks := makeTasks(1)
		tasks[0].Content = strings.Repeat("word ", 30)
		table := RenderTable(tasks)
		assert.Equal(t, 1, dataRows(table))
		assert.Contains(t, table, "...")
	})
}
