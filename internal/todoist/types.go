// Package todoist is a small client for the parts of the Todoist REST and Sync
// APIs the bot needs: querying tasks by filter, managing labels, and reading
// the identity behind an access token.
//
// STRONG TYPES, VALIDATED ON THE WAY IN:
// Every response is decoded into the structs below. A body that does not have
// the expected shape (an object where a list was expected, a task without an
// id) fails with a *ProtocolError instead of leaking half-filled values into
// the readout.
package todoist

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
)

// Well-known label names.
const (
	ShameLabel   = "shame"   // applied to every task still open at readout time
	ExcludeLabel = "exclude" // tasks carrying this label are never shamed
)

// ShameLabelColor is the colour the shame label is created with.
const ShameLabelColor = "lavender"

// Task is the subset of a Todoist task the bot reads and writes.
type Task struct {
	ID          string   `json:"id"`
	Content     string   `json:"content"`
	Description string   `json:"description"`
	ProjectID   string   `json:"project_id"`
	Labels      []string `json:"labels"`
	Priority    int      `json:"priority"`
	IsCompleted bool     `json:"is_completed"`
	Due         *Due     `json:"due"`
	URL         string   `json:"url"`
}

// Due is Todoist's due-date descriptor. String is the human text ("every day",
// "Jan 3"); Date is the machine date (YYYY-MM-DD).
type Due struct {
	Date        string `json:"date"`
	String      string `json:"string"`
	IsRecurring bool   `json:"is_recurring"`
	Datetime    string `json:"datetime,omitempty"`
	Timezone    string `json:"timezone,omitempty"`
}

// HasLabel reports whether name is in the task's label set.
func (t *Task) HasLabel(name string) bool {
	return slices.Contains(t.Labels, name)
}

// DueString is the text shown in the readout's Due column.
func (t *Task) DueString() string {
	if t.Due == nil {
		return ""
	}
	if t.Due.String != "" {
		return t.Due.String
	}
	return t.Due.Date
}

// Label is a personal label.
type Label struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Color      string `json:"color"`
	Order      int    `json:"order"`
	IsFavorite bool   `json:"is_favorite"`
}

// TaskPatch is the body of a task update. Labels replaces the whole label set.
type TaskPatch struct {
	Labels []string `json:"labels"`
}

// Identity is the account an access token belongs to, as reported by the Sync API.
type Identity struct {
	ID    FlexibleID `json:"id"`
	Email string     `json:"email"`
}

// FlexibleID accepts an id encoded either as a JSON string or a JSON number.
//
// WHY?
// The Sync API has returned user ids as numbers in older versions and as
// strings in newer ones. Webhook payloads carry them as strings. Normalising
// to a string here keeps lookups by provider id consistent.
type FlexibleID string

// UnmarshalJSON implements json.Unmarshaler.
func (id *FlexibleID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*id = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*id = FlexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("todoist: id is neither string nor number: %s", data)
	}
	if _, err := strconv.ParseInt(n.String(), 10, 64); err != nil {
		return fmt.Errorf("todoist: id %s is not an integer", n)
	}
	*id = FlexibleID(n.String())
	return nil
}
