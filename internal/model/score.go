package model

import "time"

// Score is the daily completion streak of one user (1:1 with User).
// Only the readout job mutates it, and only in memory until the job commits.
type Score struct {
	UserID    string    `json:"userId"`
	Streak    int       `json:"streak"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// RecordCompletion counts a day with nothing left to shame.
func (s *Score) RecordCompletion() {
	s.Streak++
}

// RecordShame breaks the streak.
func (s *Score) RecordShame() {
	s.Streak = 0
}
