// Package model defines the data structures persisted by the store.
package model

import (
	"strings"
	"time"
)

// User is one linked human: a Todoist account, optionally bound to a Discord account.
//
// A row is created by the OAuth callback (email + Todoist credentials known,
// DiscordID nil). Sign-up binds DiscordID exactly once when the member confirms
// the same email over DM.
//
// WHY DiscordID *string?
// Discord snowflakes are 64-bit integers but every Discord API (and discordgo)
// passes them around as decimal strings. We keep that representation and use
// nil for "not bound yet" instead of a magic empty string.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	TodoistID    string    `json:"todoistId"`
	TodoistToken string    `json:"-"` // bearer credential, never serialised
	DiscordID    *string   `json:"discordId,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// HasDiscord reports whether sign-up has completed for this user.
func (u *User) HasDiscord() bool {
	return u.DiscordID != nil && *u.DiscordID != ""
}

// Mention renders the Discord mention for the bound account, or "" if unbound.
func (u *User) Mention() string {
	if !u.HasDiscord() {
		return ""
	}
	return "<@" + *u.DiscordID + ">"
}

// NormalizeEmail is the canonical form emails are stored and compared in.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
