package apperror

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorsIs(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		target    error
		wantMatch bool
	}{
		{
			name:      "NotFound wraps ErrNotFound",
			err:       NotFound("user", "a@example.com"),
			target:    ErrNotFound,
			wantMatch: true,
		},
		{
			name:      "ValidationFailed wraps ErrValidation",
			err:       ValidationFailed("code", "code is required"),
			target:    ErrValidation,
			wantMatch: true,
		},
		{
			name:      "IdentityClaimed wraps ErrIdentityClaimed",
			err:       IdentityClaimed("a@example.com"),
			target:    ErrIdentityClaimed,
			wantMatch: true,
		},
		{
			name:      "ChannelNotFound survives fmt wrapping",
			err:       fmt.Errorf("readout: resolving channel: %w", ChannelNotFound("42")),
			target:    ErrChannelNotFound,
			wantMatch: true,
		},
		{
			name:      "IdentityClaimed does NOT match ErrNotFound",
			err:       IdentityClaimed("a@example.com"),
			target:    ErrNotFound,
			wantMatch: false,
		},
		{
			name:      "NotFound does NOT match ErrValidation",
			err:       NotFound("user", "123"),
			target:    ErrValidation,
			wantMatch: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := errors.Is(tt.err, tt.target)
			if got != tt.wantMatch {
				t.Errorf("errors.Is(%v, %v) = %v, want %v", tt.err, tt.target, got, tt.wantMatch)
			}
		})
	}
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name        string
		err         *AppError
		wantMessage string
	}{
		{
			name:        "NotFound message includes resource and id",
			err:         NotFound("user", "123"),
			wantMessage: "user not found with id 123",
		},
		{
			name:        "IdentityClaimed names the email",
			err:         IdentityClaimed("a@example.com"),
			wantMessage: "a@example.com is already linked to a chat account",
		},
		{
			name:        "ChannelNotFound names the channel",
			err:         ChannelNotFound("42"),
			wantMessage: "channel 42 not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMessage {
				t.Errorf("Error() = %q, want %q", got, tt.wantMessage)
			}
		})
	}
}

func TestValidationFailedField(t *testing.T) {
	err := ValidationFailed("state", "invalid OAuth state")
	if err.Field != "state" {
		t.Errorf("Field = %q, want %q", err.Field, "state")
	}
}
