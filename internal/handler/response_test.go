package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/shamebot/internal/apperror"
)

func TestWriteError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
	}{
		{"validation", apperror.ValidationFailed("code", "No code provided"), http.StatusBadRequest, "validation_error"},
		{"not found", apperror.NotFound("user", "1"), http.StatusNotFound, "not_found"},
		{"identity claimed", apperror.IdentityClaimed("a@example.com"), http.StatusConflict, "conflict"},
		{"channel not found", fmt.Errorf("readout: %w", apperror.ChannelNotFound("42")), http.StatusServiceUnavailable, "unavailable"},
		{"untyped", errors.New("disk full"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			writeError(rr, tt.err)

			assert.Equal(t, tt.wantStatus, rr.Code)
			var body ErrorResponse
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
			assert.Equal(t, tt.wantType, body.Error)
			assert.NotContains(t, body.Message, "disk full")
		})
	}
}
