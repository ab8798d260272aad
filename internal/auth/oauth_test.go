package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testProviderConfig(tokenURL string) ProviderConfig {
	return ProviderConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURI:  "https://bot.example.com/auth",
		AuthURL:      "https://todoist.example.com/oauth/authorize",
		TokenURL:     tokenURL,
		Scope:        "data:read_write",
	}
}

func TestConnectURL(t *testing.T) {
	states := newTestStateService(t)
	p := NewProvider(testProviderConfig("unused"), WithStates(states))

	raw, err := p.ConnectURL()
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "todoist.example.com", u.Host)
	assert.Equal(t, "client-id", q.Get("client_id"))
	assert.Equal(t, "data:read_write", q.Get("scope"))
	assert.Equal(t, "https://bot.example.com/auth", q.Get("redirect_uri"))
	assert.NoError(t, p.VerifyState(q.Get("state")))
}

func TestVerifyState(t *testing.T) {
	signed := NewProvider(testProviderConfig("unused"), WithStates(newTestStateService(t)))
	assert.NoError(t, signed.VerifyState(""), "absent state is accepted")
	assert.ErrorIs(t, signed.VerifyState("forged"), ErrInvalidState)

	unsigned := NewProvider(testProviderConfig("unused"))
	assert.NoError(t, unsigned.VerifyState("anything"))
}

func TestExchange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		// Todoist expects credentials in the body, not a Basic header.
		if r.Form.Get("client_secret") != "client-secret" || r.Form.Get("code") != "good-code" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"error": "invalid_grant"})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"access_token": "tok-123",
			"token_type":   "Bearer",
		})
	}))
	defer srv.Close()

	p := NewProvider(testProviderConfig(srv.URL), WithProviderHTTPClient(srv.Client()))

	tok, err := p.Exchange(context.Background(), "good-code")
	require.NoError(t, err)
	assert.Equal(t, "tok-123", tok)

	_, err = p.Exchange(context.Background(), "bad-code")
	assert.Error(t, err)

	_, err = p.Exchange(context.Background(), "")
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrInvalidState))
}
