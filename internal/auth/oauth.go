package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/xid"
	"golang.org/x/oauth2"
)

// ProviderConfig holds the Todoist OAuth app settings.
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	AuthURL      string // e.g. https://todoist.com/oauth/authorize
	TokenURL     string // e.g. https://todoist.com/oauth/access_token
	Scope        string // e.g. data:read_write
}

// Provider wraps golang.org/x/oauth2 for Todoist's Authorization Code flow.
//
// Todoist wants client_id and client_secret in the POST body of the token
// request rather than in a Basic auth header, hence AuthStyleInParams.
// Todoist tokens never expire and come without a refresh token; only the
// access token string is kept.
type Provider struct {
	config *oauth2.Config
	states *StateService // nil: states are random and not verified
	http   *http.Client  // nil: oauth2 uses http.DefaultClient
}

// ProviderOption customises a Provider.
type ProviderOption func(*Provider)

// WithStates signs and verifies the state parameter.
func WithStates(s *StateService) ProviderOption {
	return func(p *Provider) { p.states = s }
}

// WithProviderHTTPClient sets the client used for the token exchange.
func WithProviderHTTPClient(hc *http.Client) ProviderOption {
	return func(p *Provider) { p.http = hc }
}

// NewProvider creates a Provider.
func NewProvider(cfg ProviderConfig, opts ...ProviderOption) *Provider {
	var scopes []string
	if cfg.Scope != "" {
		scopes = strings.Split(cfg.Scope, ",")
	}

	p := &Provider{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// AuthURL returns the authorize URL for a given state.
func (p *Provider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state)
}

// ConnectURL returns an authorize URL with a freshly issued state.
// It has no side effects: nothing is stored.
func (p *Provider) ConnectURL() (string, error) {
	state := xid.New().String()
	if p.states != nil {
		signed, err := p.states.Issue()
		if err != nil {
			return "", err
		}
		state = signed
	}
	return p.AuthURL(state), nil
}

// VerifyState checks a state echoed back on the callback. An empty state is
// accepted (older links carried none); a present one must verify when state
// signing is configured.
func (p *Provider) VerifyState(state string) error {
	if state == "" || p.states == nil {
		return nil
	}
	return p.states.Verify(state)
}

// Exchange trades an authorization code for an access token (server to server).
func (p *Provider) Exchange(ctx context.Context, code string) (string, error) {
	if code == "" {
		return "", errors.New("auth: authorization code is empty")
	}
	if p.http != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, p.http)
	}

	tok, err := p.config.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("auth: exchanging code: %w", err)
	}
	if tok.AccessToken == "" {
		return "", errors.New("auth: token response has no access_token")
	}
	return tok.AccessToken, nil
}
