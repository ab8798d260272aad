// Package auth covers the Todoist OAuth handshake: building the authorize URL,
// signing and checking the OAuth "state" parameter, exchanging the callback
// code for an access token, and sealing those tokens before they are stored.
//
// CONNECT FLOW OVERVIEW:
//  1. Sign-up (or POST /connect) hands the member an authorize URL carrying a signed state
//  2. The member approves the app on todoist.com
//  3. Todoist redirects to GET /auth?code=...&state=...
//  4. The server verifies the state, exchanges the code for a token, asks the
//     Sync API who the token belongs to, and upserts the user row
//  5. The sign-up conversation, polling the store, sees the row appear and binds the Discord account
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/xid"
)

const (
	stateIssuer  = "shamebot"
	stateSubject = "todoist-connect"

	// DefaultStateTTL bounds how long an authorize link stays usable.
	DefaultStateTTL = 15 * time.Minute
)

// ErrInvalidState is returned for a state that is malformed, forged or expired.
var ErrInvalidState = errors.New("auth: invalid OAuth state")

// StateService issues and verifies the OAuth state parameter.
//
// WHY A JWT FOR STATE?
// The state is echoed back by Todoist on the callback. Signing it (HS256) lets
// the server recognise links it handed out without storing anything: the
// signature proves origin, "exp" bounds the link's lifetime, and "jti" (an xid)
// makes every link unique.
type StateService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewStateService creates a StateService with the given secret.
// The secret should be at least 32 bytes of random data in production.
func NewStateService(secret string) (*StateService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: state secret must be at least 16 characters")
	}
	return &StateService{secret: []byte(secret), ttl: DefaultStateTTL, now: time.Now}, nil
}

// Issue signs a fresh state.
func (s *StateService) Issue() (string, error) {
	now := s.now()

	c := jwt.RegisteredClaims{
		ID:        xid.New().String(),
		Subject:   stateSubject,
		Issuer:    stateIssuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing state: %w", err)
	}
	return signed, nil
}

// Verify checks signature, issuer, subject and expiry. Any failure wraps ErrInvalidState.
//
// jwt.WithValidMethods pins HS256, so a token claiming "alg: none" or an
// asymmetric algorithm is rejected before the key is ever consulted.
func (s *StateService) Verify(state string) error {
	token, err := jwt.ParseWithClaims(
		state,
		&jwt.RegisteredClaims{},
		func(token *jwt.Token) (any, error) {
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(stateIssuer),
		jwt.WithSubject(stateSubject),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return fmt.Errorf("%w: expired", ErrInvalidState)
		}
		return fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	if !token.Valid {
		return ErrInvalidState
	}
	return nil
}
