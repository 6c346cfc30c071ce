// Package credentials owns the persisted credential pair and the cached
// identity snapshot. Only the identity session (and the request gateway, for
// its forced-teardown case) may mutate it.
package credentials

import (
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"

	"github.com/mentorlink/go-mentor-client/identity"
)

// Stored is the unit of persistence: the token pair plus the last known
// identity snapshot. The whole record is replaced atomically on every write.
type Stored struct {
	Token *oauth2.Token  `json:"token"`
	User  *identity.User `json:"user,omitempty"`
}

// Repo abstracts credential persistence so it can survive process restarts
type Repo interface {
	// Load returns the stored record, or errors.ErrNotFound when absent
	Load() (*Stored, error)
	// Save atomically replaces the stored record
	Save(*Stored) error
	// Clear removes all credential state. Idempotent.
	Clear() error
}

// NewPair builds the credential pair from the opaque bearer strings returned
// by the backend. When the access token parses as a JWT its exp claim becomes
// the pair's expiry so callers can cheaply test staleness; the signature is
// never checked client-side.
func NewPair(accessToken, refreshToken string) *oauth2.Token {
	pair := &oauth2.Token{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
	}
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, &claims); err == nil && claims.ExpiresAt != nil {
		pair.Expiry = claims.ExpiresAt.Time
	}
	return pair
}

// AccessToken returns the stored access token, or "" when none is held
func (s *Stored) AccessToken() string {
	if s == nil || s.Token == nil {
		return ""
	}
	return s.Token.AccessToken
}

// RefreshToken returns the stored refresh token, or "" when none is held
func (s *Stored) RefreshToken() string {
	if s == nil || s.Token == nil {
		return ""
	}
	return s.Token.RefreshToken
}
