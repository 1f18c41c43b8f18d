package accounts

import (
	"time"

	"github.com/google/uuid"
)

// SessionObject holds the attributes of an authenticated session resolved
// from a credential.
type SessionObject struct {
	UserID   string     `json:"user_id,omitempty"`
	Email    string     `json:"email,omitempty"`
	Name     string     `json:"name,omitempty"`
	Issuer   string     `json:"issuer,omitempty"`
	Audience []string   `json:"audience,omitempty"`
	IssuedAt *time.Time `json:"issued_at,omitempty"`
}

// GetUserUUID parses the session's account id.
func (s *SessionObject) GetUserUUID() (uuid.UUID, error) {
	return uuid.Parse(s.UserID)
}

func sessionFromClaims(claims *SessionClaims) *SessionObject {
	session := &SessionObject{
		UserID:   claims.UserID(),
		Email:    claims.Email,
		Name:     claims.Name,
		Issuer:   claims.Issuer,
		Audience: claims.Audience,
	}

	if claims.IssuedAt != nil {
		issuedAt := claims.IssuedAt.Time
		session.IssuedAt = &issuedAt
	}

	return session
}
