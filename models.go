package accounts

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// TokenTTL is how long a verification or reset code stays redeemable.
var TokenTTL = 30 * time.Minute

// ImageRef is the opaque reference the image store hands back for a stored
// profile picture. The core never interprets these fields.
type ImageRef struct {
	URL       string `bun:"url" json:"url,omitempty"`
	PublicID  string `bun:"public_id" json:"public_id,omitempty"`
	AssetID   string `bun:"asset_id" json:"asset_id,omitempty"`
	Signature string `bun:"signature" json:"signature,omitempty"`
}

// User is the account model. The three relationship sets hold peer account
// IDs and are mutually exclusive per peer: a given peer appears in at most
// one of them at a time, and never the user's own ID.
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`

	ID           uuid.UUID `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Name         string    `bun:"name,notnull" json:"name,omitempty"`
	Email        string    `bun:"email,notnull,unique" json:"email,omitempty"`
	PasswordHash string    `bun:"password_hash,notnull" json:"password_hash,omitempty"`
	Verified     bool      `bun:"is_verified" json:"is_verified,omitempty"`

	Image ImageRef `bun:"embed:image_" json:"image,omitempty"`

	IncomingRequests []uuid.UUID `bun:"incoming_requests,type:jsonb" json:"incoming_requests,omitempty"`
	OutgoingRequests []uuid.UUID `bun:"outgoing_requests,type:jsonb" json:"outgoing_requests,omitempty"`
	Friends          []uuid.UUID `bun:"friends,type:jsonb" json:"friends,omitempty"`

	// Version guards concurrent relationship writes. Both sides of a pair
	// update must match their read version or the transaction aborts.
	Version int64 `bun:"version,notnull,default:0" json:"-"`

	CreatedAt *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// PublicProfile returns the externally exposable view of the account.
// The password hash never leaves through this projection.
func (u *User) PublicProfile() *PublicProfile {
	if u == nil {
		return nil
	}
	return &PublicProfile{
		ID:       u.ID,
		Name:     u.Name,
		Email:    u.Email,
		ImageURL: u.Image.URL,
	}
}

// PublicProfile is the projection of an account shared with other users:
// identity, display name and avatar, nothing credential related.
type PublicProfile struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Email    string    `json:"email"`
	ImageURL string    `json:"image_url,omitempty"`
}

// Token is a single-use numeric code bound to an account. The same record
// backs email verification and password reset; at most one live token
// exists per account and the last issued one wins at redemption.
type Token struct {
	bun.BaseModel `bun:"table:tokens,alias:tkn"`

	ID        uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	UserID    uuid.UUID  `bun:"user_id,notnull,unique,type:uuid" json:"user_id,omitempty"`
	Code      string     `bun:"code,notnull" json:"code,omitempty"`
	CreatedAt *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	ExpiresAt time.Time  `bun:"expires_at,notnull" json:"expires_at,omitempty"`
}

// Live tells if this token can still be redeemed. Expiry is enforced here
// on read, never by a store-level TTL.
func (t *Token) Live(now time.Time) bool {
	if t == nil {
		return false
	}
	return t.ExpiresAt.After(now)
}

func containsID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

func appendID(ids []uuid.UUID, id uuid.UUID) []uuid.UUID {
	if containsID(ids, id) {
		return ids
	}
	return append(ids, id)
}

func removeID(ids []uuid.UUID, id uuid.UUID) []uuid.UUID {
	out := ids[:0]
	for _, candidate := range ids {
		if candidate != id {
			out = append(out, candidate)
		}
	}
	return out
}
