package models

import "time"

// Token purposes. One physical table stores both kinds; Type discriminates.
const (
	TokenTypeVerifyEmail   = "verify-email"
	TokenTypePasswordReset = "password-reset"
)

// Token is a single-use, time-limited secret tied to one user and one purpose.
// At most one live token per (user, type) exists after a generate call: the
// issuing service deletes prior rows of the same type before inserting.
type Token struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	User      *User     `gorm:"constraint:OnDelete:CASCADE" json:"user,omitempty"`
	Type      string    `gorm:"not null;index" json:"type"`
	Token     string    `gorm:"size:64;uniqueIndex;not null" json:"-"`
	ExpiresAt time.Time `gorm:"index" json:"expires_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Live reports whether the token is still usable at the given instant.
// Expired rows are not deleted eagerly; they simply stop matching.
func (t Token) Live(now time.Time) bool {
	return t.ExpiresAt.After(now)
}
