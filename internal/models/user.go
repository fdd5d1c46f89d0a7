package models

import "time"

// User is an account identity. Email is stored normalized (trimmed and
// lower-cased) and is the only login identifier.
type User struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	Email      string `gorm:"uniqueIndex;size:254;not null" json:"email"`
	Password   string `gorm:"not null" json:"-"`
	IsVerified bool   `gorm:"default:false" json:"is_verified"`

	Tokens         []Token           `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	RememberTokens []RememberMeToken `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Sessions       []Session         `gorm:"foreignKey:UserID" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
