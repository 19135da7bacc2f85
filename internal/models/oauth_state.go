package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OAuthState is the server-side half of a federated login attempt: a one-time
// nonce issued at redirect time and consumed exactly once at callback time.
// Rows left behind by abandoned flows expire and are swept opportunistically.
type OAuthState struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	Provider  string    `json:"provider" gorm:"type:varchar(30);not null"`
	Nonce     string    `json:"-" gorm:"type:varchar(64);uniqueIndex;not null"`
	ExpiresAt time.Time `json:"expiresAt" gorm:"not null;index"`
	CreatedAt time.Time `json:"createdAt" gorm:"not null"`
}

func (s *OAuthState) BeforeCreate(_ *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

func (OAuthState) TableName() string {
	return "oauth_states"
}

func (s *OAuthState) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
