package models

import (
	"crypto/rand"
	"encoding/base64"
	"time"

	"gorm.io/gorm"
)

// SessionDuration is how long a login session (and its cookie) stays valid.
const SessionDuration = 7 * 24 * time.Hour

// Session is one browser login. The token is the only credential; security
// metadata is recorded for auditing, not enforcement.
type Session struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	SessionToken string `gorm:"uniqueIndex;not null" json:"session_token"`
	UserID       uint   `gorm:"not null;index" json:"user_id"`
	User         User   `gorm:"foreignKey:UserID" json:"-"`

	UserAgent string `json:"user_agent,omitempty"`
	IPAddress string `json:"ip_address,omitempty"`

	ExpiresAt      time.Time `gorm:"not null;index" json:"expires_at"`
	LastAccessedAt time.Time `json:"last_accessed_at"`
	CreatedAt      time.Time `json:"created_at"`
}

func (Session) TableName() string {
	return "sessions"
}

// NewSession builds a session for the user with a fresh random token,
// expiring after SessionDuration. The caller persists it.
func NewSession(userID uint, userAgent, ipAddress string) (*Session, error) {
	token, err := GenerateSessionToken()
	if err != nil {
		return nil, err
	}
	now := time.Now()
	return &Session{
		SessionToken:   token,
		UserID:         userID,
		UserAgent:      userAgent,
		IPAddress:      ipAddress,
		ExpiresAt:      now.Add(SessionDuration),
		LastAccessedAt: now,
	}, nil
}

// GenerateSessionToken returns a 256-bit random token from crypto/rand.
func GenerateSessionToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// IsExpired reports whether the session is past its expiry.
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// UpdateLastAccessed stamps the session as just used.
func (s *Session) UpdateLastAccessed(db *gorm.DB) error {
	s.LastAccessedAt = time.Now()
	return db.Model(s).Update("last_accessed_at", s.LastAccessedAt).Error
}
