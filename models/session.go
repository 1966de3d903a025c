package models

import "time"

const SessionTTL = 24 * time.Hour

type Session struct {
	ID        string    `json:"id,omitempty"`
	User      User      `json:"user"`
	LoginAt   time.Time `json:"loginAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func NewSession(u User, now time.Time) Session {
	return Session{
		User:      u.Public(),
		LoginAt:   now,
		ExpiresAt: now.Add(SessionTTL),
	}
}

func (s Session) Valid(now time.Time) bool {
	return now.Before(s.ExpiresAt)
}
