package model

import "time"

// AccessToken is one issued magic link.
//
// VALIDITY VS USE:
// A token is valid while now < ExpiresAt. UsedAt only records the first time
// the link was opened; an already used token keeps working until it expires,
// so people can open the link from WhatsApp more than once.
type AccessToken struct {
	ID        int64      `json:"id"`
	UserID    int64      `json:"userId"`
	Token     string     `json:"-"` // bearer credential, never serialized
	ExpiresAt time.Time  `json:"expiresAt"`
	UsedAt    *time.Time `json:"usedAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

// IsExpired reports whether the token is past its expiry at now.
func (t *AccessToken) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// IsUsed reports whether the link has been opened at least once.
func (t *AccessToken) IsUsed() bool {
	return t.UsedAt != nil
}
