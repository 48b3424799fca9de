package model

import "time"

// Session はBearerトークンで提示されるサーバーサイドセッションを表す。
// revoked = false かつ expires_at が未来の場合のみ有効。
type Session struct {
	ID        int64
	Token     string
	GoogleID  string
	ExpiresAt time.Time
	Revoked   bool
	CreatedAt time.Time
}

// Valid はセッションが現時点で有効かどうかを返す。
func (s *Session) Valid(now time.Time) bool {
	return !s.Revoked && now.Before(s.ExpiresAt)
}
