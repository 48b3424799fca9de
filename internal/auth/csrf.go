package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// CSRFToken はセッショントークンからCSRFトークンを導出する。
// HMAC-SHA256(secret, sessionToken) の16進表現で、サーバー側に状態を持たない。
// セッションが失効すれば対応するCSRFトークンも同時に無効になる。
func CSRFToken(secret, sessionToken string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(sessionToken))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyCSRFToken は提示されたCSRFトークンを定数時間で検証する。
func VerifyCSRFToken(secret, sessionToken, token string) bool {
	if token == "" {
		return false
	}
	expected := CSRFToken(secret, sessionToken)
	return hmac.Equal([]byte(expected), []byte(token))
}
