// Package model はドメインモデルを定義する。
package model

import "time"

// User はGoogleアカウントで認証されたサービス利用ユーザーを表す。
// GoogleIDはIdPが発行する安定した識別子で、ログイン毎のUPSERTのキーになる。
type User struct {
	ID            int64
	GoogleID      string
	Email         string
	EmailVerified bool
	Name          string
	GivenName     string
	FamilyName    string
	Picture       string
	Locale        string
	Username      string
	Address       string

	// IdPトークンキャッシュ。再認可なしでプロバイダーAPIを呼ぶ際に使う。
	GoogleIDToken      string
	GoogleAccessToken  string
	GoogleRefreshToken string
	TokenExpiresAt     *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}
