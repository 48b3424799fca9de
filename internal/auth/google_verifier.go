package auth

import (
	"context"
	"fmt"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
)

// GoogleIssuer はGoogleのOIDC発行者URL。
const GoogleIssuer = "https://accounts.google.com"

// GoogleClaims はGoogleのIDトークンから取り出すクレーム。
type GoogleClaims struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
	Picture       string `json:"picture"`
	Locale        string `json:"locale"`
}

// TokenVerifier はIDトークンの検証インターフェース。
// テストではフェイク実装に差し替える。
type TokenVerifier interface {
	// Verify はIDトークンの署名・発行者・audienceを検証し、クレームを返す。
	Verify(ctx context.Context, rawIDToken string) (*GoogleClaims, error)
}

// GoogleVerifier はgo-oidcによるGoogle IDトークンの検証を提供する。
// 鍵セットはディスカバリ経由で取得し、ライブラリ側でキャッシュされる。
type GoogleVerifier struct {
	verifier *gooidc.IDTokenVerifier
}

// NewGoogleVerifier はGoogleのディスカバリドキュメントを取得し、
// 指定クライアントID向けの検証器を生成する。
func NewGoogleVerifier(ctx context.Context, clientID string) (*GoogleVerifier, error) {
	provider, err := gooidc.NewProvider(ctx, GoogleIssuer)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize oidc provider: %w", err)
	}
	return &GoogleVerifier{
		verifier: provider.Verifier(&gooidc.Config{ClientID: clientID}),
	}, nil
}

// Verify はIDトークンを検証してクレームを返す。
func (v *GoogleVerifier) Verify(ctx context.Context, rawIDToken string) (*GoogleClaims, error) {
	idToken, err := v.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("failed to verify id token: %w", err)
	}

	var claims GoogleClaims
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to parse id token claims: %w", err)
	}
	if claims.Sub == "" {
		return nil, fmt.Errorf("id token has empty subject")
	}

	return &claims, nil
}

// compile-time interface check
var _ TokenVerifier = (*GoogleVerifier)(nil)
