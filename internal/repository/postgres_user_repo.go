package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/coursebox/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// userColumns はSELECT句で使う列リスト。scanUserと順序を一致させること。
const userColumns = `id, google_id, email, email_verified, name, given_name, family_name,
	picture, locale, username, address,
	google_id_token, google_access_token, google_refresh_token, token_expires_at,
	created_at, updated_at`

// Upsert はgoogle_idをキーにユーザーを原子的に作成または更新する。
// 読み取り→書き込みの競合を避けるため、単一のINSERT ... ON CONFLICTで行う。
// username / address はローカル編集項目のため更新時に維持する。
func (r *PostgresUserRepo) Upsert(ctx context.Context, user *model.User) (*model.User, error) {
	row := r.db.QueryRowContext(ctx,
		`INSERT INTO users (
			google_id, email, email_verified, name, given_name, family_name,
			picture, locale, google_id_token, google_access_token,
			google_refresh_token, token_expires_at
		 )
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 ON CONFLICT (google_id) DO UPDATE SET
			email = EXCLUDED.email,
			email_verified = EXCLUDED.email_verified,
			name = EXCLUDED.name,
			given_name = EXCLUDED.given_name,
			family_name = EXCLUDED.family_name,
			picture = EXCLUDED.picture,
			locale = EXCLUDED.locale,
			google_id_token = EXCLUDED.google_id_token,
			google_access_token = EXCLUDED.google_access_token,
			google_refresh_token = EXCLUDED.google_refresh_token,
			token_expires_at = EXCLUDED.token_expires_at,
			updated_at = now()
		 RETURNING `+userColumns,
		user.GoogleID, user.Email, user.EmailVerified, user.Name, user.GivenName,
		user.FamilyName, user.Picture, user.Locale, user.GoogleIDToken,
		user.GoogleAccessToken, user.GoogleRefreshToken, user.TokenExpiresAt,
	)

	saved, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}
	return saved, nil
}

// FindByGoogleID は指定google_idのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByGoogleID(ctx context.Context, googleID string) (*model.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE google_id = $1`,
		googleID,
	)

	user, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}

// FindByEmail は指定メールアドレスのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`,
		email,
	)

	user, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	return user, nil
}

// UpdateUsername はユーザー名を更新し結果の行を返す。見つからない場合はnilを返す。
func (r *PostgresUserRepo) UpdateUsername(ctx context.Context, googleID, username string) (*model.User, error) {
	row := r.db.QueryRowContext(ctx,
		`UPDATE users SET username = $1, updated_at = now()
		 WHERE google_id = $2
		 RETURNING `+userColumns,
		username, googleID,
	)

	user, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update username: %w", err)
	}
	return user, nil
}

// UpdateAddress は住所を更新し結果の行を返す。見つからない場合はnilを返す。
func (r *PostgresUserRepo) UpdateAddress(ctx context.Context, googleID, address string) (*model.User, error) {
	row := r.db.QueryRowContext(ctx,
		`UPDATE users SET address = $1, updated_at = now()
		 WHERE google_id = $2
		 RETURNING `+userColumns,
		address, googleID,
	)

	user, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update address: %w", err)
	}
	return user, nil
}

// RelinkGoogle はユーザーのGoogle連携を付け替える。
// sessionsのgoogle_idはFKのON UPDATE CASCADEで追従するが、
// 旧セッションの失効は呼び出し側（authサービス）の責務。
func (r *PostgresUserRepo) RelinkGoogle(ctx context.Context, userID int64, user *model.User) (*model.User, error) {
	row := r.db.QueryRowContext(ctx,
		`UPDATE users SET
			google_id = $1,
			email = $2,
			name = $3,
			picture = $4,
			google_id_token = $5,
			updated_at = now()
		 WHERE id = $6
		 RETURNING `+userColumns,
		user.GoogleID, user.Email, user.Name, user.Picture, user.GoogleIDToken, userID,
	)

	updated, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to relink google account: %w", err)
	}
	return updated, nil
}

// DeleteByGoogleID は指定google_idのユーザーを削除する。
// 関連するsessionsはCASCADE削除される。削除した場合trueを返す。
func (r *PostgresUserRepo) DeleteByGoogleID(ctx context.Context, googleID string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM users WHERE google_id = $1`,
		googleID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete user: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read delete result: %w", err)
	}
	return affected > 0, nil
}

// rowScanner は*sql.Rowと*sql.Rowsの共通部分。
type rowScanner interface {
	Scan(dest ...any) error
}

// scanUser はuserColumnsの順序で1行をスキャンする。
func scanUser(row rowScanner) (*model.User, error) {
	user := &model.User{}
	err := row.Scan(
		&user.ID, &user.GoogleID, &user.Email, &user.EmailVerified,
		&user.Name, &user.GivenName, &user.FamilyName,
		&user.Picture, &user.Locale, &user.Username, &user.Address,
		&user.GoogleIDToken, &user.GoogleAccessToken, &user.GoogleRefreshToken,
		&user.TokenExpiresAt,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
