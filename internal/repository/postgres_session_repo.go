package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/coursebox/internal/model"
)

// PostgresSessionRepo はPostgreSQLを使用したセッションリポジトリ。
type PostgresSessionRepo struct {
	db *sql.DB
}

// NewPostgresSessionRepo はPostgresSessionRepoを生成する。
func NewPostgresSessionRepo(db *sql.DB) *PostgresSessionRepo {
	return &PostgresSessionRepo{db: db}
}

// Create はセッションを作成する。
func (r *PostgresSessionRepo) Create(ctx context.Context, session *model.Session) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO sessions (session_token, google_id, expires_at)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at`,
		session.Token, session.GoogleID, session.ExpiresAt,
	).Scan(&session.ID, &session.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// FindValidByToken は有効な（失効しておらず期限内の）セッションを取得する。
// 見つからない場合はnilを返す。
func (r *PostgresSessionRepo) FindValidByToken(ctx context.Context, token string) (*model.Session, error) {
	session := &model.Session{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, session_token, google_id, expires_at, revoked, created_at
		 FROM sessions
		 WHERE session_token = $1
		   AND revoked = FALSE
		   AND expires_at > now()`,
		token,
	).Scan(&session.ID, &session.Token, &session.GoogleID,
		&session.ExpiresAt, &session.Revoked, &session.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}

	return session, nil
}

// Revoke は指定トークンのセッションを失効させる。
// 冪等で、有効→失効に遷移した場合のみtrueを返す。
func (r *PostgresSessionRepo) Revoke(ctx context.Context, token string) (bool, error) {
	var id int64
	err := r.db.QueryRowContext(ctx,
		`UPDATE sessions SET revoked = TRUE
		 WHERE session_token = $1 AND revoked = FALSE
		 RETURNING id`,
		token,
	).Scan(&id)

	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to revoke session: %w", err)
	}
	return true, nil
}

// RevokeAllByGoogleID は指定ユーザーの全有効セッションを失効させる。
func (r *PostgresSessionRepo) RevokeAllByGoogleID(ctx context.Context, googleID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET revoked = TRUE
		 WHERE google_id = $1 AND revoked = FALSE`,
		googleID,
	)
	if err != nil {
		return fmt.Errorf("failed to revoke user sessions: %w", err)
	}
	return nil
}

// compile-time interface check
var _ SessionRepository = (*PostgresSessionRepo)(nil)
