// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/coursebox/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// Upsert はgoogle_idをキーにユーザーを原子的に作成または更新する。
	// プロフィール項目とトークンキャッシュは常に上書きし、
	// ローカル編集項目（username, address）は既存値を維持する。
	// 結果の行を返す。
	Upsert(ctx context.Context, user *model.User) (*model.User, error)

	// FindByGoogleID は指定google_idのユーザーを取得する。見つからない場合はnilを返す。
	FindByGoogleID(ctx context.Context, googleID string) (*model.User, error)

	// FindByEmail は指定メールアドレスのユーザーを取得する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// UpdateUsername はユーザー名を更新し結果の行を返す。見つからない場合はnilを返す。
	UpdateUsername(ctx context.Context, googleID, username string) (*model.User, error)

	// UpdateAddress は住所を更新し結果の行を返す。見つからない場合はnilを返す。
	UpdateAddress(ctx context.Context, googleID, address string) (*model.User, error)

	// RelinkGoogle はユーザーのGoogle連携を付け替える。
	// google_id、email、プロフィール、IDトークンキャッシュを新しい値に差し替え、
	// 結果の行を返す。見つからない場合はnilを返す。
	RelinkGoogle(ctx context.Context, userID int64, user *model.User) (*model.User, error)

	// DeleteByGoogleID は指定google_idのユーザーを削除する。
	// 関連するsessionsはCASCADE削除される。削除した場合trueを返す。
	DeleteByGoogleID(ctx context.Context, googleID string) (bool, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error

	// FindValidByToken は有効な（失効しておらず期限内の）セッションを取得する。
	// 見つからない場合はnilを返す。
	FindValidByToken(ctx context.Context, token string) (*model.Session, error)

	// Revoke は指定トークンのセッションを失効させる。冪等で、
	// 行が有効→失効に遷移した場合のみtrueを返す。
	Revoke(ctx context.Context, token string) (bool, error)

	// RevokeAllByGoogleID は指定ユーザーの全有効セッションを失効させる。
	// 全デバイスからのログアウトとアカウント削除で使用する。
	RevokeAllByGoogleID(ctx context.Context, googleID string) error
}

// CourseRepository はコースデータの永続化インターフェース。
// material_ids / co_creator_ids / tags は順序付き集合として扱い、
// 追加操作は冪等（含まれていれば何もしない）になるようSQLレベルで保証する。
type CourseRepository interface {
	// Create はコースを作成し、採番済みの行を返す。
	Create(ctx context.Context, course *model.Course) (*model.Course, error)

	// FindByID は指定IDのコースを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.Course, error)

	// ListByUser はユーザーが作成者または共同作成者のコース一覧を
	// updated_at降順で返す。
	ListByUser(ctx context.Context, userID int64) ([]*model.Course, error)

	// Update はタイトル・説明・状態・可視性・カバー画像・タグを上書き更新する。
	// 見つからない場合はnilを返す。
	Update(ctx context.Context, course *model.Course) (*model.Course, error)

	// Delete は指定IDのコースを削除する。削除した場合trueを返す。
	Delete(ctx context.Context, id int64) (bool, error)

	// AddMaterial はコースのmaterial_idsに教材IDを追加する。
	// 既に含まれている場合は何もしない（冪等）。
	AddMaterial(ctx context.Context, courseID, materialID int64) error

	// RemoveMaterial はコースのmaterial_idsから教材IDを取り除く。
	RemoveMaterial(ctx context.Context, courseID, materialID int64) error

	// AddCoCreator はコースの共同作成者を追加する。既に含まれている場合は何もしない。
	AddCoCreator(ctx context.Context, courseID, userID int64) error

	// RemoveCoCreator はコースの共同作成者を取り除く。
	RemoveCoCreator(ctx context.Context, courseID, userID int64) error

	// AddTags はタグを重複なしでマージする。
	AddTags(ctx context.Context, courseID int64, tags []string) error

	// VerifyAccess はユーザーがコースへのアクセス権
	// （作成者または共同作成者）を持つかどうかをDBから直接判定する。
	VerifyAccess(ctx context.Context, courseID, userID int64) (bool, error)
}

// MaterialRepository は教材データの永続化インターフェース。
type MaterialRepository interface {
	// Create は教材を作成し、採番済みの行を返す。
	Create(ctx context.Context, material *model.Material) (*model.Material, error)

	// FindByID は指定IDの教材を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.Material, error)

	// ListVisibleByCourse はコースの教材のうち、ユーザーに見えるもの
	// （public または 自身がアップロードしたもの）を作成順で返す。
	ListVisibleByCourse(ctx context.Context, courseID, userID int64) ([]*model.Material, error)

	// UpdateVisibility は教材の可視性を更新し結果の行を返す。
	// 見つからない場合はnilを返す。
	UpdateVisibility(ctx context.Context, id int64, visibility model.MaterialVisibility) (*model.Material, error)

	// Delete は指定IDの教材を削除する。削除した場合trueを返す。
	Delete(ctx context.Context, id int64) (bool, error)
}
