package model

import "time"

// MaterialVisibility は教材の可視性を表す。
// publicはコースアクセスを持つ全ユーザーに、privateはアップロード者本人にのみ見える。
type MaterialVisibility string

const (
	MaterialVisibilityPublic  MaterialVisibility = "public"
	MaterialVisibilityPrivate MaterialVisibility = "private"
)

// ValidMaterialVisibility はvisibilityが定義済みの値かどうかを判定する。
func ValidMaterialVisibility(v string) bool {
	switch MaterialVisibility(v) {
	case MaterialVisibilityPublic, MaterialVisibilityPrivate:
		return true
	default:
		return false
	}
}

// MaterialSourceUpload は直接アップロードされた教材のソース種別。
const MaterialSourceUpload = "upload"

// Material はコースに紐付くアップロード済み教材を表す。
// レコードはオブジェクトストレージ上の実体確認後にのみ作成される。
// FileURLはストレージキーをエンコードしたロケータURL。
type Material struct {
	ID         int64
	Name       string
	FileURL    string
	FileType   string
	SourceType string
	UploadedBy int64
	CourseID   int64
	Visibility MaterialVisibility
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// VisibleTo は教材がユーザーに見えるかどうかを返す。
// コースレベルのアクセス確認は呼び出し側の責務。
func (m *Material) VisibleTo(userID int64) bool {
	return m.Visibility == MaterialVisibilityPublic || m.UploadedBy == userID
}
