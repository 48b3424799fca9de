package model

import (
	"slices"
	"time"
)

// CourseStatus はコースの公開状態を表す。
type CourseStatus string

const (
	CourseStatusDraft     CourseStatus = "draft"
	CourseStatusPublished CourseStatus = "published"
	CourseStatusArchived  CourseStatus = "archived"
)

// ValidCourseStatus はstatusが定義済みの値かどうかを判定する。
func ValidCourseStatus(s string) bool {
	switch CourseStatus(s) {
	case CourseStatusDraft, CourseStatusPublished, CourseStatusArchived:
		return true
	default:
		return false
	}
}

// CourseVisibility はコースの可視性を表す。
type CourseVisibility string

const (
	CourseVisibilityPrivate CourseVisibility = "private"
	CourseVisibilityShared  CourseVisibility = "shared"
	CourseVisibilityPublic  CourseVisibility = "public"
)

// ValidCourseVisibility はvisibilityが定義済みの値かどうかを判定する。
func ValidCourseVisibility(v string) bool {
	switch CourseVisibility(v) {
	case CourseVisibilityPrivate, CourseVisibilityShared, CourseVisibilityPublic:
		return true
	default:
		return false
	}
}

// Course は教材をまとめるコースを表す。
// PrimaryCreatorは不変のオーナーで、削除権限を独占する。
// MaterialIDs / CoCreatorIDs / Tags はDB上はJSONBの集合として保持され、
// 追加は冪等（既存なら何もしない）、重複は発生しない。
type Course struct {
	ID             int64
	Title          string
	Description    string
	MaterialIDs    []int64
	CoCreatorIDs   []int64
	PrimaryCreator int64
	Status         CourseStatus
	Visibility     CourseVisibility
	Tags           []string
	CoverImageURL  string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// HasAccess はユーザーがコースの読み書きアクセスを持つかどうかを返す。
// アクセス = プライマリ作成者 または 共同作成者。
func (c *Course) HasAccess(userID int64) bool {
	return c.PrimaryCreator == userID || slices.Contains(c.CoCreatorIDs, userID)
}

// IsOwner はユーザーがプライマリ作成者かどうかを返す。
func (c *Course) IsOwner(userID int64) bool {
	return c.PrimaryCreator == userID
}
