package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/hitoshi/coursebox/internal/model"
)

// PostgresCourseRepo はPostgreSQLを使用したコースリポジトリ。
// material_ids / co_creator_ids / tags はJSONB配列として保存し、
// 集合操作（重複なし追加・要素削除）はSQLレベルで行う。
type PostgresCourseRepo struct {
	db *sql.DB
}

// NewPostgresCourseRepo はPostgresCourseRepoを生成する。
func NewPostgresCourseRepo(db *sql.DB) *PostgresCourseRepo {
	return &PostgresCourseRepo{db: db}
}

const courseColumns = `id, title, description, material_ids, co_creator_ids,
	primary_creator, status, visibility, tags, cover_image_url, created_at, updated_at`

// Create はコースを作成し、採番済みの行を返す。
func (r *PostgresCourseRepo) Create(ctx context.Context, course *model.Course) (*model.Course, error) {
	materialIDs, err := json.Marshal(emptyIfNilInt64(course.MaterialIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to encode material ids: %w", err)
	}
	coCreatorIDs, err := json.Marshal(emptyIfNilInt64(course.CoCreatorIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to encode co-creator ids: %w", err)
	}
	tags, err := json.Marshal(emptyIfNilString(course.Tags))
	if err != nil {
		return nil, fmt.Errorf("failed to encode tags: %w", err)
	}

	row := r.db.QueryRowContext(ctx,
		`INSERT INTO courses (
			title, description, material_ids, co_creator_ids,
			primary_creator, status, visibility, tags, cover_image_url
		 )
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING `+courseColumns,
		course.Title, course.Description, materialIDs, coCreatorIDs,
		course.PrimaryCreator, course.Status, course.Visibility, tags, course.CoverImageURL,
	)

	saved, err := scanCourse(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create course: %w", err)
	}
	return saved, nil
}

// FindByID は指定IDのコースを取得する。見つからない場合はnilを返す。
func (r *PostgresCourseRepo) FindByID(ctx context.Context, id int64) (*model.Course, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+courseColumns+` FROM courses WHERE id = $1`,
		id,
	)

	course, err := scanCourse(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find course: %w", err)
	}
	return course, nil
}

// ListByUser はユーザーが作成者または共同作成者のコース一覧を
// updated_at降順で返す。共同作成者の判定はJSONBの含有演算子で行う。
func (r *PostgresCourseRepo) ListByUser(ctx context.Context, userID int64) ([]*model.Course, error) {
	member, err := json.Marshal([]int64{userID})
	if err != nil {
		return nil, fmt.Errorf("failed to encode user id: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+courseColumns+`
		 FROM courses
		 WHERE primary_creator = $1 OR co_creator_ids @> $2::jsonb
		 ORDER BY updated_at DESC`,
		userID, member,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list courses: %w", err)
	}
	defer rows.Close()

	var courses []*model.Course
	for rows.Next() {
		course, err := scanCourse(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan course: %w", err)
		}
		courses = append(courses, course)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate courses: %w", err)
	}
	return courses, nil
}

// Update はタイトル・説明・状態・可視性・カバー画像・タグを上書き更新する。
// 見つからない場合はnilを返す。
func (r *PostgresCourseRepo) Update(ctx context.Context, course *model.Course) (*model.Course, error) {
	tags, err := json.Marshal(emptyIfNilString(course.Tags))
	if err != nil {
		return nil, fmt.Errorf("failed to encode tags: %w", err)
	}

	row := r.db.QueryRowContext(ctx,
		`UPDATE courses SET
			title = $1,
			description = $2,
			status = $3,
			visibility = $4,
			tags = $5,
			cover_image_url = $6,
			updated_at = now()
		 WHERE id = $7
		 RETURNING `+courseColumns,
		course.Title, course.Description, course.Status, course.Visibility,
		tags, course.CoverImageURL, course.ID,
	)

	updated, err := scanCourse(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update course: %w", err)
	}
	return updated, nil
}

// Delete は指定IDのコースを削除する。削除した場合trueを返す。
func (r *PostgresCourseRepo) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM courses WHERE id = $1`,
		id,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete course: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read delete result: %w", err)
	}
	return affected > 0, nil
}

// AddMaterial はコースのmaterial_idsに教材IDを追加する。
// 既に含まれている場合はWHERE句で弾かれ何もしない（冪等）。
func (r *PostgresCourseRepo) AddMaterial(ctx context.Context, courseID, materialID int64) error {
	return r.appendElement(ctx, "material_ids", courseID, materialID)
}

// RemoveMaterial はコースのmaterial_idsから教材IDを取り除く。
func (r *PostgresCourseRepo) RemoveMaterial(ctx context.Context, courseID, materialID int64) error {
	return r.removeElement(ctx, "material_ids", courseID, materialID)
}

// AddCoCreator はコースの共同作成者を追加する。既に含まれている場合は何もしない。
func (r *PostgresCourseRepo) AddCoCreator(ctx context.Context, courseID, userID int64) error {
	return r.appendElement(ctx, "co_creator_ids", courseID, userID)
}

// RemoveCoCreator はコースの共同作成者を取り除く。
func (r *PostgresCourseRepo) RemoveCoCreator(ctx context.Context, courseID, userID int64) error {
	return r.removeElement(ctx, "co_creator_ids", courseID, userID)
}

// appendElement はJSONB配列列に数値要素を重複なしで追記する。
func (r *PostgresCourseRepo) appendElement(ctx context.Context, column string, courseID, element int64) error {
	single, err := json.Marshal([]int64{element})
	if err != nil {
		return fmt.Errorf("failed to encode element: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`UPDATE courses
		 SET `+column+` = `+column+` || $1::jsonb, updated_at = now()
		 WHERE id = $2 AND NOT (`+column+` @> $1::jsonb)`,
		single, courseID,
	)
	if err != nil {
		return fmt.Errorf("failed to append to %s: %w", column, err)
	}
	return nil
}

// removeElement はJSONB配列列から数値要素を取り除く。
// `-` 演算子は数値要素に作用しないため、要素を展開して組み直す。
func (r *PostgresCourseRepo) removeElement(ctx context.Context, column string, courseID, element int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE courses
		 SET `+column+` = COALESCE(
			(SELECT jsonb_agg(elem)
			 FROM jsonb_array_elements(`+column+`) AS elem
			 WHERE elem != to_jsonb($1::bigint)),
			'[]'::jsonb
		 ), updated_at = now()
		 WHERE id = $2`,
		element, courseID,
	)
	if err != nil {
		return fmt.Errorf("failed to remove from %s: %w", column, err)
	}
	return nil
}

// AddTags はタグを重複なしでマージする。
func (r *PostgresCourseRepo) AddTags(ctx context.Context, courseID int64, tags []string) error {
	if len(tags) == 0 {
		return nil
	}

	encoded, err := json.Marshal(tags)
	if err != nil {
		return fmt.Errorf("failed to encode tags: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`UPDATE courses
		 SET tags = (
			SELECT COALESCE(jsonb_agg(DISTINCT elem), '[]'::jsonb)
			FROM jsonb_array_elements(tags || $1::jsonb) AS elem
		 ), updated_at = now()
		 WHERE id = $2`,
		encoded, courseID,
	)
	if err != nil {
		return fmt.Errorf("failed to merge tags: %w", err)
	}
	return nil
}

// VerifyAccess はユーザーがコースへのアクセス権
// （作成者または共同作成者）を持つかどうかをDBから直接判定する。
func (r *PostgresCourseRepo) VerifyAccess(ctx context.Context, courseID, userID int64) (bool, error) {
	member, err := json.Marshal([]int64{userID})
	if err != nil {
		return false, fmt.Errorf("failed to encode user id: %w", err)
	}

	var allowed bool
	err = r.db.QueryRowContext(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM courses
			WHERE id = $1 AND (primary_creator = $2 OR co_creator_ids @> $3::jsonb)
		 )`,
		courseID, userID, member,
	).Scan(&allowed)
	if err != nil {
		return false, fmt.Errorf("failed to verify course access: %w", err)
	}
	return allowed, nil
}

// scanCourse はcourseColumnsの順序で1行をスキャンし、JSONB列を復元する。
func scanCourse(row rowScanner) (*model.Course, error) {
	course := &model.Course{}
	var materialIDs, coCreatorIDs, tags []byte

	err := row.Scan(
		&course.ID, &course.Title, &course.Description,
		&materialIDs, &coCreatorIDs,
		&course.PrimaryCreator, &course.Status, &course.Visibility,
		&tags, &course.CoverImageURL,
		&course.CreatedAt, &course.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(materialIDs, &course.MaterialIDs); err != nil {
		return nil, fmt.Errorf("failed to decode material ids: %w", err)
	}
	if err := json.Unmarshal(coCreatorIDs, &course.CoCreatorIDs); err != nil {
		return nil, fmt.Errorf("failed to decode co-creator ids: %w", err)
	}
	if err := json.Unmarshal(tags, &course.Tags); err != nil {
		return nil, fmt.Errorf("failed to decode tags: %w", err)
	}
	return course, nil
}

// emptyIfNilInt64 はnilスライスを空のJSON配列にエンコードさせる。
func emptyIfNilInt64(s []int64) []int64 {
	if s == nil {
		return []int64{}
	}
	return s
}

func emptyIfNilString(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// compile-time interface check
var _ CourseRepository = (*PostgresCourseRepo)(nil)
