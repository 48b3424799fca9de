package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/coursebox/internal/model"
)

// PostgresMaterialRepo はPostgreSQLを使用した教材リポジトリ。
type PostgresMaterialRepo struct {
	db *sql.DB
}

// NewPostgresMaterialRepo はPostgresMaterialRepoを生成する。
func NewPostgresMaterialRepo(db *sql.DB) *PostgresMaterialRepo {
	return &PostgresMaterialRepo{db: db}
}

const materialColumns = `id, name, file_url, file_type, source_type,
	uploaded_by, course_id, visibility, created_at, updated_at`

// Create は教材を作成し、採番済みの行を返す。
func (r *PostgresMaterialRepo) Create(ctx context.Context, material *model.Material) (*model.Material, error) {
	row := r.db.QueryRowContext(ctx,
		`INSERT INTO materials (
			name, file_url, file_type, source_type, uploaded_by, course_id, visibility
		 )
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING `+materialColumns,
		material.Name, material.FileURL, material.FileType, material.SourceType,
		material.UploadedBy, material.CourseID, material.Visibility,
	)

	saved, err := scanMaterial(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create material: %w", err)
	}
	return saved, nil
}

// FindByID は指定IDの教材を取得する。見つからない場合はnilを返す。
func (r *PostgresMaterialRepo) FindByID(ctx context.Context, id int64) (*model.Material, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+materialColumns+` FROM materials WHERE id = $1`,
		id,
	)

	material, err := scanMaterial(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find material: %w", err)
	}
	return material, nil
}

// ListVisibleByCourse はコースの教材のうち、ユーザーに見えるもの
// （public または 自身がアップロードしたもの）を作成順で返す。
func (r *PostgresMaterialRepo) ListVisibleByCourse(ctx context.Context, courseID, userID int64) ([]*model.Material, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+materialColumns+`
		 FROM materials
		 WHERE course_id = $1 AND (visibility = 'public' OR uploaded_by = $2)
		 ORDER BY created_at ASC`,
		courseID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list materials: %w", err)
	}
	defer rows.Close()

	var materials []*model.Material
	for rows.Next() {
		material, err := scanMaterial(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan material: %w", err)
		}
		materials = append(materials, material)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate materials: %w", err)
	}
	return materials, nil
}

// UpdateVisibility は教材の可視性を更新し結果の行を返す。見つからない場合はnilを返す。
func (r *PostgresMaterialRepo) UpdateVisibility(ctx context.Context, id int64, visibility model.MaterialVisibility) (*model.Material, error) {
	row := r.db.QueryRowContext(ctx,
		`UPDATE materials SET visibility = $1, updated_at = now()
		 WHERE id = $2
		 RETURNING `+materialColumns,
		visibility, id,
	)

	material, err := scanMaterial(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update material visibility: %w", err)
	}
	return material, nil
}

// Delete は指定IDの教材を削除する。削除した場合trueを返す。
func (r *PostgresMaterialRepo) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM materials WHERE id = $1`,
		id,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete material: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read delete result: %w", err)
	}
	return affected > 0, nil
}

// scanMaterial はmaterialColumnsの順序で1行をスキャンする。
func scanMaterial(row rowScanner) (*model.Material, error) {
	material := &model.Material{}
	err := row.Scan(
		&material.ID, &material.Name, &material.FileURL, &material.FileType,
		&material.SourceType, &material.UploadedBy, &material.CourseID,
		&material.Visibility, &material.CreatedAt, &material.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return material, nil
}

// compile-time interface check
var _ MaterialRepository = (*PostgresMaterialRepo)(nil)
