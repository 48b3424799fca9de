package handler

import (
	"time"

	"github.com/hitoshi/coursebox/internal/course"
	"github.com/hitoshi/coursebox/internal/material"
	"github.com/hitoshi/coursebox/internal/model"
)

// userResponse はユーザー情報のAPIレスポンス。
// IdPトークンキャッシュは含めない。
type userResponse struct {
	ID            int64     `json:"id"`
	GoogleID      string    `json:"google_id"`
	Email         string    `json:"email"`
	EmailVerified bool      `json:"email_verified"`
	Name          string    `json:"name"`
	GivenName     string    `json:"given_name"`
	FamilyName    string    `json:"family_name"`
	Picture       string    `json:"picture"`
	Locale        string    `json:"locale"`
	Username      string    `json:"username"`
	Address       string    `json:"address"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// courseResponse はコース情報のAPIレスポンス。
type courseResponse struct {
	ID             int64     `json:"id"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	MaterialIDs    []int64   `json:"material_ids"`
	CoCreatorIDs   []int64   `json:"co_creator_ids"`
	PrimaryCreator int64     `json:"primary_creator"`
	Status         string    `json:"status"`
	Visibility     string    `json:"visibility"`
	Tags           []string  `json:"tags"`
	CoverImageURL  string    `json:"cover_image_url"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// courseListItemResponse は一覧表示用にis_ownerを付与したコース情報。
type courseListItemResponse struct {
	courseResponse
	IsOwner bool `json:"is_owner"`
}

// materialResponse は教材情報のAPIレスポンス。
type materialResponse struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	FileURL    string    `json:"file_url"`
	FileType   string    `json:"file_type"`
	SourceType string    `json:"source_type"`
	UploadedBy int64     `json:"uploaded_by"`
	CourseID   int64     `json:"course_id"`
	Visibility string    `json:"visibility"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// materialListItemResponse は一覧表示用に期限付きダウンロードURLを付与した教材情報。
// download_urlは署名発行に失敗した場合nullになる。
type materialListItemResponse struct {
	materialResponse
	DownloadURL *string `json:"download_url"`
}

// successResponse は削除系操作の成功レスポンス。
type successResponse struct {
	Success bool `json:"success"`
}

func toUserResponse(u *model.User) userResponse {
	return userResponse{
		ID:            u.ID,
		GoogleID:      u.GoogleID,
		Email:         u.Email,
		EmailVerified: u.EmailVerified,
		Name:          u.Name,
		GivenName:     u.GivenName,
		FamilyName:    u.FamilyName,
		Picture:       u.Picture,
		Locale:        u.Locale,
		Username:      u.Username,
		Address:       u.Address,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
}

func toCourseResponse(c *model.Course) courseResponse {
	materialIDs := c.MaterialIDs
	if materialIDs == nil {
		materialIDs = []int64{}
	}
	coCreatorIDs := c.CoCreatorIDs
	if coCreatorIDs == nil {
		coCreatorIDs = []int64{}
	}
	tags := c.Tags
	if tags == nil {
		tags = []string{}
	}
	return courseResponse{
		ID:             c.ID,
		Title:          c.Title,
		Description:    c.Description,
		MaterialIDs:    materialIDs,
		CoCreatorIDs:   coCreatorIDs,
		PrimaryCreator: c.PrimaryCreator,
		Status:         string(c.Status),
		Visibility:     string(c.Visibility),
		Tags:           tags,
		CoverImageURL:  c.CoverImageURL,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}
}

func toCourseListResponse(items []*course.CourseWithRole) []courseListItemResponse {
	out := make([]courseListItemResponse, 0, len(items))
	for _, item := range items {
		out = append(out, courseListItemResponse{
			courseResponse: toCourseResponse(item.Course),
			IsOwner:        item.IsOwner,
		})
	}
	return out
}

func toMaterialResponse(m *model.Material) materialResponse {
	return materialResponse{
		ID:         m.ID,
		Name:       m.Name,
		FileURL:    m.FileURL,
		FileType:   m.FileType,
		SourceType: m.SourceType,
		UploadedBy: m.UploadedBy,
		CourseID:   m.CourseID,
		Visibility: string(m.Visibility),
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}

func toMaterialListResponse(items []*material.MaterialWithURL) []materialListItemResponse {
	out := make([]materialListItemResponse, 0, len(items))
	for _, item := range items {
		resp := materialListItemResponse{
			materialResponse: toMaterialResponse(item.Material),
		}
		if item.DownloadURL != "" {
			url := item.DownloadURL
			resp.DownloadURL = &url
		}
		out = append(out, resp)
	}
	return out
}
