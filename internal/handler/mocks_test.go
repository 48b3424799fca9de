package handler

import (
	"context"

	"github.com/hitoshi/coursebox/internal/auth"
	"github.com/hitoshi/coursebox/internal/course"
	"github.com/hitoshi/coursebox/internal/material"
	"github.com/hitoshi/coursebox/internal/model"
)

type mockAuthService struct {
	loginFn        func(ctx context.Context, credential string) (*auth.LoginResult, error)
	logoutFn       func(ctx context.Context, token string) error
	relinkGoogleFn func(ctx context.Context, user *model.User, credential string) (*auth.LoginResult, error)
	csrfTokenForFn func(sessionToken string) string
	validateSessFn func(ctx context.Context, token string) (*model.User, error)
}

var _ AuthServiceInterface = (*mockAuthService)(nil)

func (m *mockAuthService) Login(ctx context.Context, credential string) (*auth.LoginResult, error) {
	return m.loginFn(ctx, credential)
}

func (m *mockAuthService) Logout(ctx context.Context, token string) error {
	return m.logoutFn(ctx, token)
}

func (m *mockAuthService) RelinkGoogle(ctx context.Context, user *model.User, credential string) (*auth.LoginResult, error) {
	return m.relinkGoogleFn(ctx, user, credential)
}

func (m *mockAuthService) CSRFTokenFor(sessionToken string) string {
	if m.csrfTokenForFn == nil {
		return "csrf-" + sessionToken
	}
	return m.csrfTokenForFn(sessionToken)
}

// ValidateSession はセッションミドルウェア用のSessionResolver実装。
func (m *mockAuthService) ValidateSession(ctx context.Context, token string) (*model.User, error) {
	return m.validateSessFn(ctx, token)
}

type mockCourseService struct {
	createFn          func(ctx context.Context, userID int64, input course.CreateInput) (*model.Course, error)
	listFn            func(ctx context.Context, userID int64) ([]*course.CourseWithRole, error)
	updateFn          func(ctx context.Context, userID, courseID int64, input course.UpdateInput) (*model.Course, error)
	deleteFn          func(ctx context.Context, userID, courseID int64) error
	addCoCreatorFn    func(ctx context.Context, userID, courseID, coCreatorID int64) (*model.Course, error)
	removeCoCreatorFn func(ctx context.Context, userID, courseID, coCreatorID int64) (*model.Course, error)
	addTagsFn         func(ctx context.Context, userID, courseID int64, tags []string) (*model.Course, error)
}

var _ CourseServiceInterface = (*mockCourseService)(nil)

func (m *mockCourseService) Create(ctx context.Context, userID int64, input course.CreateInput) (*model.Course, error) {
	return m.createFn(ctx, userID, input)
}

func (m *mockCourseService) List(ctx context.Context, userID int64) ([]*course.CourseWithRole, error) {
	return m.listFn(ctx, userID)
}

func (m *mockCourseService) Update(ctx context.Context, userID, courseID int64, input course.UpdateInput) (*model.Course, error) {
	return m.updateFn(ctx, userID, courseID, input)
}

func (m *mockCourseService) Delete(ctx context.Context, userID, courseID int64) error {
	return m.deleteFn(ctx, userID, courseID)
}

func (m *mockCourseService) AddCoCreator(ctx context.Context, userID, courseID, coCreatorID int64) (*model.Course, error) {
	return m.addCoCreatorFn(ctx, userID, courseID, coCreatorID)
}

func (m *mockCourseService) RemoveCoCreator(ctx context.Context, userID, courseID, coCreatorID int64) (*model.Course, error) {
	return m.removeCoCreatorFn(ctx, userID, courseID, coCreatorID)
}

func (m *mockCourseService) AddTags(ctx context.Context, userID, courseID int64, tags []string) (*model.Course, error) {
	return m.addTagsFn(ctx, userID, courseID, tags)
}

type mockMaterialService struct {
	requestUploadFn    func(ctx context.Context, userID int64, req material.UploadRequest) (*material.UploadTicket, error)
	confirmUploadFn    func(ctx context.Context, userID int64, req material.ConfirmRequest) (*model.Material, error)
	listByCourseFn     func(ctx context.Context, userID, courseID int64) ([]*material.MaterialWithURL, error)
	updateVisibilityFn func(ctx context.Context, userID, materialID int64, visibility string) (*model.Material, error)
	deleteFn           func(ctx context.Context, userID, materialID int64) error
	getDownloadURLFn   func(ctx context.Context, userID, materialID int64) (string, error)
}

var _ MaterialServiceInterface = (*mockMaterialService)(nil)

func (m *mockMaterialService) RequestUpload(ctx context.Context, userID int64, req material.UploadRequest) (*material.UploadTicket, error) {
	return m.requestUploadFn(ctx, userID, req)
}

func (m *mockMaterialService) ConfirmUpload(ctx context.Context, userID int64, req material.ConfirmRequest) (*model.Material, error) {
	return m.confirmUploadFn(ctx, userID, req)
}

func (m *mockMaterialService) ListByCourse(ctx context.Context, userID, courseID int64) ([]*material.MaterialWithURL, error) {
	return m.listByCourseFn(ctx, userID, courseID)
}

func (m *mockMaterialService) UpdateVisibility(ctx context.Context, userID, materialID int64, visibility string) (*model.Material, error) {
	return m.updateVisibilityFn(ctx, userID, materialID, visibility)
}

func (m *mockMaterialService) Delete(ctx context.Context, userID, materialID int64) error {
	return m.deleteFn(ctx, userID, materialID)
}

func (m *mockMaterialService) GetDownloadURL(ctx context.Context, userID, materialID int64) (string, error) {
	return m.getDownloadURLFn(ctx, userID, materialID)
}

type mockUserService struct {
	updateUsernameFn func(ctx context.Context, googleID, username string) (*model.User, error)
	updateAddressFn  func(ctx context.Context, googleID, address string) (*model.User, error)
	deleteAccountFn  func(ctx context.Context, googleID string) error
}

var _ UserServiceInterface = (*mockUserService)(nil)

func (m *mockUserService) UpdateUsername(ctx context.Context, googleID, username string) (*model.User, error) {
	return m.updateUsernameFn(ctx, googleID, username)
}

func (m *mockUserService) UpdateAddress(ctx context.Context, googleID, address string) (*model.User, error) {
	return m.updateAddressFn(ctx, googleID, address)
}

func (m *mockUserService) DeleteAccount(ctx context.Context, googleID string) error {
	return m.deleteAccountFn(ctx, googleID)
}
