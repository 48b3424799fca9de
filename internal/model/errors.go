// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, course, material, storage, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized        = "UNAUTHORIZED"
	ErrCodeForbidden           = "FORBIDDEN"
	ErrCodeCSRFInvalid         = "CSRF_INVALID"
	ErrCodeInvalidRequest      = "INVALID_REQUEST"
	ErrCodeInvalidVisibility   = "INVALID_VISIBILITY"
	ErrCodeUnsupportedFileType = "UNSUPPORTED_FILE_TYPE"
	ErrCodeFileNotFound        = "FILE_NOT_FOUND"
	ErrCodeUserNotFound        = "USER_NOT_FOUND"
	ErrCodeCourseNotFound      = "COURSE_NOT_FOUND"
	ErrCodeMaterialNotFound    = "MATERIAL_NOT_FOUND"
	ErrCodeSameAccount         = "SAME_ACCOUNT"
	ErrCodeAccountTaken        = "ACCOUNT_TAKEN"
	ErrCodeEmailTaken          = "EMAIL_TAKEN"
	ErrCodeIDPFailure          = "IDP_FAILURE"
	ErrCodeStorageFailure      = "STORAGE_FAILURE"
	ErrCodeRateLimited         = "RATE_LIMITED"
)

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewForbiddenError は認可エラーを生成する。
func NewForbiddenError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  fmt.Sprintf("この操作を行う権限がありません: %s", reason),
		Category: "auth",
		Action:   "コースの作成者または共同作成者に操作を依頼してください。",
	}
}

// NewCSRFInvalidError はCSRFトークン不一致エラーを生成する。
func NewCSRFInvalidError() *APIError {
	return &APIError{
		Code:     ErrCodeCSRFInvalid,
		Message:  "CSRFトークンが無効です。",
		Category: "auth",
		Action:   "ページを再読み込みしてから再度お試しください。",
	}
}

// NewInvalidRequestError はリクエスト不正エラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("リクエストが不正です: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewInvalidVisibilityError は可視性の値が不正な場合のエラーを生成する。
func NewInvalidVisibilityError(v string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidVisibility,
		Message:  fmt.Sprintf("無効な可視性です: %s", v),
		Category: "validation",
		Action:   "public または private を指定してください。",
	}
}

// NewUnsupportedFileTypeError は許可されていないMIMEタイプのエラーを生成する。
func NewUnsupportedFileTypeError(fileType string) *APIError {
	return &APIError{
		Code:     ErrCodeUnsupportedFileType,
		Message:  fmt.Sprintf("サポートされていないファイル形式です: %s", fileType),
		Category: "validation",
		Action:   "PDF、Office文書、テキスト、CSV、または画像ファイルをアップロードしてください。",
	}
}

// NewFileNotFoundError はストレージ上にオブジェクトが見つからない場合のエラーを生成する。
func NewFileNotFoundError(key string) *APIError {
	return &APIError{
		Code:     ErrCodeFileNotFound,
		Message:  fmt.Sprintf("ストレージにファイルが見つかりません: %s。アップロードが失敗した可能性があります。", key),
		Category: "storage",
		Action:   "アップロードをやり直してから再度確定してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewCourseNotFoundError はコースが見つからない場合のエラーを生成する。
func NewCourseNotFoundError(courseID int64) *APIError {
	return &APIError{
		Code:     ErrCodeCourseNotFound,
		Message:  fmt.Sprintf("指定されたコースが見つかりません: %d", courseID),
		Category: "course",
		Action:   "コースIDを確認してください。",
	}
}

// NewMaterialNotFoundError は教材が見つからない場合のエラーを生成する。
func NewMaterialNotFoundError(materialID int64) *APIError {
	return &APIError{
		Code:     ErrCodeMaterialNotFound,
		Message:  fmt.Sprintf("指定された教材が見つかりません: %d", materialID),
		Category: "material",
		Action:   "教材IDを確認してください。",
	}
}

// NewSameAccountError は既に連携済みのGoogleアカウントで再連携しようとした場合のエラーを生成する。
func NewSameAccountError() *APIError {
	return &APIError{
		Code:     ErrCodeSameAccount,
		Message:  "このGoogleアカウントは既に連携されています。",
		Category: "auth",
		Action:   "別のGoogleアカウントを選択してください。",
	}
}

// NewAccountTakenError はGoogleアカウントが他ユーザーに登録済みの場合のエラーを生成する。
func NewAccountTakenError() *APIError {
	return &APIError{
		Code:     ErrCodeAccountTaken,
		Message:  "このGoogleアカウントは別のユーザーに登録されています。",
		Category: "auth",
		Action:   "別のGoogleアカウントを選択してください。",
	}
}

// NewEmailTakenError はメールアドレスが他ユーザーに登録済みの場合のエラーを生成する。
func NewEmailTakenError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailTaken,
		Message:  "このメールアドレスは別のユーザーに登録されています。",
		Category: "auth",
		Action:   "別のGoogleアカウントを選択してください。",
	}
}

// NewIDPFailureError はIdPトークン検証の失敗エラーを生成する。
func NewIDPFailureError() *APIError {
	return &APIError{
		Code:     ErrCodeIDPFailure,
		Message:  "Googleトークンの検証に失敗しました。",
		Category: "auth",
		Action:   "もう一度サインインし直してください。",
	}
}

// NewRateLimitedError はレート制限超過エラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "リクエストが多すぎます。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewStorageFailureError はオブジェクトストレージ操作の失敗エラーを生成する。
// detailには機密情報を含めないこと。
func NewStorageFailureError(detail string) *APIError {
	return &APIError{
		Code:     ErrCodeStorageFailure,
		Message:  fmt.Sprintf("ストレージ操作に失敗しました: %s", detail),
		Category: "storage",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
