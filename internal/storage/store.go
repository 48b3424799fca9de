// Package storage はオブジェクトストレージへの署名付きアクセスを提供する。
package storage

import "context"

// UploadTarget はブラウザが直接POSTするための署名付きアップロード先。
type UploadTarget struct {
	URL    string            // POST先URL
	Fields map[string]string // multipart/form-dataに含めるフィールド
}

// ObjectStore はオブジェクトストレージ操作のインターフェース。
// サーバーはファイル本体を中継せず、署名付きURLの発行と存在確認のみを行う。
type ObjectStore interface {
	// PresignUpload は指定キーへの署名付きアップロードURLを発行する。
	// ポリシーでContent-Typeとサイズ上限を固定する。
	PresignUpload(ctx context.Context, key, contentType string) (*UploadTarget, error)

	// Exists はオブジェクトが実在するかを確認する。
	Exists(ctx context.Context, key string) (bool, error)

	// Remove はオブジェクトを削除する。存在しない場合もエラーにしない。
	Remove(ctx context.Context, key string) error

	// PresignDownload は指定キーへの期限付きダウンロードURLを発行する。
	PresignDownload(ctx context.Context, key string) (string, error)

	// ObjectURL はキーに対応する恒久的なロケータURLを返す。DBに保存する値。
	ObjectURL(key string) string

	// KeyFromURL はロケータURLからオブジェクトキーを復元する。
	KeyFromURL(fileURL string) (string, bool)
}
