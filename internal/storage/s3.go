package storage

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Config はS3互換ストレージの設定。
type S3Config struct {
	Endpoint       string // 例: s3.amazonaws.com, localhost:9000
	Region         string
	Bucket         string
	AccessKey      string
	SecretKey      string
	UseSSL         bool
	UploadMaxSize  int64         // アップロードサイズ上限（バイト）
	UploadURLTTL   time.Duration // アップロードURL有効期間
	DownloadURLTTL time.Duration // ダウンロードURL有効期間
}

// S3Store はminioクライアントによるObjectStore実装。
// AWS S3とMinIO等のS3互換ストレージの両方で動作する。
type S3Store struct {
	client *minio.Client
	config S3Config
}

// NewS3Store はS3Storeを生成する。
func NewS3Store(config S3Config) (*S3Store, error) {
	if config.Bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}

	client, err := minio.New(config.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(config.AccessKey, config.SecretKey, ""),
		Secure: config.UseSSL,
		Region: config.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	return &S3Store{client: client, config: config}, nil
}

// PresignUpload は署名付きPOSTポリシーを発行する。
// キー・Content-Type・サイズ上限をポリシーで固定し、
// 発行したURL以外の場所への書き込みを防ぐ。
func (s *S3Store) PresignUpload(ctx context.Context, key, contentType string) (*UploadTarget, error) {
	policy := minio.NewPostPolicy()
	if err := policy.SetBucket(s.config.Bucket); err != nil {
		return nil, fmt.Errorf("failed to set bucket policy: %w", err)
	}
	if err := policy.SetKey(key); err != nil {
		return nil, fmt.Errorf("failed to set key policy: %w", err)
	}
	if err := policy.SetContentType(contentType); err != nil {
		return nil, fmt.Errorf("failed to set content type policy: %w", err)
	}
	if err := policy.SetContentLengthRange(1, s.config.UploadMaxSize); err != nil {
		return nil, fmt.Errorf("failed to set content length policy: %w", err)
	}
	if err := policy.SetExpires(time.Now().UTC().Add(s.config.UploadURLTTL)); err != nil {
		return nil, fmt.Errorf("failed to set expiry policy: %w", err)
	}

	postURL, fields, err := s.client.PresignedPostPolicy(ctx, policy)
	if err != nil {
		return nil, fmt.Errorf("failed to presign upload: %w", err)
	}

	return &UploadTarget{URL: postURL.String(), Fields: fields}, nil
}

// Exists はオブジェクトの実在をHEADで確認する。
func (s *S3Store) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.StatObject(ctx, s.config.Bucket, key, minio.StatObjectOptions{})
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" || resp.StatusCode == 404 {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat object: %w", err)
	}
	return true, nil
}

// Remove はオブジェクトを削除する。
func (s *S3Store) Remove(ctx context.Context, key string) error {
	err := s.client.RemoveObject(ctx, s.config.Bucket, key, minio.RemoveObjectOptions{})
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" || resp.StatusCode == 404 {
			return nil
		}
		return fmt.Errorf("failed to remove object: %w", err)
	}
	return nil
}

// PresignDownload は期限付きダウンロードURLを発行する。
func (s *S3Store) PresignDownload(ctx context.Context, key string) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.config.Bucket, key, s.config.DownloadURLTTL, url.Values{})
	if err != nil {
		return "", fmt.Errorf("failed to presign download: %w", err)
	}
	return u.String(), nil
}

// ObjectURL は仮想ホスト形式のロケータURLを返す。
// 署名を含まないため、アクセスには都度PresignDownloadが必要になる。
func (s *S3Store) ObjectURL(key string) string {
	scheme := "https"
	if !s.config.UseSSL {
		scheme = "http"
	}
	return fmt.Sprintf("%s://%s.%s/%s", scheme, s.config.Bucket, s.config.Endpoint, key)
}

// KeyFromURL はロケータURLからオブジェクトキーを復元する。
// 仮想ホスト形式とパス形式の両方を受け付ける。
func (s *S3Store) KeyFromURL(fileURL string) (string, bool) {
	u, err := url.Parse(fileURL)
	if err != nil || u.Path == "" {
		return "", false
	}

	key := strings.TrimPrefix(u.Path, "/")
	// パス形式（http://endpoint/bucket/key）の場合はバケット名を取り除く
	if !strings.HasPrefix(u.Host, s.config.Bucket+".") {
		key = strings.TrimPrefix(key, s.config.Bucket+"/")
	}
	if key == "" {
		return "", false
	}
	return key, true
}

// compile-time interface check
var _ ObjectStore = (*S3Store)(nil)
