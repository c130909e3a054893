package service

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
)

// ObjectStorage 附件对象存储
type ObjectStorage interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	URL(ctx context.Context, key, fileName string) (string, error)
}

// AttachmentStorage MinIO实现
type AttachmentStorage struct {
	client *minio.Client
	bucket string
	expiry time.Duration
}

func NewAttachmentStorage(client *minio.Client, bucket string, expiry time.Duration) *AttachmentStorage {
	if expiry <= 0 {
		expiry = 15 * time.Minute
	}
	return &AttachmentStorage{client: client, bucket: bucket, expiry: expiry}
}

// EnsureBucket 启动时创建bucket（已存在则跳过）
func (s *AttachmentStorage) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %s: %w", s.bucket, err)
	}
	return nil
}

func (s *AttachmentStorage) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	return nil
}

// URL 生成带文件名的临时下载链接
func (s *AttachmentStorage) URL(ctx context.Context, key, fileName string) (string, error) {
	params := url.Values{}
	params.Set("response-content-disposition", fmt.Sprintf("attachment; filename=%q", fileName))
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, s.expiry, params)
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return u.String(), nil
}
