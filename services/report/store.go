package report

import (
	"bytes"
	"context"

	"smallbiznis-reputation/pkg/config"

	"github.com/minio/minio-go/v7"
)

// ArtifactStore persists rendered report files and returns their path.
type ArtifactStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

type MinioStore struct {
	client *minio.Client
	bucket string
}

func NewMinioStore(client *minio.Client, cfg *config.Config) ArtifactStore {
	return &MinioStore{client: client, bucket: cfg.Minio.BucketName}
}

// Put uploads data under key. The returned path is "{bucket}/{key}".
func (s *MinioStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", err
	}
	return s.bucket + "/" + key, nil
}
