package files

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
)

type S3Storage struct {
	client    *minio.Client
	bucket    string
	publicURL string

	ensureOnce sync.Once
	ensureErr  error
}

// NewS3Storage wraps a minio client for course material uploads. publicURL is
// the CDN or endpoint base the stored objects are served from.
func NewS3Storage(client *minio.Client, bucket, publicURL string) *S3Storage {
	return &S3Storage{
		client:    client,
		bucket:    strings.TrimSpace(bucket),
		publicURL: strings.TrimRight(strings.TrimSpace(publicURL), "/"),
	}
}

func (s *S3Storage) EnsureBucket(ctx context.Context) error {
	if s.client == nil {
		return fmt.Errorf("s3 client is nil")
	}
	if s.bucket == "" {
		return fmt.Errorf("s3 bucket is empty")
	}

	s.ensureOnce.Do(func() {
		exists, err := s.client.BucketExists(ctx, s.bucket)
		if err != nil {
			s.ensureErr = err
			return
		}
		if exists {
			return
		}
		s.ensureErr = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{})
	})

	if s.ensureErr != nil {
		return fmt.Errorf("ensure s3 bucket %q: %w", s.bucket, s.ensureErr)
	}

	return nil
}

// Put stores the object and returns its public URL.
func (s *S3Storage) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error) {
	if s.client == nil {
		return "", fmt.Errorf("s3 client is nil")
	}
	if key == "" || body == nil || size <= 0 {
		return "", ErrValidation
	}

	_, err := s.client.PutObject(ctx, s.bucket, key, body, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("put object to s3: %w", err)
	}

	if s.publicURL != "" {
		return s.publicURL + "/" + key, nil
	}
	return fmt.Sprintf("%s/%s/%s", strings.TrimRight(s.client.EndpointURL().String(), "/"), s.bucket, key), nil
}

func (s *S3Storage) Delete(ctx context.Context, key string) error {
	if s.client == nil || key == "" {
		return nil
	}
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}
