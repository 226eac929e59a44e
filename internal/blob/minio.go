package blob

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIOStore keeps objects in a MinIO (or S3-compatible) bucket.
type MinIOStore struct {
	client *minio.Client
	bucket string
}

func NewMinIOStore(endpoint, accessKey, secretKey, bucket string, useSSL bool) (*MinIOStore, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("blob: minio client: %w", err)
	}

	store := &MinIOStore{client: client, bucket: bucket}
	if err := store.ensureBucket(); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *MinIOStore) ensureBucket() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("blob: check bucket: %w", err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("blob: create bucket: %w", err)
	}
	return nil
}

func (s *MinIOStore) Put(ctx context.Context, name string, r io.Reader, size int64) (string, error) {
	object := uuid.New().String() + "/" + name
	_, err := s.client.PutObject(ctx, s.bucket, object, r, size, minio.PutObjectOptions{})
	if err != nil {
		return "", fmt.Errorf("blob: put %s: %w", object, err)
	}
	return object, nil
}

func (s *MinIOStore) Get(ctx context.Context, object string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, object, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("blob: get %s: %w", object, err)
	}
	// GetObject is lazy; probe so missing objects surface as ErrNotFound here.
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("blob: stat %s: %w", object, err)
	}
	return obj, nil
}

func (s *MinIOStore) Delete(ctx context.Context, object string) error {
	err := s.client.RemoveObject(ctx, s.bucket, object, minio.RemoveObjectOptions{})
	if err != nil {
		return fmt.Errorf("blob: delete %s: %w", object, err)
	}
	return nil
}
