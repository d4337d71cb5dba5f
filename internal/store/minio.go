package store

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/ayush/skill-swap/internal/models"
)

// MinioStore keeps profile photos in a MinIO bucket.
type MinioStore struct {
	client *minio.Client
	bucket string
}

func NewMinioStore(ctx context.Context, endpoint, accessKey, secretKey, bucket string, useSSL bool) (*MinioStore, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("minio bucket check: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("minio make bucket: %w", err)
		}
	}

	return &MinioStore{client: client, bucket: bucket}, nil
}

func avatarKey(userID string) string {
	return "avatars/" + userID
}

// PutPhoto stores a user's profile photo, replacing any previous one.
func (s *MinioStore) PutPhoto(ctx context.Context, userID string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, avatarKey(userID), bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("minio put photo: %w", err)
	}
	return nil
}

// GetPhoto returns the photo bytes and their content type.
func (s *MinioStore) GetPhoto(ctx context.Context, userID string) ([]byte, string, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, avatarKey(userID), minio.GetObjectOptions{})
	if err != nil {
		return nil, "", fmt.Errorf("minio get photo: %w", err)
	}
	defer obj.Close()

	info, err := obj.Stat()
	if err != nil {
		if isNoSuchKey(err) {
			return nil, "", models.ErrNotFound
		}
		return nil, "", fmt.Errorf("minio stat photo: %w", err)
	}

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, "", fmt.Errorf("minio read photo: %w", err)
	}
	return data, info.ContentType, nil
}

// RemovePhoto deletes the user's photo. Removing a missing photo is not an
// error.
func (s *MinioStore) RemovePhoto(ctx context.Context, userID string) error {
	err := s.client.RemoveObject(ctx, s.bucket, avatarKey(userID), minio.RemoveObjectOptions{})
	if err != nil && !isNoSuchKey(err) {
		return fmt.Errorf("minio remove photo: %w", err)
	}
	return nil
}

func isNoSuchKey(err error) bool {
	return minio.ToErrorResponse(err).Code == "NoSuchKey"
}
