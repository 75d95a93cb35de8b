package storage

import (
	"context"
	"fmt"
	"os"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/connectedhumber/arena-locator/internal/config"
)

// ClipStore uploads recorded arena video clips (§4.4 step 6: "if
// recording is enabled, write scene to video file") to object storage
// instead of a bare local path, so clips survive the process.
type ClipStore struct {
	client *minio.Client
	bucket string
}

func NewClipStore(cfg config.MinIOConfig) (*ClipStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return &ClipStore{client: client, bucket: cfg.Bucket}, nil
}

// EnsureBucket creates the clip bucket if it doesn't exist.
func (s *ClipStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket: %w", err)
		}
	}
	return nil
}

// UploadClip streams a finished local recording file into the bucket
// under key, then removes the local file.
func (s *ClipStore) UploadClip(ctx context.Context, key, localPath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open clip %s: %w", localPath, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat clip %s: %w", localPath, err)
	}

	_, err = s.client.PutObject(ctx, s.bucket, key, f, info.Size(), minio.PutObjectOptions{
		ContentType: "video/mp4",
	})
	if err != nil {
		return fmt.Errorf("upload clip %s: %w", key, err)
	}
	return os.Remove(localPath)
}

// Ping checks MinIO connectivity.
func (s *ClipStore) Ping(ctx context.Context) error {
	_, err := s.client.BucketExists(ctx, s.bucket)
	return err
}
