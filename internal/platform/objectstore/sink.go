package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/phrazzld/coordcore/internal/backup"
	"github.com/phrazzld/coordcore/internal/config"
)

// ErrInvalidConfig is returned by New for unusable settings.
var ErrInvalidConfig = errors.New("invalid object store configuration")

// Sink implements backup.Sink on a bucket.
type Sink struct {
	client *minio.Client
	bucket string
	prefix string
}

var _ backup.Sink = (*Sink)(nil)

// New connects to the object store described by cfg.
func New(cfg config.S3Config) (*Sink, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("%w: endpoint and bucket are required", ErrInvalidConfig)
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create object store client: %w", err)
	}
	return NewSink(client, cfg.Bucket, cfg.Prefix), nil
}

// NewSink wraps an existing client. prefix is prepended to every key.
func NewSink(client *minio.Client, bucket, prefix string) *Sink {
	return &Sink{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
	}
}

// EnsureBucket creates the bucket if it does not exist.
func (s *Sink) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", s.bucket, err)
	}
	return nil
}

func (s *Sink) key(name string) string {
	return path.Join(s.prefix, name)
}

// Save uploads an artifact.
func (s *Sink) Save(ctx context.Context, name string, data []byte) error {
	if !backup.IsArtifactName(name) {
		return fmt.Errorf("%w: %q", backup.ErrInvalidName, name)
	}

	_, err := s.client.PutObject(ctx, s.bucket, s.key(name), bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType(name)})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", name, err)
	}
	return nil
}

// Load downloads an artifact.
func (s *Sink) Load(ctx context.Context, name string) ([]byte, error) {
	if !backup.IsArtifactName(name) {
		return nil, fmt.Errorf("%w: %q", backup.ErrInvalidName, name)
	}

	obj, err := s.client.GetObject(ctx, s.bucket, s.key(name), minio.GetObjectOptions{})
	if err != nil {
		return nil, mapError(name, err)
	}
	defer func() { _ = obj.Close() }()

	// GetObject is lazy; a missing key surfaces on the first read.
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, mapError(name, err)
	}
	return data, nil
}

// List returns the artifact names under the prefix.
func (s *Sink) List(ctx context.Context) ([]string, error) {
	listPrefix := ""
	if s.prefix != "" {
		listPrefix = s.prefix + "/"
	}

	var names []string
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    listPrefix,
		Recursive: false,
	}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", s.bucket, obj.Err)
		}
		name := strings.TrimPrefix(obj.Key, listPrefix)
		if backup.IsArtifactName(name) {
			names = append(names, name)
		}
	}
	return names, nil
}

// Delete removes an artifact.
func (s *Sink) Delete(ctx context.Context, name string) error {
	if !backup.IsArtifactName(name) {
		return fmt.Errorf("%w: %q", backup.ErrInvalidName, name)
	}

	if err := s.client.RemoveObject(ctx, s.bucket, s.key(name), minio.RemoveObjectOptions{}); err != nil {
		return mapError(name, err)
	}
	return nil
}

func mapError(name string, err error) error {
	code := minio.ToErrorResponse(err).Code
	if code == "NoSuchKey" || code == "NotFound" {
		return fmt.Errorf("%w: %s", backup.ErrNotFound, name)
	}
	return fmt.Errorf("object store %s: %w", name, err)
}

func contentType(name string) string {
	if strings.HasSuffix(name, ".zst") {
		return "application/zstd"
	}
	return "application/json"
}
