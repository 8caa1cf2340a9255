package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/joseph-ayodele/notetasks/internal/common"
)

type MinioOpts func(c *minioConfig)

type minioConfig struct {
	endpoint        string
	bucket          string
	accessKey       string
	secretAccessKey string
	region          string
	prefix          string
	useSSL          bool
}

func WithEndpoint(endpoint string) MinioOpts {
	return func(c *minioConfig) { c.endpoint = endpoint }
}

func WithBucket(bucket string) MinioOpts {
	return func(c *minioConfig) { c.bucket = bucket }
}

func WithAccessKey(accessKey string) MinioOpts {
	return func(c *minioConfig) { c.accessKey = accessKey }
}

func WithSecretKey(secretKey string) MinioOpts {
	return func(c *minioConfig) { c.secretAccessKey = secretKey }
}

func WithRegion(region string) MinioOpts {
	return func(c *minioConfig) { c.region = region }
}

// WithPrefix stores every key under prefix inside the bucket.
func WithPrefix(prefix string) MinioOpts {
	return func(c *minioConfig) { c.prefix = prefix }
}

func WithSSL(useSSL bool) MinioOpts {
	return func(c *minioConfig) { c.useSSL = useSSL }
}

// MinioStore keeps images in an S3-compatible bucket.
type MinioStore struct {
	cfg    minioConfig
	client *minio.Client
	logger *slog.Logger
}

func NewMinioStore(logger *slog.Logger, opts ...MinioOpts) (*MinioStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg := minioConfig{region: "us-east-1"}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.endpoint == "" || cfg.bucket == "" {
		return nil, fmt.Errorf("%w: minio endpoint and bucket are required", common.ErrInvalidInput)
	}

	client, err := minio.New(cfg.endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.accessKey, cfg.secretAccessKey, ""),
		Secure: cfg.useSSL,
		Region: cfg.region,
	})
	if err != nil {
		return nil, err
	}
	return &MinioStore{cfg: cfg, client: client, logger: logger}, nil
}

func (s *MinioStore) Type() string { return "minio" }

// EnsureBucket creates the bucket when it does not exist yet.
func (s *MinioStore) EnsureBucket(ctx context.Context) error {
	ok, err := s.client.BucketExists(ctx, s.cfg.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.cfg.bucket, err)
	}
	if ok {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.cfg.bucket, minio.MakeBucketOptions{Region: s.cfg.region}); err != nil {
		return fmt.Errorf("create bucket %s: %w", s.cfg.bucket, err)
	}
	s.logger.Info("storage.minio.bucket_created", "bucket", s.cfg.bucket)
	return nil
}

func (s *MinioStore) object(key string) (string, error) {
	k, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	if s.cfg.prefix != "" {
		return s.cfg.prefix + "/" + k, nil
	}
	return k, nil
}

func (s *MinioStore) Write(ctx context.Context, key string, data []byte, contentType string) error {
	name, err := s.object(key)
	if err != nil {
		return err
	}
	_, err = s.client.PutObject(ctx, s.cfg.bucket, name, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		s.logger.Error("storage.minio.put_failed", "key", name, "error", err)
		return fmt.Errorf("put %s: %w", name, err)
	}
	s.logger.Debug("storage.minio.write", "key", name, "bytes", len(data))
	return nil
}

func (s *MinioStore) Read(ctx context.Context, key string) ([]byte, error) {
	name, err := s.object(key)
	if err != nil {
		return nil, err
	}
	object, err := s.client.GetObject(ctx, s.cfg.bucket, name, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", name, err)
	}
	defer object.Close()

	data, err := io.ReadAll(object)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", common.ErrImageNotFound, key)
		}
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return data, nil
}

func (s *MinioStore) Exists(ctx context.Context, key string) (bool, error) {
	name, err := s.object(key)
	if err != nil {
		return false, err
	}
	_, err = s.client.StatObject(ctx, s.cfg.bucket, name, minio.StatObjectOptions{})
	switch {
	case err == nil:
		return true, nil
	case isNotFound(err):
		return false, nil
	default:
		return false, fmt.Errorf("stat %s: %w", name, err)
	}
}

func (s *MinioStore) Delete(ctx context.Context, key string) error {
	name, err := s.object(key)
	if err != nil {
		return err
	}
	if err := s.client.RemoveObject(ctx, s.cfg.bucket, name, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove %s: %w", name, err)
	}
	s.logger.Debug("storage.minio.delete", "key", name)
	return nil
}

func isNotFound(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound
}
