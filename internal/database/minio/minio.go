package minio

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"farm-advisory/internal/config"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/minio/minio-go/v7/pkg/lifecycle"
)

// CropImagesBucket holds photos uploaded for diagnosis, keyed <crop>/<id>.<ext>.
const CropImagesBucket = "crop-images"

const connectTimeout = 10 * time.Second

// MinioClient stores crop photos and hands out presigned links to them.
type MinioClient struct {
	client *minio.Client
	region string
}

// endpoint strips the scheme from MINIO_ENDPOINT. An https scheme turns TLS on
// unless MINIO_SECURE says otherwise.
func endpoint(cfg config.MinioConfig) (string, bool) {
	secure, err := strconv.ParseBool(cfg.MinioSecure)
	u, perr := url.Parse(cfg.MinioURL)
	if perr != nil || u.Host == "" {
		return cfg.MinioURL, err == nil && secure
	}
	if err != nil {
		secure = u.Scheme == "https"
	}
	return u.Host, secure
}

func NewMinioClient(cfg config.MinioConfig) (*MinioClient, error) {
	host, secure := endpoint(cfg)
	client, err := minio.New(host, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: secure,
		Region: cfg.MinioLocation,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize MinIO client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	mc := &MinioClient{client: client, region: cfg.MinioLocation}
	if err := mc.ensureBucket(ctx, CropImagesBucket); err != nil {
		return nil, err
	}
	if cfg.ImageRetentionDays > 0 {
		if err := mc.expireAfter(ctx, CropImagesBucket, cfg.ImageRetentionDays); err != nil {
			// Non-fatal: some gateways reject lifecycle configuration.
			slog.Warn("Could not set crop image retention", "bucket", CropImagesBucket, "error", err)
		}
	}

	slog.Info("Connected to MinIO", "host", host, "secure", secure, "bucket", CropImagesBucket)
	return mc, nil
}

func (mc *MinioClient) ensureBucket(ctx context.Context, bucket string) error {
	exists, err := mc.client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("failed to reach MinIO: %w", err)
	}
	if exists {
		return nil
	}
	if err := mc.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: mc.region}); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
	}
	slog.Info("Created bucket", "bucket", bucket)
	return nil
}

func (mc *MinioClient) expireAfter(ctx context.Context, bucket string, days int) error {
	rules := lifecycle.NewConfiguration()
	rules.Rules = []lifecycle.Rule{{
		ID:         "expire-crop-images",
		Status:     "Enabled",
		Expiration: lifecycle.Expiration{Days: lifecycle.ExpirationDays(days)},
	}}
	return mc.client.SetBucketLifecycle(ctx, bucket, rules)
}

func (mc *MinioClient) UploadBytes(ctx context.Context, bucket, object string, data []byte, contentType string) error {
	info, err := mc.client.PutObject(ctx, bucket, object, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("failed to upload %s/%s: %w", bucket, object, err)
	}
	slog.Debug("Crop image stored", "bucket", bucket, "object", object, "size", info.Size)
	return nil
}

func (mc *MinioClient) GetPresignedURL(ctx context.Context, bucket, object string, expiry time.Duration) (string, error) {
	u, err := mc.client.PresignedGetObject(ctx, bucket, object, expiry, nil)
	if err != nil {
		return "", fmt.Errorf("failed to presign %s/%s: %w", bucket, object, err)
	}
	return u.String(), nil
}

// Ping reports whether the server is reachable.
func (mc *MinioClient) Ping(ctx context.Context) error {
	_, err := mc.client.BucketExists(ctx, CropImagesBucket)
	return err
}
