package destination

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/aevon-lab/geosplit/internal/core/config"
	coreerr "github.com/aevon-lab/geosplit/internal/core/errors"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const contentType = "application/geo+json"

// Bucket uploads documents to a MinIO / S3 bucket under an optional key prefix.
type Bucket struct {
	client *minio.Client
	bucket string
	prefix string
}

// NewBucket connects to the configured endpoint and creates the bucket if it is missing.
// folder is appended to the configured prefix.
func NewBucket(ctx context.Context, cfg config.MinioConfig, folder string) (*Bucket, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, coreerr.Wrap(coreerr.ErrDestinationWrite, err, "connect to %s", cfg.Endpoint)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, coreerr.Wrap(coreerr.ErrDestinationWrite, err, "check bucket %s", cfg.Bucket)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, coreerr.Wrap(coreerr.ErrDestinationWrite, err, "create bucket %s", cfg.Bucket)
		}
		slog.Info("[Destination] Bucket created", "bucket", cfg.Bucket)
	}

	return &Bucket{
		client: client,
		bucket: cfg.Bucket,
		prefix: objectPrefix(cfg.Prefix, folder),
	}, nil
}

func (b *Bucket) Location() string {
	if b.prefix == "" {
		return fmt.Sprintf("s3://%s", b.bucket)
	}
	return fmt.Sprintf("s3://%s/%s", b.bucket, b.prefix)
}

func (b *Bucket) Put(ctx context.Context, name string, data []byte) error {
	if err := checkName(name); err != nil {
		return err
	}
	key := objectKey(b.prefix, name)
	_, err := b.client.PutObject(ctx, b.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return coreerr.Wrap(coreerr.ErrDestinationWrite, err, "upload s3://%s/%s", b.bucket, key)
	}
	return nil
}

func objectPrefix(prefix, folder string) string {
	joined := path.Join(strings.Trim(prefix, "/"), strings.Trim(folder, "/"))
	if joined == "." {
		return ""
	}
	return joined
}

func objectKey(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}
