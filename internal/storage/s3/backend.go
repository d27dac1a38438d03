// Package s3 implements the per-tier ObjectStore against AWS S3.
package s3

import (
	"bytes"
	"context"
	stderr "errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/tiervault/tiervault/internal/config"
	"github.com/tiervault/tiervault/internal/integrity"
	"github.com/tiervault/tiervault/internal/storage"
	"github.com/tiervault/tiervault/pkg/errors"
	"github.com/tiervault/tiervault/pkg/types"
)

// Credentials carries static credential material resolved from the secret
// provider. Zero value means ambient AWS configuration.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

// Backend is an S3-backed object store for one lifecycle tier.
type Backend struct {
	client *s3.Client
	bucket string
	tier   types.Tier
	logger *slog.Logger
}

// New constructs an S3 backend for one tier bucket.
func New(ctx context.Context, tier types.Tier, cfg config.StoreConfig, creds Credentials) (*Backend, error) {
	if cfg.Bucket == "" {
		return nil, errors.Newf(errors.ErrCodeInvalidConfig, "no bucket configured for %s tier", tier)
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if creds.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(creds.AccessKeyID, creds.SecretAccessKey, creds.SessionToken)))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		if cfg.ForcePathStyle {
			o.UsePathStyle = true
		}
	})

	logger := slog.Default().With("component", "s3-store", "tier", tier.String(), "bucket", cfg.Bucket)

	return &Backend{
		client: client,
		bucket: cfg.Bucket,
		tier:   tier,
		logger: logger,
	}, nil
}

// Tier reports which lifecycle tier this store backs.
func (b *Backend) Tier() types.Tier {
	return b.tier
}

// Get retrieves an object and computes its content digest.
func (b *Backend) Get(ctx context.Context, key string) (*storage.Object, error) {
	input := &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	}

	result, err := b.client.GetObject(ctx, input)
	if err != nil {
		return nil, b.translateError(err, "Get", key)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStorageRead, "failed to read object body", err).
			WithComponent("s3-store").WithOperation("Get").WithContext("key", key)
	}

	lastModified := time.Now()
	if result.LastModified != nil {
		lastModified = *result.LastModified
	}

	return &storage.Object{
		Key:          key,
		Data:         data,
		Digest:       integrity.Digest(data),
		LastModified: lastModified,
	}, nil
}

// Put stores an object and returns the digest of the written bytes.
func (b *Backend) Put(ctx context.Context, key string, data []byte) (string, error) {
	input := &s3.PutObjectInput{
		Bucket:        aws.String(b.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(detectContentType(key)),
	}

	if _, err := b.client.PutObject(ctx, input); err != nil {
		return "", b.translateError(err, "Put", key)
	}

	b.logger.Debug("object stored", "key", key, "size", len(data))
	return integrity.Digest(data), nil
}

// Delete removes an object. Deleting a missing key is not an error.
func (b *Backend) Delete(ctx context.Context, key string) error {
	input := &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	}

	if _, err := b.client.DeleteObject(ctx, input); err != nil {
		translated := b.translateError(err, "Delete", key)
		if errors.IsCode(translated, errors.ErrCodeObjectNotFound) {
			return nil
		}
		return translated
	}
	return nil
}

// List enumerates all objects in the bucket, following pagination.
func (b *Backend) List(ctx context.Context) ([]types.ObjectInfo, error) {
	var infos []types.ObjectInfo

	paginator := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(b.bucket),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, b.translateError(err, "List", "")
		}
		for _, obj := range page.Contents {
			info := types.ObjectInfo{
				Key: aws.ToString(obj.Key),
			}
			if obj.Size != nil {
				info.SizeBytes = *obj.Size
			}
			if obj.LastModified != nil {
				info.LastModified = *obj.LastModified
			}
			infos = append(infos, info)
		}
	}

	return infos, nil
}

// translateError maps S3 SDK errors into the structured taxonomy.
func (b *Backend) translateError(err error, operation, key string) error {
	switch {
	case isErrorType[*s3types.NoSuchKey](err) || isErrorType[*s3types.NotFound](err):
		return errors.Newf(errors.ErrCodeObjectNotFound, "object not found: %s", key).
			WithComponent("s3-store").WithOperation(operation)
	case isErrorType[*s3types.NoSuchBucket](err):
		return errors.Newf(errors.ErrCodeBucketNotFound, "bucket not found: %s", b.bucket).
			WithComponent("s3-store").WithOperation(operation)
	case stderr.Is(err, context.Canceled) || stderr.Is(err, context.DeadlineExceeded):
		return errors.Wrap(errors.ErrCodeOperationCanceled, operation+" canceled", err).
			WithComponent("s3-store").WithContext("key", key)
	default:
		return errors.Wrap(errors.ErrCodeStoreUnavailable, operation+" failed", err).
			WithComponent("s3-store").WithContext("key", key)
	}
}

func detectContentType(key string) string {
	switch {
	case strings.HasSuffix(key, ".jpg"), strings.HasSuffix(key, ".jpeg"):
		return "image/jpeg"
	case strings.HasSuffix(key, ".png"):
		return "image/png"
	case strings.HasSuffix(key, ".pdf"):
		return "application/pdf"
	case strings.HasSuffix(key, ".docx"):
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case strings.HasSuffix(key, ".gz"):
		return "application/gzip"
	default:
		return "application/octet-stream"
	}
}

// isErrorType checks if an error is of a specific type
func isErrorType[T error](err error) bool {
	var target T
	return stderr.As(err, &target)
}
