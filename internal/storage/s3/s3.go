// Package s3 implements the S3-compatible blob store backend. It supports AWS S3, MinIO,
// DigitalOcean Spaces, and other S3-compatible services via a configurable endpoint.
// Objects are keyed by a generated UUID under the configured prefix and carry the
// caller's filename and SHA256 checksum as user metadata.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"

	appconfig "github.com/intake-gateway/intake-gateway/internal/config"
	"github.com/intake-gateway/intake-gateway/internal/storage"
	"github.com/intake-gateway/intake-gateway/pkg/checksum"
)

func init() {
	// Register S3 storage backend
	storage.Register("s3", func(cfg *appconfig.Config) (storage.Storage, error) {
		return New(&cfg.Storage.S3)
	})
}

// S3Storage implements the Storage interface for S3-compatible storage
type S3Storage struct {
	client   *s3.Client
	bucket   string
	region   string
	prefix   string
	endpoint string
}

// New creates a new S3-compatible storage backend
//
// Authentication methods:
//   - "default" or empty: Uses AWS default credential chain (env vars, shared config, IAM role, IMDS)
//   - "static": Uses explicit access key and secret key
//   - "assume_role": Assumes an IAM role (optionally with external ID for cross-account)
func New(cfg *appconfig.S3StorageConfig) (*S3Storage, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket name is required")
	}
	if cfg.Region == "" {
		return nil, fmt.Errorf("s3 region is required")
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}

	authMethod := cfg.AuthMethod
	if authMethod == "" {
		if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
			authMethod = "static"
		} else {
			authMethod = "default"
		}
	}

	switch authMethod {
	case "static":
		if cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
			return nil, fmt.Errorf("access_key_id and secret_access_key are required for static auth")
		}
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	case "assume_role":
		if cfg.RoleARN == "" {
			return nil, fmt.Errorf("role_arn is required for assume_role auth")
		}
	case "default":
		// AWS default credential chain
	default:
		return nil, fmt.Errorf("unsupported auth_method: %s (must be 'default', 'static', or 'assume_role')", authMethod)
	}

	awsCfg, err := config.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	if authMethod == "assume_role" {
		stsClient := sts.NewFromConfig(awsCfg)

		var assumeRoleOpts []func(*stscreds.AssumeRoleOptions)
		if cfg.RoleSessionName != "" {
			assumeRoleOpts = append(assumeRoleOpts, func(o *stscreds.AssumeRoleOptions) {
				o.RoleSessionName = cfg.RoleSessionName
			})
		}
		if cfg.ExternalID != "" {
			assumeRoleOpts = append(assumeRoleOpts, func(o *stscreds.AssumeRoleOptions) {
				o.ExternalID = aws.String(cfg.ExternalID)
			})
		}

		provider := stscreds.NewAssumeRoleProvider(stsClient, cfg.RoleARN, assumeRoleOpts...)
		awsCfg.Credentials = aws.NewCredentialsCache(provider)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			// S3-compatible services use path-style addressing
			o.UsePathStyle = true
		})
	}

	return &S3Storage{
		client:   s3.NewFromConfig(awsCfg, s3Opts...),
		bucket:   cfg.Bucket,
		region:   cfg.Region,
		prefix:   cfg.Prefix,
		endpoint: cfg.Endpoint,
	}, nil
}

// Store uploads the object under <prefix><uuid>
func (s *S3Storage) Store(ctx context.Context, obj *storage.Object) (*storage.Reference, error) {
	data, err := io.ReadAll(obj.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read data: %w", err)
	}
	sum := checksum.SHA256Bytes(data)

	id := uuid.NewString()
	key := s.prefix + id

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(obj.ContentType),
		Metadata: map[string]string{
			"filename": obj.Name,
			"sha256":   sum,
		},
	})
	if err != nil {
		return nil, classify("failed to upload to S3", err)
	}

	return &storage.Reference{
		ID:       id,
		Name:     obj.Name,
		Link:     s.link(key),
		MimeType: obj.ContentType,
		Size:     int64(len(data)),
		Checksum: sum,
	}, nil
}

// GetMetadata retrieves object metadata with a HEAD request
func (s *S3Storage) GetMetadata(ctx context.Context, id string) (*storage.Reference, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("s3 object %q: %w", id, storage.ErrNotFound)
	}
	key := s.prefix + id

	result, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, classify("failed to get object metadata", err)
	}

	name := result.Metadata["filename"]
	if name == "" {
		name = id
	}
	return &storage.Reference{
		ID:       id,
		Name:     name,
		Link:     s.link(key),
		MimeType: aws.ToString(result.ContentType),
		Size:     aws.ToInt64(result.ContentLength),
		Checksum: result.Metadata["sha256"],
	}, nil
}

// Probe checks that the bucket is reachable
func (s *S3Storage) Probe(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err != nil {
		return classify("failed to reach S3 bucket", err)
	}
	return nil
}

// link builds a path-style URL for custom endpoints and a virtual-hosted URL for AWS.
func (s *S3Storage) link(key string) string {
	if s.endpoint != "" {
		return fmt.Sprintf("%s/%s/%s", strings.TrimRight(s.endpoint, "/"), s.bucket, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
}

// classify wraps an S3 API error with the matching storage sentinel.
func classify(msg string, err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "AccessDenied", "Forbidden", "InvalidAccessKeyId", "SignatureDoesNotMatch", "AllAccessDisabled":
			return fmt.Errorf("%s: %w: %w", msg, storage.ErrAccessDenied, err)
		case "NoSuchKey", "NotFound", "NoSuchBucket":
			return fmt.Errorf("%s: %w: %w", msg, storage.ErrNotFound, err)
		}
	}
	return fmt.Errorf("%s: %w", msg, err)
}
