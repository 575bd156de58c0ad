package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/tendant/simple-gallery/pkg/gallery"
)

// maxDeleteBatch is the DeleteObjects per-request limit.
const maxDeleteBatch = 1000

// Config options for the S3 backend
type Config struct {
	Region          string // AWS region
	Bucket          string // S3 bucket name
	AccessKeyID     string // AWS access key ID
	SecretAccessKey string // AWS secret access key
	Endpoint        string // Optional custom endpoint for S3-compatible services
	UsePathStyle    bool   // Use path-style addressing (default: false)
	PublicBaseURL   string // Optional public base URL (CDN or public bucket)
	PresignDuration int    // Duration in seconds for presigned URLs (default: 3600)

	// Server-side encryption options
	EnableSSE    bool   // Enable server-side encryption
	SSEAlgorithm string // SSE algorithm (AES256 or aws:kms)
	SSEKMSKeyID  string // Optional KMS key ID for aws:kms algorithm

	CreateBucketIfNotExist bool // Create bucket if it doesn't exist

	Policy gallery.FilePolicy
}

// Backend is an S3-compatible implementation of the gallery.BlobStore interface
type Backend struct {
	client          *s3.Client
	bucket          string
	presignClient   *s3.PresignClient
	presignDuration time.Duration
	config          Config
}

// New creates a new S3-compatible storage backend
func New(config Config) (*Backend, error) {
	if config.Bucket == "" {
		return nil, errors.New("bucket name is required")
	}

	if config.Region == "" {
		config.Region = "us-east-1"
	}

	if config.PresignDuration == 0 {
		config.PresignDuration = 3600
	}

	loadOptions := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(config.Region),
	}
	if config.AccessKeyID != "" && config.SecretAccessKey != "" {
		loadOptions = append(loadOptions, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(config.AccessKeyID, config.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), loadOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Options []func(*s3.Options)
	if config.Endpoint != "" {
		s3Options = append(s3Options, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(config.Endpoint)
			o.UsePathStyle = config.UsePathStyle
		})
	}

	client := s3.NewFromConfig(awsCfg, s3Options...)

	backend := &Backend{
		client:          client,
		bucket:          config.Bucket,
		presignClient:   s3.NewPresignClient(client),
		presignDuration: time.Duration(config.PresignDuration) * time.Second,
		config:          config,
	}

	if config.CreateBucketIfNotExist {
		if err := backend.createBucketIfNotExists(context.Background()); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", gallery.Unavailable(err))
		}
	}

	return backend, nil
}

func (b *Backend) Name() string { return "s3" }

func (b *Backend) Policy() gallery.FilePolicy { return b.config.Policy }

// createBucketIfNotExists creates the bucket if it doesn't exist
func (b *Backend) createBucketIfNotExists(ctx context.Context) error {
	_, err := b.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(b.bucket),
	})
	if err == nil {
		return nil
	}

	var notFound *types.NotFound
	var noSuchBucket *types.NoSuchBucket
	if !errors.As(err, &notFound) && !errors.As(err, &noSuchBucket) && !hasErrorCode(err, "NoSuchBucket", "BadRequest") {
		return fmt.Errorf("failed to check bucket: %w", err)
	}

	createInput := &s3.CreateBucketInput{
		Bucket: aws.String(b.bucket),
	}
	if b.config.Region != "us-east-1" {
		createInput.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(b.config.Region),
		}
	}

	if _, err := b.client.CreateBucket(ctx, createInput); err != nil {
		if hasErrorCode(err, "BucketAlreadyExists", "BucketAlreadyOwnedByYou") {
			return nil
		}
		return err
	}
	return nil
}

// PublicURL returns the unauthenticated URL of key. Without a configured
// public base it falls back to the bucket's own address.
func (b *Backend) PublicURL(key string) string {
	escaped := escapeKey(key)
	if b.config.PublicBaseURL != "" {
		return strings.TrimRight(b.config.PublicBaseURL, "/") + "/" + escaped
	}
	if b.config.Endpoint != "" {
		endpoint := strings.TrimRight(b.config.Endpoint, "/")
		if b.config.UsePathStyle {
			return endpoint + "/" + b.bucket + "/" + escaped
		}
		if u, err := url.Parse(endpoint); err == nil && u.Host != "" {
			return fmt.Sprintf("%s://%s.%s/%s", u.Scheme, b.bucket, u.Host, escaped)
		}
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", b.bucket, b.config.Region, escaped)
}

// PresignedURL returns a time-limited GET URL for key
func (b *Backend) PresignedURL(ctx context.Context, key string) (string, error) {
	result, err := b.presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket:                     aws.String(b.bucket),
		Key:                        aws.String(key),
		ResponseContentDisposition: aws.String("inline"),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = b.presignDuration
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}
	return result.URL, nil
}

// Put uploads content to tenantID/name
func (b *Backend) Put(ctx context.Context, tenantID, name string, reader io.Reader, size int64, contentType string) (string, error) {
	if !gallery.ValidTenantID(tenantID) || !gallery.ValidAssetName(name) {
		return "", fmt.Errorf("%w: invalid key %s/%s", gallery.ErrInvalidArgument, tenantID, name)
	}
	key := gallery.ObjectKey(tenantID, name)
	return key, b.upload(ctx, key, reader, size, contentType)
}

// PutSingleton overwrites the object at fixedKey
func (b *Backend) PutSingleton(ctx context.Context, fixedKey string, reader io.Reader, size int64, contentType string) (string, error) {
	return fixedKey, b.upload(ctx, fixedKey, reader, size, contentType)
}

// upload buffers the body through the policy limit before sending so an
// oversize file is rejected without any request reaching the bucket.
func (b *Backend) upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	if err := b.config.Policy.Check(contentType, size); err != nil {
		return err
	}
	data, err := io.ReadAll(b.config.Policy.LimitReader(reader))
	if err != nil {
		return err
	}

	input := &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(gallery.NormalizeContentType(contentType)),
	}
	b.applySSE(input)

	uploader := manager.NewUploader(b.client)
	if _, err := uploader.Upload(ctx, input); err != nil {
		return &gallery.StorageError{Backend: b.Name(), Key: key, Op: "put", Err: gallery.Unavailable(err)}
	}
	return nil
}

func (b *Backend) applySSE(input *s3.PutObjectInput) {
	if !b.config.EnableSSE {
		return
	}
	switch b.config.SSEAlgorithm {
	case "AES256":
		input.ServerSideEncryption = types.ServerSideEncryptionAes256
	case "aws:kms":
		input.ServerSideEncryption = types.ServerSideEncryptionAwsKms
		if b.config.SSEKMSKeyID != "" {
			input.SSEKMSKeyId = aws.String(b.config.SSEKMSKeyID)
		}
	}
}

// List pages through the tenant prefix. Listings do not carry a content
// type, so it is derived from the key extension.
func (b *Backend) List(ctx context.Context, tenantID string) ([]gallery.StoredObject, error) {
	paginator := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(b.bucket),
		Prefix: aws.String(gallery.TenantPrefix(tenantID)),
	})

	result := []gallery.StoredObject{}
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, &gallery.StorageError{Backend: b.Name(), Key: tenantID, Op: "list", Err: gallery.Unavailable(err)}
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if _, name, ok := gallery.SplitObjectKey(key); !ok || strings.HasPrefix(name, ".") {
				continue
			}
			result = append(result, gallery.StoredObject{
				Key:         key,
				ContentType: gallery.ContentTypeForName(key),
				Size:        aws.ToInt64(obj.Size),
				UpdatedAt:   aws.ToTime(obj.LastModified),
			})
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Key < result[j].Key })
	return result, nil
}

// Delete removes one object. S3 reports success for missing keys.
func (b *Backend) Delete(ctx context.Context, tenantID, name string) error {
	key := gallery.ObjectKey(tenantID, name)
	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil && !isNotFound(err) {
		return &gallery.StorageError{Backend: b.Name(), Key: key, Op: "delete", Err: gallery.Unavailable(err)}
	}
	return nil
}

// DeleteAll removes every object under the tenant prefix in batches
func (b *Backend) DeleteAll(ctx context.Context, tenantID string) error {
	if !gallery.ValidTenantID(tenantID) {
		return fmt.Errorf("%w: invalid tenant id %q", gallery.ErrInvalidArgument, tenantID)
	}
	objects, err := b.List(ctx, tenantID)
	if err != nil {
		return err
	}

	for start := 0; start < len(objects); start += maxDeleteBatch {
		end := min(start+maxDeleteBatch, len(objects))
		ids := make([]types.ObjectIdentifier, 0, end-start)
		for _, obj := range objects[start:end] {
			ids = append(ids, types.ObjectIdentifier{Key: aws.String(obj.Key)})
		}

		out, err := b.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(b.bucket),
			Delete: &types.Delete{Objects: ids, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return &gallery.StorageError{Backend: b.Name(), Key: tenantID, Op: "delete_all", Err: gallery.Unavailable(err)}
		}
		if len(out.Errors) > 0 {
			first := out.Errors[0]
			return &gallery.StorageError{
				Backend: b.Name(),
				Key:     aws.ToString(first.Key),
				Op:      "delete_all",
				Err:     gallery.Unavailable(fmt.Errorf("%d objects not deleted: %s", len(out.Errors), aws.ToString(first.Message))),
			}
		}
	}
	return nil
}

// Open streams the object at key
func (b *Backend) Open(ctx context.Context, key string) (io.ReadCloser, *gallery.StoredObject, error) {
	result, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, nil, fmt.Errorf("object %s: %w", key, gallery.ErrNotFound)
		}
		return nil, nil, &gallery.StorageError{Backend: b.Name(), Key: key, Op: "open", Err: gallery.Unavailable(err)}
	}

	meta := &gallery.StoredObject{
		Key:         key,
		ContentType: aws.ToString(result.ContentType),
		Size:        aws.ToInt64(result.ContentLength),
		UpdatedAt:   aws.ToTime(result.LastModified),
	}
	if meta.ContentType == "" {
		meta.ContentType = gallery.ContentTypeForName(key)
	}
	return result.Body, meta, nil
}

func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noSuchKey) || errors.As(err, &notFound) {
		return true
	}
	return hasErrorCode(err, "NoSuchKey", "NotFound")
}

func hasErrorCode(err error, codes ...string) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	for _, code := range codes {
		if apiErr.ErrorCode() == code {
			return true
		}
	}
	return false
}

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
