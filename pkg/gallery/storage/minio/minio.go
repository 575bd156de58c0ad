// Package minio stores gallery assets in any S3-compatible service through
// the MinIO client. The bucket is given a public-read policy so asset URLs
// are directly servable to gallery viewers.
package minio

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/tendant/simple-gallery/pkg/gallery"
)

// Config holds the connection settings.
type Config struct {
	Endpoint   string // host:port, no scheme
	AccessKey  string
	SecretKey  string
	Bucket     string
	Region     string
	UseSSL     bool
	PublicBase string // browser-accessible base URL, e.g. "http://localhost:9000/gallery"

	// SetPublicPolicy grants anonymous GET on the bucket at startup
	SetPublicPolicy bool

	Policy gallery.FilePolicy
}

// Backend implements gallery.BlobStore on a MinIO client.
type Backend struct {
	client     *minio.Client
	bucket     string
	publicBase string
	policy     gallery.FilePolicy
}

// New creates the client and makes sure the bucket exists.
func New(ctx context.Context, cfg Config) (*Backend, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("endpoint is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("bucket name is required")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket existence: %w", gallery.Unavailable(err))
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("create bucket %q: %w", cfg.Bucket, gallery.Unavailable(err))
		}
		slog.Info("Created bucket", "bucket", cfg.Bucket)
	}

	if cfg.SetPublicPolicy {
		if err := client.SetBucketPolicy(ctx, cfg.Bucket, publicReadPolicy(cfg.Bucket)); err != nil {
			return nil, fmt.Errorf("set bucket policy: %w", err)
		}
	}

	publicBase := cfg.PublicBase
	if publicBase == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		publicBase = fmt.Sprintf("%s://%s/%s", scheme, cfg.Endpoint, cfg.Bucket)
	}

	return &Backend{
		client:     client,
		bucket:     cfg.Bucket,
		publicBase: strings.TrimRight(publicBase, "/"),
		policy:     cfg.Policy,
	}, nil
}

func (b *Backend) Name() string { return "minio" }

func (b *Backend) Policy() gallery.FilePolicy { return b.policy }

// PublicURL returns the browser-accessible URL for the given key.
func (b *Backend) PublicURL(key string) string {
	return b.publicBase + "/" + key
}

func (b *Backend) Put(ctx context.Context, tenantID, name string, reader io.Reader, size int64, contentType string) (string, error) {
	if !gallery.ValidTenantID(tenantID) || !gallery.ValidAssetName(name) {
		return "", fmt.Errorf("%w: invalid key %s/%s", gallery.ErrInvalidArgument, tenantID, name)
	}
	key := gallery.ObjectKey(tenantID, name)
	return key, b.put(ctx, key, reader, size, contentType)
}

func (b *Backend) PutSingleton(ctx context.Context, fixedKey string, reader io.Reader, size int64, contentType string) (string, error) {
	return fixedKey, b.put(ctx, fixedKey, reader, size, contentType)
}

func (b *Backend) put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	if err := b.policy.Check(contentType, size); err != nil {
		return err
	}
	// buffer so the exact length is known and the limit applies before upload
	data, err := io.ReadAll(b.policy.LimitReader(reader))
	if err != nil {
		return err
	}
	_, err = b.client.PutObject(ctx, b.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: gallery.NormalizeContentType(contentType),
	})
	if err != nil {
		return &gallery.StorageError{Backend: b.Name(), Key: key, Op: "put", Err: gallery.Unavailable(err)}
	}
	return nil
}

func (b *Backend) List(ctx context.Context, tenantID string) ([]gallery.StoredObject, error) {
	result := []gallery.StoredObject{}
	for obj := range b.client.ListObjects(ctx, b.bucket, minio.ListObjectsOptions{
		Prefix:    gallery.TenantPrefix(tenantID),
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, &gallery.StorageError{Backend: b.Name(), Key: tenantID, Op: "list", Err: gallery.Unavailable(obj.Err)}
		}
		if _, _, ok := gallery.SplitObjectKey(obj.Key); !ok {
			continue
		}
		contentType := obj.ContentType
		if contentType == "" {
			contentType = gallery.ContentTypeForName(obj.Key)
		}
		result = append(result, gallery.StoredObject{
			Key:         obj.Key,
			ContentType: contentType,
			Size:        obj.Size,
			UpdatedAt:   obj.LastModified,
		})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Key < result[j].Key })
	return result, nil
}

func (b *Backend) Delete(ctx context.Context, tenantID, name string) error {
	key := gallery.ObjectKey(tenantID, name)
	err := b.client.RemoveObject(ctx, b.bucket, key, minio.RemoveObjectOptions{})
	if err != nil && !isNotFound(err) {
		return &gallery.StorageError{Backend: b.Name(), Key: key, Op: "delete", Err: gallery.Unavailable(err)}
	}
	return nil
}

func (b *Backend) DeleteAll(ctx context.Context, tenantID string) error {
	if !gallery.ValidTenantID(tenantID) {
		return fmt.Errorf("%w: invalid tenant id %q", gallery.ErrInvalidArgument, tenantID)
	}
	objects, err := b.List(ctx, tenantID)
	if err != nil {
		return err
	}

	objectsCh := make(chan minio.ObjectInfo)
	go func() {
		defer close(objectsCh)
		for _, obj := range objects {
			select {
			case objectsCh <- minio.ObjectInfo{Key: obj.Key}:
			case <-ctx.Done():
				return
			}
		}
	}()

	var failed []string
	for rErr := range b.client.RemoveObjects(ctx, b.bucket, objectsCh, minio.RemoveObjectsOptions{}) {
		if rErr.Err != nil && !isNotFound(rErr.Err) {
			failed = append(failed, rErr.ObjectName)
		}
	}
	if len(failed) > 0 {
		return &gallery.StorageError{
			Backend: b.Name(),
			Key:     tenantID,
			Op:      "delete_all",
			Err:     gallery.Unavailable(fmt.Errorf("%d objects not deleted, first %s", len(failed), failed[0])),
		}
	}
	return ctx.Err()
}

func (b *Backend) Open(ctx context.Context, key string) (io.ReadCloser, *gallery.StoredObject, error) {
	obj, err := b.client.GetObject(ctx, b.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, nil, &gallery.StorageError{Backend: b.Name(), Key: key, Op: "open", Err: gallery.Unavailable(err)}
	}
	info, err := obj.Stat()
	if err != nil {
		obj.Close()
		if isNotFound(err) {
			return nil, nil, fmt.Errorf("object %s: %w", key, gallery.ErrNotFound)
		}
		return nil, nil, &gallery.StorageError{Backend: b.Name(), Key: key, Op: "open", Err: gallery.Unavailable(err)}
	}
	return obj, &gallery.StoredObject{
		Key:         key,
		ContentType: info.ContentType,
		Size:        info.Size,
		UpdatedAt:   info.LastModified,
	}, nil
}

func isNotFound(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NotFound"
}

// publicReadPolicy returns an S3 bucket policy JSON that allows anonymous GET on all objects.
func publicReadPolicy(bucket string) string {
	policy := map[string]interface{}{
		"Version": "2012-10-17",
		"Statement": []map[string]interface{}{
			{
				"Effect":    "Allow",
				"Principal": "*",
				"Action":    "s3:GetObject",
				"Resource":  fmt.Sprintf("arn:aws:s3:::%s/*", bucket),
			},
		},
	}
	b, _ := json.Marshal(policy)
	return string(b)
}
