package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tendant/simple-gallery/pkg/gallery"
	"github.com/tendant/simple-gallery/pkg/gallery/repo/memory"
	repopg "github.com/tendant/simple-gallery/pkg/gallery/repo/postgres"
	reposqlite "github.com/tendant/simple-gallery/pkg/gallery/repo/sqlite"
	fsstorage "github.com/tendant/simple-gallery/pkg/gallery/storage/fs"
	memorystorage "github.com/tendant/simple-gallery/pkg/gallery/storage/memory"
	miniostorage "github.com/tendant/simple-gallery/pkg/gallery/storage/minio"
	s3storage "github.com/tendant/simple-gallery/pkg/gallery/storage/s3"
	"github.com/tendant/simple-gallery/pkg/gallery/urlstrategy"
)

// Database types
const (
	DatabaseMemory   = "memory"
	DatabasePostgres = "postgres"
	DatabaseSQLite   = "sqlite"
)

// Storage types
const (
	StorageMemory = "memory"
	StorageFS     = "fs"
	StorageTmp    = "tmp"
	StorageS3     = "s3"
	StorageMinio  = "minio"
)

// Option applies configuration to a ServerConfig instance.
type Option func(*ServerConfig) error

// Load constructs a ServerConfig by applying the supplied options on top of library defaults.
func Load(opts ...Option) (*ServerConfig, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() ServerConfig {
	return ServerConfig{
		Port:           "8080",
		Environment:    "development",
		SessionTTL:     12 * time.Hour,
		DatabaseType:   DatabaseMemory,
		Storage:        StorageConfig{Type: StorageMemory, Region: "us-east-1"},
		MaxUploadBytes: gallery.DefaultMaxUploadBytes,
		FilesURLPrefix: fsstorage.DefaultURLPrefix,

		EnableEventLogging: true,
		EnableMetrics:      true,
	}
}

// ServerConfig represents server configuration for the gallery service
type ServerConfig struct {
	Port        string
	Environment string // development, production, testing

	// Operator access
	AdminSecret string
	SessionTTL  time.Duration

	// Metadata store configuration
	DatabaseType string // "memory", "postgres", "sqlite"
	DatabaseURL  string // postgres connection string or sqlite file path

	// Blob store configuration
	Storage StorageConfig

	// Upload and URL policy
	MaxUploadBytes int64
	PublicBaseURL  string // CDN or public bucket base; overrides store URLs
	FilesURLPrefix string // mount point of the file read endpoint
	URLStrategy    string // "", "cdn", "storage-delegated", "presigned"

	// Server options
	DebugTenantListing bool
	EnableEventLogging bool
	EnableMetrics      bool
}

// StorageConfig selects and configures the blob store backend
type StorageConfig struct {
	Type    string // "memory", "fs", "tmp", "s3", "minio"
	BaseDir string // fs and tmp

	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
	UseSSL          bool
	CreateBucket    bool // s3: create the bucket when missing
	PublicRead      bool // minio: grant anonymous GET on the bucket
}

// IsProduction reports whether the server runs in production mode
func (c *ServerConfig) IsProduction() bool {
	return c.Environment == "production"
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}
	if c.AdminSecret == "" {
		return errors.New("admin secret is required")
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("max upload bytes must be positive, got: %d", c.MaxUploadBytes)
	}

	switch c.DatabaseType {
	case DatabaseMemory:
	case DatabasePostgres, DatabaseSQLite:
		if c.DatabaseURL == "" {
			return fmt.Errorf("database_url is required when using %s", c.DatabaseType)
		}
	default:
		return fmt.Errorf("database_type must be 'memory', 'postgres' or 'sqlite', got: %s", c.DatabaseType)
	}

	switch c.Storage.Type {
	case StorageMemory, StorageTmp:
	case StorageFS:
		if c.Storage.BaseDir == "" {
			return errors.New("storage base directory is required for fs storage")
		}
	case StorageS3:
		if c.Storage.Bucket == "" {
			return errors.New("bucket is required for s3 storage")
		}
	case StorageMinio:
		if c.Storage.Bucket == "" || c.Storage.Endpoint == "" {
			return errors.New("bucket and endpoint are required for minio storage")
		}
	default:
		return fmt.Errorf("unsupported storage type: %s", c.Storage.Type)
	}

	switch urlstrategy.URLStrategyType(c.URLStrategy) {
	case "", urlstrategy.StrategyTypeStorageDelegated, urlstrategy.StrategyTypePresigned:
	case urlstrategy.StrategyTypeCDN:
		if c.PublicBaseURL == "" {
			return errors.New("public base URL is required for the cdn URL strategy")
		}
	default:
		return fmt.Errorf("unknown URL strategy: %s", c.URLStrategy)
	}

	return nil
}

// AccessGate returns the gate for the configured operator secret
func (c *ServerConfig) AccessGate() *gallery.AccessGate {
	return gallery.NewAccessGate(c.AdminSecret)
}

// Policy returns the per-file upload policy
func (c *ServerConfig) Policy() gallery.FilePolicy {
	return gallery.DefaultPolicy(c.MaxUploadBytes)
}

// BuildService creates a Service instance from the server configuration.
// extra options are applied last and may override the defaults chosen here.
func (c *ServerConfig) BuildService(ctx context.Context, logger *slog.Logger, extra ...gallery.Option) (gallery.Service, error) {
	if logger == nil {
		logger = slog.Default()
	}

	metadata, err := c.buildMetadataStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to build metadata store: %w", err)
	}

	blobs, err := c.buildBlobStore(ctx)
	if err != nil {
		closeIfCloser(metadata)
		return nil, fmt.Errorf("failed to build blob store %s: %w", c.Storage.Type, err)
	}

	resolver, err := c.buildURLResolver(blobs)
	if err != nil {
		closeIfCloser(metadata)
		return nil, fmt.Errorf("failed to build URL resolver: %w", err)
	}

	options := []gallery.Option{
		gallery.WithMetadataStore(metadata),
		gallery.WithBlobStore(blobs),
		gallery.WithURLResolver(resolver),
		gallery.WithLogger(logger),
	}
	if c.EnableEventLogging {
		options = append(options, gallery.WithEventSink(gallery.NewLogEventSink(logger)))
	}
	options = append(options, extra...)

	logger.Info("Gallery service configured",
		"database", c.DatabaseType,
		"storage", blobs.Name(),
		"max_upload_bytes", c.MaxUploadBytes)

	return gallery.New(options...)
}

// buildMetadataStore creates a MetadataStore based on the configuration
func (c *ServerConfig) buildMetadataStore(ctx context.Context) (gallery.MetadataStore, error) {
	switch c.DatabaseType {
	case DatabaseMemory:
		return memory.New(), nil
	case DatabasePostgres:
		return repopg.Open(ctx, c.DatabaseURL)
	case DatabaseSQLite:
		return reposqlite.Open(c.DatabaseURL)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", c.DatabaseType)
	}
}

// buildBlobStore creates a BlobStore based on the storage configuration
func (c *ServerConfig) buildBlobStore(ctx context.Context) (gallery.BlobStore, error) {
	policy := c.Policy()
	s := c.Storage

	switch s.Type {
	case StorageMemory:
		return memorystorage.New(policy), nil

	case StorageFS:
		return fsstorage.New(fsstorage.Config{
			BaseDir:   s.BaseDir,
			URLPrefix: c.FilesURLPrefix,
			Policy:    policy,
		})

	case StorageTmp:
		return fsstorage.NewEphemeral(fsstorage.Config{
			BaseDir:   s.BaseDir,
			URLPrefix: c.FilesURLPrefix,
			Policy:    policy,
		})

	case StorageS3:
		return s3storage.New(s3storage.Config{
			Region:                 s.Region,
			Bucket:                 s.Bucket,
			AccessKeyID:            s.AccessKeyID,
			SecretAccessKey:        s.SecretAccessKey,
			Endpoint:               s.Endpoint,
			UsePathStyle:           s.UsePathStyle,
			PublicBaseURL:          c.PublicBaseURL,
			CreateBucketIfNotExist: s.CreateBucket,
			Policy:                 policy,
		})

	case StorageMinio:
		return miniostorage.New(ctx, miniostorage.Config{
			Endpoint:        s.Endpoint,
			AccessKey:       s.AccessKeyID,
			SecretKey:       s.SecretAccessKey,
			Bucket:          s.Bucket,
			Region:          s.Region,
			UseSSL:          s.UseSSL,
			PublicBase:      c.PublicBaseURL,
			SetPublicPolicy: s.PublicRead,
			Policy:          policy,
		})

	default:
		return nil, fmt.Errorf("unsupported storage backend type: %s", s.Type)
	}
}

// buildURLResolver picks the URL strategy. Stores that cannot address
// their objects directly are served through the file read endpoint.
func (c *ServerConfig) buildURLResolver(blobs gallery.BlobStore) (gallery.URLResolver, error) {
	if c.URLStrategy != "" {
		return urlstrategy.NewURLStrategy(urlstrategy.Config{
			Type:       urlstrategy.URLStrategyType(c.URLStrategy),
			CDNBaseURL: c.PublicBaseURL,
			Store:      blobs,
		})
	}
	if _, ok := blobs.(gallery.PublicURLer); !ok && c.PublicBaseURL == "" {
		return urlstrategy.NewCDNStrategy(c.FilesURLPrefix), nil
	}
	return urlstrategy.NewRecommendedStrategy(c.PublicBaseURL, blobs)
}

func closeIfCloser(v any) {
	if c, ok := v.(interface{ Close() error }); ok {
		_ = c.Close()
	}
}
