package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// envVars is the environment surface read through cleanenv. Fields are
// pre-filled from the current config, so unset variables keep their value.
type envVars struct {
	Port        string        `env:"PORT" env-description:"HTTP listen port"`
	Environment string        `env:"ENVIRONMENT" env-description:"development, production or testing"`
	AdminSecret string        `env:"ADMIN_SECRET" env-description:"shared operator credential"`
	SessionTTL  time.Duration `env:"SESSION_TTL" env-description:"operator session token lifetime"`

	DatabaseURL string `env:"DATABASE_URL" env-description:"memory, postgres://... or sqlite://path"`
	StorageURL  string `env:"STORAGE_URL" env-description:"memory://, file:///path, tmp://, s3://bucket or minio://bucket"`

	MaxUploadBytes int64  `env:"MAX_UPLOAD_BYTES" env-description:"per-file byte ceiling"`
	PublicBaseURL  string `env:"PUBLIC_BASE_URL" env-description:"CDN or public bucket base URL"`
	FilesURLPrefix string `env:"FILES_URL_PREFIX" env-description:"mount point of the file read endpoint"`
	URLStrategy    string `env:"URL_STRATEGY" env-description:"cdn, storage-delegated or presigned"`

	AccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	SecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`
	Region          string `env:"AWS_REGION"`
	S3Endpoint      string `env:"S3_ENDPOINT"`
	S3UsePathStyle  bool   `env:"S3_USE_PATH_STYLE"`

	DebugTenantListing bool `env:"DEBUG_TENANT_LISTING" env-description:"list known tenant ids on gallery 404s"`
	EventLogging       bool `env:"EVENT_LOGGING"`
	Metrics            bool `env:"METRICS_ENABLED"`
}

// WithEnv applies environment variable overrides.
//
// Server:
//
//	PORT - Server port (default: "8080")
//	ENVIRONMENT - Runtime environment (default: "development")
//	ADMIN_SECRET - Operator credential (required)
//
// Database:
//
//	DATABASE_URL - "memory" (default), "postgres://..." or "sqlite:///path/to/gallery.db"
//
// Storage:
//
//	STORAGE_URL - one of
//	  "memory://" - In-memory storage (default)
//	  "file:///path/to/data" - Filesystem storage
//	  "tmp://" or "tmp:///path" - Ephemeral filesystem storage in a fresh
//	    subdirectory of path (or the OS temp dir), removed on shutdown
//	  "s3://bucket?region=us-east-1&path_style=true&create=true" - S3 storage
//	  "minio://bucket?endpoint=localhost:9000&ssl=false&public=true" - MinIO storage
func WithEnv() Option {
	return func(c *ServerConfig) error {
		v := envVars{
			Port:               c.Port,
			Environment:        c.Environment,
			AdminSecret:        c.AdminSecret,
			SessionTTL:         c.SessionTTL,
			MaxUploadBytes:     c.MaxUploadBytes,
			PublicBaseURL:      c.PublicBaseURL,
			FilesURLPrefix:     c.FilesURLPrefix,
			URLStrategy:        c.URLStrategy,
			AccessKeyID:        c.Storage.AccessKeyID,
			SecretAccessKey:    c.Storage.SecretAccessKey,
			Region:             c.Storage.Region,
			S3Endpoint:         c.Storage.Endpoint,
			S3UsePathStyle:     c.Storage.UsePathStyle,
			DebugTenantListing: c.DebugTenantListing,
			EventLogging:       c.EnableEventLogging,
			Metrics:            c.EnableMetrics,
		}
		if err := cleanenv.ReadEnv(&v); err != nil {
			return fmt.Errorf("read environment: %w", err)
		}

		c.Port = v.Port
		c.Environment = v.Environment
		c.AdminSecret = v.AdminSecret
		c.SessionTTL = v.SessionTTL
		c.MaxUploadBytes = v.MaxUploadBytes
		c.PublicBaseURL = v.PublicBaseURL
		c.FilesURLPrefix = v.FilesURLPrefix
		c.URLStrategy = v.URLStrategy
		c.DebugTenantListing = v.DebugTenantListing
		c.EnableEventLogging = v.EventLogging
		c.EnableMetrics = v.Metrics

		// shared object store settings; STORAGE_URL query parameters win
		c.Storage.AccessKeyID = v.AccessKeyID
		c.Storage.SecretAccessKey = v.SecretAccessKey
		c.Storage.Region = v.Region
		c.Storage.Endpoint = v.S3Endpoint
		c.Storage.UsePathStyle = v.S3UsePathStyle

		if err := applyDatabaseURL(v.DatabaseURL, c); err != nil {
			return err
		}
		return applyStorageURL(v.StorageURL, c)
	}
}

// Usage returns a description of every supported environment variable
func Usage() string {
	text, err := cleanenv.GetDescription(&envVars{}, nil)
	if err != nil {
		return err.Error()
	}
	return text
}

// applyDatabaseURL applies database configuration from DATABASE_URL.
// An empty value keeps the current setting.
func applyDatabaseURL(dbURL string, c *ServerConfig) error {
	switch {
	case dbURL == "":
		return nil
	case dbURL == "memory" || dbURL == "memory://":
		c.DatabaseType = DatabaseMemory
		c.DatabaseURL = ""
	case strings.HasPrefix(dbURL, "postgresql://"), strings.HasPrefix(dbURL, "postgres://"):
		c.DatabaseType = DatabasePostgres
		c.DatabaseURL = dbURL
	case strings.HasPrefix(dbURL, "sqlite://"):
		path := strings.TrimPrefix(dbURL, "sqlite://")
		if path == "" {
			return fmt.Errorf("sqlite path cannot be empty in DATABASE_URL")
		}
		c.DatabaseType = DatabaseSQLite
		c.DatabaseURL = path
	default:
		return fmt.Errorf("unsupported DATABASE_URL format: %s (use 'memory', 'postgres://...' or 'sqlite://...')", dbURL)
	}
	return nil
}

// applyStorageURL applies blob store configuration from STORAGE_URL.
// An empty value keeps the current setting.
func applyStorageURL(storageURL string, c *ServerConfig) error {
	switch {
	case storageURL == "":
		return nil
	case storageURL == "memory" || storageURL == "memory://":
		c.Storage.Type = StorageMemory
		return nil
	case strings.HasPrefix(storageURL, "file://"):
		path := strings.TrimPrefix(storageURL, "file://")
		if path == "" {
			return fmt.Errorf("filesystem path cannot be empty in STORAGE_URL")
		}
		c.Storage.Type = StorageFS
		c.Storage.BaseDir = path
		return nil
	case strings.HasPrefix(storageURL, "tmp://"):
		c.Storage.Type = StorageTmp
		c.Storage.BaseDir = strings.TrimPrefix(storageURL, "tmp://")
		return nil
	case strings.HasPrefix(storageURL, "s3://"):
		return applyBucketURL(StorageS3, storageURL, c)
	case strings.HasPrefix(storageURL, "minio://"):
		return applyBucketURL(StorageMinio, storageURL, c)
	}
	return fmt.Errorf("unsupported STORAGE_URL format: %s (use 'memory://', 'file://...', 'tmp://', 's3://...' or 'minio://...')", storageURL)
}

// applyBucketURL configures s3 or minio storage from URL
// Format: s3://bucket?region=us-east-1&endpoint=http://localhost:9000&path_style=true&create=true
func applyBucketURL(storageType, raw string, c *ServerConfig) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid STORAGE_URL: %w", err)
	}
	if u.Host == "" {
		return fmt.Errorf("bucket name cannot be empty in STORAGE_URL")
	}

	q := u.Query()
	c.Storage.Type = storageType
	c.Storage.Bucket = u.Host
	if v := q.Get("region"); v != "" {
		c.Storage.Region = v
	}
	if v := q.Get("endpoint"); v != "" {
		c.Storage.Endpoint = v
	}
	for key, dst := range map[string]*bool{
		"path_style": &c.Storage.UsePathStyle,
		"ssl":        &c.Storage.UseSSL,
		"create":     &c.Storage.CreateBucket,
		"public":     &c.Storage.PublicRead,
	} {
		v := q.Get(key)
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s in STORAGE_URL: %w", key, err)
		}
		*dst = b
	}
	return nil
}
