package config

import (
	"fmt"
	"time"
)

// WithPort sets the server port
func WithPort(port string) Option {
	return func(c *ServerConfig) error {
		if port == "" {
			return fmt.Errorf("port cannot be empty")
		}
		c.Port = port
		return nil
	}
}

// WithEnvironment sets the environment (development, production, testing)
func WithEnvironment(env string) Option {
	return func(c *ServerConfig) error {
		if env == "" {
			return fmt.Errorf("environment cannot be empty")
		}
		c.Environment = env
		return nil
	}
}

// WithAdminSecret sets the shared operator credential
func WithAdminSecret(secret string) Option {
	return func(c *ServerConfig) error {
		if secret == "" {
			return fmt.Errorf("admin secret cannot be empty")
		}
		c.AdminSecret = secret
		return nil
	}
}

// WithSessionTTL sets the lifetime of operator session tokens
func WithSessionTTL(ttl time.Duration) Option {
	return func(c *ServerConfig) error {
		if ttl <= 0 {
			return fmt.Errorf("session TTL must be positive, got: %s", ttl)
		}
		c.SessionTTL = ttl
		return nil
	}
}

// WithDatabase configures the metadata store backend
func WithDatabase(dbType, url string) Option {
	return func(c *ServerConfig) error {
		switch dbType {
		case DatabaseMemory:
			url = ""
		case DatabasePostgres, DatabaseSQLite:
			if url == "" {
				return fmt.Errorf("database URL is required for %s", dbType)
			}
		default:
			return fmt.Errorf("database type must be 'memory', 'postgres' or 'sqlite', got: %s", dbType)
		}
		c.DatabaseType = dbType
		c.DatabaseURL = url
		return nil
	}
}

// WithMemoryStorage selects the in-process blob store
func WithMemoryStorage() Option {
	return func(c *ServerConfig) error {
		c.Storage = StorageConfig{Type: StorageMemory, Region: c.Storage.Region}
		return nil
	}
}

// WithFilesystemStorage selects the filesystem blob store rooted at baseDir
func WithFilesystemStorage(baseDir string) Option {
	return func(c *ServerConfig) error {
		if baseDir == "" {
			return fmt.Errorf("filesystem base directory cannot be empty")
		}
		c.Storage = StorageConfig{Type: StorageFS, BaseDir: baseDir, Region: c.Storage.Region}
		return nil
	}
}

// WithEphemeralStorage selects the temp-directory blob store. An empty
// baseDir uses a directory under the OS temp dir.
func WithEphemeralStorage(baseDir string) Option {
	return func(c *ServerConfig) error {
		c.Storage = StorageConfig{Type: StorageTmp, BaseDir: baseDir, Region: c.Storage.Region}
		return nil
	}
}

// WithS3Storage selects the S3 blob store
// If region is empty, defaults to "us-east-1"
func WithS3Storage(bucket, region string) Option {
	return func(c *ServerConfig) error {
		if bucket == "" {
			return fmt.Errorf("S3 bucket cannot be empty")
		}
		if region == "" {
			region = "us-east-1"
		}
		c.Storage.Type = StorageS3
		c.Storage.Bucket = bucket
		c.Storage.Region = region
		return nil
	}
}

// WithMinioStorage selects the MinIO blob store
func WithMinioStorage(endpoint, bucket string, useSSL bool) Option {
	return func(c *ServerConfig) error {
		if endpoint == "" || bucket == "" {
			return fmt.Errorf("minio endpoint and bucket cannot be empty")
		}
		c.Storage.Type = StorageMinio
		c.Storage.Endpoint = endpoint
		c.Storage.Bucket = bucket
		c.Storage.UseSSL = useSSL
		return nil
	}
}

// WithStorageCredentials sets static credentials for s3 and minio
func WithStorageCredentials(accessKeyID, secretAccessKey string) Option {
	return func(c *ServerConfig) error {
		c.Storage.AccessKeyID = accessKeyID
		c.Storage.SecretAccessKey = secretAccessKey
		return nil
	}
}

// WithMaxUploadBytes sets the per-file byte ceiling
func WithMaxUploadBytes(n int64) Option {
	return func(c *ServerConfig) error {
		if n <= 0 {
			return fmt.Errorf("max upload bytes must be positive, got: %d", n)
		}
		c.MaxUploadBytes = n
		return nil
	}
}

// WithPublicBaseURL sets the CDN or public bucket base URL for viewer links
func WithPublicBaseURL(url string) Option {
	return func(c *ServerConfig) error {
		c.PublicBaseURL = url
		return nil
	}
}

// WithURLStrategy forces a URL strategy ("cdn", "storage-delegated", "presigned")
func WithURLStrategy(strategy string) Option {
	return func(c *ServerConfig) error {
		c.URLStrategy = strategy
		return nil
	}
}

// WithDebugTenantListing toggles the known-tenants payload on gallery 404s
func WithDebugTenantListing(enabled bool) Option {
	return func(c *ServerConfig) error {
		c.DebugTenantListing = enabled
		return nil
	}
}

// WithEventLogging toggles the slog event sink
func WithEventLogging(enabled bool) Option {
	return func(c *ServerConfig) error {
		c.EnableEventLogging = enabled
		return nil
	}
}

// WithMetrics toggles Prometheus metrics
func WithMetrics(enabled bool) Option {
	return func(c *ServerConfig) error {
		c.EnableMetrics = enabled
		return nil
	}
}
