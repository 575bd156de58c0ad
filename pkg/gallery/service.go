package gallery

import (
	"context"
	"io"
)

// Service defines the bounded media store operations
type Service interface {
	// Tenant operations
	CreateTenant(ctx context.Context, name string) (*Tenant, error)
	GetTenant(ctx context.Context, id string) (*Tenant, error)
	ListTenants(ctx context.Context) ([]TenantSummary, error)
	DeleteTenant(ctx context.Context, id string) error

	// Asset operations
	UploadAssets(ctx context.Context, tenantID string, files []File) ([]UploadResult, error)
	DeleteAsset(ctx context.Context, tenantID, key string) error

	// Public read path
	ListGallery(ctx context.Context, tenantID string) (*Gallery, error)
	OpenObject(ctx context.Context, key string) (io.ReadCloser, *StoredObject, error)

	// Branding
	GetSettings(ctx context.Context) (*ResolvedSettings, error)
	UpdateBranding(ctx context.Context, logo File) (*ResolvedSettings, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Close() error
}
