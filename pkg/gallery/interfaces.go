package gallery

import (
	"context"
	"io"
)

// BlobStore persists asset bytes under tenant-scoped keys of the form
// "tenantID/name". It knows nothing about tenants as entities.
type BlobStore interface {
	// Name identifies the backend in errors and logs
	Name() string

	// Policy returns the per-file limits enforced by Put and PutSingleton
	Policy() FilePolicy

	// Put stores an immutable asset and returns its full key. The policy is
	// checked before any bytes are persisted.
	Put(ctx context.Context, tenantID, name string, r io.Reader, size int64, contentType string) (string, error)

	// List returns the tenant's objects sorted by key. An empty tenant yields
	// an empty slice.
	List(ctx context.Context, tenantID string) ([]StoredObject, error)

	// Delete removes one asset. A missing key is not an error.
	Delete(ctx context.Context, tenantID, name string) error

	// DeleteAll removes every asset under the tenant prefix. A missing
	// tenant is not an error.
	DeleteAll(ctx context.Context, tenantID string) error

	// PutSingleton overwrites the object at fixedKey regardless of its
	// previous content type.
	PutSingleton(ctx context.Context, fixedKey string, r io.Reader, size int64, contentType string) (string, error)

	// Open streams the object at key
	Open(ctx context.Context, key string) (io.ReadCloser, *StoredObject, error)
}

// PublicURLer is implemented by backends that can address objects directly
// (for example a public bucket).
type PublicURLer interface {
	PublicURL(key string) string
}

// MetadataStore persists tenant records and the branding singleton. It knows
// nothing about blobs.
type MetadataStore interface {
	// CreateTenant generates the identifier and stores the record
	CreateTenant(ctx context.Context, name string) (*Tenant, error)

	// ListTenants returns tenants ordered by creation time, most recent first
	ListTenants(ctx context.Context) ([]*Tenant, error)

	// GetTenant returns ErrNotFound for an unknown id
	GetTenant(ctx context.Context, id string) (*Tenant, error)

	// DeleteTenant is a no-op for an unknown id
	DeleteTenant(ctx context.Context, id string) error

	// GetSettings returns the zero value when no record exists yet
	GetSettings(ctx context.Context) (*BrandingSettings, error)

	// UpsertSettings applies patch and returns the stored record
	UpsertSettings(ctx context.Context, patch SettingsPatch) (*BrandingSettings, error)

	// Ping checks connectivity
	Ping(ctx context.Context) error
}

// URLResolver maps a stored key to a URL servable to unauthenticated viewers
type URLResolver interface {
	ResolveURL(ctx context.Context, key string) (string, error)
}

// EventSink defines the interface for lifecycle notifications
type EventSink interface {
	TenantCreated(ctx context.Context, tenant *Tenant) error
	TenantDeleted(ctx context.Context, tenantID string) error
	AssetStored(ctx context.Context, asset *Asset) error
	AssetDeleted(ctx context.Context, tenantID, key string) error
	AssetRejected(ctx context.Context, tenantID, name string, kind Kind) error
	BrandingUpdated(ctx context.Context, settings *BrandingSettings) error
}
