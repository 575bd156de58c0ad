package gallery

import (
	"io"
	"time"
)

// Tenant is one client's isolated gallery namespace.
type Tenant struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// TenantSummary is a tenant together with its live asset count.
type TenantSummary struct {
	Tenant
	AssetCount int `json:"asset_count"`
}

// Asset is one stored photo. Key is unique within the tenant's namespace.
type Asset struct {
	Key         string `json:"key"`
	TenantID    string `json:"tenant_id"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes"`
}

// StoredObject is an entry returned by BlobStore.List.
type StoredObject struct {
	Key         string
	ContentType string
	Size        int64
	UpdatedAt   time.Time
}

// GalleryAsset is an asset projected for viewers. Index is the 1-based
// display position derived from listing order; it is not stored.
type GalleryAsset struct {
	Asset
	Index int    `json:"index"`
	URL   string `json:"url"`
}

// Gallery is the public read model for one tenant.
type Gallery struct {
	Tenant Tenant         `json:"tenant"`
	Assets []GalleryAsset `json:"assets"`
}

// BrandingSettings is the singleton branding record. LogoKey is nil until a
// logo has been uploaded.
type BrandingSettings struct {
	LogoKey   *string   `json:"logo_key"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SettingsPatch carries the fields to change in BrandingSettings. Nil fields
// are left untouched.
type SettingsPatch struct {
	LogoKey *string
}

// ResolvedSettings is BrandingSettings with the logo key resolved to a URL.
type ResolvedSettings struct {
	LogoURL *string `json:"logo_url"`
}

// File is one incoming upload.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Reader      io.Reader
}

// UploadResult reports the outcome of one file in an UploadAssets batch.
// Exactly one of Asset and Err is set.
type UploadResult struct {
	Name  string `json:"name"`
	Asset *Asset `json:"asset,omitempty"`
	Err   error  `json:"-"`
}

// OK reports whether the file was stored.
func (r UploadResult) OK() bool {
	return r.Err == nil
}

// UploadSummary aggregates an UploadAssets result list.
type UploadSummary struct {
	Succeeded int
	Failed    int
}

// Summarize counts successes and failures in results.
func Summarize(results []UploadResult) UploadSummary {
	var s UploadSummary
	for _, r := range results {
		if r.OK() {
			s.Succeeded++
		} else {
			s.Failed++
		}
	}
	return s
}
