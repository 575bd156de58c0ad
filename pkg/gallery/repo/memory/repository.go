package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/tendant/simple-gallery/pkg/gallery"
)

// maxIDAttempts bounds retries when a generated tenant id collides
const maxIDAttempts = 8

// Repository implements gallery.MetadataStore using in-memory storage
type Repository struct {
	mu       sync.RWMutex
	tenants  map[string]*tenantRecord
	settings *gallery.BrandingSettings
	seq      int64
	now      func() time.Time
}

type tenantRecord struct {
	tenant gallery.Tenant
	seq    int64
}

// New creates a new in-memory repository
func New() *Repository {
	return &Repository{
		tenants: make(map[string]*tenantRecord),
		now:     time.Now,
	}
}

// Tenant operations

func (r *Repository) CreateTenant(ctx context.Context, name string) (*gallery.Tenant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var id string
	for attempt := 0; ; attempt++ {
		if attempt == maxIDAttempts {
			return nil, fmt.Errorf("could not allocate a unique tenant id")
		}
		id = gallery.NewTenantID()
		if _, exists := r.tenants[id]; !exists {
			break
		}
	}

	r.seq++
	record := &tenantRecord{
		tenant: gallery.Tenant{ID: id, Name: name, CreatedAt: r.now().UTC()},
		seq:    r.seq,
	}
	r.tenants[id] = record

	// Return a copy to prevent external modifications
	tenantCopy := record.tenant
	return &tenantCopy, nil
}

func (r *Repository) ListTenants(ctx context.Context) ([]*gallery.Tenant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	records := make([]*tenantRecord, 0, len(r.tenants))
	for _, rec := range r.tenants {
		records = append(records, rec)
	}
	// newest first; insertion order breaks ties in CreatedAt
	sort.Slice(records, func(i, j int) bool {
		if !records[i].tenant.CreatedAt.Equal(records[j].tenant.CreatedAt) {
			return records[i].tenant.CreatedAt.After(records[j].tenant.CreatedAt)
		}
		return records[i].seq > records[j].seq
	})

	result := make([]*gallery.Tenant, 0, len(records))
	for _, rec := range records {
		tenantCopy := rec.tenant
		result = append(result, &tenantCopy)
	}
	return result, nil
}

func (r *Repository) GetTenant(ctx context.Context, id string) (*gallery.Tenant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, exists := r.tenants[id]
	if !exists {
		return nil, gallery.ErrNotFound
	}
	tenantCopy := rec.tenant
	return &tenantCopy, nil
}

func (r *Repository) DeleteTenant(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.tenants, id)
	return nil
}

// Settings operations

func (r *Repository) GetSettings(ctx context.Context) (*gallery.BrandingSettings, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.settings == nil {
		return &gallery.BrandingSettings{}, nil
	}
	return copySettings(r.settings), nil
}

func (r *Repository) UpsertSettings(ctx context.Context, patch gallery.SettingsPatch) (*gallery.BrandingSettings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.settings == nil {
		r.settings = &gallery.BrandingSettings{}
	}
	if patch.LogoKey != nil {
		key := *patch.LogoKey
		r.settings.LogoKey = &key
	}
	r.settings.UpdatedAt = r.now().UTC()
	return copySettings(r.settings), nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return ctx.Err()
}

func copySettings(s *gallery.BrandingSettings) *gallery.BrandingSettings {
	out := &gallery.BrandingSettings{UpdatedAt: s.UpdatedAt}
	if s.LogoKey != nil {
		key := *s.LogoKey
		out.LogoKey = &key
	}
	return out
}
