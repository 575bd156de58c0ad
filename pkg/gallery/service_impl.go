package gallery

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// service implements the Service interface
type service struct {
	metadata  MetadataStore
	blobs     BlobStore
	resolver  URLResolver
	eventSink EventSink
	quota     QuotaEnforcer
	logger    *slog.Logger
	now       func() time.Time

	// tenantSetMu serializes CreateTenant so the count check and the insert
	// are one critical section within this process.
	tenantSetMu sync.Mutex
	tenantLocks *keyedMutex
	brandingMu  sync.Mutex

	stampMu   sync.Mutex
	lastStamp time.Time
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithMetadataStore sets the tenant and settings store
func WithMetadataStore(store MetadataStore) Option {
	return func(s *service) {
		s.metadata = store
	}
}

// WithBlobStore sets the asset storage backend
func WithBlobStore(store BlobStore) Option {
	return func(s *service) {
		s.blobs = store
	}
}

// WithURLResolver sets how stored keys become viewer URLs
func WithURLResolver(resolver URLResolver) Option {
	return func(s *service) {
		s.resolver = resolver
	}
}

// WithEventSink sets the event sink for the service
func WithEventSink(sink EventSink) Option {
	return func(s *service) {
		s.eventSink = sink
	}
}

// WithQuota overrides the capacity caps
func WithQuota(q QuotaEnforcer) Option {
	return func(s *service) {
		s.quota = q
	}
}

// WithLogger sets the structured logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) {
		s.logger = logger
	}
}

// WithClock sets the time source used for asset key generation
func WithClock(now func() time.Time) Option {
	return func(s *service) {
		s.now = now
	}
}

// New creates a new service instance with the given options
func New(options ...Option) (Service, error) {
	s := &service{
		quota:       DefaultQuota(),
		eventSink:   NewNoopEventSink(),
		now:         time.Now,
		tenantLocks: newKeyedMutex(),
	}

	for _, option := range options {
		option(s)
	}

	if s.metadata == nil {
		return nil, fmt.Errorf("metadata store is required")
	}
	if s.blobs == nil {
		return nil, fmt.Errorf("blob store is required")
	}
	if s.resolver == nil {
		p, ok := s.blobs.(PublicURLer)
		if !ok {
			return nil, fmt.Errorf("url resolver is required for backend %s", s.blobs.Name())
		}
		s.resolver = publicURLResolver{p}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	return s, nil
}

type publicURLResolver struct {
	p PublicURLer
}

func (r publicURLResolver) ResolveURL(_ context.Context, key string) (string, error) {
	return r.p.PublicURL(key), nil
}

// Tenant operations

func (s *service) CreateTenant(ctx context.Context, name string) (*Tenant, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: tenant name is required", ErrInvalidArgument)
	}

	s.tenantSetMu.Lock()
	defer s.tenantSetMu.Unlock()

	tenants, err := s.metadata.ListTenants(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	if !s.quota.CanCreateTenant(len(tenants)) {
		return nil, fmt.Errorf("%w: at most %d tenants", ErrQuotaExceeded, s.quota.MaxTenants)
	}

	tenant, err := s.metadata.CreateTenant(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("create tenant: %w", err)
	}

	if err := s.eventSink.TenantCreated(ctx, tenant); err != nil {
		s.logger.WarnContext(ctx, "Event sink failed", "event", "tenant_created", "error", err)
	}
	return tenant, nil
}

func (s *service) GetTenant(ctx context.Context, id string) (*Tenant, error) {
	if !ValidTenantID(id) {
		return nil, &TenantError{TenantID: id, Op: "get", Err: ErrNotFound}
	}
	tenant, err := s.metadata.GetTenant(ctx, id)
	if err != nil {
		return nil, &TenantError{TenantID: id, Op: "get", Err: err}
	}
	return tenant, nil
}

func (s *service) ListTenants(ctx context.Context) ([]TenantSummary, error) {
	tenants, err := s.metadata.ListTenants(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}

	summaries := make([]TenantSummary, 0, len(tenants))
	for _, t := range tenants {
		objects, err := s.blobs.List(ctx, t.ID)
		if err != nil {
			return nil, &TenantError{TenantID: t.ID, Op: "count assets", Err: err}
		}
		summaries = append(summaries, TenantSummary{Tenant: *t, AssetCount: len(objects)})
	}
	return summaries, nil
}

// DeleteTenant removes blobs first and the metadata record last, so a
// failure in between leaves a record without blobs that a retry cleans up.
func (s *service) DeleteTenant(ctx context.Context, id string) error {
	if !ValidTenantID(id) {
		return nil
	}

	unlock := s.tenantLocks.Lock(id)
	defer unlock()

	objects, err := s.blobs.List(ctx, id)
	if err != nil {
		return &TenantError{TenantID: id, Op: "delete", Err: err}
	}
	if len(objects) > 0 {
		s.logger.InfoContext(ctx, "Deleting tenant assets", "tenant_id", id, "count", len(objects))
	}

	if err := s.blobs.DeleteAll(ctx, id); err != nil {
		return &TenantError{TenantID: id, Op: "delete assets", Err: err}
	}

	remaining, err := s.blobs.List(ctx, id)
	if err != nil {
		return &TenantError{TenantID: id, Op: "verify delete", Err: err}
	}
	if len(remaining) > 0 {
		return &TenantError{
			TenantID: id,
			Op:       "verify delete",
			Err:      Unavailable(fmt.Errorf("%d assets still reachable", len(remaining))),
		}
	}

	if err := s.metadata.DeleteTenant(ctx, id); err != nil {
		return &TenantError{TenantID: id, Op: "delete record", Err: err}
	}

	if err := s.eventSink.TenantDeleted(ctx, id); err != nil {
		s.logger.WarnContext(ctx, "Event sink failed", "event", "tenant_deleted", "error", err)
	}
	return nil
}

// Asset operations

// UploadAssets stores files in order. Quota is re-evaluated after every
// stored file, so a batch may be partially accepted. Stored files are never
// rolled back. The returned error is set only when the batch could not be
// attempted at all.
func (s *service) UploadAssets(ctx context.Context, tenantID string, files []File) ([]UploadResult, error) {
	if !ValidTenantID(tenantID) {
		return nil, &TenantError{TenantID: tenantID, Op: "get", Err: ErrNotFound}
	}

	// DeleteTenant holds the same lock, so the tenant cannot vanish between
	// this lookup and the writes below.
	unlock := s.tenantLocks.Lock(tenantID)
	defer unlock()

	if _, err := s.GetTenant(ctx, tenantID); err != nil {
		return nil, err
	}

	existing, err := s.blobs.List(ctx, tenantID)
	if err != nil {
		return nil, &TenantError{TenantID: tenantID, Op: "count assets", Err: err}
	}
	count := len(existing)
	policy := s.blobs.Policy()

	results := make([]UploadResult, 0, len(files))
	for _, f := range files {
		asset, err := s.uploadOne(ctx, tenantID, f, policy, count)
		if err != nil {
			kind := KindOf(err)
			s.logger.WarnContext(ctx, "Asset upload failed", "tenant_id", tenantID, "file", f.Name, "kind", kind, "error", err)
			if sinkErr := s.eventSink.AssetRejected(ctx, tenantID, f.Name, kind); sinkErr != nil {
				s.logger.WarnContext(ctx, "Event sink failed", "event", "asset_rejected", "error", sinkErr)
			}
			results = append(results, UploadResult{Name: f.Name, Err: err})
			continue
		}

		count++
		if err := s.eventSink.AssetStored(ctx, asset); err != nil {
			s.logger.WarnContext(ctx, "Event sink failed", "event", "asset_stored", "error", err)
		}
		results = append(results, UploadResult{Name: f.Name, Asset: asset})
	}
	return results, nil
}

func (s *service) uploadOne(ctx context.Context, tenantID string, f File, policy FilePolicy, count int) (*Asset, error) {
	if f.Reader == nil {
		return nil, fmt.Errorf("%w: file %q has no content", ErrInvalidArgument, f.Name)
	}
	contentType, reader := detectContentType(f)
	if err := policy.Check(contentType, f.Size); err != nil {
		return nil, err
	}
	if !s.quota.CanUploadAssets(count, 1) {
		return nil, fmt.Errorf("%w: tenant already holds %d of %d assets", ErrQuotaExceeded, count, s.quota.MaxAssetsPerTenant)
	}

	name := NewAssetName(contentType, s.nextStamp())
	counter := &countingReader{r: reader}
	key, err := s.blobs.Put(ctx, tenantID, name, counter, f.Size, contentType)
	if err != nil {
		return nil, err
	}
	_, stored, _ := SplitObjectKey(key)
	if stored == "" {
		stored = name
	}
	return &Asset{
		Key:         stored,
		TenantID:    tenantID,
		ContentType: contentType,
		SizeBytes:   counter.n,
	}, nil
}

// countingReader records how many bytes the blob store consumed.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

func (s *service) DeleteAsset(ctx context.Context, tenantID, key string) error {
	if !ValidTenantID(tenantID) || !ValidAssetName(key) {
		return nil
	}

	unlock := s.tenantLocks.Lock(tenantID)
	defer unlock()

	if err := s.blobs.Delete(ctx, tenantID, key); err != nil {
		return &TenantError{TenantID: tenantID, Op: "delete asset", Err: err}
	}
	if err := s.eventSink.AssetDeleted(ctx, tenantID, key); err != nil {
		s.logger.WarnContext(ctx, "Event sink failed", "event", "asset_deleted", "error", err)
	}
	return nil
}

// Read path

func (s *service) ListGallery(ctx context.Context, tenantID string) (*Gallery, error) {
	tenant, err := s.GetTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	objects, err := s.blobs.List(ctx, tenantID)
	if err != nil {
		return nil, &TenantError{TenantID: tenantID, Op: "list assets", Err: err}
	}

	assets := make([]GalleryAsset, 0, len(objects))
	for _, obj := range objects {
		_, name, ok := SplitObjectKey(obj.Key)
		if !ok {
			continue
		}
		url, err := s.resolver.ResolveURL(ctx, obj.Key)
		if err != nil {
			return nil, &TenantError{TenantID: tenantID, Op: "resolve url", Err: err}
		}
		assets = append(assets, GalleryAsset{
			Asset: Asset{
				Key:         name,
				TenantID:    tenantID,
				ContentType: obj.ContentType,
				SizeBytes:   obj.Size,
			},
			Index: len(assets) + 1,
			URL:   url,
		})
	}

	return &Gallery{Tenant: *tenant, Assets: assets}, nil
}

func (s *service) OpenObject(ctx context.Context, key string) (io.ReadCloser, *StoredObject, error) {
	if key != BrandingLogoKey {
		tenantID, name, ok := SplitObjectKey(key)
		if !ok || !ValidTenantID(tenantID) || !ValidAssetName(name) {
			return nil, nil, fmt.Errorf("object %s: %w", key, ErrNotFound)
		}
	}
	return s.blobs.Open(ctx, key)
}

// Branding

func (s *service) GetSettings(ctx context.Context) (*ResolvedSettings, error) {
	settings, err := s.metadata.GetSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("get settings: %w", err)
	}
	return s.resolveSettings(ctx, settings)
}

// UpdateBranding overwrites the logo at the fixed key. Previous bytes are
// replaced in place; no other object is touched.
func (s *service) UpdateBranding(ctx context.Context, logo File) (*ResolvedSettings, error) {
	if logo.Reader == nil {
		return nil, fmt.Errorf("%w: logo file has no content", ErrInvalidArgument)
	}
	contentType, reader := detectContentType(logo)
	if err := s.blobs.Policy().Check(contentType, logo.Size); err != nil {
		return nil, err
	}

	s.brandingMu.Lock()
	defer s.brandingMu.Unlock()

	ref, err := s.blobs.PutSingleton(ctx, BrandingLogoKey, reader, logo.Size, contentType)
	if err != nil {
		return nil, fmt.Errorf("store logo: %w", err)
	}
	settings, err := s.metadata.UpsertSettings(ctx, SettingsPatch{LogoKey: &ref})
	if err != nil {
		return nil, fmt.Errorf("update settings: %w", err)
	}

	if err := s.eventSink.BrandingUpdated(ctx, settings); err != nil {
		s.logger.WarnContext(ctx, "Event sink failed", "event", "branding_updated", "error", err)
	}
	return s.resolveSettings(ctx, settings)
}

func (s *service) resolveSettings(ctx context.Context, settings *BrandingSettings) (*ResolvedSettings, error) {
	resolved := &ResolvedSettings{}
	if settings == nil || settings.LogoKey == nil || *settings.LogoKey == "" {
		return resolved, nil
	}
	url, err := s.resolver.ResolveURL(ctx, *settings.LogoKey)
	if err != nil {
		return nil, fmt.Errorf("resolve logo url: %w", err)
	}
	if !settings.UpdatedAt.IsZero() {
		sep := "?"
		if strings.Contains(url, "?") {
			sep = "&"
		}
		url = fmt.Sprintf("%s%sv=%d", url, sep, settings.UpdatedAt.Unix())
	}
	resolved.LogoURL = &url
	return resolved, nil
}

// Lifecycle

func (s *service) Ping(ctx context.Context) error {
	if err := s.metadata.Ping(ctx); err != nil {
		return Unavailable(err)
	}
	return nil
}

// Close releases injected stores that hold resources.
func (s *service) Close() error {
	var errs []error
	if c, ok := s.blobs.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	if c, ok := s.metadata.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// nextStamp returns a strictly increasing timestamp so keys generated in the
// same nanosecond still sort in upload order.
func (s *service) nextStamp() time.Time {
	s.stampMu.Lock()
	defer s.stampMu.Unlock()
	t := s.now()
	if !t.After(s.lastStamp) {
		t = s.lastStamp.Add(time.Nanosecond)
	}
	s.lastStamp = t
	return t
}

// detectContentType returns the normalized declared type, or sniffs the
// leading bytes when the client declared nothing useful.
func detectContentType(f File) (string, io.Reader) {
	declared := NormalizeContentType(f.ContentType)
	if declared != "" && declared != "application/octet-stream" {
		return declared, f.Reader
	}
	br := bufio.NewReaderSize(f.Reader, 512)
	head, _ := br.Peek(512)
	return SniffContentType(head), br
}
