package gallery_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-gallery/pkg/gallery"
	repomemory "github.com/tendant/simple-gallery/pkg/gallery/repo/memory"
	"github.com/tendant/simple-gallery/pkg/gallery/storage/memory"
	"github.com/tendant/simple-gallery/pkg/gallery/urlstrategy"
)

var (
	pngBytes  = append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0x01}, 32)...)
	jpegBytes = append([]byte{0xFF, 0xD8, 0xFF, 0xE0}, bytes.Repeat([]byte{0x02}, 32)...)
)

func jpegFile(name string) gallery.File {
	return gallery.File{Name: name, ContentType: "image/jpeg", Size: int64(len(jpegBytes)), Reader: bytes.NewReader(jpegBytes)}
}

func pngFile(name string, data []byte) gallery.File {
	return gallery.File{Name: name, ContentType: "image/png", Size: int64(len(data)), Reader: bytes.NewReader(data)}
}

type fixture struct {
	svc   gallery.Service
	blobs *memory.Backend
	meta  *repomemory.Repository
}

func setupTestService(t *testing.T, opts ...gallery.Option) *fixture {
	t.Helper()
	f := &fixture{
		blobs: memory.New(gallery.DefaultPolicy(1024)),
		meta:  repomemory.New(),
	}
	options := append([]gallery.Option{
		gallery.WithMetadataStore(f.meta),
		gallery.WithBlobStore(f.blobs),
		gallery.WithURLResolver(urlstrategy.NewCDNStrategy("/files")),
	}, opts...)

	svc, err := gallery.New(options...)
	require.NoError(t, err)
	f.svc = svc
	return f
}

func (f *fixture) upload(t *testing.T, tenantID string, n int) []gallery.UploadResult {
	t.Helper()
	files := make([]gallery.File, 0, n)
	for i := 0; i < n; i++ {
		files = append(files, jpegFile(fmt.Sprintf("photo-%d.jpg", i)))
	}
	results, err := f.svc.UploadAssets(context.Background(), tenantID, files)
	require.NoError(t, err)
	return results
}

func TestServiceCreation(t *testing.T) {
	tests := []struct {
		name        string
		options     []gallery.Option
		expectError bool
	}{
		{
			name:        "no options should fail",
			expectError: true,
		},
		{
			name:        "without blob store should fail",
			options:     []gallery.Option{gallery.WithMetadataStore(repomemory.New())},
			expectError: true,
		},
		{
			name: "store without public urls needs a resolver",
			options: []gallery.Option{
				gallery.WithMetadataStore(repomemory.New()),
				gallery.WithBlobStore(memory.New(gallery.DefaultPolicy(0))),
			},
			expectError: true,
		},
		{
			name: "with stores and resolver should succeed",
			options: []gallery.Option{
				gallery.WithMetadataStore(repomemory.New()),
				gallery.WithBlobStore(memory.New(gallery.DefaultPolicy(0))),
				gallery.WithURLResolver(urlstrategy.NewCDNStrategy("/files")),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := gallery.New(tt.options...)
			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, svc)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, svc)
			}
		})
	}
}

func TestCreateTenant_Quota(t *testing.T) {
	f := setupTestService(t)
	ctx := context.Background()

	for i := 0; i < gallery.MaxTenants; i++ {
		tenant, err := f.svc.CreateTenant(ctx, fmt.Sprintf("Client %d", i))
		require.NoError(t, err)
		assert.True(t, gallery.ValidTenantID(tenant.ID))
	}

	_, err := f.svc.CreateTenant(ctx, "Fifth")
	require.Error(t, err)
	assert.ErrorIs(t, err, gallery.ErrQuotaExceeded)

	tenants, err := f.svc.ListTenants(ctx)
	require.NoError(t, err)
	assert.Len(t, tenants, gallery.MaxTenants)
}

func TestCreateTenant_RejectsBlankName(t *testing.T) {
	f := setupTestService(t)

	_, err := f.svc.CreateTenant(context.Background(), "  ")
	assert.Equal(t, gallery.KindInvalidArgument, gallery.KindOf(err))
}

func TestCreateTenant_ConcurrentCallsRespectCap(t *testing.T) {
	f := setupTestService(t)
	ctx := context.Background()

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := f.svc.CreateTenant(ctx, fmt.Sprintf("Racer %d", i)); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			} else {
				assert.ErrorIs(t, err, gallery.ErrQuotaExceeded)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, gallery.MaxTenants, succeeded)
	tenants, err := f.meta.ListTenants(ctx)
	require.NoError(t, err)
	assert.Len(t, tenants, gallery.MaxTenants)
}

func TestListTenants_CountsAssets(t *testing.T) {
	f := setupTestService(t)
	ctx := context.Background()

	first, err := f.svc.CreateTenant(ctx, "First")
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	second, err := f.svc.CreateTenant(ctx, "Second")
	require.NoError(t, err)
	f.upload(t, first.ID, 3)

	tenants, err := f.svc.ListTenants(ctx)
	require.NoError(t, err)
	require.Len(t, tenants, 2)
	assert.Equal(t, second.ID, tenants[0].ID)
	assert.Equal(t, 0, tenants[0].AssetCount)
	assert.Equal(t, first.ID, tenants[1].ID)
	assert.Equal(t, 3, tenants[1].AssetCount)
}

func TestUploadAssets_IncrementalQuota(t *testing.T) {
	tests := []struct {
		existing int
		batch    int
	}{
		{existing: 0, batch: 3},
		{existing: 28, batch: 5},
		{existing: 30, batch: 2},
		{existing: 0, batch: 35},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d existing %d incoming", tt.existing, tt.batch), func(t *testing.T) {
			f := setupTestService(t)
			tenant, err := f.svc.CreateTenant(context.Background(), "Quota")
			require.NoError(t, err)
			if tt.existing > 0 {
				f.upload(t, tenant.ID, tt.existing)
			}

			results := f.upload(t, tenant.ID, tt.batch)
			require.Len(t, results, tt.batch)

			want := min(tt.batch, gallery.MaxAssetsPerTenant-tt.existing)
			for i, res := range results {
				if i < want {
					assert.True(t, res.OK(), "file %d should be stored", i)
				} else {
					assert.ErrorIs(t, res.Err, gallery.ErrQuotaExceeded, "file %d", i)
				}
			}
			summary := gallery.Summarize(results)
			assert.Equal(t, want, summary.Succeeded)
			assert.Equal(t, tt.batch-want, summary.Failed)

			objects, err := f.blobs.List(context.Background(), tenant.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.existing+want, len(objects))
			assert.LessOrEqual(t, len(objects), gallery.MaxAssetsPerTenant)
		})
	}
}

func TestUploadAssets_ConcurrentBatchesRespectCap(t *testing.T) {
	f := setupTestService(t)
	tenant, err := f.svc.CreateTenant(context.Background(), "Busy")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			files := make([]gallery.File, 0, 10)
			for j := 0; j < 10; j++ {
				files = append(files, jpegFile("x.jpg"))
			}
			_, err := f.svc.UploadAssets(context.Background(), tenant.ID, files)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	objects, err := f.blobs.List(context.Background(), tenant.ID)
	require.NoError(t, err)
	assert.Len(t, objects, gallery.MaxAssetsPerTenant)
}

func TestUploadAssets_Validation(t *testing.T) {
	f := setupTestService(t)
	ctx := context.Background()
	tenant, err := f.svc.CreateTenant(ctx, "Validation")
	require.NoError(t, err)

	results, err := f.svc.UploadAssets(ctx, tenant.ID, []gallery.File{
		{Name: "notes.txt", ContentType: "text/plain", Size: 5, Reader: strings.NewReader("hello")},
		pngFile("big.png", bytes.Repeat([]byte{0x01}, 2048)),
		{Name: "undeclared.png", Size: -1, Reader: bytes.NewReader(pngBytes)},
		{Name: "lying.png", ContentType: "image/png", Size: -1, Reader: bytes.NewReader(bytes.Repeat([]byte{0x01}, 2048))},
		{Name: "empty.png", ContentType: "image/png"},
	})
	require.NoError(t, err)
	require.Len(t, results, 5)

	assert.Equal(t, gallery.KindUnsupportedType, gallery.KindOf(results[0].Err))
	assert.Equal(t, gallery.KindFileTooLarge, gallery.KindOf(results[1].Err))
	require.True(t, results[2].OK())
	assert.Equal(t, gallery.ContentTypePNG, results[2].Asset.ContentType)
	assert.True(t, strings.HasSuffix(results[2].Asset.Key, ".png"))
	assert.Equal(t, gallery.KindFileTooLarge, gallery.KindOf(results[3].Err))
	assert.Equal(t, gallery.KindInvalidArgument, gallery.KindOf(results[4].Err))

	g, err := f.svc.ListGallery(ctx, tenant.ID)
	require.NoError(t, err)
	require.Len(t, g.Assets, 1)
	assert.Equal(t, results[2].Asset.Key, g.Assets[0].Key)
}

func TestUploadAssets_UnknownTenant(t *testing.T) {
	f := setupTestService(t)

	_, err := f.svc.UploadAssets(context.Background(), "deadbeef", []gallery.File{jpegFile("a.jpg")})
	assert.ErrorIs(t, err, gallery.ErrNotFound)

	_, err = f.svc.UploadAssets(context.Background(), "../etc", []gallery.File{jpegFile("a.jpg")})
	assert.ErrorIs(t, err, gallery.ErrNotFound)
}

func TestUploadAssets_KeysFollowUploadOrder(t *testing.T) {
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	f := setupTestService(t, gallery.WithClock(func() time.Time { return fixed }))
	tenant, err := f.svc.CreateTenant(context.Background(), "Order")
	require.NoError(t, err)

	results := f.upload(t, tenant.ID, 5)

	g, err := f.svc.ListGallery(context.Background(), tenant.ID)
	require.NoError(t, err)
	require.Len(t, g.Assets, 5)
	for i, asset := range g.Assets {
		assert.Equal(t, results[i].Asset.Key, asset.Key)
		assert.Equal(t, i+1, asset.Index)
	}
}

func TestGalleryRoundTrip(t *testing.T) {
	f := setupTestService(t)
	ctx := context.Background()
	tenant, err := f.svc.CreateTenant(ctx, "Round trip")
	require.NoError(t, err)

	results, err := f.svc.UploadAssets(ctx, tenant.ID, []gallery.File{pngFile("a.png", pngBytes)})
	require.NoError(t, err)
	require.True(t, results[0].OK())

	g, err := f.svc.ListGallery(ctx, tenant.ID)
	require.NoError(t, err)
	require.Len(t, g.Assets, 1)
	asset := g.Assets[0]
	assert.Equal(t, "/files/"+gallery.ObjectKey(tenant.ID, asset.Key), asset.URL)

	rc, obj, err := f.svc.OpenObject(ctx, strings.TrimPrefix(asset.URL, "/files/"))
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, pngBytes, data)
	assert.Equal(t, gallery.ContentTypePNG, obj.ContentType)
}

func TestOpenObject_RejectsForeignKeys(t *testing.T) {
	f := setupTestService(t)

	for _, key := range []string{"", "nokey", "../../etc/passwd", "deadbeef/../x", "deadbeef/a/b"} {
		_, _, err := f.svc.OpenObject(context.Background(), key)
		assert.ErrorIs(t, err, gallery.ErrNotFound, key)
	}
}

func TestAnaScenario(t *testing.T) {
	f := setupTestService(t)
	ctx := context.Background()

	ana, err := f.svc.CreateTenant(ctx, "Ana")
	require.NoError(t, err)

	results := f.upload(t, ana.ID, 3)
	g, err := f.svc.ListGallery(ctx, ana.ID)
	require.NoError(t, err)
	assert.Len(t, g.Assets, 3)
	assert.Equal(t, "Ana", g.Tenant.Name)

	require.NoError(t, f.svc.DeleteAsset(ctx, ana.ID, results[1].Asset.Key))
	g, err = f.svc.ListGallery(ctx, ana.ID)
	require.NoError(t, err)
	require.Len(t, g.Assets, 2)
	assert.Equal(t, results[0].Asset.Key, g.Assets[0].Key)
	assert.Equal(t, results[2].Asset.Key, g.Assets[1].Key)

	require.NoError(t, f.svc.DeleteTenant(ctx, ana.ID))
	_, err = f.svc.ListGallery(ctx, ana.ID)
	assert.ErrorIs(t, err, gallery.ErrNotFound)

	objects, err := f.blobs.List(ctx, ana.ID)
	require.NoError(t, err)
	assert.Empty(t, objects)
}

func TestDeletesAreIdempotent(t *testing.T) {
	f := setupTestService(t)
	ctx := context.Background()
	tenant, err := f.svc.CreateTenant(ctx, "Twice")
	require.NoError(t, err)
	results := f.upload(t, tenant.ID, 2)

	require.NoError(t, f.svc.DeleteAsset(ctx, tenant.ID, results[0].Asset.Key))
	require.NoError(t, f.svc.DeleteAsset(ctx, tenant.ID, results[0].Asset.Key))
	require.NoError(t, f.svc.DeleteAsset(ctx, tenant.ID, "never-existed.jpg"))
	require.NoError(t, f.svc.DeleteAsset(ctx, "deadbeef", "never-existed.jpg"))

	require.NoError(t, f.svc.DeleteTenant(ctx, tenant.ID))
	require.NoError(t, f.svc.DeleteTenant(ctx, tenant.ID))
	require.NoError(t, f.svc.DeleteTenant(ctx, "deadbeef"))
	require.NoError(t, f.blobs.DeleteAll(ctx, "deadbeef"))
}

// flakyBlobStore fails DeleteAll after removing part of the tenant's assets.
type flakyBlobStore struct {
	*memory.Backend
	failures int
}

func (s *flakyBlobStore) DeleteAll(ctx context.Context, tenantID string) error {
	if s.failures > 0 {
		s.failures--
		objects, err := s.List(ctx, tenantID)
		if err != nil {
			return err
		}
		if len(objects) > 0 {
			_, name, _ := gallery.SplitObjectKey(objects[0].Key)
			_ = s.Delete(ctx, tenantID, name)
		}
		return gallery.Unavailable(errors.New("connection reset"))
	}
	return s.Backend.DeleteAll(ctx, tenantID)
}

func TestDeleteTenant_RecoversFromPartialFailure(t *testing.T) {
	blobs := &flakyBlobStore{Backend: memory.New(gallery.DefaultPolicy(1024)), failures: 1}
	meta := repomemory.New()
	svc, err := gallery.New(
		gallery.WithMetadataStore(meta),
		gallery.WithBlobStore(blobs),
		gallery.WithURLResolver(urlstrategy.NewCDNStrategy("/files")),
	)
	require.NoError(t, err)
	ctx := context.Background()

	tenant, err := svc.CreateTenant(ctx, "Flaky")
	require.NoError(t, err)
	_, err = svc.UploadAssets(ctx, tenant.ID, []gallery.File{jpegFile("a.jpg"), jpegFile("b.jpg"), jpegFile("c.jpg")})
	require.NoError(t, err)

	err = svc.DeleteTenant(ctx, tenant.ID)
	require.Error(t, err)
	assert.True(t, gallery.Retryable(err))

	// the record survives so the delete can be retried
	_, err = meta.GetTenant(ctx, tenant.ID)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteTenant(ctx, tenant.ID))
	_, err = meta.GetTenant(ctx, tenant.ID)
	assert.ErrorIs(t, err, gallery.ErrNotFound)
	objects, err := blobs.List(ctx, tenant.ID)
	require.NoError(t, err)
	assert.Empty(t, objects)
}

// brokenBlobStore fails every write.
type brokenBlobStore struct {
	*memory.Backend
}

func (s *brokenBlobStore) Put(ctx context.Context, tenantID, name string, r io.Reader, size int64, contentType string) (string, error) {
	if strings.Contains(contentType, "png") {
		return "", gallery.Unavailable(errors.New("bucket unreachable"))
	}
	return s.Backend.Put(ctx, tenantID, name, r, size, contentType)
}

func TestUploadAssets_BackendFailureDoesNotAbortBatch(t *testing.T) {
	svc, err := gallery.New(
		gallery.WithMetadataStore(repomemory.New()),
		gallery.WithBlobStore(&brokenBlobStore{memory.New(gallery.DefaultPolicy(1024))}),
		gallery.WithURLResolver(urlstrategy.NewCDNStrategy("/files")),
	)
	require.NoError(t, err)
	ctx := context.Background()
	tenant, err := svc.CreateTenant(ctx, "Partial")
	require.NoError(t, err)

	results, err := svc.UploadAssets(ctx, tenant.ID, []gallery.File{
		pngFile("a.png", pngBytes),
		jpegFile("b.jpg"),
	})
	require.NoError(t, err)
	assert.Equal(t, gallery.KindBackendUnavailable, gallery.KindOf(results[0].Err))
	assert.True(t, results[1].OK())
}

func TestBranding(t *testing.T) {
	f := setupTestService(t)
	ctx := context.Background()

	settings, err := f.svc.GetSettings(ctx)
	require.NoError(t, err)
	assert.Nil(t, settings.LogoURL)

	first, err := f.svc.UpdateBranding(ctx, pngFile("logo.png", pngBytes))
	require.NoError(t, err)
	require.NotNil(t, first.LogoURL)

	settings, err = f.svc.GetSettings(ctx)
	require.NoError(t, err)
	require.NotNil(t, settings.LogoURL)
	assert.Equal(t, *first.LogoURL, *settings.LogoURL)

	second, err := f.svc.UpdateBranding(ctx, jpegFile("logo.jpg"))
	require.NoError(t, err)
	require.NotNil(t, second.LogoURL)

	path := func(u string) string { return strings.SplitN(u, "?", 2)[0] }
	assert.Equal(t, "/files/"+gallery.BrandingLogoKey, path(*second.LogoURL))
	assert.Equal(t, path(*first.LogoURL), path(*second.LogoURL))

	rc, obj, err := f.svc.OpenObject(ctx, gallery.BrandingLogoKey)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, jpegBytes, data)
	assert.Equal(t, gallery.ContentTypeJPEG, obj.ContentType)

	// the logo never counts as a tenant asset
	tenant, err := f.svc.CreateTenant(ctx, "Unaffected")
	require.NoError(t, err)
	g, err := f.svc.ListGallery(ctx, tenant.ID)
	require.NoError(t, err)
	assert.Empty(t, g.Assets)
}

func TestBranding_RejectsInvalidLogo(t *testing.T) {
	f := setupTestService(t)
	ctx := context.Background()

	_, err := f.svc.UpdateBranding(ctx, gallery.File{Name: "logo.txt", ContentType: "text/plain", Size: 2, Reader: strings.NewReader("hi")})
	assert.ErrorIs(t, err, gallery.ErrUnsupportedType)

	settings, err := f.svc.GetSettings(ctx)
	require.NoError(t, err)
	assert.Nil(t, settings.LogoURL)
}

// recordingSink counts lifecycle events.
type recordingSink struct {
	gallery.NoopEventSink
	mu       sync.Mutex
	stored   int
	rejected []gallery.Kind
	deleted  []string
}

func (s *recordingSink) AssetStored(context.Context, *gallery.Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stored++
	return nil
}

func (s *recordingSink) AssetRejected(_ context.Context, _, _ string, kind gallery.Kind) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejected = append(s.rejected, kind)
	return nil
}

func (s *recordingSink) TenantDeleted(_ context.Context, tenantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, tenantID)
	return errors.New("sink errors are logged, not returned")
}

func TestEventSink(t *testing.T) {
	sink := &recordingSink{}
	f := setupTestService(t, gallery.WithEventSink(sink))
	ctx := context.Background()

	tenant, err := f.svc.CreateTenant(ctx, "Events")
	require.NoError(t, err)
	_, err = f.svc.UploadAssets(ctx, tenant.ID, []gallery.File{
		jpegFile("a.jpg"),
		{Name: "b.txt", ContentType: "text/plain", Size: 1, Reader: strings.NewReader("b")},
	})
	require.NoError(t, err)
	require.NoError(t, f.svc.DeleteTenant(ctx, tenant.ID))

	assert.Equal(t, 1, sink.stored)
	assert.Equal(t, []gallery.Kind{gallery.KindUnsupportedType}, sink.rejected)
	assert.Equal(t, []string{tenant.ID}, sink.deleted)
}

func TestPingAndClose(t *testing.T) {
	f := setupTestService(t)

	assert.NoError(t, f.svc.Ping(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := f.svc.Ping(ctx)
	assert.Equal(t, gallery.KindBackendUnavailable, gallery.KindOf(err))

	assert.NoError(t, f.svc.Close())
}

// pausingMetadataStore holds the first GetTenant call until released.
type pausingMetadataStore struct {
	*repomemory.Repository
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (s *pausingMetadataStore) GetTenant(ctx context.Context, id string) (*gallery.Tenant, error) {
	s.once.Do(func() {
		close(s.entered)
		<-s.release
	})
	return s.Repository.GetTenant(ctx, id)
}

func TestUploadAssets_ConcurrentTenantDeleteLeavesNoOrphans(t *testing.T) {
	meta := &pausingMetadataStore{
		Repository: repomemory.New(),
		entered:    make(chan struct{}),
		release:    make(chan struct{}),
	}
	blobs := memory.New(gallery.DefaultPolicy(1024))
	svc, err := gallery.New(
		gallery.WithMetadataStore(meta),
		gallery.WithBlobStore(blobs),
		gallery.WithURLResolver(urlstrategy.NewCDNStrategy("/files")),
	)
	require.NoError(t, err)
	ctx := context.Background()

	tenant, err := meta.Repository.CreateTenant(ctx, "Racing")
	require.NoError(t, err)

	uploadDone := make(chan error, 1)
	go func() {
		_, err := svc.UploadAssets(ctx, tenant.ID, []gallery.File{jpegFile("late.jpg")})
		uploadDone <- err
	}()
	<-meta.entered

	deleteDone := make(chan error, 1)
	go func() { deleteDone <- svc.DeleteTenant(ctx, tenant.ID) }()

	select {
	case err := <-deleteDone:
		// delete finished while the upload was mid-lookup; let the upload
		// continue and check it did not write under the removed tenant
		require.NoError(t, err)
		close(meta.release)
		<-uploadDone
	case <-time.After(100 * time.Millisecond):
		close(meta.release)
		require.NoError(t, <-uploadDone)
		require.NoError(t, <-deleteDone)
	}

	_, err = meta.Repository.GetTenant(ctx, tenant.ID)
	assert.ErrorIs(t, err, gallery.ErrNotFound)
	objects, err := blobs.List(ctx, tenant.ID)
	require.NoError(t, err)
	assert.Empty(t, objects)
}

func TestUploadAssets_ReportsBytesWritten(t *testing.T) {
	f := setupTestService(t)
	ctx := context.Background()
	tenant, err := f.svc.CreateTenant(ctx, "Unknown sizes")
	require.NoError(t, err)

	file := jpegFile("streamed.jpg")
	file.Size = -1
	results, err := f.svc.UploadAssets(ctx, tenant.ID, []gallery.File{file})
	require.NoError(t, err)
	require.True(t, results[0].OK())
	assert.Equal(t, int64(len(jpegBytes)), results[0].Asset.SizeBytes)
}

// strayKeyBlobStore injects a listing entry that is not a valid object key.
type strayKeyBlobStore struct {
	*memory.Backend
}

func (s *strayKeyBlobStore) List(ctx context.Context, tenantID string) ([]gallery.StoredObject, error) {
	objects, err := s.Backend.List(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	stray := gallery.StoredObject{Key: "not-a-key", ContentType: gallery.ContentTypePNG}
	return append([]gallery.StoredObject{stray}, objects...), nil
}

func TestListGallery_IndexIsContiguous(t *testing.T) {
	svc, err := gallery.New(
		gallery.WithMetadataStore(repomemory.New()),
		gallery.WithBlobStore(&strayKeyBlobStore{memory.New(gallery.DefaultPolicy(1024))}),
		gallery.WithURLResolver(urlstrategy.NewCDNStrategy("/files")),
	)
	require.NoError(t, err)
	ctx := context.Background()
	tenant, err := svc.CreateTenant(ctx, "Gaps")
	require.NoError(t, err)
	_, err = svc.UploadAssets(ctx, tenant.ID, []gallery.File{jpegFile("a.jpg"), jpegFile("b.jpg")})
	require.NoError(t, err)

	g, err := svc.ListGallery(ctx, tenant.ID)
	require.NoError(t, err)
	require.Len(t, g.Assets, 2)
	assert.Equal(t, 1, g.Assets[0].Index)
	assert.Equal(t, 2, g.Assets[1].Index)
}
