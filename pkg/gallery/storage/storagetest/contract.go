// Package storagetest holds the behavior every gallery.BlobStore backend
// must share, run against each backend from its own tests.
package storagetest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-gallery/pkg/gallery"
)

var (
	// PNG is a payload that sniffs as image/png
	PNG = append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0x01}, 48)...)
	// JPEG is a payload that sniffs as image/jpeg
	JPEG = append([]byte{0xFF, 0xD8, 0xFF, 0xE0}, bytes.Repeat([]byte{0x02}, 48)...)
)

// RunBlobStore exercises store. newStore must return an empty store whose
// policy allows at least 1 KiB per file.
func RunBlobStore(t *testing.T, newStore func(t *testing.T) gallery.BlobStore) {
	t.Helper()
	ctx := context.Background()

	t.Run("PutListOpen", func(t *testing.T) {
		store := newStore(t)
		tenantID := gallery.NewTenantID()

		key, err := store.Put(ctx, tenantID, "00000000000000000002-b.png", bytes.NewReader(PNG), int64(len(PNG)), gallery.ContentTypePNG)
		require.NoError(t, err)
		assert.Equal(t, gallery.ObjectKey(tenantID, "00000000000000000002-b.png"), key)
		_, err = store.Put(ctx, tenantID, "00000000000000000001-a.jpg", bytes.NewReader(JPEG), int64(len(JPEG)), gallery.ContentTypeJPEG)
		require.NoError(t, err)

		objects, err := store.List(ctx, tenantID)
		require.NoError(t, err)
		require.Len(t, objects, 2)
		assert.Equal(t, gallery.ObjectKey(tenantID, "00000000000000000001-a.jpg"), objects[0].Key)
		assert.Equal(t, gallery.ObjectKey(tenantID, "00000000000000000002-b.png"), objects[1].Key)
		assert.Equal(t, int64(len(JPEG)), objects[0].Size)

		rc, obj, err := store.Open(ctx, key)
		require.NoError(t, err)
		defer rc.Close()
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		assert.Equal(t, PNG, data)
		assert.Equal(t, gallery.ContentTypePNG, obj.ContentType)
	})

	t.Run("ListEmptyTenant", func(t *testing.T) {
		store := newStore(t)

		objects, err := store.List(ctx, gallery.NewTenantID())
		require.NoError(t, err)
		assert.NotNil(t, objects)
		assert.Empty(t, objects)
	})

	t.Run("TenantsAreIsolated", func(t *testing.T) {
		store := newStore(t)
		a, b := gallery.NewTenantID(), gallery.NewTenantID()

		_, err := store.Put(ctx, a, "x.png", bytes.NewReader(PNG), int64(len(PNG)), gallery.ContentTypePNG)
		require.NoError(t, err)

		objects, err := store.List(ctx, b)
		require.NoError(t, err)
		assert.Empty(t, objects)

		require.NoError(t, store.DeleteAll(ctx, b))
		objects, err = store.List(ctx, a)
		require.NoError(t, err)
		assert.Len(t, objects, 1)
	})

	t.Run("PolicyCheckedBeforeWrite", func(t *testing.T) {
		store := newStore(t)
		tenantID := gallery.NewTenantID()
		limit := store.Policy().MaxBytes

		_, err := store.Put(ctx, tenantID, "a.txt", bytes.NewReader([]byte("hello")), 5, "text/plain")
		assert.ErrorIs(t, err, gallery.ErrUnsupportedType)

		big := bytes.Repeat([]byte{0x01}, int(limit)+1)
		_, err = store.Put(ctx, tenantID, "big.png", bytes.NewReader(big), int64(len(big)), gallery.ContentTypePNG)
		assert.ErrorIs(t, err, gallery.ErrFileTooLarge)

		// an understated size is caught while streaming
		_, err = store.Put(ctx, tenantID, "liar.png", bytes.NewReader(big), -1, gallery.ContentTypePNG)
		assert.ErrorIs(t, err, gallery.ErrFileTooLarge)

		objects, err := store.List(ctx, tenantID)
		require.NoError(t, err)
		assert.Empty(t, objects)
	})

	t.Run("DeleteIsIdempotent", func(t *testing.T) {
		store := newStore(t)
		tenantID := gallery.NewTenantID()

		_, err := store.Put(ctx, tenantID, "x.png", bytes.NewReader(PNG), int64(len(PNG)), gallery.ContentTypePNG)
		require.NoError(t, err)

		require.NoError(t, store.Delete(ctx, tenantID, "x.png"))
		require.NoError(t, store.Delete(ctx, tenantID, "x.png"))

		_, _, err = store.Open(ctx, gallery.ObjectKey(tenantID, "x.png"))
		assert.ErrorIs(t, err, gallery.ErrNotFound)
	})

	t.Run("DeleteAll", func(t *testing.T) {
		store := newStore(t)
		tenantID := gallery.NewTenantID()

		for i := 0; i < 3; i++ {
			_, err := store.Put(ctx, tenantID, fmt.Sprintf("%d.jpg", i), bytes.NewReader(JPEG), int64(len(JPEG)), gallery.ContentTypeJPEG)
			require.NoError(t, err)
		}
		require.NoError(t, store.DeleteAll(ctx, tenantID))
		require.NoError(t, store.DeleteAll(ctx, tenantID))

		objects, err := store.List(ctx, tenantID)
		require.NoError(t, err)
		assert.Empty(t, objects)
	})

	t.Run("PutSingletonOverwrites", func(t *testing.T) {
		store := newStore(t)

		ref, err := store.PutSingleton(ctx, gallery.BrandingLogoKey, bytes.NewReader(PNG), int64(len(PNG)), gallery.ContentTypePNG)
		require.NoError(t, err)
		assert.Equal(t, gallery.BrandingLogoKey, ref)

		ref2, err := store.PutSingleton(ctx, gallery.BrandingLogoKey, bytes.NewReader(JPEG), int64(len(JPEG)), gallery.ContentTypeJPEG)
		require.NoError(t, err)
		assert.Equal(t, ref, ref2)

		rc, obj, err := store.Open(ctx, gallery.BrandingLogoKey)
		require.NoError(t, err)
		defer rc.Close()
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		assert.Equal(t, JPEG, data)
		assert.Equal(t, gallery.ContentTypeJPEG, obj.ContentType)
	})

	t.Run("OpenMissing", func(t *testing.T) {
		store := newStore(t)

		_, _, err := store.Open(ctx, gallery.ObjectKey(gallery.NewTenantID(), "nope.png"))
		assert.ErrorIs(t, err, gallery.ErrNotFound)
	})
}
