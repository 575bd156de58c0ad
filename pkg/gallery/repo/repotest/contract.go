// Package repotest holds the behavior every gallery.MetadataStore must share.
// Backend packages run it from their own tests.
package repotest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-gallery/pkg/gallery"
)

// RunMetadataStore exercises store against the MetadataStore contract.
// newStore must return an empty store on every call.
func RunMetadataStore(t *testing.T, newStore func(t *testing.T) gallery.MetadataStore) {
	ctx := context.Background()

	t.Run("CreateAndGetTenant", func(t *testing.T) {
		store := newStore(t)

		tenant, err := store.CreateTenant(ctx, "Smith Wedding")
		require.NoError(t, err)
		assert.True(t, gallery.ValidTenantID(tenant.ID), "generated id %q", tenant.ID)
		assert.Equal(t, "Smith Wedding", tenant.Name)
		assert.False(t, tenant.CreatedAt.IsZero())

		got, err := store.GetTenant(ctx, tenant.ID)
		require.NoError(t, err)
		assert.Equal(t, tenant.ID, got.ID)
		assert.Equal(t, tenant.Name, got.Name)
		assert.WithinDuration(t, tenant.CreatedAt, got.CreatedAt, time.Second)
	})

	t.Run("GetUnknownTenant", func(t *testing.T) {
		store := newStore(t)

		_, err := store.GetTenant(ctx, "00000000")
		assert.ErrorIs(t, err, gallery.ErrNotFound)
	})

	t.Run("ListTenantsNewestFirst", func(t *testing.T) {
		store := newStore(t)

		tenants, err := store.ListTenants(ctx)
		require.NoError(t, err)
		assert.Empty(t, tenants)

		var ids []string
		for _, name := range []string{"first", "second", "third"} {
			tenant, err := store.CreateTenant(ctx, name)
			require.NoError(t, err)
			ids = append(ids, tenant.ID)
			time.Sleep(2 * time.Millisecond)
		}

		tenants, err = store.ListTenants(ctx)
		require.NoError(t, err)
		require.Len(t, tenants, 3)
		assert.Equal(t, ids[2], tenants[0].ID)
		assert.Equal(t, ids[1], tenants[1].ID)
		assert.Equal(t, ids[0], tenants[2].ID)
	})

	t.Run("DeleteTenantIsIdempotent", func(t *testing.T) {
		store := newStore(t)

		tenant, err := store.CreateTenant(ctx, "to delete")
		require.NoError(t, err)

		require.NoError(t, store.DeleteTenant(ctx, tenant.ID))
		require.NoError(t, store.DeleteTenant(ctx, tenant.ID))
		require.NoError(t, store.DeleteTenant(ctx, "ffffffff"))

		_, err = store.GetTenant(ctx, tenant.ID)
		assert.ErrorIs(t, err, gallery.ErrNotFound)
	})

	t.Run("SettingsDefaultToEmpty", func(t *testing.T) {
		store := newStore(t)

		settings, err := store.GetSettings(ctx)
		require.NoError(t, err)
		require.NotNil(t, settings)
		assert.Nil(t, settings.LogoKey)
	})

	t.Run("UpsertSettings", func(t *testing.T) {
		store := newStore(t)

		key := gallery.BrandingLogoKey
		first, err := store.UpsertSettings(ctx, gallery.SettingsPatch{LogoKey: &key})
		require.NoError(t, err)
		require.NotNil(t, first.LogoKey)
		assert.Equal(t, key, *first.LogoKey)
		assert.False(t, first.UpdatedAt.IsZero())

		time.Sleep(2 * time.Millisecond)

		// an empty patch keeps the logo and bumps the timestamp
		second, err := store.UpsertSettings(ctx, gallery.SettingsPatch{})
		require.NoError(t, err)
		require.NotNil(t, second.LogoKey)
		assert.Equal(t, key, *second.LogoKey)
		assert.False(t, second.UpdatedAt.Before(first.UpdatedAt))

		got, err := store.GetSettings(ctx)
		require.NoError(t, err)
		require.NotNil(t, got.LogoKey)
		assert.Equal(t, key, *got.LogoKey)
	})

	t.Run("Ping", func(t *testing.T) {
		store := newStore(t)
		assert.NoError(t, store.Ping(ctx))
	})
}
