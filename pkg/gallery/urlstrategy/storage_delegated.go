package urlstrategy

import (
	"context"
	"fmt"

	"github.com/tendant/simple-gallery/pkg/gallery"
)

// StorageDelegatedStrategy delegates URL generation to the blob store
type StorageDelegatedStrategy struct {
	Store gallery.PublicURLer
}

// NewStorageDelegatedStrategy creates a new storage-delegated URL strategy
func NewStorageDelegatedStrategy(store gallery.PublicURLer) *StorageDelegatedStrategy {
	return &StorageDelegatedStrategy{Store: store}
}

// ResolveURL returns the store's public URL for key
func (s *StorageDelegatedStrategy) ResolveURL(ctx context.Context, key string) (string, error) {
	if s.Store == nil {
		return "", fmt.Errorf("%w: no blob store for URL generation", gallery.ErrBackendUnavailable)
	}
	return s.Store.PublicURL(key), nil
}
