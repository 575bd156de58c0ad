// Package urlstrategy turns stored object keys into URLs that an
// unauthenticated gallery viewer can fetch.
package urlstrategy

import (
	"context"

	"github.com/tendant/simple-gallery/pkg/gallery"
)

// URLStrategyType represents the type of URL strategy
type URLStrategyType string

const (
	// CDN strategy joins a CDN or public bucket base URL with the key
	StrategyTypeCDN URLStrategyType = "cdn"

	// Storage-delegated strategy asks the blob store for its public URL
	StrategyTypeStorageDelegated URLStrategyType = "storage-delegated"

	// Presigned strategy issues time-limited signed URLs for private buckets
	StrategyTypePresigned URLStrategyType = "presigned"
)

// Presigner is implemented by blob stores that can sign read URLs
type Presigner interface {
	PresignedURL(ctx context.Context, key string) (string, error)
}

var (
	_ gallery.URLResolver = (*CDNStrategy)(nil)
	_ gallery.URLResolver = (*StorageDelegatedStrategy)(nil)
	_ gallery.URLResolver = (*PresignedStrategy)(nil)
)
