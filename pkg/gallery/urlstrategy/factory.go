package urlstrategy

import (
	"fmt"

	"github.com/tendant/simple-gallery/pkg/gallery"
)

// Config holds configuration for URL strategy creation
type Config struct {
	Type       URLStrategyType
	CDNBaseURL string            // For CDN strategy
	Store      gallery.BlobStore // For storage-delegated and presigned strategies
}

// NewURLStrategy creates a URL strategy based on the configuration
func NewURLStrategy(config Config) (gallery.URLResolver, error) {
	switch config.Type {
	case StrategyTypeCDN:
		if config.CDNBaseURL == "" {
			return nil, fmt.Errorf("CDN base URL is required for CDN strategy")
		}
		return NewCDNStrategy(config.CDNBaseURL), nil

	case StrategyTypeStorageDelegated:
		p, ok := config.Store.(gallery.PublicURLer)
		if !ok {
			return nil, fmt.Errorf("blob store %s cannot generate public URLs", storeName(config.Store))
		}
		return NewStorageDelegatedStrategy(p), nil

	case StrategyTypePresigned:
		p, ok := config.Store.(Presigner)
		if !ok {
			return nil, fmt.Errorf("blob store %s cannot presign URLs", storeName(config.Store))
		}
		return NewPresignedStrategy(p), nil

	default:
		return nil, fmt.Errorf("unknown URL strategy type: %s", config.Type)
	}
}

// NewRecommendedStrategy picks CDN URLs when a public base URL is
// configured and falls back to the store's own URLs otherwise.
func NewRecommendedStrategy(publicBaseURL string, store gallery.BlobStore) (gallery.URLResolver, error) {
	if publicBaseURL != "" {
		return NewCDNStrategy(publicBaseURL), nil
	}
	return NewURLStrategy(Config{Type: StrategyTypeStorageDelegated, Store: store})
}

func storeName(store gallery.BlobStore) string {
	if store == nil {
		return "<nil>"
	}
	return store.Name()
}
