package urlstrategy

import (
	"context"
	"fmt"

	"github.com/tendant/simple-gallery/pkg/gallery"
)

// PresignedStrategy resolves keys to signed, expiring URLs. Each call signs
// a fresh URL, so gallery responses should not be cached longer than the
// signature lifetime.
type PresignedStrategy struct {
	Presigner Presigner
}

// NewPresignedStrategy creates a new presigned URL strategy
func NewPresignedStrategy(p Presigner) *PresignedStrategy {
	return &PresignedStrategy{Presigner: p}
}

// ResolveURL signs a read URL for key
func (s *PresignedStrategy) ResolveURL(ctx context.Context, key string) (string, error) {
	if s.Presigner == nil {
		return "", fmt.Errorf("%w: no presigner configured", gallery.ErrBackendUnavailable)
	}
	url, err := s.Presigner.PresignedURL(ctx, key)
	if err != nil {
		return "", gallery.Unavailable(err)
	}
	return url, nil
}
