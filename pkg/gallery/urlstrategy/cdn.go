package urlstrategy

import (
	"context"
	"fmt"
	"strings"
)

// CDNStrategy generates URLs that point directly at a CDN, a public bucket
// or the application's own file read endpoint.
type CDNStrategy struct {
	BaseURL string // e.g. "https://cdn.example.com" or "/files"
}

// NewCDNStrategy creates a new CDN URL strategy
func NewCDNStrategy(baseURL string) *CDNStrategy {
	return &CDNStrategy{BaseURL: strings.TrimSuffix(baseURL, "/")}
}

// ResolveURL joins the base URL and key
func (s *CDNStrategy) ResolveURL(ctx context.Context, key string) (string, error) {
	if s.BaseURL == "" {
		return "", fmt.Errorf("CDN base URL not configured")
	}
	return fmt.Sprintf("%s/%s", s.BaseURL, strings.TrimPrefix(key, "/")), nil
}
