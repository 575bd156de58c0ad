package gallery

import (
	"context"
	"log/slog"
)

// NoopEventSink is a no-operation implementation of EventSink
type NoopEventSink struct{}

// NewNoopEventSink creates a new no-operation event sink
func NewNoopEventSink() EventSink {
	return NoopEventSink{}
}

func (NoopEventSink) TenantCreated(context.Context, *Tenant) error { return nil }
func (NoopEventSink) TenantDeleted(context.Context, string) error { return nil }
func (NoopEventSink) AssetStored(context.Context, *Asset) error { return nil }
func (NoopEventSink) AssetDeleted(context.Context, string, string) error { return nil }
func (NoopEventSink) AssetRejected(context.Context, string, string, Kind) error { return nil }
func (NoopEventSink) BrandingUpdated(context.Context, *BrandingSettings) error { return nil }

// LogEventSink writes every lifecycle event to a structured logger.
type LogEventSink struct {
	Logger *slog.Logger
}

// NewLogEventSink creates an event sink that logs through logger, or
// slog.Default when logger is nil.
func NewLogEventSink(logger *slog.Logger) EventSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogEventSink{Logger: logger}
}

func (s *LogEventSink) TenantCreated(ctx context.Context, tenant *Tenant) error {
	s.Logger.InfoContext(ctx, "Tenant created", "tenant_id", tenant.ID, "name", tenant.Name)
	return nil
}

func (s *LogEventSink) TenantDeleted(ctx context.Context, tenantID string) error {
	s.Logger.InfoContext(ctx, "Tenant deleted", "tenant_id", tenantID)
	return nil
}

func (s *LogEventSink) AssetStored(ctx context.Context, asset *Asset) error {
	s.Logger.InfoContext(ctx, "Asset stored", "tenant_id", asset.TenantID, "key", asset.Key, "size", asset.SizeBytes)
	return nil
}

func (s *LogEventSink) AssetDeleted(ctx context.Context, tenantID, key string) error {
	s.Logger.InfoContext(ctx, "Asset deleted", "tenant_id", tenantID, "key", key)
	return nil
}

func (s *LogEventSink) AssetRejected(ctx context.Context, tenantID, name string, kind Kind) error {
	s.Logger.WarnContext(ctx, "Asset rejected", "tenant_id", tenantID, "file", name, "kind", kind)
	return nil
}

func (s *LogEventSink) BrandingUpdated(ctx context.Context, settings *BrandingSettings) error {
	s.Logger.InfoContext(ctx, "Branding updated", "updated_at", settings.UpdatedAt)
	return nil
}

// MultiEventSink fans events out to several sinks and returns the first error.
type MultiEventSink []EventSink

func (m MultiEventSink) each(fn func(EventSink) error) error {
	var first error
	for _, sink := range m {
		if err := fn(sink); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m MultiEventSink) TenantCreated(ctx context.Context, tenant *Tenant) error {
	return m.each(func(s EventSink) error { return s.TenantCreated(ctx, tenant) })
}

func (m MultiEventSink) TenantDeleted(ctx context.Context, tenantID string) error {
	return m.each(func(s EventSink) error { return s.TenantDeleted(ctx, tenantID) })
}

func (m MultiEventSink) AssetStored(ctx context.Context, asset *Asset) error {
	return m.each(func(s EventSink) error { return s.AssetStored(ctx, asset) })
}

func (m MultiEventSink) AssetDeleted(ctx context.Context, tenantID, key string) error {
	return m.each(func(s EventSink) error { return s.AssetDeleted(ctx, tenantID, key) })
}

func (m MultiEventSink) AssetRejected(ctx context.Context, tenantID, name string, kind Kind) error {
	return m.each(func(s EventSink) error { return s.AssetRejected(ctx, tenantID, name, kind) })
}

func (m MultiEventSink) BrandingUpdated(ctx context.Context, settings *BrandingSettings) error {
	return m.each(func(s EventSink) error { return s.BrandingUpdated(ctx, settings) })
}
