// Package sqlite provides a SQLite-backed gallery.MetadataStore for
// single-node deployments that want metadata to survive restarts without
// running a database server.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/tendant/simple-gallery/pkg/gallery"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// maxIDAttempts bounds retries when a generated tenant id collides
const maxIDAttempts = 8

// Store persists tenants and branding settings in SQLite.
type Store struct {
	sqlDB *sql.DB
	now   func() time.Time
}

func toNanos(value time.Time) int64 {
	return value.UTC().UnixNano()
}

func fromNanos(value int64) time.Time {
	return time.Unix(0, value).UTC()
}

// Open opens a SQLite store at path and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// one writer at a time; also keeps every query on the same database
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", gallery.Unavailable(err))
	}
	if err := migrateUp(sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB, now: time.Now}, nil
}

func migrateUp(sqlDB *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load migration source: %w", err)
	}
	driver, err := migratesqlite.WithInstance(sqlDB, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	// m.Close would also close sqlDB, which the store keeps using
	defer src.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Tenant operations

func (s *Store) CreateTenant(ctx context.Context, name string) (*gallery.Tenant, error) {
	createdAt := s.now().UTC()
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		id := gallery.NewTenantID()
		res, err := s.sqlDB.ExecContext(ctx,
			`INSERT OR IGNORE INTO tenants (id, name, created_at) VALUES (?, ?, ?)`,
			id, name, toNanos(createdAt))
		if err != nil {
			return nil, fmt.Errorf("insert tenant: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("insert tenant: %w", err)
		}
		if n == 0 {
			continue
		}
		return &gallery.Tenant{ID: id, Name: name, CreatedAt: fromNanos(toNanos(createdAt))}, nil
	}
	return nil, fmt.Errorf("could not allocate a unique tenant id")
}

func (s *Store) ListTenants(ctx context.Context) ([]*gallery.Tenant, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id, name, created_at FROM tenants ORDER BY created_at DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	defer rows.Close()

	tenants := []*gallery.Tenant{}
	for rows.Next() {
		var (
			tenant    gallery.Tenant
			createdAt int64
		)
		if err := rows.Scan(&tenant.ID, &tenant.Name, &createdAt); err != nil {
			return nil, fmt.Errorf("scan tenant: %w", err)
		}
		tenant.CreatedAt = fromNanos(createdAt)
		tenants = append(tenants, &tenant)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	return tenants, nil
}

func (s *Store) GetTenant(ctx context.Context, id string) (*gallery.Tenant, error) {
	var (
		tenant    gallery.Tenant
		createdAt int64
	)
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM tenants WHERE id = ?`, id,
	).Scan(&tenant.ID, &tenant.Name, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, gallery.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get tenant: %w", err)
	}
	tenant.CreatedAt = fromNanos(createdAt)
	return &tenant, nil
}

func (s *Store) DeleteTenant(ctx context.Context, id string) error {
	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM tenants WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete tenant: %w", err)
	}
	return nil
}

// Settings operations

func (s *Store) GetSettings(ctx context.Context) (*gallery.BrandingSettings, error) {
	var (
		logoKey   sql.NullString
		updatedAt int64
	)
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT logo_key, updated_at FROM branding_settings WHERE id = 1`,
	).Scan(&logoKey, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return &gallery.BrandingSettings{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get settings: %w", err)
	}
	return toSettings(logoKey, updatedAt), nil
}

func (s *Store) UpsertSettings(ctx context.Context, patch gallery.SettingsPatch) (*gallery.BrandingSettings, error) {
	var logoKey sql.NullString
	if patch.LogoKey != nil {
		logoKey = sql.NullString{String: *patch.LogoKey, Valid: true}
	}

	var (
		storedKey sql.NullString
		updatedAt int64
	)
	err := s.sqlDB.QueryRowContext(ctx, `
		INSERT INTO branding_settings (id, logo_key, updated_at) VALUES (1, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			logo_key = COALESCE(excluded.logo_key, branding_settings.logo_key),
			updated_at = excluded.updated_at
		RETURNING logo_key, updated_at`,
		logoKey, toNanos(s.now()),
	).Scan(&storedKey, &updatedAt)
	if err != nil {
		return nil, fmt.Errorf("upsert settings: %w", err)
	}
	return toSettings(storedKey, updatedAt), nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.sqlDB.PingContext(ctx); err != nil {
		return gallery.Unavailable(err)
	}
	return nil
}

func toSettings(logoKey sql.NullString, updatedAt int64) *gallery.BrandingSettings {
	settings := &gallery.BrandingSettings{UpdatedAt: fromNanos(updatedAt)}
	if logoKey.Valid {
		key := logoKey.String
		settings.LogoKey = &key
	}
	return settings
}
