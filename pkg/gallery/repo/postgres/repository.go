package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tendant/simple-gallery/pkg/gallery"
)

// maxIDAttempts bounds retries when a generated tenant id collides
const maxIDAttempts = 8

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Repository implements gallery.MetadataStore using PostgreSQL
type Repository struct {
	db   DBTX
	pool *pgxpool.Pool
}

// New creates a new PostgreSQL repository
func New(db DBTX) *Repository {
	return &Repository{db: db}
}

// NewWithPool creates a new PostgreSQL repository with connection pool.
// Close releases the pool.
func NewWithPool(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool, pool: pool}
}

// Open connects to databaseURL, applies pending migrations and returns a
// pool-backed repository.
func Open(ctx context.Context, databaseURL string) (*Repository, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", gallery.Unavailable(err))
	}
	if err := Migrate(databaseURL); err != nil {
		pool.Close()
		return nil, err
	}
	return NewWithPool(pool), nil
}

// Close releases the pool when the repository owns one
func (r *Repository) Close() error {
	if r.pool != nil {
		r.pool.Close()
	}
	return nil
}

// Error handling helper
func (r *Repository) handlePostgresError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("%s: duplicate entry on %s", operation, pgErr.ConstraintName)
		case "23502": // not_null_violation
			return fmt.Errorf("%w: required field %s is missing", gallery.ErrInvalidArgument, pgErr.ColumnName)
		case "42P01": // undefined_table
			return fmt.Errorf("table does not exist - database migration required")
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return gallery.ErrNotFound
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	// anything that is not a server-side error means the database was not reached
	return fmt.Errorf("database error in %s: %w", operation, gallery.Unavailable(err))
}

// Tenant operations

func (r *Repository) CreateTenant(ctx context.Context, name string) (*gallery.Tenant, error) {
	query := `
		INSERT INTO tenants (id, name)
		VALUES ($1, $2)
		ON CONFLICT (id) DO NOTHING
		RETURNING id, name, created_at`

	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		var tenant gallery.Tenant
		err := r.db.QueryRow(ctx, query, gallery.NewTenantID(), name).Scan(
			&tenant.ID, &tenant.Name, &tenant.CreatedAt)
		if errors.Is(err, pgx.ErrNoRows) {
			// id collision, try another
			continue
		}
		if err != nil {
			return nil, r.handlePostgresError("create tenant", err)
		}
		tenant.CreatedAt = tenant.CreatedAt.UTC()
		return &tenant, nil
	}
	return nil, fmt.Errorf("could not allocate a unique tenant id")
}

func (r *Repository) ListTenants(ctx context.Context) ([]*gallery.Tenant, error) {
	query := `
		SELECT id, name, created_at
		FROM tenants
		ORDER BY created_at DESC, seq DESC`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, r.handlePostgresError("list tenants", err)
	}
	defer rows.Close()

	tenants := []*gallery.Tenant{}
	for rows.Next() {
		var tenant gallery.Tenant
		if err := rows.Scan(&tenant.ID, &tenant.Name, &tenant.CreatedAt); err != nil {
			return nil, r.handlePostgresError("scan tenant", err)
		}
		tenant.CreatedAt = tenant.CreatedAt.UTC()
		tenants = append(tenants, &tenant)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError("list tenants", err)
	}
	return tenants, nil
}

func (r *Repository) GetTenant(ctx context.Context, id string) (*gallery.Tenant, error) {
	query := `SELECT id, name, created_at FROM tenants WHERE id = $1`

	var tenant gallery.Tenant
	err := r.db.QueryRow(ctx, query, id).Scan(&tenant.ID, &tenant.Name, &tenant.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, gallery.ErrNotFound
		}
		return nil, r.handlePostgresError("get tenant", err)
	}
	tenant.CreatedAt = tenant.CreatedAt.UTC()
	return &tenant, nil
}

func (r *Repository) DeleteTenant(ctx context.Context, id string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM tenants WHERE id = $1`, id); err != nil {
		return r.handlePostgresError("delete tenant", err)
	}
	return nil
}

// Settings operations

func (r *Repository) GetSettings(ctx context.Context) (*gallery.BrandingSettings, error) {
	query := `SELECT logo_key, updated_at FROM branding_settings WHERE id = 1`

	var settings gallery.BrandingSettings
	err := r.db.QueryRow(ctx, query).Scan(&settings.LogoKey, &settings.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &gallery.BrandingSettings{}, nil
		}
		return nil, r.handlePostgresError("get settings", err)
	}
	settings.UpdatedAt = settings.UpdatedAt.UTC()
	return &settings, nil
}

func (r *Repository) UpsertSettings(ctx context.Context, patch gallery.SettingsPatch) (*gallery.BrandingSettings, error) {
	query := `
		INSERT INTO branding_settings (id, logo_key, updated_at)
		VALUES (1, $1, clock_timestamp())
		ON CONFLICT (id) DO UPDATE SET
			logo_key = COALESCE(EXCLUDED.logo_key, branding_settings.logo_key),
			updated_at = EXCLUDED.updated_at
		RETURNING logo_key, updated_at`

	var settings gallery.BrandingSettings
	if err := r.db.QueryRow(ctx, query, patch.LogoKey).Scan(&settings.LogoKey, &settings.UpdatedAt); err != nil {
		return nil, r.handlePostgresError("upsert settings", err)
	}
	settings.UpdatedAt = settings.UpdatedAt.UTC()
	return &settings, nil
}

func (r *Repository) Ping(ctx context.Context) error {
	if r.pool != nil {
		if err := r.pool.Ping(ctx); err != nil {
			return gallery.Unavailable(err)
		}
		return nil
	}
	var one int
	if err := r.db.QueryRow(ctx, `SELECT 1`).Scan(&one); err != nil {
		return r.handlePostgresError("ping", err)
	}
	return nil
}
