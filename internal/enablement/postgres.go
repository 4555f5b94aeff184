// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BizBox Contributors

package enablement

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// poolIface abstracts pgxpool.Pool so unit tests can use pgxmock.
type poolIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store using PostgreSQL.
type PostgresStore struct {
	pool poolIface
}

// NewPostgresStore creates a store backed by an existing pool.
func NewPostgresStore(pool poolIface) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Connect opens a connection pool, retrying the initial ping with
// fibonacci backoff for up to maxWait so the host survives a database
// that is still starting.
func Connect(ctx context.Context, dsn string, maxWait time.Duration) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "create pool").Wrap(err)
	}

	backoff := retry.WithMaxDuration(maxWait, retry.NewFibonacci(250*time.Millisecond))
	if err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if pingErr := pool.Ping(ctx); pingErr != nil {
			return retry.RetryableError(pingErr)
		}
		return nil
	}); err != nil {
		pool.Close()
		return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "ping database").Wrap(err)
	}

	return pool, nil
}

// CreateTenant registers a tenant.
func (s *PostgresStore) CreateTenant(ctx context.Context, slug, name string) (*Tenant, error) {
	tenant := &Tenant{Slug: slug, Name: name}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO tenants (slug, name) VALUES ($1, $2) RETURNING id, created_at`,
		slug, name).Scan(&tenant.ID, &tenant.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return nil, oops.Code("TENANT_EXISTS").With("slug", slug).Wrap(ErrTenantExists)
		}
		return nil, oops.Code("TENANT_CREATE_FAILED").With("slug", slug).Wrap(err)
	}
	return tenant, nil
}

// SetEnabled records whether a plugin is enabled for a tenant.
func (s *PostgresStore) SetEnabled(ctx context.Context, tenantSlug, pluginID string, enabled bool) error {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO tenant_plugins (tenant_id, plugin_id, enabled, updated_at)
		SELECT t.id, $2, $3, now() FROM tenants t WHERE t.slug = $1
		ON CONFLICT (tenant_id, plugin_id) DO UPDATE SET enabled = $3, updated_at = now()`,
		tenantSlug, pluginID, enabled)
	if err != nil {
		return oops.Code("ENABLEMENT_SET_FAILED").
			With("tenant", tenantSlug).
			With("plugin_id", pluginID).
			Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("TENANT_NOT_FOUND").With("tenant", tenantSlug).Wrap(ErrTenantNotFound)
	}
	return nil
}

// EnabledPlugins returns the ids of plugins enabled for a tenant.
func (s *PostgresStore) EnabledPlugins(ctx context.Context, tenantSlug string) ([]string, error) {
	var tenantID int64
	err := s.pool.QueryRow(ctx, `SELECT id FROM tenants WHERE slug = $1`, tenantSlug).Scan(&tenantID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, oops.Code("TENANT_NOT_FOUND").With("tenant", tenantSlug).Wrap(ErrTenantNotFound)
		}
		return nil, oops.Code("ENABLEMENT_LIST_FAILED").With("tenant", tenantSlug).Wrap(err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT plugin_id FROM tenant_plugins
		WHERE tenant_id = $1 AND enabled ORDER BY plugin_id`,
		tenantID)
	if err != nil {
		return nil, oops.Code("ENABLEMENT_LIST_FAILED").With("tenant", tenantSlug).Wrap(err)
	}
	defer rows.Close()

	var plugins []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, oops.Code("ENABLEMENT_LIST_FAILED").
				With("tenant", tenantSlug).
				With("operation", "scan row").
				Wrap(err)
		}
		plugins = append(plugins, id)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("ENABLEMENT_LIST_FAILED").With("tenant", tenantSlug).Wrap(err)
	}

	return plugins, nil
}

// IsEnabled reports whether a plugin is enabled for a tenant.
func (s *PostgresStore) IsEnabled(ctx context.Context, tenantSlug, pluginID string) (bool, error) {
	var enabled bool
	err := s.pool.QueryRow(ctx, `
		SELECT tp.enabled FROM tenant_plugins tp
		JOIN tenants t ON t.id = tp.tenant_id
		WHERE t.slug = $1 AND tp.plugin_id = $2`,
		tenantSlug, pluginID).Scan(&enabled)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, oops.Code("ENABLEMENT_CHECK_FAILED").
			With("tenant", tenantSlug).
			With("plugin_id", pluginID).
			Wrap(err)
	}
	return enabled, nil
}
