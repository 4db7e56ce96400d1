package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Client is the surface of the external session gateway the synchronizer and
// broker depend on. References are opaque strings.
type Client interface {
	CreateConnection(ctx context.Context, name, protocolName string, params map[string]string) (string, error)
	UpdateConnection(ctx context.Context, ref, name, protocolName string) error
	ReplaceParameters(ctx context.Context, ref string, params map[string]string) error
	DeleteConnection(ctx context.Context, ref string) error
	Grant(ctx context.Context, ref, serviceIdentity string) error
	SessionURL(ctx context.Context, ref string, userID int64) (string, error)
}

// PostgresClient provisions Guacamole connections by writing Guacamole's own
// schema, the same way guacamole-auth-jdbc manages them. All tables live in
// the public schema of the shared database.
type PostgresClient struct {
	pool    *pgxpool.Pool
	baseURL string
}

func NewPostgresClient(pool *pgxpool.Pool, baseURL string) *PostgresClient {
	return &PostgresClient{
		pool:    pool,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

func (c *PostgresClient) CreateConnection(ctx context.Context, name, protocolName string, params map[string]string) (string, error) {
	var connectionID int64
	err := c.pool.QueryRow(ctx,
		`INSERT INTO public.guacamole_connection (connection_name, parent_id, protocol)
		 VALUES ($1,
		         (SELECT connection_group_id FROM public.guacamole_connection_group WHERE connection_group_name = 'ROOT'),
		         $2)
		 RETURNING connection_id`,
		name, protocolName).Scan(&connectionID)
	if err != nil {
		return "", fmt.Errorf("insert gateway connection: %w", err)
	}

	ref := fmt.Sprintf("%d", connectionID)
	if err := c.insertParameters(ctx, ref, params); err != nil {
		return "", err
	}
	return ref, nil
}

func (c *PostgresClient) UpdateConnection(ctx context.Context, ref, name, protocolName string) error {
	_, err := c.pool.Exec(ctx,
		`UPDATE public.guacamole_connection
		 SET connection_name = $2, protocol = $3
		 WHERE connection_id = $1::int`,
		ref, name, protocolName)
	if err != nil {
		return fmt.Errorf("update gateway connection: %w", err)
	}
	return nil
}

// ReplaceParameters deletes every existing parameter row and reinserts the
// given set. No diffing: after this call the stored set exactly equals params.
func (c *PostgresClient) ReplaceParameters(ctx context.Context, ref string, params map[string]string) error {
	_, err := c.pool.Exec(ctx,
		`DELETE FROM public.guacamole_connection_parameter WHERE connection_id = $1::int`, ref)
	if err != nil {
		return fmt.Errorf("delete gateway parameters: %w", err)
	}
	return c.insertParameters(ctx, ref, params)
}

// DeleteConnection removes parameters, permissions, then the connection row,
// in that dependency order.
func (c *PostgresClient) DeleteConnection(ctx context.Context, ref string) error {
	if _, err := c.pool.Exec(ctx,
		`DELETE FROM public.guacamole_connection_parameter WHERE connection_id = $1::int`, ref); err != nil {
		return fmt.Errorf("delete gateway parameters: %w", err)
	}
	if _, err := c.pool.Exec(ctx,
		`DELETE FROM public.guacamole_connection_permission WHERE connection_id = $1::int`, ref); err != nil {
		return fmt.Errorf("delete gateway permissions: %w", err)
	}
	if _, err := c.pool.Exec(ctx,
		`DELETE FROM public.guacamole_connection WHERE connection_id = $1::int`, ref); err != nil {
		return fmt.Errorf("delete gateway connection: %w", err)
	}
	return nil
}

// Grant gives the service identity READ and UPDATE on the connection. UPDATE
// is what lets the account open sessions. A missing service entity is logged
// and skipped, matching how the gateway tolerates unprovisioned accounts.
func (c *PostgresClient) Grant(ctx context.Context, ref, serviceIdentity string) error {
	var entityID int64
	err := c.pool.QueryRow(ctx,
		`SELECT entity_id FROM public.guacamole_entity WHERE name = $1 AND type = 'USER'`,
		serviceIdentity).Scan(&entityID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			slog.Warn("Gateway service account not found, skipping permission grant", "account", serviceIdentity)
			return nil
		}
		return fmt.Errorf("lookup gateway entity: %w", err)
	}

	for _, perm := range []string{"READ", "UPDATE"} {
		if _, err := c.pool.Exec(ctx,
			`INSERT INTO public.guacamole_connection_permission (entity_id, connection_id, permission)
			 VALUES ($1, $2::int, $3)
			 ON CONFLICT DO NOTHING`,
			entityID, ref, perm); err != nil {
			return fmt.Errorf("grant gateway permission: %w", err)
		}
	}
	return nil
}

// SessionURL returns the client URL for an existing connection. The reference
// is verified against the gateway so a stale or orphaned ref fails here rather
// than at the user's browser.
func (c *PostgresClient) SessionURL(ctx context.Context, ref string, userID int64) (string, error) {
	var exists bool
	err := c.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM public.guacamole_connection WHERE connection_id = $1::int)`,
		ref).Scan(&exists)
	if err != nil {
		return "", fmt.Errorf("verify gateway connection: %w", err)
	}
	if !exists {
		return "", fmt.Errorf("gateway connection %s not found", ref)
	}
	return fmt.Sprintf("%s/#/client/%s", c.baseURL, ref), nil
}

func (c *PostgresClient) insertParameters(ctx context.Context, ref string, params map[string]string) error {
	batch := &pgx.Batch{}
	for name, value := range params {
		batch.Queue(
			`INSERT INTO public.guacamole_connection_parameter (connection_id, parameter_name, parameter_value)
			 VALUES ($1::int, $2, $3)`,
			ref, name, value)
	}
	results := c.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range params {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("insert gateway parameter: %w", err)
		}
	}
	return nil
}
