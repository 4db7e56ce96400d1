package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

const deviceColumns = `id, name, description, host, port, protocol, username,
	password_enc, private_key_enc, guacamole_conn_id, status, tags, is_active,
	created_by, created_at, updated_at`

func scanDevice(row pgx.Row) (Device, error) {
	var (
		d    Device
		tags []byte
	)
	err := row.Scan(&d.ID, &d.Name, &d.Description, &d.Host, &d.Port, &d.Protocol,
		&d.Username, &d.PasswordEnc, &d.PrivateKeyEnc, &d.GuacamoleConnID, &d.Status,
		&tags, &d.IsActive, &d.CreatedBy, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return Device{}, err
	}
	if len(tags) > 0 {
		_ = json.Unmarshal(tags, &d.Tags)
	}
	return d, nil
}

func (s *Store) CreateDevice(ctx context.Context, d Device) (Device, error) {
	if d.Tags == nil {
		d.Tags = []string{}
	}
	tags, _ := json.Marshal(d.Tags)
	row := s.pool.QueryRow(ctx,
		`INSERT INTO devices (name, description, host, port, protocol, username,
		    password_enc, private_key_enc, status, tags, is_active, created_by)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'unknown', $9, true, $10)
		 RETURNING `+deviceColumns,
		d.Name, d.Description, d.Host, d.Port, d.Protocol, d.Username,
		d.PasswordEnc, d.PrivateKeyEnc, tags, d.CreatedBy)
	created, err := scanDevice(row)
	if err != nil {
		return Device{}, fmt.Errorf("create device: %w", err)
	}
	return created, nil
}

func (s *Store) GetDevice(ctx context.Context, id int64) (Device, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+deviceColumns+` FROM devices WHERE id = $1`, id)
	d, err := scanDevice(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Device{}, ErrDeviceNotFound
		}
		return Device{}, fmt.Errorf("get device: %w", err)
	}
	return d, nil
}

// GetActiveDevice loads a device that has not been soft-deleted.
func (s *Store) GetActiveDevice(ctx context.Context, id int64) (Device, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+deviceColumns+` FROM devices WHERE id = $1 AND is_active = true`, id)
	d, err := scanDevice(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Device{}, ErrDeviceNotFound
		}
		return Device{}, fmt.Errorf("get active device: %w", err)
	}
	return d, nil
}

func (s *Store) UpdateDevice(ctx context.Context, d Device) (Device, error) {
	if d.Tags == nil {
		d.Tags = []string{}
	}
	tags, _ := json.Marshal(d.Tags)
	row := s.pool.QueryRow(ctx,
		`UPDATE devices
		 SET name = $2, description = $3, host = $4, port = $5, protocol = $6,
		     username = $7, password_enc = $8, private_key_enc = $9, tags = $10,
		     is_active = $11, updated_at = now()
		 WHERE id = $1
		 RETURNING `+deviceColumns,
		d.ID, d.Name, d.Description, d.Host, d.Port, d.Protocol, d.Username,
		d.PasswordEnc, d.PrivateKeyEnc, tags, d.IsActive)
	updated, err := scanDevice(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Device{}, ErrDeviceNotFound
		}
		return Device{}, fmt.Errorf("update device: %w", err)
	}
	return updated, nil
}

// SetDeviceGatewayRef durably commits the gateway connection reference before
// it is handed back to any caller.
func (s *Store) SetDeviceGatewayRef(ctx context.Context, deviceID int64, ref string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE devices SET guacamole_conn_id = $2, updated_at = now() WHERE id = $1`, deviceID, ref)
	if err != nil {
		return fmt.Errorf("set gateway ref: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

func (s *Store) SoftDeleteDevice(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE devices SET is_active = false, guacamole_conn_id = '', updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("soft delete device: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

type DeviceFilter struct {
	Name     string
	Protocol Protocol
}

func (s *Store) ListActiveDevices(ctx context.Context, filter DeviceFilter, limit, offset int) ([]Device, int64, error) {
	where := `is_active = true`
	args := []any{}
	if filter.Name != "" {
		args = append(args, "%"+filter.Name+"%")
		where += fmt.Sprintf(` AND name ILIKE $%d`, len(args))
	}
	if filter.Protocol != "" {
		args = append(args, filter.Protocol)
		where += fmt.Sprintf(` AND protocol = $%d`, len(args))
	}

	var total int64
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM devices WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count devices: %w", err)
	}

	args = append(args, limit, offset)
	query := fmt.Sprintf(`SELECT %s FROM devices WHERE %s ORDER BY id LIMIT $%d OFFSET $%d`,
		deviceColumns, where, len(args)-1, len(args))
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list devices: %w", err)
	}
	defer rows.Close()

	var result []Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan device: %w", err)
		}
		result = append(result, d)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list devices: %w", err)
	}
	return result, total, nil
}

// ListProvisionedDevices returns active devices that carry a gateway
// reference. Used by the periodic drift-repair sweep.
func (s *Store) ListProvisionedDevices(ctx context.Context) ([]Device, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+deviceColumns+` FROM devices WHERE is_active = true AND guacamole_conn_id <> '' ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list provisioned devices: %w", err)
	}
	defer rows.Close()

	var result []Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scan device: %w", err)
		}
		result = append(result, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list provisioned devices: %w", err)
	}
	return result, nil
}
