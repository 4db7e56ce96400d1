package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Direct grants are unique per (user, device); writes are upserts.

func (s *Store) UpsertDirectGrant(ctx context.Context, userID, deviceID int64, permission string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO user_devices (user_id, device_id, permission)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (user_id, device_id) DO UPDATE SET permission = EXCLUDED.permission`,
		userID, deviceID, permission)
	if err != nil {
		return fmt.Errorf("upsert direct grant: %w", err)
	}
	return nil
}

func (s *Store) DeleteDirectGrant(ctx context.Context, userID, deviceID int64) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM user_devices WHERE user_id = $1 AND device_id = $2`, userID, deviceID)
	if err != nil {
		return fmt.Errorf("delete direct grant: %w", err)
	}
	return nil
}

// DirectGrantLevel implements permissions.GrantSource.
func (s *Store) DirectGrantLevel(ctx context.Context, userID, deviceID int64) (string, bool, error) {
	var level string
	err := s.pool.QueryRow(ctx,
		`SELECT permission FROM user_devices WHERE user_id = $1 AND device_id = $2`,
		userID, deviceID).Scan(&level)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get direct grant: %w", err)
	}
	return level, true, nil
}

// GroupGrantLevels implements permissions.GrantSource.
func (s *Store) GroupGrantLevels(ctx context.Context, userID, deviceID int64) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT gd.permission
		 FROM group_devices gd
		 JOIN group_members gm ON gm.group_id = gd.group_id
		 WHERE gm.user_id = $1 AND gd.device_id = $2`,
		userID, deviceID)
	if err != nil {
		return nil, fmt.Errorf("list group grants: %w", err)
	}
	defer rows.Close()

	var levels []string
	for rows.Next() {
		var level string
		if err := rows.Scan(&level); err != nil {
			return nil, fmt.Errorf("scan group grant: %w", err)
		}
		levels = append(levels, level)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list group grants: %w", err)
	}
	return levels, nil
}

func (s *Store) CreateGroup(ctx context.Context, name, description string) (Group, error) {
	var g Group
	err := s.pool.QueryRow(ctx,
		`INSERT INTO groups (name, description) VALUES ($1, $2)
		 RETURNING id, name, description, created_at`,
		name, description).Scan(&g.ID, &g.Name, &g.Description, &g.CreatedAt)
	if err != nil {
		return Group{}, fmt.Errorf("create group: %w", err)
	}
	return g, nil
}

func (s *Store) AddGroupMember(ctx context.Context, groupID, userID int64) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO group_members (group_id, user_id) VALUES ($1, $2)
		 ON CONFLICT DO NOTHING`,
		groupID, userID)
	if err != nil {
		return fmt.Errorf("add group member: %w", err)
	}
	return nil
}

func (s *Store) RemoveGroupMember(ctx context.Context, groupID, userID int64) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM group_members WHERE group_id = $1 AND user_id = $2`, groupID, userID)
	if err != nil {
		return fmt.Errorf("remove group member: %w", err)
	}
	return nil
}

func (s *Store) UpsertGroupGrant(ctx context.Context, groupID, deviceID int64, permission string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO group_devices (group_id, device_id, permission)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (group_id, device_id) DO UPDATE SET permission = EXCLUDED.permission`,
		groupID, deviceID, permission)
	if err != nil {
		return fmt.Errorf("upsert group grant: %w", err)
	}
	return nil
}

func (s *Store) DeleteGroupGrant(ctx context.Context, groupID, deviceID int64) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM group_devices WHERE group_id = $1 AND device_id = $2`, groupID, deviceID)
	if err != nil {
		return fmt.Errorf("delete group grant: %w", err)
	}
	return nil
}
