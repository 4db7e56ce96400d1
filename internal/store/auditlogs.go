package store

import (
	"context"
	"encoding/json"
	"fmt"
)

func (s *Store) InsertAuditLog(ctx context.Context, l AuditLog) error {
	if l.Details == nil {
		l.Details = map[string]any{}
	}
	details, err := json.Marshal(l.Details)
	if err != nil {
		return fmt.Errorf("marshal audit details: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO audit_logs (user_id, action, resource_type, resource_id, details, ip_address)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		l.UserID, l.Action, l.ResourceType, l.ResourceID, details, l.IPAddress)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

func (s *Store) ListAuditLogs(ctx context.Context, limit, offset int) ([]AuditLog, int64, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, action, resource_type, resource_id, details, ip_address, created_at
		 FROM audit_logs ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list audit logs: %w", err)
	}
	defer rows.Close()

	var result []AuditLog
	for rows.Next() {
		var (
			l       AuditLog
			details []byte
		)
		if err := rows.Scan(&l.ID, &l.UserID, &l.Action, &l.ResourceType, &l.ResourceID,
			&details, &l.IPAddress, &l.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan audit log: %w", err)
		}
		if len(details) > 0 {
			_ = json.Unmarshal(details, &l.Details)
		}
		result = append(result, l)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list audit logs: %w", err)
	}

	var total int64
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM audit_logs`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count audit logs: %w", err)
	}
	return result, total, nil
}
