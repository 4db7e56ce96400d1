package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// ErrSessionClosed reports an attempt to close a session log that already has
// an end time. Closed entries are immutable.
var ErrSessionClosed = errors.New("session log already closed")

const sessionColumns = `id, user_id, device_id, connection_start, connection_end,
	duration, status, ip_address, user_agent`

func scanSessionLog(row pgx.Row) (SessionLog, error) {
	var l SessionLog
	err := row.Scan(&l.ID, &l.UserID, &l.DeviceID, &l.ConnectionStart, &l.ConnectionEnd,
		&l.Duration, &l.Status, &l.IPAddress, &l.UserAgent)
	return l, err
}

func (s *Store) CreateSessionLog(ctx context.Context, l SessionLog) (SessionLog, error) {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO connection_logs (user_id, device_id, connection_start, status, ip_address, user_agent)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING `+sessionColumns,
		l.UserID, l.DeviceID, l.ConnectionStart, l.Status, l.IPAddress, l.UserAgent)
	created, err := scanSessionLog(row)
	if err != nil {
		return SessionLog{}, fmt.Errorf("create session log: %w", err)
	}
	return created, nil
}

func (s *Store) GetSessionLog(ctx context.Context, id int64) (SessionLog, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM connection_logs WHERE id = $1`, id)
	l, err := scanSessionLog(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return SessionLog{}, ErrSessionNotFound
		}
		return SessionLog{}, fmt.Errorf("get session log: %w", err)
	}
	return l, nil
}

// CloseSessionLog sets the end time, duration and final status in one guarded
// update. The WHERE clause makes the open-to-closed transition atomic: if the
// entry was closed concurrently, no row matches and ErrSessionClosed is
// returned.
func (s *Store) CloseSessionLog(ctx context.Context, id int64, end time.Time, durationSec int, status SessionStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE connection_logs
		 SET connection_end = $2, duration = $3, status = $4
		 WHERE id = $1 AND connection_end IS NULL`,
		id, end, durationSec, status)
	if err != nil {
		return fmt.Errorf("close session log: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSessionClosed
	}
	return nil
}

// MarkSessionLogFailed flags an open entry as failed without closing it. Used
// when session URL issuance fails after the entry was created; the entry
// remains in the log as a failure record.
func (s *Store) MarkSessionLogFailed(ctx context.Context, id int64) error {
	if _, err := s.pool.Exec(ctx,
		`UPDATE connection_logs SET status = 'failed' WHERE id = $1`, id); err != nil {
		return fmt.Errorf("mark session log failed: %w", err)
	}
	return nil
}

func (s *Store) ListSessionLogsByUser(ctx context.Context, userID int64, limit, offset int) ([]SessionLog, int64, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+sessionColumns+` FROM connection_logs
		 WHERE user_id = $1 ORDER BY connection_start DESC LIMIT $2 OFFSET $3`,
		userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list session logs: %w", err)
	}
	logs, err := collectSessionLogs(rows)
	if err != nil {
		return nil, 0, err
	}

	var total int64
	if err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM connection_logs WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count session logs: %w", err)
	}
	return logs, total, nil
}

func (s *Store) ListSessionLogsByDevice(ctx context.Context, deviceID int64, limit, offset int) ([]SessionLog, int64, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+sessionColumns+` FROM connection_logs
		 WHERE device_id = $1 ORDER BY connection_start DESC LIMIT $2 OFFSET $3`,
		deviceID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list device session logs: %w", err)
	}
	logs, err := collectSessionLogs(rows)
	if err != nil {
		return nil, 0, err
	}

	var total int64
	if err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM connection_logs WHERE device_id = $1`, deviceID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count device session logs: %w", err)
	}
	return logs, total, nil
}

func collectSessionLogs(rows pgx.Rows) ([]SessionLog, error) {
	defer rows.Close()
	var result []SessionLog
	for rows.Next() {
		l, err := scanSessionLog(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session log: %w", err)
		}
		result = append(result, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("collect session logs: %w", err)
	}
	return result, nil
}
