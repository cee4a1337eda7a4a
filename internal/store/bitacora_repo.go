package store

import (
	"context"
	"fmt"
	"time"

	"ingestadmin/internal/schedule"
)

// Record inserts one audit-log entry. Satisfies gateway.Recorder.
func (s *Store) Record(ctx context.Context, accion, detalle string) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO bitacora (id, accion, detalle, created_at)
		VALUES (?, ?, ?, ?)
	`, schedule.NewID(), accion, detalle, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert bitacora: %w", err)
	}
	return nil
}

func (s *Store) ListBitacora(ctx context.Context, limit, offset int) ([]*schedule.BitacoraEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, accion, detalle, created_at
		FROM bitacora
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query bitacora: %w", err)
	}
	defer rows.Close()
	var entries []*schedule.BitacoraEntry
	for rows.Next() {
		var (
			entry   schedule.BitacoraEntry
			created string
		)
		if err := rows.Scan(&entry.ID, &entry.Accion, &entry.Detalle, &created); err != nil {
			return nil, fmt.Errorf("scan bitacora: %w", err)
		}
		if t, err := time.Parse(time.RFC3339Nano, created); err == nil {
			entry.CreatedAt = t
		}
		entries = append(entries, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}
