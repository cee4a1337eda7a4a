package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ingestadmin/internal/schedule"
)

var ErrMapeoNotFound = errors.New("mapeo not found")

func (s *Store) InsertMapeo(ctx context.Context, mapeo *schedule.Mapeo) error {
	now := time.Now().UTC()
	mapeo.CreadoEn = now
	mapeo.ModificadoEn = now
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO mapeos (id, nombre, origen, destino, activo, fecha_creacion, fecha_modificacion)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, mapeo.ID, mapeo.Nombre, mapeo.Origen, mapeo.Destino, boolToInt(mapeo.Activo),
		mapeo.CreadoEn.Format(time.RFC3339Nano), mapeo.ModificadoEn.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert mapeo: %w", err)
	}
	return nil
}

func (s *Store) UpdateMapeo(ctx context.Context, mapeo *schedule.Mapeo) error {
	mapeo.ModificadoEn = time.Now().UTC()
	res, err := s.DB.ExecContext(ctx, `
		UPDATE mapeos
		SET nombre = ?, origen = ?, destino = ?, activo = ?, fecha_modificacion = ?
		WHERE id = ?
	`, mapeo.Nombre, mapeo.Origen, mapeo.Destino, boolToInt(mapeo.Activo),
		mapeo.ModificadoEn.Format(time.RFC3339Nano), mapeo.ID)
	if err != nil {
		return fmt.Errorf("update mapeo: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrMapeoNotFound
	}
	return nil
}

func (s *Store) DeleteMapeo(ctx context.Context, id string) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM mapeos WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete mapeo: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrMapeoNotFound
	}
	return nil
}

func (s *Store) GetMapeo(ctx context.Context, id string) (*schedule.Mapeo, error) {
	row := s.DB.QueryRowContext(ctx, `
		SELECT id, nombre, origen, destino, activo, fecha_creacion, fecha_modificacion
		FROM mapeos WHERE id = ?
	`, id)
	mapeo, err := scanMapeo(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMapeoNotFound
		}
		return nil, err
	}
	return mapeo, nil
}

func (s *Store) ListMapeos(ctx context.Context, activo *bool) ([]*schedule.Mapeo, error) {
	query := `
		SELECT id, nombre, origen, destino, activo, fecha_creacion, fecha_modificacion
		FROM mapeos`
	var args []any
	if activo != nil {
		query += ` WHERE activo = ?`
		args = append(args, boolToInt(*activo))
	}
	query += ` ORDER BY nombre ASC`

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query mapeos: %w", err)
	}
	defer rows.Close()
	var mapeos []*schedule.Mapeo
	for rows.Next() {
		mapeo, err := scanMapeo(rows)
		if err != nil {
			return nil, err
		}
		mapeos = append(mapeos, mapeo)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return mapeos, nil
}

func scanMapeo(scanner interface {
	Scan(dest ...any) error
}) (*schedule.Mapeo, error) {
	var (
		mapeo      schedule.Mapeo
		activo     int
		creado     string
		modificado string
	)
	if err := scanner.Scan(&mapeo.ID, &mapeo.Nombre, &mapeo.Origen, &mapeo.Destino, &activo, &creado, &modificado); err != nil {
		return nil, fmt.Errorf("scan mapeo: %w", err)
	}
	mapeo.Activo = activo != 0
	if t, err := time.Parse(time.RFC3339Nano, creado); err == nil {
		mapeo.CreadoEn = t
	}
	if t, err := time.Parse(time.RFC3339Nano, modificado); err == nil {
		mapeo.ModificadoEn = t
	}
	return &mapeo, nil
}
