package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"ingestadmin/internal/schedule"
)

var ErrColumnaNotFound = errors.New("columna not found")

func (s *Store) InsertColumna(ctx context.Context, columna *schedule.Columna) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO columnas (id, id_mapeo, nombre, tipo, requerida, regla, posicion)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, columna.ID, columna.MapeoID, columna.Nombre, columna.Tipo, boolToInt(columna.Requerida),
		nullableString(columna.Regla), columna.Posicion)
	if err != nil {
		return fmt.Errorf("insert columna: %w", err)
	}
	return nil
}

func (s *Store) UpdateColumna(ctx context.Context, columna *schedule.Columna) error {
	res, err := s.DB.ExecContext(ctx, `
		UPDATE columnas
		SET nombre = ?, tipo = ?, requerida = ?, regla = ?, posicion = ?
		WHERE id = ?
	`, columna.Nombre, columna.Tipo, boolToInt(columna.Requerida), nullableString(columna.Regla),
		columna.Posicion, columna.ID)
	if err != nil {
		return fmt.Errorf("update columna: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrColumnaNotFound
	}
	return nil
}

func (s *Store) DeleteColumna(ctx context.Context, id string) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM columnas WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete columna: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrColumnaNotFound
	}
	return nil
}

func (s *Store) GetColumna(ctx context.Context, id string) (*schedule.Columna, error) {
	row := s.DB.QueryRowContext(ctx, `
		SELECT id, id_mapeo, nombre, tipo, requerida, regla, posicion
		FROM columnas WHERE id = ?
	`, id)
	columna, err := scanColumna(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrColumnaNotFound
		}
		return nil, err
	}
	return columna, nil
}

func (s *Store) ListColumnas(ctx context.Context, mapeoID string) ([]*schedule.Columna, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, id_mapeo, nombre, tipo, requerida, regla, posicion
		FROM columnas
		WHERE id_mapeo = ?
		ORDER BY posicion ASC, nombre ASC
	`, mapeoID)
	if err != nil {
		return nil, fmt.Errorf("query columnas: %w", err)
	}
	defer rows.Close()
	var columnas []*schedule.Columna
	for rows.Next() {
		columna, err := scanColumna(rows)
		if err != nil {
			return nil, err
		}
		columnas = append(columnas, columna)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return columnas, nil
}

func scanColumna(scanner interface {
	Scan(dest ...any) error
}) (*schedule.Columna, error) {
	var (
		columna   schedule.Columna
		requerida int
		regla     sql.NullString
	)
	if err := scanner.Scan(&columna.ID, &columna.MapeoID, &columna.Nombre, &columna.Tipo, &requerida, &regla, &columna.Posicion); err != nil {
		return nil, fmt.Errorf("scan columna: %w", err)
	}
	columna.Requerida = requerida != 0
	if regla.Valid {
		columna.Regla = &regla.String
	}
	return &columna, nil
}
