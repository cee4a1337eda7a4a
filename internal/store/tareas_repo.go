package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ingestadmin/internal/schedule"
)

var ErrTareaNotFound = errors.New("tarea not found")

func (s *Store) InsertTarea(ctx context.Context, tarea *schedule.Tarea) error {
	now := time.Now().UTC()
	tarea.CreadoEn = now
	tarea.ModificadoEn = now
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO tareas (id, id_linea, id_campania, id_mapeo, nombre_mapeo, id_tipo_tarea, modo_ejecucion, activo, fecha_creacion, fecha_modificacion)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, tarea.ID, tarea.LineaID, nullableString(tarea.CampaniaID), nullableString(tarea.MapeoID), nullableString(tarea.MapeoNombre),
		int(tarea.Etapa), string(tarea.Modo), boolToInt(tarea.Activo),
		tarea.CreadoEn.Format(time.RFC3339Nano), tarea.ModificadoEn.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert tarea: %w", err)
	}
	return nil
}

func (s *Store) UpdateTareaModo(ctx context.Context, id string, modo schedule.ExecutionMode) error {
	res, err := s.DB.ExecContext(ctx, `
		UPDATE tareas
		SET modo_ejecucion = ?, fecha_modificacion = ?
		WHERE id = ?
	`, string(modo), time.Now().UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return fmt.Errorf("update tarea modo: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update tarea rows: %w", err)
	}
	if rows == 0 {
		return ErrTareaNotFound
	}
	return nil
}

func (s *Store) GetTarea(ctx context.Context, id string) (*schedule.Tarea, error) {
	row := s.DB.QueryRowContext(ctx, `
		SELECT id, id_linea, id_campania, id_mapeo, nombre_mapeo, id_tipo_tarea, modo_ejecucion, activo, fecha_creacion, fecha_modificacion
		FROM tareas WHERE id = ?
	`, id)
	tarea, err := scanTarea(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTareaNotFound
		}
		return nil, err
	}
	return tarea, nil
}

// ListTareas returns task rows, optionally filtered by business line,
// campaign and active state.
func (s *Store) ListTareas(ctx context.Context, lineaID, campaniaID string, activo *bool) ([]*schedule.Tarea, error) {
	query := `
		SELECT id, id_linea, id_campania, id_mapeo, nombre_mapeo, id_tipo_tarea, modo_ejecucion, activo, fecha_creacion, fecha_modificacion
		FROM tareas
		WHERE 1=1`
	var args []any
	if lineaID != "" {
		query += ` AND id_linea = ?`
		args = append(args, lineaID)
	}
	if campaniaID != "" {
		query += ` AND id_campania = ?`
		args = append(args, campaniaID)
	}
	if activo != nil {
		query += ` AND activo = ?`
		args = append(args, boolToInt(*activo))
	}
	query += ` ORDER BY fecha_creacion ASC, id_tipo_tarea ASC`

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query tareas: %w", err)
	}
	defer rows.Close()
	var tareas []*schedule.Tarea
	for rows.Next() {
		tarea, err := scanTarea(rows)
		if err != nil {
			return nil, err
		}
		tareas = append(tareas, tarea)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tareas, nil
}

func scanTarea(scanner interface {
	Scan(dest ...any) error
}) (*schedule.Tarea, error) {
	var (
		id          string
		linea       string
		campania    sql.NullString
		mapeo       sql.NullString
		nombreMapeo sql.NullString
		tipo        int
		modo        string
		activo      int
		creado      string
		modificado  string
	)
	if err := scanner.Scan(&id, &linea, &campania, &mapeo, &nombreMapeo, &tipo, &modo, &activo, &creado, &modificado); err != nil {
		return nil, fmt.Errorf("scan tarea: %w", err)
	}
	tarea := &schedule.Tarea{
		ID:      id,
		LineaID: linea,
		Etapa:   schedule.Stage(tipo),
		Modo:    schedule.ExecutionMode(modo),
		Activo:  activo != 0,
	}
	if campania.Valid {
		tarea.CampaniaID = &campania.String
	}
	if mapeo.Valid {
		tarea.MapeoID = &mapeo.String
	}
	if nombreMapeo.Valid {
		tarea.MapeoNombre = &nombreMapeo.String
	}
	if t, err := time.Parse(time.RFC3339Nano, creado); err == nil {
		tarea.CreadoEn = t
	}
	if t, err := time.Parse(time.RFC3339Nano, modificado); err == nil {
		tarea.ModificadoEn = t
	}
	return tarea, nil
}
