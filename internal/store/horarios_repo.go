package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ingestadmin/internal/schedule"
)

var ErrHorarioNotFound = errors.New("horario not found")

func (s *Store) InsertHorario(ctx context.Context, horario *schedule.Horario) error {
	horario.CreadoEn = time.Now().UTC()
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO horarios (id, id_tarea, id_dia, hora, activo, fecha_creacion)
		VALUES (?, ?, ?, ?, ?, ?)
	`, horario.ID, horario.TareaID, horario.DiaID, horario.Hora, boolToInt(horario.Activo),
		horario.CreadoEn.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert horario: %w", err)
	}
	return nil
}

func (s *Store) ListHorarios(ctx context.Context, tareaID string) ([]*schedule.Horario, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, id_tarea, id_dia, hora, activo, fecha_creacion
		FROM horarios
		WHERE id_tarea = ?
		ORDER BY id_dia ASC, hora ASC
	`, tareaID)
	if err != nil {
		return nil, fmt.Errorf("query horarios: %w", err)
	}
	defer rows.Close()
	var horarios []*schedule.Horario
	for rows.Next() {
		var (
			horario schedule.Horario
			activo  int
			creado  string
		)
		if err := rows.Scan(&horario.ID, &horario.TareaID, &horario.DiaID, &horario.Hora, &activo, &creado); err != nil {
			return nil, fmt.Errorf("scan horario: %w", err)
		}
		horario.Activo = activo != 0
		if t, err := time.Parse(time.RFC3339Nano, creado); err == nil {
			horario.CreadoEn = t
		}
		horarios = append(horarios, &horario)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return horarios, nil
}

// SetHorariosActivo flips the activation flag of the given slot ids. All ids
// must exist; a miss reports ErrHorarioNotFound.
func (s *Store) SetHorariosActivo(ctx context.Context, ids []string, activo bool) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, 0, len(ids)+1)
	args = append(args, boolToInt(activo))
	for _, id := range ids {
		args = append(args, id)
	}
	res, err := s.DB.ExecContext(ctx,
		fmt.Sprintf(`UPDATE horarios SET activo = ? WHERE id IN (%s)`, placeholders), args...)
	if err != nil {
		return fmt.Errorf("set horarios activo: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if int(rows) != len(ids) {
		return ErrHorarioNotFound
	}
	return nil
}
