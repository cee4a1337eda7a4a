package store

import (
	"context"
	"fmt"
	"time"

	"ingestadmin/internal/catalog"
	"ingestadmin/internal/gateway"
	"ingestadmin/internal/schedule"
)

// Gateway adapts the store to the persistence-gateway surface the schedule
// core consumes.
type Gateway struct {
	store *Store
}

var _ gateway.Gateway = (*Gateway)(nil)

func NewGateway(store *Store) *Gateway {
	return &Gateway{store: store}
}

func (g *Gateway) CreateStageTask(ctx context.Context, ref gateway.GroupRef, stage schedule.Stage, modo schedule.ExecutionMode, slots []schedule.Slot) (string, error) {
	tarea := &schedule.Tarea{
		ID:      schedule.NewID(),
		LineaID: ref.LineaID,
		Etapa:   stage,
		Modo:    modo,
		Activo:  true,
	}
	if ref.CampaniaID != "" {
		tarea.CampaniaID = &ref.CampaniaID
	}
	if ref.MapeoID != "" {
		tarea.MapeoID = &ref.MapeoID
	}
	if ref.MapeoNombre != "" {
		tarea.MapeoNombre = &ref.MapeoNombre
	}
	if err := g.store.InsertTarea(ctx, tarea); err != nil {
		return "", err
	}
	if err := g.insertSlots(ctx, tarea.ID, slots); err != nil {
		return "", err
	}
	return tarea.ID, nil
}

func (g *Gateway) UpdateStageTask(ctx context.Context, tareaID string, modo schedule.ExecutionMode) error {
	return g.store.UpdateTareaModo(ctx, tareaID, modo)
}

func (g *Gateway) AppendStageSlots(ctx context.Context, tareaID string, slots []schedule.Slot) error {
	return g.insertSlots(ctx, tareaID, slots)
}

func (g *Gateway) SyncStageSchedule(ctx context.Context, tareaID string, deactivateIDs, activateIDs []string) error {
	if err := g.store.SetHorariosActivo(ctx, deactivateIDs, false); err != nil {
		return fmt.Errorf("desactivar horarios de tarea %s: %w", tareaID, err)
	}
	if err := g.store.SetHorariosActivo(ctx, activateIDs, true); err != nil {
		return fmt.Errorf("activar horarios de tarea %s: %w", tareaID, err)
	}
	return nil
}

func (g *Gateway) ListScheduleSlots(ctx context.Context, tareaID string) ([]schedule.Slot, error) {
	horarios, err := g.store.ListHorarios(ctx, tareaID)
	if err != nil {
		return nil, err
	}
	slots := make([]schedule.Slot, 0, len(horarios))
	for _, horario := range horarios {
		slots = append(slots, schedule.Slot{
			Dia:       catalog.WeekdayFromID(horario.DiaID),
			Hora:      horario.Hora,
			Activo:    horario.Activo,
			HorarioID: horario.ID,
		})
	}
	return slots, nil
}

// FetchRawTaskRows projects the stored per-stage task rows into the raw-row
// shape the normalizer consumes, nested schedule entries included.
func (g *Gateway) FetchRawTaskRows(ctx context.Context, scope gateway.Scope) ([]schedule.RawRow, error) {
	tareas, err := g.store.ListTareas(ctx, scope.LineaID, scope.CampaniaID, nil)
	if err != nil {
		return nil, err
	}
	rows := make([]schedule.RawRow, 0, len(tareas))
	for _, tarea := range tareas {
		horarios, err := g.store.ListHorarios(ctx, tarea.ID)
		if err != nil {
			return nil, err
		}
		entries := make([]any, 0, len(horarios))
		for _, horario := range horarios {
			entries = append(entries, map[string]any{
				"idHorario":   horario.ID,
				"idDia":       float64(horario.DiaID),
				"hora":        horario.Hora,
				"activo":      horario.Activo,
				"idTipoTarea": float64(tarea.Etapa),
			})
		}
		row := schedule.RawRow{
			"idTarea":           tarea.ID,
			"idLineaNegocio":    tarea.LineaID,
			"idTipoTarea":       float64(tarea.Etapa),
			"modoEjecucion":     string(tarea.Modo),
			"activo":            tarea.Activo,
			"fechaCreacion":     tarea.CreadoEn.UTC().Format(time.RFC3339),
			"fechaModificacion": tarea.ModificadoEn.UTC().Format(time.RFC3339),
			"horarios":          entries,
		}
		if tarea.CampaniaID != nil {
			row["idCampania"] = *tarea.CampaniaID
		}
		if tarea.MapeoID != nil {
			row["idMapeo"] = *tarea.MapeoID
		}
		if tarea.MapeoNombre != nil {
			row["nombreMapeo"] = *tarea.MapeoNombre
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (g *Gateway) insertSlots(ctx context.Context, tareaID string, slots []schedule.Slot) error {
	for _, slot := range slots {
		diaID := catalog.WeekdayID(slot.Dia)
		if diaID == 0 || slot.Hora == "" {
			return fmt.Errorf("horario incompleto para tarea %s", tareaID)
		}
		horario := &schedule.Horario{
			ID:      schedule.NewID(),
			TareaID: tareaID,
			DiaID:   diaID,
			Hora:    slot.Hora,
			Activo:  true,
		}
		if err := g.store.InsertHorario(ctx, horario); err != nil {
			return err
		}
	}
	return nil
}
