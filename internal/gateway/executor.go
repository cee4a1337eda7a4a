package gateway

import (
	"context"
	"fmt"
	"log/slog"

	"ingestadmin/internal/schedule"
)

// Recorder writes one audit-log (bitácora) entry per applied step.
type Recorder interface {
	Record(ctx context.Context, accion, detalle string) error
}

// Executor applies a reconciliation plan strictly in order, fail-fast. Prior
// steps are not rolled back on failure; the caller is expected to re-fetch
// and re-normalize to recover the true backend state.
type Executor struct {
	gw       Gateway
	recorder Recorder
	logger   *slog.Logger
}

func NewExecutor(gw Gateway, recorder Recorder, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{gw: gw, recorder: recorder, logger: logger}
}

// Apply runs the plan for one group and returns the labels of the steps that
// completed. On failure the returned error wraps the failing step's label so
// the caller can tell the user how far the save got.
func (e *Executor) Apply(ctx context.Context, ref GroupRef, ops []schedule.Operation) ([]string, error) {
	var done []string
	for _, op := range ops {
		e.logger.Info("aplicando paso", "paso", op.Label, "etapa", op.Stage.Nombre())
		if err := e.applyOne(ctx, ref, op); err != nil {
			return done, fmt.Errorf("%s: %w", op.Label, err)
		}
		done = append(done, op.Label)
		e.record(ctx, op)
	}
	return done, nil
}

func (e *Executor) applyOne(ctx context.Context, ref GroupRef, op schedule.Operation) error {
	switch op.Kind {
	case schedule.OpCrearTarea:
		_, err := e.gw.CreateStageTask(ctx, ref, op.Stage, op.Modo, op.Slots)
		return err
	case schedule.OpActualizarTarea:
		return e.gw.UpdateStageTask(ctx, op.TareaID, op.Modo)
	case schedule.OpAgregarHorarios:
		return e.gw.AppendStageSlots(ctx, op.TareaID, op.Slots)
	case schedule.OpSincronizarHorarios:
		return e.gw.SyncStageSchedule(ctx, op.TareaID, op.DeactivateIDs, op.ActivateIDs)
	case schedule.OpRefrescar:
		// The caller re-fetches after Apply returns; nothing to do here.
		return nil
	}
	return fmt.Errorf("operación desconocida: %s", op.Kind)
}

func (e *Executor) record(ctx context.Context, op schedule.Operation) {
	if e.recorder == nil {
		return
	}
	detalle := op.Label
	if op.TareaID != "" {
		detalle = fmt.Sprintf("%s (tarea %s)", op.Label, op.TareaID)
	}
	if err := e.recorder.Record(ctx, string(op.Kind), detalle); err != nil {
		e.logger.Warn("registro de bitácora falló", "paso", op.Label, "err", err)
	}
}

// ResolvePersistedIDs fills the HorarioID of slots that lost their backend
// id (a reloaded form only knows day and hour) by matching against the
// persisted slots of the stage's task.
func ResolvePersistedIDs(ctx context.Context, gw Gateway, tareaID string, slots []schedule.Slot) ([]schedule.Slot, error) {
	persisted, err := gw.ListScheduleSlots(ctx, tareaID)
	if err != nil {
		return nil, fmt.Errorf("listar horarios de tarea %s: %w", tareaID, err)
	}
	byMoment := make(map[string]string, len(persisted))
	for _, slot := range persisted {
		byMoment[slot.Dia+"|"+slot.Hora] = slot.HorarioID
	}
	out := append([]schedule.Slot(nil), slots...)
	for i, slot := range out {
		if slot.HorarioID != "" {
			continue
		}
		if id, ok := byMoment[slot.Dia+"|"+slot.Hora]; ok {
			out[i].HorarioID = id
		}
	}
	return out, nil
}
