package schedule

import (
	"fmt"
	"strings"
)

// OpKind names the backend operation an Operation stands for.
type OpKind string

const (
	OpCrearTarea          OpKind = "crear-tarea"
	OpActualizarTarea     OpKind = "actualizar-tarea"
	OpAgregarHorarios     OpKind = "agregar-horarios"
	OpSincronizarHorarios OpKind = "sincronizar-horarios"
	OpRefrescar           OpKind = "refrescar"
)

// Operation is one step of a reconciliation plan. Operations execute
// strictly in slice order; the Label is the human-readable step name used
// in logs and failure messages.
type Operation struct {
	Kind          OpKind
	Stage         Stage
	TareaID       string
	Modo          ExecutionMode
	Slots         []Slot
	DeactivateIDs []string
	ActivateIDs   []string
	Label         string
}

// ExistingStage is the last-known persisted state of one stage: its task
// row id, its persisted execution mode and its persisted slots.
type ExistingStage struct {
	TareaID string
	Modo    ExecutionMode
	Slots   []Slot
}

// ExistingState is the pre-edit backend state a diff converges against. The
// global id lists come from the configurator's toggle accumulation and feed
// the forced-sync fallback for stages that otherwise produce no operation.
type ExistingState struct {
	Stages        map[Stage]ExistingStage
	DeactivateIDs []string
	ActivateIDs   []string
}

// Diff computes the ordered minimal operation list converging backend state
// to the desired group. Stages are processed in fixed pipeline order; within
// a stage update-task precedes append-horarios precedes sync-horarios. A
// plan with no stage operations is empty: the trailing refresh
// pseudo-operation is only emitted when there is something to refresh.
//
// Add mode is the degenerate case of an empty ExistingState: every populated
// stage goes through the create path.
func Diff(desired *TaskGroup, existing ExistingState) []Operation {
	var ops []Operation

	for _, stage := range Stages() {
		cfg := desired.Stage(stage)
		ex, exists := existing.Stages[stage]
		if !exists || ex.TareaID == "" {
			// Stage never persisted: independently creatable at any
			// time, including in edit mode.
			if createSlots := createPayload(cfg); len(createSlots) > 0 {
				ops = append(ops, Operation{
					Kind:  OpCrearTarea,
					Stage: stage,
					Modo:  cfg.Modo,
					Slots: createSlots,
					Label: stageLabel("Creando tarea", stage),
				})
			}
			continue
		}

		if len(cfg.Slots) == 0 {
			// Nothing desired for a persisted stage; only the forced-sync
			// fallback below may still touch it.
			if op, ok := forcedSync(stage, ex, existing); ok {
				ops = append(ops, op)
			}
			continue
		}

		synced := false
		if cfg.Modo != ex.Modo {
			ops = append(ops, Operation{
				Kind:    OpActualizarTarea,
				Stage:   stage,
				TareaID: ex.TareaID,
				Modo:    cfg.Modo,
				Label:   stageLabel("Actualizando tarea", stage),
			})
		}
		if pending := pendingPayload(cfg); len(pending) > 0 {
			ops = append(ops, Operation{
				Kind:    OpAgregarHorarios,
				Stage:   stage,
				TareaID: ex.TareaID,
				Slots:   pending,
				Label:   stageLabel("Agregando horarios", stage),
			})
			synced = true
		}
		deactivate, activate := slotDeltas(cfg, ex)
		if len(deactivate) > 0 || len(activate) > 0 {
			ops = append(ops, Operation{
				Kind:          OpSincronizarHorarios,
				Stage:         stage,
				TareaID:       ex.TareaID,
				DeactivateIDs: deactivate,
				ActivateIDs:   activate,
				Label:         stageLabel("Sincronizando horarios", stage),
			})
			synced = true
		}
		if !synced {
			if op, ok := forcedSync(stage, ex, existing); ok {
				ops = append(ops, op)
			}
		}
	}

	if len(ops) == 0 {
		return nil
	}
	ops = append(ops, Operation{Kind: OpRefrescar, Label: "Actualizando listado de tareas"})
	return ops
}

// createPayload builds the create-time slot list: active complete slots
// only. A slot toggled off before its first save is simply omitted, and a
// newly created slot starts active on the backend.
func createPayload(cfg *StageConfig) []Slot {
	var out []Slot
	for _, slot := range cfg.Slots {
		if slot.Activo && slot.Complete() {
			out = append(out, Slot{Dia: slot.Dia, Hora: slot.Hora, Activo: true})
		}
	}
	return out
}

// pendingPayload collects complete active slots that were never persisted;
// they go through the dedicated append-horarios path of an existing stage.
func pendingPayload(cfg *StageConfig) []Slot {
	var out []Slot
	for _, slot := range cfg.Slots {
		if slot.HorarioID == "" && slot.Activo && slot.Complete() {
			out = append(out, Slot{Dia: slot.Dia, Hora: slot.Hora, Activo: true})
		}
	}
	return out
}

// slotDeltas compares desired activation against the persisted state per
// slot id. An id lands in at most one of the two lists.
func slotDeltas(cfg *StageConfig, ex ExistingStage) (deactivate, activate []string) {
	persisted := make(map[string]bool, len(ex.Slots))
	for _, slot := range ex.Slots {
		if slot.HorarioID != "" {
			persisted[slot.HorarioID] = slot.Activo
		}
	}
	for _, slot := range cfg.Slots {
		if slot.HorarioID == "" {
			continue
		}
		was, known := persisted[slot.HorarioID]
		if !known || was == slot.Activo {
			continue
		}
		if slot.Activo {
			activate = append(activate, slot.HorarioID)
		} else {
			deactivate = append(deactivate, slot.HorarioID)
		}
	}
	return deactivate, activate
}

// forcedSync emits a sync operation for a stage that produced none, when the
// caller-supplied global id lists contain ids belonging to that stage's
// persisted slots. This covers toggles recorded by the configurator whose
// slots no longer appear in the desired stage state (cascaded clears).
func forcedSync(stage Stage, ex ExistingStage, existing ExistingState) (Operation, bool) {
	owned := make(map[string]bool, len(ex.Slots))
	for _, slot := range ex.Slots {
		if slot.HorarioID != "" {
			owned[slot.HorarioID] = true
		}
	}
	var deactivate, activate []string
	for _, id := range existing.DeactivateIDs {
		if owned[id] {
			deactivate = append(deactivate, id)
		}
	}
	for _, id := range existing.ActivateIDs {
		if owned[id] {
			activate = append(activate, id)
		}
	}
	if len(deactivate) == 0 && len(activate) == 0 {
		return Operation{}, false
	}
	return Operation{
		Kind:          OpSincronizarHorarios,
		Stage:         stage,
		TareaID:       ex.TareaID,
		DeactivateIDs: deactivate,
		ActivateIDs:   activate,
		Label:         stageLabel("Sincronizando horarios", stage),
	}, true
}

func stageLabel(prefix string, stage Stage) string {
	return fmt.Sprintf("%s de %s", prefix, strings.ToLower(stage.Nombre()))
}
