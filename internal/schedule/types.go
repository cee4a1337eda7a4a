// Package schedule is the task-schedule core: the per-stage model, the
// normalizer that flattens heterogeneous backend task rows into TaskGroups,
// the configurator state machine enforcing the scheduling invariants, and
// the reconciliation planner that converges a desired schedule against
// persisted state.
package schedule

import (
	"ingestadmin/internal/catalog"
)

// Stage identifies one of the three fixed pipeline stages. The numeric value
// is the backend stage-type catalog id.
type Stage int

const (
	StageCarga      Stage = 1
	StageValidacion Stage = 2
	StageEnvio      Stage = 3
)

// Stages returns the stages in pipeline order.
func Stages() []Stage {
	return []Stage{StageCarga, StageValidacion, StageEnvio}
}

// Code returns the 3-letter stage code used by legacy payloads.
func (s Stage) Code() string {
	switch s {
	case StageCarga:
		return "CAG"
	case StageValidacion:
		return "VLD"
	case StageEnvio:
		return "ENV"
	}
	return ""
}

// Nombre returns the display name of the stage.
func (s Stage) Nombre() string {
	switch s {
	case StageCarga:
		return "Carga"
	case StageValidacion:
		return "Validación"
	case StageEnvio:
		return "Envío"
	}
	return ""
}

func (s Stage) String() string {
	return s.Nombre()
}

// Valid reports whether s is one of the three pipeline stages.
func (s Stage) Valid() bool {
	return s >= StageCarga && s <= StageEnvio
}

// StageFromID resolves a stage-type catalog id.
func StageFromID(id int) (Stage, bool) {
	s := Stage(id)
	return s, s.Valid()
}

// StageFromCode resolves a 3-letter stage code, case-insensitively.
func StageFromCode(code string) (Stage, bool) {
	folded := catalog.Fold(code)
	for _, s := range Stages() {
		if catalog.Fold(s.Code()) == folded {
			return s, true
		}
	}
	return 0, false
}

// StageFromName resolves a free-text stage name, accent and case
// insensitively.
func StageFromName(name string) (Stage, bool) {
	folded := catalog.Fold(name)
	for _, s := range Stages() {
		if catalog.Fold(s.Nombre()) == folded {
			return s, true
		}
	}
	return 0, false
}

// ExecutionMode is the per-stage execution mode. Hibrida is only offered for
// campaign-scoped groups, but the core accepts it for any group.
type ExecutionMode string

const (
	ModeAutomatica ExecutionMode = "Automatica"
	ModeManual     ExecutionMode = "Manual"
	ModeHibrida    ExecutionMode = "Hibrida"
)

var modeIDs = map[int]ExecutionMode{
	1: ModeAutomatica,
	2: ModeManual,
	3: ModeHibrida,
}

var modeCodes = map[string]ExecutionMode{
	"aut": ModeAutomatica,
	"man": ModeManual,
	"hib": ModeHibrida,
}

// ResolveExecutionMode resolves an execution mode from a numeric catalog id,
// a short code (AUT/MAN/HIB) or free text, defaulting to Automatica when
// nothing resolves.
func ResolveExecutionMode(raw any) ExecutionMode {
	switch v := raw.(type) {
	case int:
		if mode, ok := modeIDs[v]; ok {
			return mode
		}
	case float64:
		if mode, ok := modeIDs[int(v)]; ok {
			return mode
		}
	case string:
		folded := catalog.Fold(v)
		if mode, ok := modeCodes[folded]; ok {
			return mode
		}
		for _, mode := range []ExecutionMode{ModeAutomatica, ModeManual, ModeHibrida} {
			if catalog.Fold(string(mode)) == folded {
				return mode
			}
		}
	}
	return ModeAutomatica
}

// Slot is one scheduled (day, hour) occurrence for a stage. HorarioID is
// empty until the slot has been persisted on the backend.
type Slot struct {
	Dia       string `json:"dia"`
	Hora      string `json:"hora"`
	Activo    bool   `json:"activo"`
	HorarioID string `json:"idHorario,omitempty"`
}

// Complete reports whether the slot carries both a day and an hour.
// Incomplete slots never enter persisted or override lists.
func (s Slot) Complete() bool {
	return s.Dia != "" && s.Hora != ""
}

// SameMoment reports whether two slots share the identical (day, hour) pair.
func (s Slot) SameMoment(o Slot) bool {
	return s.Dia == o.Dia && s.Hora == o.Hora
}

// Before reports whether s is strictly earlier in the week than o. Hour
// labels are zero-padded, so the string comparison matches clock order.
func (s Slot) Before(o Slot) bool {
	so, oo := catalog.WeekdayOrder(s.Dia), catalog.WeekdayOrder(o.Dia)
	if so != oo {
		return so < oo
	}
	return s.Hora < o.Hora
}

// StageConfig is one stage's configuration inside a TaskGroup.
type StageConfig struct {
	Modo    ExecutionMode `json:"modoEjecucion"`
	TareaID string        `json:"idTarea,omitempty"`
	Slots   []Slot        `json:"horarios"`
}

// Configured reports whether the stage holds any slot, active or not.
func (c *StageConfig) Configured() bool {
	return c != nil && len(c.Slots) > 0
}

// HasActiveSlots reports whether the stage holds at least one active slot.
func (c *StageConfig) HasActiveSlots() bool {
	if c == nil {
		return false
	}
	for _, slot := range c.Slots {
		if slot.Activo {
			return true
		}
	}
	return false
}

// ActiveSlots returns the stage's active slots.
func (c *StageConfig) ActiveSlots() []Slot {
	if c == nil {
		return nil
	}
	var out []Slot
	for _, slot := range c.Slots {
		if slot.Activo {
			out = append(out, slot)
		}
	}
	return out
}

// EarliestActive returns the stage's earliest active slot in week order.
func (c *StageConfig) EarliestActive() (Slot, bool) {
	var earliest Slot
	found := false
	for _, slot := range c.ActiveSlots() {
		if !found || slot.Before(earliest) {
			earliest = slot
			found = true
		}
	}
	return earliest, found
}

// TaskGroup is the logical unit the admin edits: one mapping, optionally
// scoped to a campaign, with up to three stage configurations. It is built
// transiently by the normalizer and never persisted as such; only its
// per-stage task rows and their schedule slots persist.
type TaskGroup struct {
	Key          string                 `json:"clave"`
	LineaID      string                 `json:"idLineaNegocio,omitempty"`
	CampaniaID   string                 `json:"idCampania,omitempty"`
	MapeoID      string                 `json:"idMapeo,omitempty"`
	MapeoNombre  string                 `json:"nombreMapeo,omitempty"`
	Activo       bool                   `json:"activo"`
	CreadoEn     string                 `json:"fechaCreacion,omitempty"`
	ModificadoEn string                 `json:"fechaModificacion,omitempty"`
	Stages       map[Stage]*StageConfig `json:"etapas"`
}

// NewTaskGroup constructs an unconfigured group: all three stages present
// with the default execution mode and no slots.
func NewTaskGroup(key string) *TaskGroup {
	stages := make(map[Stage]*StageConfig, 3)
	for _, s := range Stages() {
		stages[s] = &StageConfig{Modo: ModeAutomatica}
	}
	return &TaskGroup{Key: key, Stages: stages}
}

// Stage returns the configuration of the given stage, materializing it if
// the group was built without one.
func (g *TaskGroup) Stage(s Stage) *StageConfig {
	if g.Stages == nil {
		g.Stages = make(map[Stage]*StageConfig, 3)
	}
	cfg, ok := g.Stages[s]
	if !ok {
		cfg = &StageConfig{Modo: ModeAutomatica}
		g.Stages[s] = cfg
	}
	return cfg
}
