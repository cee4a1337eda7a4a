package schedule

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"ingestadmin/internal/catalog"
)

var (
	// ErrSlotIncompleto rejects an add with a missing day or hour.
	ErrSlotIncompleto = errors.New("debe seleccionar día y hora")
	// ErrEtapaNoHabilitada rejects configuring a stage whose upstream
	// stage has no active slots.
	ErrEtapaNoHabilitada = errors.New("la etapa anterior no tiene horarios activos")
	// ErrUltimoHorarioActivo blocks deactivating the last persisted active
	// slot of Carga or Validación.
	ErrUltimoHorarioActivo = errors.New("debe conservar al menos un horario activo en esta etapa")
	// ErrHorarioNoEncontrado signals a toggle on a slot that is not there.
	ErrHorarioNoEncontrado = errors.New("horario no encontrado")
)

// DuplicateSlotError rejects a slot that collides with an existing active
// slot, distinguishing a duplicate inside the same stage from an overlap
// with another stage.
type DuplicateSlotError struct {
	Stage     Stage
	SameStage bool
}

func (e *DuplicateSlotError) Error() string {
	if e.SameStage {
		return "el horario ya existe en esta etapa"
	}
	return fmt.Sprintf("el horario se superpone con un horario de %s", strings.ToLower(e.Stage.Nombre()))
}

// OrderingError rejects a downstream slot earlier than the upstream stage's
// earliest active slot.
type OrderingError struct {
	Upstream   Stage
	Downstream Stage
}

func (e *OrderingError) Error() string {
	return fmt.Sprintf("el horario de %s no puede ser anterior al horario de %s",
		strings.ToLower(e.Downstream.Nombre()), strings.ToLower(e.Upstream.Nombre()))
}

// ToggleIntent notifies the caller that an already-persisted slot changed
// its activation state locally and needs an activate/deactivate call on the
// backend.
type ToggleIntent struct {
	Stage  Stage
	Slot   Slot
	Activo bool
}

// Configurator is the editing state machine for one TaskGroup's three-stage
// schedule. It is not safe for concurrent use; one edit session drives it.
// Derived state is refreshed by an explicit recompute pass after every
// successful mutation.
type Configurator struct {
	group *TaskGroup

	pendingDia  map[Stage]string
	pendingHora map[Stage]string

	deactivateIDs []string
	activateIDs   []string

	orderingMsg string
}

// NewConfigurator binds a configurator to a group. A nil group starts a
// fresh, unconfigured one. Construction only derives state; the cascades run
// on mutation, so binding to a stored group never rewrites its slots.
func NewConfigurator(group *TaskGroup) *Configurator {
	if group == nil {
		group = NewTaskGroup("")
	}
	c := &Configurator{
		group:       group,
		pendingDia:  make(map[Stage]string),
		pendingHora: make(map[Stage]string),
	}
	c.refreshDerived()
	return c
}

// Group exposes the group being edited.
func (c *Configurator) Group() *TaskGroup {
	return c.group
}

// AddSlot validates and appends a new active slot to the stage. On any
// rejection the state is left untouched and the returned error carries the
// user-facing message.
func (c *Configurator) AddSlot(stage Stage, dia, hora string) error {
	if dia == "" || hora == "" {
		return ErrSlotIncompleto
	}
	switch stage {
	case StageValidacion:
		if !c.ValidacionHabilitada() {
			return ErrEtapaNoHabilitada
		}
	case StageEnvio:
		if !c.EnvioHabilitado() {
			return ErrEtapaNoHabilitada
		}
	}

	candidate := Slot{Dia: dia, Hora: hora, Activo: true}
	for _, s := range Stages() {
		for _, existing := range c.group.Stage(s).Slots {
			if existing.Activo && existing.SameMoment(candidate) {
				return &DuplicateSlotError{Stage: s, SameStage: s == stage}
			}
		}
	}
	if err := c.checkOrdering(stage, candidate); err != nil {
		return err
	}

	cfg := c.group.Stage(stage)
	cfg.Slots = append(cfg.Slots, candidate)
	delete(c.pendingDia, stage)
	delete(c.pendingHora, stage)
	c.recompute()
	return nil
}

// checkOrdering enforces that a downstream slot is not strictly earlier than
// the upstream stage's earliest active slot. Equal moments are already
// excluded by the overlap check.
func (c *Configurator) checkOrdering(stage Stage, candidate Slot) error {
	var upstream Stage
	switch stage {
	case StageValidacion:
		upstream = StageCarga
	case StageEnvio:
		upstream = StageValidacion
	default:
		return nil
	}
	if earliest, ok := c.group.Stage(upstream).EarliestActive(); ok && candidate.Before(earliest) {
		return &OrderingError{Upstream: upstream, Downstream: stage}
	}
	return nil
}

// ToggleSlot flips a slot's activation state. Deactivating the last
// persisted active slot of Carga or Validación is rejected; Envío has no
// floor. For a persisted slot the returned intent tells the caller to issue
// an activate/deactivate call; for a pending slot the flip is purely local.
func (c *Configurator) ToggleSlot(stage Stage, index int) (*ToggleIntent, error) {
	cfg := c.group.Stage(stage)
	if index < 0 || index >= len(cfg.Slots) {
		return nil, ErrHorarioNoEncontrado
	}
	slot := &cfg.Slots[index]

	// The floor guards saved configuration: unsaved slots may be freely
	// toggled off, which is what lets a whole stage be cleared before the
	// first save.
	if slot.Activo && slot.HorarioID != "" && (stage == StageCarga || stage == StageValidacion) {
		if c.activePersistedCount(stage) == 1 {
			return nil, ErrUltimoHorarioActivo
		}
	}

	slot.Activo = !slot.Activo
	var intent *ToggleIntent
	if slot.HorarioID != "" {
		c.recordToggle(slot.HorarioID, slot.Activo)
		intent = &ToggleIntent{Stage: stage, Slot: *slot, Activo: slot.Activo}
	}
	c.recompute()
	return intent, nil
}

func (c *Configurator) activePersistedCount(stage Stage) int {
	count := 0
	for _, slot := range c.group.Stage(stage).Slots {
		if slot.Activo && slot.HorarioID != "" {
			count++
		}
	}
	return count
}

// recordToggle keeps the activate/deactivate id lists consistent: a slot
// toggled back to its persisted state leaves both lists.
func (c *Configurator) recordToggle(horarioID string, activo bool) {
	if activo {
		if removed := removeID(&c.deactivateIDs, horarioID); !removed {
			c.activateIDs = append(c.activateIDs, horarioID)
		}
		return
	}
	if removed := removeID(&c.activateIDs, horarioID); !removed {
		c.deactivateIDs = append(c.deactivateIDs, horarioID)
	}
}

func removeID(ids *[]string, id string) bool {
	for i, existing := range *ids {
		if existing == id {
			*ids = append((*ids)[:i], (*ids)[i+1:]...)
			return true
		}
	}
	return false
}

// DeactivateIDs returns the persisted slot ids toggled off this session.
func (c *Configurator) DeactivateIDs() []string {
	return append([]string(nil), c.deactivateIDs...)
}

// ActivateIDs returns the persisted slot ids toggled back on this session.
func (c *Configurator) ActivateIDs() []string {
	return append([]string(nil), c.activateIDs...)
}

// recompute applies the cascades and refreshes every derived predicate.
// Runs after each successful mutation: Carga without active slots clears
// Validación and Envío; Validación without active slots clears Envío.
func (c *Configurator) recompute() {
	if !c.group.Stage(StageCarga).HasActiveSlots() {
		c.clearStage(StageValidacion)
		c.clearStage(StageEnvio)
	} else if !c.group.Stage(StageValidacion).HasActiveSlots() {
		c.clearStage(StageEnvio)
	}
	c.refreshDerived()
}

func (c *Configurator) refreshDerived() {
	c.orderingMsg = c.computeOrderingViolation()
	c.refreshPendingHours()
}

// clearStage resets a stage to its unconfigured default. Persisted active
// slots swept away by a cascade queue their deactivation for the next save.
func (c *Configurator) clearStage(stage Stage) {
	cfg := c.group.Stage(stage)
	if len(cfg.Slots) == 0 && cfg.Modo == ModeAutomatica {
		return
	}
	for _, slot := range cfg.Slots {
		if slot.Activo && slot.HorarioID != "" {
			c.recordToggle(slot.HorarioID, false)
		}
	}
	cfg.Slots = nil
	cfg.Modo = ModeAutomatica
	delete(c.pendingDia, stage)
	delete(c.pendingHora, stage)
}

func (c *Configurator) computeOrderingViolation() string {
	pairs := []struct{ upstream, downstream Stage }{
		{StageCarga, StageValidacion},
		{StageValidacion, StageEnvio},
	}
	for _, pair := range pairs {
		up, upOK := c.group.Stage(pair.upstream).EarliestActive()
		down, downOK := c.group.Stage(pair.downstream).EarliestActive()
		if upOK && downOK && down.Before(up) {
			err := &OrderingError{Upstream: pair.upstream, Downstream: pair.downstream}
			return err.Error()
		}
	}
	return ""
}

// refreshPendingHours re-filters each stage's selected hour against the
// current occupancy; a selection that became invalid is cleared.
func (c *Configurator) refreshPendingHours() {
	for _, stage := range Stages() {
		hora, ok := c.pendingHora[stage]
		if !ok || hora == "" {
			continue
		}
		valid := false
		for _, option := range c.AvailableHours(stage) {
			if option == hora {
				valid = true
				break
			}
		}
		if !valid {
			delete(c.pendingHora, stage)
		}
	}
}

// SetPendingDia records the stage's day selection and re-filters its hour
// options.
func (c *Configurator) SetPendingDia(stage Stage, dia string) {
	c.pendingDia[stage] = dia
	c.refreshPendingHours()
}

// SetPendingHora records the stage's hour selection.
func (c *Configurator) SetPendingHora(stage Stage, hora string) {
	c.pendingHora[stage] = hora
}

// PendingDia returns the uncommitted day selection for a stage.
func (c *Configurator) PendingDia(stage Stage) string {
	return c.pendingDia[stage]
}

// PendingHora returns the uncommitted hour selection for a stage.
func (c *Configurator) PendingHora(stage Stage) string {
	return c.pendingHora[stage]
}

// AvailableHours lists the catalog hours still free for the stage's
// selected day, excluding moments occupied by any stage's active slots.
func (c *Configurator) AvailableHours(stage Stage) []string {
	dia := c.pendingDia[stage]
	if dia == "" {
		return catalog.HourOptions()
	}
	occupied := make(map[string]bool)
	for _, s := range Stages() {
		for _, slot := range c.group.Stage(s).Slots {
			if slot.Activo && slot.Dia == dia {
				occupied[slot.Hora] = true
			}
		}
	}
	var out []string
	for _, option := range catalog.HourOptions() {
		if !occupied[option] {
			out = append(out, option)
		}
	}
	return out
}

// ValidacionHabilitada reports whether the Validación section is editable.
func (c *Configurator) ValidacionHabilitada() bool {
	return c.group.Stage(StageCarga).HasActiveSlots()
}

// EnvioHabilitado reports whether the Envío section is editable.
func (c *Configurator) EnvioHabilitado() bool {
	return c.group.Stage(StageValidacion).HasActiveSlots()
}

// OrderingViolation returns the current ordering-constraint message, ""
// when the schedule is consistent.
func (c *Configurator) OrderingViolation() string {
	return c.orderingMsg
}

// ScheduleReady gates the save action: Carga configured and no ordering
// violation.
func (c *Configurator) ScheduleReady() bool {
	return c.group.Stage(StageCarga).Configured() && c.orderingMsg == ""
}

// Recomendacion suggests scheduling the downstream stage at least an hour
// after the upstream stage's earliest active slot. Advisory only, shown
// while the downstream stage has no slots yet.
func (c *Configurator) Recomendacion(stage Stage) string {
	var upstream Stage
	switch stage {
	case StageValidacion:
		upstream = StageCarga
	case StageEnvio:
		upstream = StageValidacion
	default:
		return ""
	}
	if c.group.Stage(stage).Configured() {
		return ""
	}
	earliest, ok := c.group.Stage(upstream).EarliestActive()
	if !ok {
		return ""
	}
	dia, hora, ok := catalog.AddMinutes(earliest.Dia, earliest.Hora, 60)
	if !ok {
		return ""
	}
	return fmt.Sprintf("Se recomienda programar la etapa de %s el %s a las %s o después",
		strings.ToLower(stage.Nombre()), dia, catalog.FormatTo12Hour(hora))
}

// SlotViews returns the stage's slots for display: active first, then week
// order, then hour.
func (c *Configurator) SlotViews(stage Stage) []Slot {
	slots := append([]Slot(nil), c.group.Stage(stage).Slots...)
	sort.SliceStable(slots, func(i, j int) bool {
		return slotViewLess(slots[i], slots[j])
	})
	return slots
}

func slotViewLess(a, b Slot) bool {
	if a.Activo != b.Activo {
		return a.Activo
	}
	return a.Before(b)
}

// ValidateGroup re-checks the save invariants over a desired group state as
// submitted by a caller: overlap-free active slots and stage ordering, with
// Carga configured. Used by the save path to reject hand-built payloads the
// interactive flow could never produce.
func ValidateGroup(group *TaskGroup) error {
	if group == nil || !group.Stage(StageCarga).Configured() {
		return errors.New("la etapa de carga no tiene horarios configurados")
	}
	var active []struct {
		stage Stage
		slot  Slot
	}
	for _, stage := range Stages() {
		for _, slot := range group.Stage(stage).Slots {
			if !slot.Complete() {
				return ErrSlotIncompleto
			}
			if !slot.Activo {
				continue
			}
			for _, prev := range active {
				if prev.slot.SameMoment(slot) {
					return &DuplicateSlotError{Stage: prev.stage, SameStage: prev.stage == stage}
				}
			}
			active = append(active, struct {
				stage Stage
				slot  Slot
			}{stage, slot})
		}
	}
	pairs := []struct{ upstream, downstream Stage }{
		{StageCarga, StageValidacion},
		{StageValidacion, StageEnvio},
	}
	for _, pair := range pairs {
		up, upOK := group.Stage(pair.upstream).EarliestActive()
		down, downOK := group.Stage(pair.downstream).EarliestActive()
		if downOK && !upOK {
			return ErrEtapaNoHabilitada
		}
		if upOK && downOK && down.Before(up) {
			return &OrderingError{Upstream: pair.upstream, Downstream: pair.downstream}
		}
	}
	return nil
}
