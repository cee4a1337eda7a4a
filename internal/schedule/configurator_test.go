package schedule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddSlotMakesScheduleReady(t *testing.T) {
	c := NewConfigurator(nil)
	assert.False(t, c.ScheduleReady())
	assert.False(t, c.ValidacionHabilitada())

	require.NoError(t, c.AddSlot(StageCarga, "Lunes", "22:00"))

	assert.True(t, c.ScheduleReady())
	assert.True(t, c.ValidacionHabilitada())
	assert.False(t, c.EnvioHabilitado())
}

func TestAddSlotRejectsIncomplete(t *testing.T) {
	c := NewConfigurator(nil)
	assert.ErrorIs(t, c.AddSlot(StageCarga, "", "22:00"), ErrSlotIncompleto)
	assert.ErrorIs(t, c.AddSlot(StageCarga, "Lunes", ""), ErrSlotIncompleto)
	assert.Empty(t, c.Group().Stage(StageCarga).Slots)
}

func TestAddSlotRejectsDisabledStage(t *testing.T) {
	c := NewConfigurator(nil)
	assert.ErrorIs(t, c.AddSlot(StageValidacion, "Martes", "08:00"), ErrEtapaNoHabilitada)
	require.NoError(t, c.AddSlot(StageCarga, "Lunes", "22:00"))
	assert.ErrorIs(t, c.AddSlot(StageEnvio, "Martes", "08:00"), ErrEtapaNoHabilitada)
}

func TestAddSlotRejectsDuplicates(t *testing.T) {
	c := NewConfigurator(nil)
	require.NoError(t, c.AddSlot(StageCarga, "Lunes", "22:00"))

	var dup *DuplicateSlotError
	err := c.AddSlot(StageCarga, "Lunes", "22:00")
	require.ErrorAs(t, err, &dup)
	assert.True(t, dup.SameStage)

	// Overlap across stages carries the owning stage in the message.
	err = c.AddSlot(StageValidacion, "Lunes", "22:00")
	require.ErrorAs(t, err, &dup)
	assert.False(t, dup.SameStage)
	assert.Equal(t, StageCarga, dup.Stage)
	assert.Empty(t, c.Group().Stage(StageValidacion).Slots)
}

func TestAddSlotEnforcesOrdering(t *testing.T) {
	c := NewConfigurator(nil)
	require.NoError(t, c.AddSlot(StageCarga, "Lunes", "22:00"))

	// Validation earlier than Load's earliest active slot is rejected.
	var ordering *OrderingError
	err := c.AddSlot(StageValidacion, "Lunes", "21:00")
	require.ErrorAs(t, err, &ordering)
	assert.Equal(t, StageCarga, ordering.Upstream)
	assert.Empty(t, c.Group().Stage(StageValidacion).Slots)

	// Later in the week is fine.
	require.NoError(t, c.AddSlot(StageValidacion, "Martes", "08:00"))

	// Send before Validation's earliest is rejected too.
	err = c.AddSlot(StageEnvio, "Lunes", "23:00")
	require.ErrorAs(t, err, &ordering)
	assert.Equal(t, StageValidacion, ordering.Upstream)

	require.NoError(t, c.AddSlot(StageEnvio, "Martes", "09:00"))
	assert.True(t, c.ScheduleReady())
}

func TestToggleUnsavedSlotCascades(t *testing.T) {
	c := NewConfigurator(nil)
	require.NoError(t, c.AddSlot(StageCarga, "Lunes", "22:00"))
	require.NoError(t, c.AddSlot(StageValidacion, "Martes", "08:00"))
	require.NoError(t, c.AddSlot(StageEnvio, "Martes", "10:00"))

	// An unsaved slot has no floor: toggling off Load's only slot clears
	// the downstream stages entirely.
	intent, err := c.ToggleSlot(StageCarga, 0)
	require.NoError(t, err)
	assert.Nil(t, intent)

	assert.False(t, c.Group().Stage(StageCarga).Slots[0].Activo)
	assert.Empty(t, c.Group().Stage(StageValidacion).Slots)
	assert.Empty(t, c.Group().Stage(StageEnvio).Slots)
	assert.Equal(t, ModeAutomatica, c.Group().Stage(StageValidacion).Modo)
	assert.False(t, c.ValidacionHabilitada())
}

func TestToggleValidacionCascadesEnvioOnly(t *testing.T) {
	c := NewConfigurator(nil)
	require.NoError(t, c.AddSlot(StageCarga, "Lunes", "22:00"))
	require.NoError(t, c.AddSlot(StageValidacion, "Martes", "08:00"))
	require.NoError(t, c.AddSlot(StageEnvio, "Martes", "10:00"))

	_, err := c.ToggleSlot(StageValidacion, 0)
	require.NoError(t, err)

	assert.True(t, c.Group().Stage(StageCarga).Slots[0].Activo)
	assert.Empty(t, c.Group().Stage(StageEnvio).Slots)
}

func persistedGroup() *TaskGroup {
	group := NewTaskGroup("1||77")
	group.Stage(StageCarga).TareaID = "501"
	group.Stage(StageCarga).Slots = []Slot{{Dia: "Lunes", Hora: "22:00", Activo: true, HorarioID: "9001"}}
	group.Stage(StageValidacion).TareaID = "502"
	group.Stage(StageValidacion).Slots = []Slot{{Dia: "Martes", Hora: "08:00", Activo: true, HorarioID: "9002"}}
	group.Stage(StageEnvio).TareaID = "503"
	group.Stage(StageEnvio).Slots = []Slot{{Dia: "Martes", Hora: "10:00", Activo: true, HorarioID: "9003"}}
	return group
}

func TestTogglePersistedFloor(t *testing.T) {
	c := NewConfigurator(persistedGroup())

	// The sole persisted active slot of Load and Validation cannot be
	// deactivated.
	_, err := c.ToggleSlot(StageCarga, 0)
	assert.ErrorIs(t, err, ErrUltimoHorarioActivo)
	assert.True(t, c.Group().Stage(StageCarga).Slots[0].Activo)

	_, err = c.ToggleSlot(StageValidacion, 0)
	assert.ErrorIs(t, err, ErrUltimoHorarioActivo)

	// Send has no floor.
	intent, err := c.ToggleSlot(StageEnvio, 0)
	require.NoError(t, err)
	require.NotNil(t, intent)
	assert.Equal(t, StageEnvio, intent.Stage)
	assert.False(t, intent.Activo)
	assert.Equal(t, []string{"9003"}, c.DeactivateIDs())
	assert.Empty(t, c.ActivateIDs())
}

func TestToggleBackClearsIntentLists(t *testing.T) {
	c := NewConfigurator(persistedGroup())

	_, err := c.ToggleSlot(StageEnvio, 0)
	require.NoError(t, err)
	require.Equal(t, []string{"9003"}, c.DeactivateIDs())

	intent, err := c.ToggleSlot(StageEnvio, 0)
	require.NoError(t, err)
	require.NotNil(t, intent)
	assert.True(t, intent.Activo)
	assert.Empty(t, c.DeactivateIDs())
	assert.Empty(t, c.ActivateIDs())
}

func TestTogglePersistedSecondSlotAllowed(t *testing.T) {
	group := persistedGroup()
	group.Stage(StageCarga).Slots = append(group.Stage(StageCarga).Slots,
		Slot{Dia: "Miércoles", Hora: "22:00", Activo: true, HorarioID: "9004"})
	c := NewConfigurator(group)

	intent, err := c.ToggleSlot(StageCarga, 1)
	require.NoError(t, err)
	require.NotNil(t, intent)
	assert.Equal(t, []string{"9004"}, c.DeactivateIDs())
	assert.True(t, c.Group().Stage(StageCarga).Slots[0].Activo)
}

func TestBindingDoesNotRewriteStoredGroup(t *testing.T) {
	// A stored group can arrive with every Carga slot deactivated while
	// Validación still holds active persisted slots. Binding must leave the
	// group exactly as loaded; only a mutation cascades.
	group := persistedGroup()
	group.Stage(StageCarga).Slots[0].Activo = false

	c := NewConfigurator(group)

	require.Len(t, group.Stage(StageValidacion).Slots, 1)
	assert.True(t, group.Stage(StageValidacion).Slots[0].Activo)
	require.Len(t, group.Stage(StageEnvio).Slots, 1)
	assert.Empty(t, c.DeactivateIDs())
	assert.Empty(t, c.ActivateIDs())

	// The first mutation applies the cascade over the observed state.
	_, err := c.ToggleSlot(StageEnvio, 0)
	require.NoError(t, err)
	assert.Empty(t, c.Group().Stage(StageValidacion).Slots)
	assert.Contains(t, c.DeactivateIDs(), "9002")
}

func TestToggleOutOfRange(t *testing.T) {
	c := NewConfigurator(nil)
	_, err := c.ToggleSlot(StageCarga, 0)
	assert.ErrorIs(t, err, ErrHorarioNoEncontrado)
}

func TestRecomendacion(t *testing.T) {
	c := NewConfigurator(nil)
	assert.Empty(t, c.Recomendacion(StageValidacion))

	require.NoError(t, c.AddSlot(StageCarga, "Lunes", "22:00"))
	rec := c.Recomendacion(StageValidacion)
	assert.Contains(t, rec, "validación")
	assert.Contains(t, rec, "Lunes")
	assert.Contains(t, rec, "11:00 PM")

	// Once the downstream stage has a slot the advisory disappears.
	require.NoError(t, c.AddSlot(StageValidacion, "Martes", "08:00"))
	assert.Empty(t, c.Recomendacion(StageValidacion))
}

func TestAvailableHoursFiltering(t *testing.T) {
	c := NewConfigurator(nil)
	require.NoError(t, c.AddSlot(StageCarga, "Lunes", "22:00"))

	c.SetPendingDia(StageValidacion, "Lunes")
	hours := c.AvailableHours(StageValidacion)
	assert.NotContains(t, hours, "22:00")
	assert.Contains(t, hours, "22:15")

	// Another day is unconstrained.
	c.SetPendingDia(StageValidacion, "Martes")
	assert.Contains(t, c.AvailableHours(StageValidacion), "22:00")
}

func TestPendingHoraClearedWhenOccupied(t *testing.T) {
	c := NewConfigurator(nil)
	c.SetPendingDia(StageValidacion, "Lunes")
	c.SetPendingHora(StageValidacion, "22:00")

	require.NoError(t, c.AddSlot(StageCarga, "Lunes", "22:00"))
	assert.Empty(t, c.PendingHora(StageValidacion))
}

func TestSlotViewsSorted(t *testing.T) {
	group := NewTaskGroup("")
	group.Stage(StageCarga).Slots = []Slot{
		{Dia: "Jueves", Hora: "06:00", Activo: true},
		{Dia: "Lunes", Hora: "10:00", Activo: false},
		{Dia: "Lunes", Hora: "08:00", Activo: true},
		{Dia: "Lunes", Hora: "06:00", Activo: true},
	}
	c := NewConfigurator(group)

	views := c.SlotViews(StageCarga)
	require.Len(t, views, 4)
	assert.Equal(t, Slot{Dia: "Lunes", Hora: "06:00", Activo: true}, views[0])
	assert.Equal(t, Slot{Dia: "Lunes", Hora: "08:00", Activo: true}, views[1])
	assert.Equal(t, Slot{Dia: "Jueves", Hora: "06:00", Activo: true}, views[2])
	assert.False(t, views[3].Activo)
}

func TestValidateGroup(t *testing.T) {
	group := persistedGroup()
	assert.NoError(t, ValidateGroup(group))

	assert.Error(t, ValidateGroup(nil))
	assert.Error(t, ValidateGroup(NewTaskGroup("")))

	bad := persistedGroup()
	bad.Stage(StageValidacion).Slots[0] = Slot{Dia: "Lunes", Hora: "06:00", Activo: true}
	var ordering *OrderingError
	assert.ErrorAs(t, ValidateGroup(bad), &ordering)

	dupGroup := persistedGroup()
	dupGroup.Stage(StageEnvio).Slots[0] = Slot{Dia: "Lunes", Hora: "22:00", Activo: true}
	var dup *DuplicateSlotError
	assert.ErrorAs(t, ValidateGroup(dupGroup), &dup)
}
