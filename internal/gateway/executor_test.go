package gateway

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ingestadmin/internal/schedule"
)

type fakeGateway struct {
	calls   []string
	failOn  string
	listed  []schedule.Slot
	listErr error
}

func (f *fakeGateway) call(name string) error {
	f.calls = append(f.calls, name)
	if f.failOn == name {
		return errors.New("backend caído")
	}
	return nil
}

func (f *fakeGateway) CreateStageTask(_ context.Context, _ GroupRef, _ schedule.Stage, _ schedule.ExecutionMode, _ []schedule.Slot) (string, error) {
	return "nuevo", f.call("create")
}

func (f *fakeGateway) UpdateStageTask(_ context.Context, _ string, _ schedule.ExecutionMode) error {
	return f.call("update")
}

func (f *fakeGateway) AppendStageSlots(_ context.Context, _ string, _ []schedule.Slot) error {
	return f.call("append")
}

func (f *fakeGateway) SyncStageSchedule(_ context.Context, _ string, _, _ []string) error {
	return f.call("sync")
}

func (f *fakeGateway) ListScheduleSlots(_ context.Context, _ string) ([]schedule.Slot, error) {
	return f.listed, f.listErr
}

func (f *fakeGateway) FetchRawTaskRows(_ context.Context, _ Scope) ([]schedule.RawRow, error) {
	return nil, nil
}

type fakeRecorder struct {
	entries []string
}

func (f *fakeRecorder) Record(_ context.Context, accion, detalle string) error {
	f.entries = append(f.entries, accion+": "+detalle)
	return nil
}

func testPlan() []schedule.Operation {
	return []schedule.Operation{
		{Kind: schedule.OpActualizarTarea, Stage: schedule.StageCarga, TareaID: "501", Modo: schedule.ModeManual, Label: "Actualizando tarea de carga"},
		{Kind: schedule.OpSincronizarHorarios, Stage: schedule.StageCarga, TareaID: "501", DeactivateIDs: []string{"9001"}, Label: "Sincronizando horarios de carga"},
		{Kind: schedule.OpCrearTarea, Stage: schedule.StageValidacion, Modo: schedule.ModeAutomatica, Label: "Creando tarea de validación"},
		{Kind: schedule.OpRefrescar, Label: "Actualizando listado de tareas"},
	}
}

func TestExecutorAppliesInOrder(t *testing.T) {
	gw := &fakeGateway{}
	recorder := &fakeRecorder{}
	executor := NewExecutor(gw, recorder, slog.Default())

	done, err := executor.Apply(context.Background(), GroupRef{LineaID: "1"}, testPlan())
	require.NoError(t, err)

	assert.Equal(t, []string{"update", "sync", "create"}, gw.calls)
	assert.Equal(t, []string{
		"Actualizando tarea de carga",
		"Sincronizando horarios de carga",
		"Creando tarea de validación",
		"Actualizando listado de tareas",
	}, done)
	assert.Len(t, recorder.entries, 4)
}

func TestExecutorFailFast(t *testing.T) {
	gw := &fakeGateway{failOn: "sync"}
	executor := NewExecutor(gw, nil, slog.Default())

	done, err := executor.Apply(context.Background(), GroupRef{}, testPlan())
	require.Error(t, err)

	// The failing step's label identifies how far the save got; later
	// steps never ran.
	assert.Contains(t, err.Error(), "Sincronizando horarios de carga")
	assert.Equal(t, []string{"Actualizando tarea de carga"}, done)
	assert.Equal(t, []string{"update", "sync"}, gw.calls)
}

func TestResolvePersistedIDs(t *testing.T) {
	gw := &fakeGateway{listed: []schedule.Slot{
		{Dia: "Lunes", Hora: "22:00", Activo: true, HorarioID: "9001"},
		{Dia: "Martes", Hora: "08:00", Activo: false, HorarioID: "9002"},
	}}

	slots, err := ResolvePersistedIDs(context.Background(), gw, "501", []schedule.Slot{
		{Dia: "Lunes", Hora: "22:00", Activo: true},
		{Dia: "Jueves", Hora: "10:00", Activo: true},
	})
	require.NoError(t, err)
	assert.Equal(t, "9001", slots[0].HorarioID)
	assert.Empty(t, slots[1].HorarioID)

	gw.listErr = errors.New("sin conexión")
	_, err = ResolvePersistedIDs(context.Background(), gw, "501", nil)
	assert.Error(t, err)
}
