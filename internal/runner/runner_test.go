package runner

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"ingestadmin/internal/schedule"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu        sync.Mutex
	tareas    map[string]*schedule.Tarea
	horarios  map[string][]*schedule.Horario
	runs      []*schedule.Run
	started   []string
	completed map[string]schedule.RunStatus
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		tareas:    make(map[string]*schedule.Tarea),
		horarios:  make(map[string][]*schedule.Horario),
		completed: make(map[string]schedule.RunStatus),
	}
}

func (f *fakeStore) GetTarea(_ context.Context, id string) (*schedule.Tarea, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tarea, ok := f.tareas[id]
	if !ok {
		return nil, assert.AnError
	}
	return tarea, nil
}

func (f *fakeStore) ListTareas(_ context.Context, _, _ string, _ *bool) ([]*schedule.Tarea, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*schedule.Tarea, 0, len(f.tareas))
	for _, tarea := range f.tareas {
		out = append(out, tarea)
	}
	return out, nil
}

func (f *fakeStore) ListHorarios(_ context.Context, tareaID string) ([]*schedule.Horario, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.horarios[tareaID], nil
}

func (f *fakeStore) InsertRun(_ context.Context, run *schedule.Run) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, run)
	return nil
}

func (f *fakeStore) MarkRunStarted(_ context.Context, id string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, id)
	return nil
}

func (f *fakeStore) MarkRunCompleted(_ context.Context, id string, status schedule.RunStatus, _ time.Time, _ *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed[id] = status
	return nil
}

func (f *fakeStore) runStatuses() []schedule.RunStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]schedule.RunStatus, 0, len(f.runs))
	for _, run := range f.runs {
		out = append(out, run.Status)
	}
	return out
}

type signalExecutor struct {
	done chan *schedule.Run
}

func (e *signalExecutor) Execute(_ context.Context, _ *schedule.Tarea, run *schedule.Run) error {
	e.done <- run
	return nil
}

func testTarea(id string, modo schedule.ExecutionMode, activo bool) *schedule.Tarea {
	return &schedule.Tarea{
		ID:     id,
		Etapa:  schedule.StageCarga,
		Modo:   modo,
		Activo: activo,
	}
}

func TestSlotCronExpr(t *testing.T) {
	tests := []struct {
		name    string
		horario *schedule.Horario
		want    string
		wantErr bool
	}{
		{
			name:    "monday morning",
			horario: &schedule.Horario{DiaID: 1, Hora: "06:15"},
			want:    "15 6 * * 1",
		},
		{
			name:    "friday evening",
			horario: &schedule.Horario{DiaID: 5, Hora: "23:45"},
			want:    "45 23 * * 5",
		},
		{
			name:    "bad hour",
			horario: &schedule.Horario{DiaID: 2, Hora: "ocho"},
			wantErr: true,
		},
		{
			name:    "weekend day id",
			horario: &schedule.Horario{DiaID: 6, Hora: "08:00"},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := slotCronExpr(tt.horario)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSchedulable(t *testing.T) {
	assert.True(t, schedulable(testTarea("a", schedule.ModeAutomatica, true)))
	assert.True(t, schedulable(testTarea("b", schedule.ModeHibrida, true)))
	assert.False(t, schedulable(testTarea("c", schedule.ModeManual, true)))
	assert.False(t, schedulable(testTarea("d", schedule.ModeAutomatica, false)))
}

func TestSyncSchedulesOnlyActiveAutomaticSlots(t *testing.T) {
	store := newFakeStore()
	store.tareas["auto"] = testTarea("auto", schedule.ModeAutomatica, true)
	store.tareas["manual"] = testTarea("manual", schedule.ModeManual, true)
	store.tareas["apagada"] = testTarea("apagada", schedule.ModeAutomatica, false)
	store.horarios["auto"] = []*schedule.Horario{
		{ID: "h1", TareaID: "auto", DiaID: 1, Hora: "08:00", Activo: true},
		{ID: "h2", TareaID: "auto", DiaID: 2, Hora: "09:00", Activo: false},
	}
	store.horarios["manual"] = []*schedule.Horario{
		{ID: "h3", TareaID: "manual", DiaID: 3, Hora: "10:00", Activo: true},
	}
	store.horarios["apagada"] = []*schedule.Horario{
		{ID: "h4", TareaID: "apagada", DiaID: 4, Hora: "11:00", Activo: true},
	}

	r := NewRunner(store, &signalExecutor{done: make(chan *schedule.Run, 1)}, nil, slog.Default(), time.UTC)
	require.NoError(t, r.Sync(context.Background()))

	_, ok := r.getEntryID("h1")
	assert.True(t, ok)
	for _, id := range []string{"h2", "h3", "h4"} {
		_, ok := r.getEntryID(id)
		assert.False(t, ok, id)
	}

	// Deactivating the slot drops its entry on the next sync.
	store.mu.Lock()
	store.horarios["auto"][0].Activo = false
	store.mu.Unlock()
	require.NoError(t, r.Sync(context.Background()))
	_, ok = r.getEntryID("h1")
	assert.False(t, ok)
}

func TestTriggerSkipsWhenAlreadyRunning(t *testing.T) {
	store := newFakeStore()
	store.tareas["t1"] = testTarea("t1", schedule.ModeAutomatica, true)

	r := NewRunner(store, &signalExecutor{done: make(chan *schedule.Run, 1)}, nil, slog.Default(), time.UTC)
	r.markTareaRunning("t1", true)

	r.handleTrigger("t1", time.Now().UTC())

	statuses := store.runStatuses()
	require.Len(t, statuses, 1)
	assert.Equal(t, schedule.RunStatusSkipped, statuses[0])
}

func TestTriggerDispatchesQueuedRun(t *testing.T) {
	store := newFakeStore()
	store.tareas["t1"] = testTarea("t1", schedule.ModeAutomatica, true)

	executor := &signalExecutor{done: make(chan *schedule.Run, 1)}
	r := NewRunner(store, executor, nil, slog.Default(), time.UTC)

	r.handleTrigger("t1", time.Now().UTC())

	select {
	case run := <-executor.done:
		assert.Equal(t, "t1", run.TareaID)
		assert.Equal(t, schedule.RunStatusQueued, run.Status)
	case <-time.After(2 * time.Second):
		t.Fatal("executor was not invoked")
	}
}

func TestRunTareaNowRejectsConcurrentRun(t *testing.T) {
	store := newFakeStore()
	tarea := testTarea("t1", schedule.ModeManual, true)
	store.tareas["t1"] = tarea

	r := NewRunner(store, &signalExecutor{done: make(chan *schedule.Run, 1)}, nil, slog.Default(), time.UTC)
	r.markTareaRunning("t1", true)

	_, err := r.RunTareaNow(context.Background(), tarea)
	assert.ErrorIs(t, err, ErrTareaEnEjecucion)
}

type fakeRecorder struct {
	mu       sync.Mutex
	acciones []string
}

func (f *fakeRecorder) Record(_ context.Context, accion, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acciones = append(f.acciones, accion)
	return nil
}

func TestDispatchExecutorCompletesRun(t *testing.T) {
	store := newFakeStore()
	recorder := &fakeRecorder{}
	executor := NewDispatchExecutor(store, recorder, slog.Default())

	tarea := testTarea("t1", schedule.ModeAutomatica, true)
	run := &schedule.Run{ID: "r1", TareaID: "t1", Etapa: schedule.StageCarga, Status: schedule.RunStatusQueued}

	require.NoError(t, executor.Execute(context.Background(), tarea, run))

	assert.Equal(t, []string{"r1"}, store.started)
	assert.Equal(t, schedule.RunStatusSucceeded, store.completed["r1"])
	assert.Equal(t, []string{"ejecucion"}, recorder.acciones)
}
