// Package runner turns persisted active schedule slots into cron entries and
// dispatches stage executions when they fire.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"ingestadmin/internal/notify"
	"ingestadmin/internal/schedule"

	"github.com/robfig/cron/v3"
)

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ErrTareaEnEjecucion rejects a dispatch while the task already has a run in
// flight.
var ErrTareaEnEjecucion = errors.New("la tarea ya se está ejecutando")

// Store abstracts the persistence layer used by the runner.
type Store interface {
	GetTarea(ctx context.Context, id string) (*schedule.Tarea, error)
	ListTareas(ctx context.Context, lineaID, campaniaID string, activo *bool) ([]*schedule.Tarea, error)
	ListHorarios(ctx context.Context, tareaID string) ([]*schedule.Horario, error)

	InsertRun(ctx context.Context, run *schedule.Run) error
	MarkRunStarted(ctx context.Context, id string, startedAt time.Time) error
	MarkRunCompleted(ctx context.Context, id string, status schedule.RunStatus, endedAt time.Time, errMsg *string) error
}

// StageExecutor performs the work of one fired stage task.
type StageExecutor interface {
	Execute(ctx context.Context, tarea *schedule.Tarea, run *schedule.Run) error
}

// Runner manages cron-based scheduling and dispatching of stage tasks.
type Runner struct {
	store    Store
	executor StageExecutor
	notifier notify.Notifier
	logger   *slog.Logger
	location *time.Location

	cron    *cron.Cron
	entryMu sync.RWMutex
	entries map[string]cron.EntryID // horario ID -> cron entry

	running sync.Map // tarea ID -> struct{}{}

	ctx context.Context
}

// NewRunner constructs a runner with the given dependencies.
func NewRunner(store Store, executor StageExecutor, notifier notify.Notifier, logger *slog.Logger, location *time.Location) *Runner {
	if location == nil {
		location = time.Local
	}
	if notifier == nil {
		notifier = &notify.NoOpNotifier{}
	}
	c := cron.New(
		cron.WithParser(cronParser),
		cron.WithLocation(location),
	)
	return &Runner{
		store:    store,
		executor: executor,
		notifier: notifier,
		logger:   logger,
		location: location,
		cron:     c,
		entries:  make(map[string]cron.EntryID),
	}
}

// Start begins the scheduling loop. ctx is used for background operations.
func (r *Runner) Start(ctx context.Context) {
	r.ctx = ctx
	r.cron.Start()
}

// Stop stops the runner and returns a context that is done once currently
// dispatching cron jobs have finished.
func (r *Runner) Stop() context.Context {
	return r.cron.Stop()
}

// Sync reconciles cron entries against the store: every active slot of an
// active, automatically scheduled task gets exactly one entry, everything else
// is removed.
func (r *Runner) Sync(ctx context.Context) error {
	tareas, err := r.store.ListTareas(ctx, "", "", nil)
	if err != nil {
		return fmt.Errorf("list tareas: %w", err)
	}

	desired := make(map[string]struct{})
	for _, tarea := range tareas {
		if !schedulable(tarea) {
			continue
		}
		horarios, err := r.store.ListHorarios(ctx, tarea.ID)
		if err != nil {
			r.logger.Error("list horarios", "tarea_id", tarea.ID, "err", err)
			continue
		}
		for _, horario := range horarios {
			if !horario.Activo {
				continue
			}
			desired[horario.ID] = struct{}{}
			if err := r.scheduleHorario(tarea, horario); err != nil {
				r.logger.Error("schedule horario", "tarea_id", tarea.ID, "horario_id", horario.ID, "err", err)
			}
		}
	}

	r.entryMu.RLock()
	var stale []string
	for horarioID := range r.entries {
		if _, keep := desired[horarioID]; !keep {
			stale = append(stale, horarioID)
		}
	}
	r.entryMu.RUnlock()
	for _, horarioID := range stale {
		r.unscheduleHorario(horarioID)
	}
	return nil
}

// RunTareaNow enqueues an immediate execution if the task is not already
// running. Manual and hybrid tasks are dispatched exclusively through here.
func (r *Runner) RunTareaNow(ctx context.Context, tarea *schedule.Tarea) (*schedule.Run, error) {
	if r.isTareaRunning(tarea.ID) {
		return nil, ErrTareaEnEjecucion
	}
	run := &schedule.Run{
		ID:          schedule.NewID(),
		TareaID:     tarea.ID,
		Etapa:       tarea.Etapa,
		Status:      schedule.RunStatusQueued,
		ScheduledAt: time.Now().UTC(),
	}
	if err := r.store.InsertRun(ctx, run); err != nil {
		return nil, err
	}
	r.launchExecution(tarea, run)
	return run, nil
}

func (r *Runner) scheduleHorario(tarea *schedule.Tarea, horario *schedule.Horario) error {
	if _, exists := r.getEntryID(horario.ID); exists {
		return nil
	}
	expr, err := slotCronExpr(horario)
	if err != nil {
		return err
	}
	cronSchedule, err := cronParser.Parse(expr)
	if err != nil {
		return fmt.Errorf("invalid slot expression %q: %w", expr, err)
	}
	tareaID := tarea.ID
	horarioID := horario.ID
	job := func() {
		entryID, ok := r.getEntryID(horarioID)
		if !ok {
			return
		}
		entry := r.cron.Entry(entryID)
		scheduledAt := entry.Prev
		if scheduledAt.IsZero() {
			scheduledAt = time.Now().In(r.location)
		}
		r.handleTrigger(tareaID, scheduledAt.UTC())
	}
	entryID := r.cron.Schedule(cronSchedule, cron.FuncJob(job))
	r.setEntryID(horarioID, entryID)
	return nil
}

func (r *Runner) handleTrigger(tareaID string, scheduledAt time.Time) {
	ctx := r.ctxOrBackground()
	tarea, err := r.store.GetTarea(ctx, tareaID)
	if err != nil {
		r.logger.Error("fetch tarea for scheduled run", "tarea_id", tareaID, "err", err)
		return
	}
	if !schedulable(tarea) {
		return
	}
	if r.isTareaRunning(tarea.ID) {
		r.logger.Info("skipping run because tarea is already running", "tarea_id", tarea.ID)
		run := &schedule.Run{
			ID:          schedule.NewID(),
			TareaID:     tarea.ID,
			Etapa:       tarea.Etapa,
			Status:      schedule.RunStatusSkipped,
			ScheduledAt: scheduledAt,
		}
		if err := r.store.InsertRun(ctx, run); err != nil {
			r.logger.Error("record skipped run", "tarea_id", tarea.ID, "err", err)
		}
		return
	}
	run := &schedule.Run{
		ID:          schedule.NewID(),
		TareaID:     tarea.ID,
		Etapa:       tarea.Etapa,
		Status:      schedule.RunStatusQueued,
		ScheduledAt: scheduledAt,
	}
	if err := r.store.InsertRun(ctx, run); err != nil {
		r.logger.Error("insert run", "tarea_id", tarea.ID, "err", err)
		return
	}
	r.launchExecution(tarea, run)
}

func (r *Runner) launchExecution(tarea *schedule.Tarea, run *schedule.Run) {
	r.markTareaRunning(tarea.ID, true)
	go func() {
		defer r.markTareaRunning(tarea.ID, false)
		ctx := r.ctxOrBackground()
		if err := r.executor.Execute(ctx, tarea, run); err != nil {
			r.logger.Error("execute tarea", "tarea_id", tarea.ID, "run_id", run.ID, "err", err)
			title := fmt.Sprintf("Fallo en etapa de %s", strings.ToLower(tarea.Etapa.Nombre()))
			body := fmt.Sprintf("tarea %s, ejecución %s: %v", tarea.ID, run.ID, err)
			if nerr := r.notifier.Send(ctx, title, body); nerr != nil {
				r.logger.Warn("send failure notification", "run_id", run.ID, "err", nerr)
			}
		}
	}()
}

// slotCronExpr maps a weekly slot to a 5-field cron expression. Day ids share
// the cron DOW numbering for Monday through Friday.
func slotCronExpr(horario *schedule.Horario) (string, error) {
	parts := strings.SplitN(horario.Hora, ":", 2)
	if len(parts) != 2 {
		return "", fmt.Errorf("hora inválida: %q", horario.Hora)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return "", fmt.Errorf("hora inválida: %q", horario.Hora)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return "", fmt.Errorf("hora inválida: %q", horario.Hora)
	}
	if horario.DiaID < 1 || horario.DiaID > 5 {
		return "", fmt.Errorf("día inválido: %d", horario.DiaID)
	}
	return fmt.Sprintf("%d %d * * %d", minute, hour, horario.DiaID), nil
}

func schedulable(tarea *schedule.Tarea) bool {
	if !tarea.Activo {
		return false
	}
	return tarea.Modo == schedule.ModeAutomatica || tarea.Modo == schedule.ModeHibrida
}

func (r *Runner) setEntryID(horarioID string, entryID cron.EntryID) {
	r.entryMu.Lock()
	defer r.entryMu.Unlock()
	r.entries[horarioID] = entryID
}

func (r *Runner) getEntryID(horarioID string) (cron.EntryID, bool) {
	r.entryMu.RLock()
	defer r.entryMu.RUnlock()
	id, ok := r.entries[horarioID]
	return id, ok
}

func (r *Runner) unscheduleHorario(horarioID string) {
	r.entryMu.Lock()
	defer r.entryMu.Unlock()
	if entryID, ok := r.entries[horarioID]; ok {
		r.cron.Remove(entryID)
		delete(r.entries, horarioID)
	}
}

func (r *Runner) isTareaRunning(tareaID string) bool {
	_, ok := r.running.Load(tareaID)
	return ok
}

func (r *Runner) markTareaRunning(tareaID string, running bool) {
	if running {
		r.running.Store(tareaID, struct{}{})
	} else {
		r.running.Delete(tareaID)
	}
}

func (r *Runner) ctxOrBackground() context.Context {
	if r.ctx != nil {
		return r.ctx
	}
	return context.Background()
}
