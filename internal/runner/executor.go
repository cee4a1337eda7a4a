package runner

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"ingestadmin/internal/gateway"
	"ingestadmin/internal/schedule"
)

// DispatchExecutor is the default StageExecutor: it records the dispatch and
// completes the run. The actual ingestion work happens on the backend side;
// this daemon's responsibility ends at firing the stage on time and leaving an
// auditable trail.
type DispatchExecutor struct {
	store    Store
	recorder gateway.Recorder
	logger   *slog.Logger
}

// NewDispatchExecutor creates a new dispatch executor.
func NewDispatchExecutor(store Store, recorder gateway.Recorder, logger *slog.Logger) *DispatchExecutor {
	return &DispatchExecutor{
		store:    store,
		recorder: recorder,
		logger:   logger,
	}
}

// Execute marks the run started, leaves a bitácora entry for the dispatch and
// completes the run.
func (e *DispatchExecutor) Execute(ctx context.Context, tarea *schedule.Tarea, run *schedule.Run) error {
	startedAt := time.Now().UTC()
	if err := e.store.MarkRunStarted(ctx, run.ID, startedAt); err != nil {
		return fmt.Errorf("mark run started: %w", err)
	}

	detalle := fmt.Sprintf("Ejecutando etapa de %s (tarea %s, ejecución %s)",
		strings.ToLower(tarea.Etapa.Nombre()), tarea.ID, run.ID)
	if e.recorder != nil {
		if err := e.recorder.Record(ctx, "ejecucion", detalle); err != nil {
			e.logger.Warn("registro de bitácora falló", "run_id", run.ID, "err", err)
		}
	}
	e.logger.Info("stage dispatched", "tarea_id", tarea.ID, "etapa", tarea.Etapa.Nombre(), "run_id", run.ID)

	endedAt := time.Now().UTC()
	if err := e.store.MarkRunCompleted(ctx, run.ID, schedule.RunStatusSucceeded, endedAt, nil); err != nil {
		return fmt.Errorf("mark run completed: %w", err)
	}
	return nil
}
