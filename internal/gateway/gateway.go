// Package gateway defines the persistence operations the schedule core
// calls into, and the executor that applies a reconciliation plan against
// them one step at a time.
package gateway

import (
	"context"

	"ingestadmin/internal/schedule"
)

// GroupRef identifies the task group a created stage row belongs to.
type GroupRef struct {
	LineaID     string
	CampaniaID  string
	MapeoID     string
	MapeoNombre string
}

// Scope filters a raw task-row fetch.
type Scope struct {
	LineaID    string
	CampaniaID string
}

// Gateway is the abstract persistence surface consumed by the core. The
// SQLite store implements it; a remote backend client could equally.
type Gateway interface {
	// CreateStageTask persists a new per-stage task row with its initial
	// slots and returns the new task id. Created slots start active.
	CreateStageTask(ctx context.Context, ref GroupRef, stage schedule.Stage, modo schedule.ExecutionMode, slots []schedule.Slot) (string, error)
	// UpdateStageTask changes a stage task's execution mode.
	UpdateStageTask(ctx context.Context, tareaID string, modo schedule.ExecutionMode) error
	// AppendStageSlots adds new schedule slots to an existing stage task.
	AppendStageSlots(ctx context.Context, tareaID string, slots []schedule.Slot) error
	// SyncStageSchedule deactivates and activates persisted slots by id.
	SyncStageSchedule(ctx context.Context, tareaID string, deactivateIDs, activateIDs []string) error
	// ListScheduleSlots returns the persisted slots of a stage task.
	ListScheduleSlots(ctx context.Context, tareaID string) ([]schedule.Slot, error)
	// FetchRawTaskRows returns the raw rows feeding the normalizer.
	FetchRawTaskRows(ctx context.Context, scope Scope) ([]schedule.RawRow, error)
}
