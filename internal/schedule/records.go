package schedule

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// Tarea is one persisted per-stage task row. Three rows sharing the group
// dimensions make up one TaskGroup.
type Tarea struct {
	ID           string
	LineaID      string
	CampaniaID   *string
	MapeoID      *string
	MapeoNombre  *string
	Etapa        Stage
	Modo         ExecutionMode
	Activo       bool
	CreadoEn     time.Time
	ModificadoEn time.Time
}

// Horario is one persisted schedule slot of a stage task.
type Horario struct {
	ID       string
	TareaID  string
	DiaID    int
	Hora     string
	Activo   bool
	CreadoEn time.Time
}

// Mapeo is a configured data source/destination definition tasks execute
// against.
type Mapeo struct {
	ID           string
	Nombre       string
	Origen       string
	Destino      string
	Activo       bool
	CreadoEn     time.Time
	ModificadoEn time.Time
}

// Columna is one per-mapping field validation rule.
type Columna struct {
	ID        string
	MapeoID   string
	Nombre    string
	Tipo      string
	Requerida bool
	Regla     *string
	Posicion  int
}

// RunStatus describes the state of one stage execution.
type RunStatus string

const (
	RunStatusQueued    RunStatus = "queued"
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
	RunStatusSkipped   RunStatus = "skipped"
)

// Run is one execution of a stage task, the monitor dashboard's unit.
type Run struct {
	ID          string
	TareaID     string
	Etapa       Stage
	Status      RunStatus
	ScheduledAt time.Time
	StartedAt   *time.Time
	EndedAt     *time.Time
	Error       *string
	CreatedAt   time.Time
}

// BitacoraEntry is one audit-log record.
type BitacoraEntry struct {
	ID        string
	Accion    string
	Detalle   string
	CreatedAt time.Time
}

// NewID returns a random 128-bit identifier encoded as lowercase hex.
// Falls back to a timestamp string if the random source fails.
func NewID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err == nil {
		return hex.EncodeToString(buf)
	}
	return fmt.Sprintf("%d", time.Now().UTC().UnixNano())
}
