package api

import (
	"net/http"
	"strings"
	"time"

	"ingestadmin/internal/schedule"
	"ingestadmin/internal/store"
)

type runResponse struct {
	ID         string  `json:"id"`
	IDTarea    string  `json:"idTarea"`
	Etapa      string  `json:"etapa"`
	Estado     string  `json:"estado"`
	Programado string  `json:"programado"`
	Inicio     *string `json:"inicio,omitempty"`
	Fin        *string `json:"fin,omitempty"`
	Error      *string `json:"error,omitempty"`
}

type bitacoraResponse struct {
	ID      string `json:"id"`
	Accion  string `json:"accion"`
	Detalle string `json:"detalle"`
	Fecha   string `json:"fecha"`
}

func (s *Server) handleMonitor(w http.ResponseWriter, r *http.Request) {
	filter := store.RunFilter{
		TareaID: strings.TrimSpace(r.URL.Query().Get("tarea")),
		Limit:   parseIntDefault(r.URL.Query().Get("limit"), 50),
		Offset:  parseIntDefault(r.URL.Query().Get("offset"), 0),
	}

	if raw := strings.TrimSpace(r.URL.Query().Get("etapa")); raw != "" {
		stage, err := resolveStageParam(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
			return
		}
		filter.Etapa = &stage
	}

	if raw := strings.TrimSpace(r.URL.Query().Get("estado")); raw != "" {
		status := schedule.RunStatus(raw)
		switch status {
		case schedule.RunStatusQueued, schedule.RunStatusRunning, schedule.RunStatusSucceeded,
			schedule.RunStatusFailed, schedule.RunStatusSkipped:
			filter.Status = &status
		default:
			writeError(w, http.StatusBadRequest, "invalid_input", "estado desconocido: "+raw)
			return
		}
	}

	runs, err := s.store.ListRuns(r.Context(), filter)
	if err != nil {
		s.logger.Error("list runs", "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "no se pudieron listar las ejecuciones")
		return
	}
	res := make([]runResponse, 0, len(runs))
	for _, run := range runs {
		res = append(res, runToResponse(run))
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleBitacora(w http.ResponseWriter, r *http.Request) {
	limit := parseIntDefault(r.URL.Query().Get("limit"), 50)
	offset := parseIntDefault(r.URL.Query().Get("offset"), 0)
	entries, err := s.store.ListBitacora(r.Context(), limit, offset)
	if err != nil {
		s.logger.Error("list bitacora", "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "no se pudo consultar la bitácora")
		return
	}
	res := make([]bitacoraResponse, 0, len(entries))
	for _, entry := range entries {
		res = append(res, bitacoraResponse{
			ID:      entry.ID,
			Accion:  entry.Accion,
			Detalle: entry.Detalle,
			Fecha:   entry.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, res)
}

func runToResponse(run *schedule.Run) runResponse {
	res := runResponse{
		ID:         run.ID,
		IDTarea:    run.TareaID,
		Etapa:      run.Etapa.Code(),
		Estado:     string(run.Status),
		Programado: run.ScheduledAt.UTC().Format(time.RFC3339),
		Error:      run.Error,
	}
	if run.StartedAt != nil {
		formatted := run.StartedAt.UTC().Format(time.RFC3339)
		res.Inicio = &formatted
	}
	if run.EndedAt != nil {
		formatted := run.EndedAt.UTC().Format(time.RFC3339)
		res.Fin = &formatted
	}
	return res
}
