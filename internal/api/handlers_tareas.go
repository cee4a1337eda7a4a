package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"ingestadmin/internal/catalog"
	"ingestadmin/internal/gateway"
	"ingestadmin/internal/runner"
	"ingestadmin/internal/schedule"
	"ingestadmin/internal/store"

	"github.com/go-chi/chi/v5"
)

type slotInput struct {
	Dia       string `json:"dia" validate:"required"`
	Hora      string `json:"hora" validate:"required"`
	Activo    bool   `json:"activo"`
	IDHorario string `json:"idHorario"`
}

type stageInput struct {
	Etapa    string      `json:"etapa" validate:"required"`
	IDTarea  string      `json:"idTarea"`
	Modo     string      `json:"modoEjecucion"`
	Horarios []slotInput `json:"horarios" validate:"dive"`
}

type guardarRequest struct {
	IDLineaNegocio string       `json:"idLineaNegocio" validate:"required"`
	IDCampania     string       `json:"idCampania"`
	IDMapeo        string       `json:"idMapeo"`
	NombreMapeo    string       `json:"nombreMapeo"`
	Etapas         []stageInput `json:"etapas" validate:"required,min=1,dive"`
	DesactivarIDs  []string     `json:"desactivarIds"`
	ActivarIDs     []string     `json:"activarIds"`
}

type stageResponse struct {
	Etapa       string          `json:"etapa"`
	IDTipoTarea int             `json:"idTipoTarea"`
	IDTarea     string          `json:"idTarea,omitempty"`
	Modo        string          `json:"modoEjecucion"`
	Horarios    []schedule.Slot `json:"horarios"`
}

type groupResponse struct {
	Clave             string          `json:"clave"`
	IDLineaNegocio    string          `json:"idLineaNegocio,omitempty"`
	IDCampania        string          `json:"idCampania,omitempty"`
	IDMapeo           string          `json:"idMapeo,omitempty"`
	NombreMapeo       string          `json:"nombreMapeo,omitempty"`
	Activo            bool            `json:"activo"`
	FechaCreacion     string          `json:"fechaCreacion,omitempty"`
	FechaModificacion string          `json:"fechaModificacion,omitempty"`
	Etapas            []stageResponse `json:"etapas"`
	ListoParaEjecutar bool            `json:"listoParaEjecutar"`
}

func (s *Server) handleListTareas(w http.ResponseWriter, r *http.Request) {
	scope := gateway.Scope{
		LineaID:    strings.TrimSpace(r.URL.Query().Get("linea")),
		CampaniaID: strings.TrimSpace(r.URL.Query().Get("campania")),
	}
	rows, err := s.gw.FetchRawTaskRows(r.Context(), scope)
	if err != nil {
		s.logger.Error("fetch task rows", "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "no se pudieron consultar las tareas")
		return
	}
	groups := s.normalizer.Normalize(rows)
	res := make([]groupResponse, 0, len(groups))
	for _, group := range groups {
		res = append(res, groupToResponse(group))
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleGuardarTareas(w http.ResponseWriter, r *http.Request) {
	var req guardarRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "cuerpo JSON inválido")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
		return
	}

	desired, err := s.buildDesiredGroup(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
		return
	}

	existing, err := s.buildExistingState(r, desired, req)
	if err != nil {
		s.logger.Error("load existing state", "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "no se pudo consultar el estado actual")
		return
	}

	if err := schedule.ValidateGroup(desired); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid_horarios", err.Error())
		return
	}

	ops := schedule.Diff(desired, existing)
	if len(ops) == 0 {
		writeJSON(w, http.StatusOK, map[string]any{"pasos": []string{}, "mensaje": "sin cambios"})
		return
	}

	ref := gateway.GroupRef{
		LineaID:     req.IDLineaNegocio,
		CampaniaID:  req.IDCampania,
		MapeoID:     req.IDMapeo,
		MapeoNombre: req.NombreMapeo,
	}
	done, err := s.executor.Apply(r.Context(), ref, ops)
	if err != nil {
		s.logger.Error("apply plan", "linea", req.IDLineaNegocio, "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error": map[string]string{
				"code":    "apply_failed",
				"message": err.Error(),
			},
			"pasosCompletados": done,
		})
		return
	}
	if err := s.runner.Sync(r.Context()); err != nil {
		s.logger.Error("resync runner after save", "err", err)
	}
	writeJSON(w, http.StatusOK, map[string]any{"pasos": done})
}

// handleEjecutarTarea fires one stage task on demand. Only tasks whose
// execution mode allows manual dispatch are accepted.
func (s *Server) handleEjecutarTarea(w http.ResponseWriter, r *http.Request) {
	tareaID := chi.URLParam(r, "tareaID")
	tarea, err := s.store.GetTarea(r.Context(), tareaID)
	if err != nil {
		if errors.Is(err, store.ErrTareaNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "tarea no encontrada")
		} else {
			s.logger.Error("get tarea for manual run", "tarea_id", tareaID, "err", err)
			writeError(w, http.StatusInternalServerError, "internal_error", "no se pudo consultar la tarea")
		}
		return
	}
	if tarea.Modo == schedule.ModeAutomatica {
		writeError(w, http.StatusBadRequest, "invalid_input", "la tarea es de ejecución automática y no admite disparo manual")
		return
	}
	run, err := s.runner.RunTareaNow(r.Context(), tarea)
	if err != nil {
		if errors.Is(err, runner.ErrTareaEnEjecucion) {
			writeError(w, http.StatusConflict, "conflict", err.Error())
			return
		}
		s.logger.Error("run tarea now", "tarea_id", tareaID, "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "no se pudo iniciar la ejecución")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"idEjecucion": run.ID})
}

// buildDesiredGroup turns the request payload into the in-memory group the
// diff converges towards. Day and hour labels are normalized on the way in so
// the rest of the pipeline only sees catalog values.
func (s *Server) buildDesiredGroup(req guardarRequest) (*schedule.TaskGroup, error) {
	key := req.IDLineaNegocio + "|" + req.IDCampania + "|" + req.IDMapeo
	group := schedule.NewTaskGroup(key)
	group.LineaID = req.IDLineaNegocio
	group.CampaniaID = req.IDCampania
	group.MapeoID = req.IDMapeo
	group.MapeoNombre = req.NombreMapeo

	for _, in := range req.Etapas {
		stage, err := resolveStageParam(in.Etapa)
		if err != nil {
			return nil, err
		}
		cfg := group.Stage(stage)
		cfg.TareaID = in.IDTarea
		cfg.Modo = schedule.ResolveExecutionMode(in.Modo)
		for _, raw := range in.Horarios {
			slot := schedule.Slot{
				Dia:       catalog.NormalizeWeekday(raw.Dia),
				Hora:      catalog.ToHourLabel(raw.Hora),
				Activo:    raw.Activo,
				HorarioID: raw.IDHorario,
			}
			if !slot.Complete() {
				return nil, errors.New("horario con día u hora no reconocidos: " + raw.Dia + " " + raw.Hora)
			}
			cfg.Slots = append(cfg.Slots, slot)
		}
	}
	return group, nil
}

// buildExistingState loads the persisted side of the diff and back-fills the
// ids of desired slots the form lost track of.
func (s *Server) buildExistingState(r *http.Request, desired *schedule.TaskGroup, req guardarRequest) (schedule.ExistingState, error) {
	existing := schedule.ExistingState{
		Stages:        make(map[schedule.Stage]schedule.ExistingStage),
		DeactivateIDs: req.DesactivarIDs,
		ActivateIDs:   req.ActivarIDs,
	}
	for _, stage := range schedule.Stages() {
		cfg := desired.Stage(stage)
		if cfg.TareaID == "" {
			continue
		}
		tarea, err := s.store.GetTarea(r.Context(), cfg.TareaID)
		if err != nil {
			return existing, err
		}
		slots, err := s.gw.ListScheduleSlots(r.Context(), cfg.TareaID)
		if err != nil {
			return existing, err
		}
		existing.Stages[stage] = schedule.ExistingStage{
			TareaID: cfg.TareaID,
			Modo:    tarea.Modo,
			Slots:   slots,
		}
		resolved, err := gateway.ResolvePersistedIDs(r.Context(), s.gw, cfg.TareaID, cfg.Slots)
		if err != nil {
			return existing, err
		}
		cfg.Slots = resolved
	}
	return existing, nil
}

func resolveStageParam(raw string) (schedule.Stage, error) {
	raw = strings.TrimSpace(raw)
	if stage, ok := schedule.StageFromCode(raw); ok {
		return stage, nil
	}
	if stage, ok := schedule.StageFromName(raw); ok {
		return stage, nil
	}
	if id, err := strconv.Atoi(raw); err == nil {
		if stage, ok := schedule.StageFromID(id); ok {
			return stage, nil
		}
	}
	return 0, errors.New("etapa desconocida: " + raw)
}

func groupToResponse(group *schedule.TaskGroup) groupResponse {
	res := groupResponse{
		Clave:             group.Key,
		IDLineaNegocio:    group.LineaID,
		IDCampania:        group.CampaniaID,
		IDMapeo:           group.MapeoID,
		NombreMapeo:       group.MapeoNombre,
		Activo:            group.Activo,
		FechaCreacion:     group.CreadoEn,
		FechaModificacion: group.ModificadoEn,
		ListoParaEjecutar: schedule.NewConfigurator(group).ScheduleReady(),
	}
	for _, stage := range schedule.Stages() {
		cfg := group.Stage(stage)
		slots := cfg.Slots
		if slots == nil {
			slots = []schedule.Slot{}
		}
		res.Etapas = append(res.Etapas, stageResponse{
			Etapa:       stage.Code(),
			IDTipoTarea: int(stage),
			IDTarea:     cfg.TareaID,
			Modo:        string(cfg.Modo),
			Horarios:    slots,
		})
	}
	return res
}

func parseIntDefault(value string, def int) int {
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	payload := map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	}
	writeJSON(w, status, payload)
}
