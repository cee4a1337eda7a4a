package api

import (
	"encoding/json"
	"net/http"

	"ingestadmin/internal/catalog"
	"ingestadmin/internal/schedule"
)

type validarRequest struct {
	Etapas []stageInput `json:"etapas"`
	Etapa  string       `json:"etapa" validate:"required"`
	Dia    string       `json:"dia" validate:"required"`
	Hora   string       `json:"hora" validate:"required"`
}

type validarResponse struct {
	Valido           bool     `json:"valido"`
	Mensaje          string   `json:"mensaje,omitempty"`
	Recomendacion    string   `json:"recomendacion,omitempty"`
	HorasDisponibles []string `json:"horasDisponibles"`
}

// handleValidarHorario dry-runs one candidate slot against the submitted form
// state and reports the exact acceptance or rejection the save path would
// produce, plus the suggested hour for the stage.
func (s *Server) handleValidarHorario(w http.ResponseWriter, r *http.Request) {
	var req validarRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "cuerpo JSON inválido")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
		return
	}

	stage, err := resolveStageParam(req.Etapa)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
		return
	}

	group := schedule.NewTaskGroup("previsualizacion")
	for _, in := range req.Etapas {
		st, err := resolveStageParam(in.Etapa)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
			return
		}
		cfg := group.Stage(st)
		cfg.TareaID = in.IDTarea
		cfg.Modo = schedule.ResolveExecutionMode(in.Modo)
		for _, raw := range in.Horarios {
			cfg.Slots = append(cfg.Slots, schedule.Slot{
				Dia:       catalog.NormalizeWeekday(raw.Dia),
				Hora:      catalog.ToHourLabel(raw.Hora),
				Activo:    raw.Activo,
				HorarioID: raw.IDHorario,
			})
		}
	}

	configurator := schedule.NewConfigurator(group)
	dia := catalog.NormalizeWeekday(req.Dia)
	hora := catalog.ToHourLabel(req.Hora)
	configurator.SetPendingDia(stage, dia)

	res := validarResponse{
		Recomendacion:    configurator.Recomendacion(stage),
		HorasDisponibles: configurator.AvailableHours(stage),
	}
	if res.HorasDisponibles == nil {
		res.HorasDisponibles = []string{}
	}

	if err := configurator.AddSlot(stage, dia, hora); err != nil {
		res.Mensaje = err.Error()
		writeJSON(w, http.StatusOK, res)
		return
	}
	res.Valido = true
	writeJSON(w, http.StatusOK, res)
}
