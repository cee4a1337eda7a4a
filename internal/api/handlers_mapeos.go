package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"ingestadmin/internal/schedule"
	"ingestadmin/internal/store"

	"github.com/go-chi/chi/v5"
)

type createMapeoRequest struct {
	Nombre  string `json:"nombre" validate:"required"`
	Origen  string `json:"origen" validate:"required"`
	Destino string `json:"destino" validate:"required"`
	Activo  *bool  `json:"activo"`
}

type updateMapeoRequest struct {
	Nombre  *string `json:"nombre"`
	Origen  *string `json:"origen"`
	Destino *string `json:"destino"`
	Activo  *bool   `json:"activo"`
}

type mapeoResponse struct {
	ID                string `json:"id"`
	Nombre            string `json:"nombre"`
	Origen            string `json:"origen"`
	Destino           string `json:"destino"`
	Activo            bool   `json:"activo"`
	FechaCreacion     string `json:"fechaCreacion"`
	FechaModificacion string `json:"fechaModificacion"`
}

type createColumnaRequest struct {
	Nombre    string  `json:"nombre" validate:"required"`
	Tipo      string  `json:"tipo" validate:"required,oneof=texto numero fecha booleano"`
	Requerida bool    `json:"requerida"`
	Regla     *string `json:"regla"`
	Posicion  int     `json:"posicion" validate:"gte=0"`
}

type updateColumnaRequest struct {
	Nombre    *string `json:"nombre"`
	Tipo      *string `json:"tipo"`
	Requerida *bool   `json:"requerida"`
	Regla     *string `json:"regla"`
	Posicion  *int    `json:"posicion"`
}

type columnaResponse struct {
	ID        string  `json:"id"`
	IDMapeo   string  `json:"idMapeo"`
	Nombre    string  `json:"nombre"`
	Tipo      string  `json:"tipo"`
	Requerida bool    `json:"requerida"`
	Regla     *string `json:"regla,omitempty"`
	Posicion  int     `json:"posicion"`
}

func (s *Server) handleCreateMapeo(w http.ResponseWriter, r *http.Request) {
	var req createMapeoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "cuerpo JSON inválido")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
		return
	}

	activo := true
	if req.Activo != nil {
		activo = *req.Activo
	}
	mapeo := &schedule.Mapeo{
		ID:      schedule.NewID(),
		Nombre:  strings.TrimSpace(req.Nombre),
		Origen:  strings.TrimSpace(req.Origen),
		Destino: strings.TrimSpace(req.Destino),
		Activo:  activo,
	}
	if err := s.store.InsertMapeo(r.Context(), mapeo); err != nil {
		s.logger.Error("insert mapeo", "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "no se pudo crear el mapeo")
		return
	}
	writeJSON(w, http.StatusCreated, mapeoToResponse(mapeo))
}

func (s *Server) handleListMapeos(w http.ResponseWriter, r *http.Request) {
	var activoFilter *bool
	switch strings.TrimSpace(r.URL.Query().Get("activo")) {
	case "":
	case "true":
		v := true
		activoFilter = &v
	case "false":
		v := false
		activoFilter = &v
	default:
		writeError(w, http.StatusBadRequest, "invalid_input", "activo debe ser true o false")
		return
	}
	mapeos, err := s.store.ListMapeos(r.Context(), activoFilter)
	if err != nil {
		s.logger.Error("list mapeos", "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "no se pudieron listar los mapeos")
		return
	}
	res := make([]mapeoResponse, 0, len(mapeos))
	for _, m := range mapeos {
		res = append(res, mapeoToResponse(m))
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleGetMapeo(w http.ResponseWriter, r *http.Request) {
	mapeoID := chi.URLParam(r, "mapeoID")
	mapeo, err := s.store.GetMapeo(r.Context(), mapeoID)
	if err != nil {
		if errors.Is(err, store.ErrMapeoNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "mapeo no encontrado")
		} else {
			s.logger.Error("get mapeo", "mapeo_id", mapeoID, "err", err)
			writeError(w, http.StatusInternalServerError, "internal_error", "no se pudo consultar el mapeo")
		}
		return
	}
	writeJSON(w, http.StatusOK, mapeoToResponse(mapeo))
}

func (s *Server) handleUpdateMapeo(w http.ResponseWriter, r *http.Request) {
	mapeoID := chi.URLParam(r, "mapeoID")
	mapeo, err := s.store.GetMapeo(r.Context(), mapeoID)
	if err != nil {
		if errors.Is(err, store.ErrMapeoNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "mapeo no encontrado")
		} else {
			s.logger.Error("get mapeo for update", "mapeo_id", mapeoID, "err", err)
			writeError(w, http.StatusInternalServerError, "internal_error", "no se pudo consultar el mapeo")
		}
		return
	}

	var req updateMapeoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "cuerpo JSON inválido")
		return
	}
	if req.Nombre != nil {
		trimmed := strings.TrimSpace(*req.Nombre)
		if trimmed == "" {
			writeError(w, http.StatusBadRequest, "invalid_input", "nombre no puede quedar vacío")
			return
		}
		mapeo.Nombre = trimmed
	}
	if req.Origen != nil {
		trimmed := strings.TrimSpace(*req.Origen)
		if trimmed == "" {
			writeError(w, http.StatusBadRequest, "invalid_input", "origen no puede quedar vacío")
			return
		}
		mapeo.Origen = trimmed
	}
	if req.Destino != nil {
		trimmed := strings.TrimSpace(*req.Destino)
		if trimmed == "" {
			writeError(w, http.StatusBadRequest, "invalid_input", "destino no puede quedar vacío")
			return
		}
		mapeo.Destino = trimmed
	}
	if req.Activo != nil {
		mapeo.Activo = *req.Activo
	}

	if err := s.store.UpdateMapeo(r.Context(), mapeo); err != nil {
		if errors.Is(err, store.ErrMapeoNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "mapeo no encontrado")
			return
		}
		s.logger.Error("update mapeo", "mapeo_id", mapeoID, "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "no se pudo actualizar el mapeo")
		return
	}
	writeJSON(w, http.StatusOK, mapeoToResponse(mapeo))
}

func (s *Server) handleDeleteMapeo(w http.ResponseWriter, r *http.Request) {
	mapeoID := chi.URLParam(r, "mapeoID")
	if err := s.store.DeleteMapeo(r.Context(), mapeoID); err != nil {
		if errors.Is(err, store.ErrMapeoNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "mapeo no encontrado")
		} else {
			s.logger.Error("delete mapeo", "mapeo_id", mapeoID, "err", err)
			writeError(w, http.StatusInternalServerError, "internal_error", "no se pudo eliminar el mapeo")
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCreateColumna(w http.ResponseWriter, r *http.Request) {
	mapeoID := chi.URLParam(r, "mapeoID")
	if _, err := s.store.GetMapeo(r.Context(), mapeoID); err != nil {
		if errors.Is(err, store.ErrMapeoNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "mapeo no encontrado")
		} else {
			s.logger.Error("get mapeo for columna", "mapeo_id", mapeoID, "err", err)
			writeError(w, http.StatusInternalServerError, "internal_error", "no se pudo consultar el mapeo")
		}
		return
	}

	var req createColumnaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "cuerpo JSON inválido")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
		return
	}

	columna := &schedule.Columna{
		ID:        schedule.NewID(),
		MapeoID:   mapeoID,
		Nombre:    strings.TrimSpace(req.Nombre),
		Tipo:      req.Tipo,
		Requerida: req.Requerida,
		Regla:     req.Regla,
		Posicion:  req.Posicion,
	}
	if err := s.store.InsertColumna(r.Context(), columna); err != nil {
		s.logger.Error("insert columna", "mapeo_id", mapeoID, "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "no se pudo crear la columna")
		return
	}
	writeJSON(w, http.StatusCreated, columnaToResponse(columna))
}

func (s *Server) handleListColumnas(w http.ResponseWriter, r *http.Request) {
	mapeoID := chi.URLParam(r, "mapeoID")
	if _, err := s.store.GetMapeo(r.Context(), mapeoID); err != nil {
		if errors.Is(err, store.ErrMapeoNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "mapeo no encontrado")
		} else {
			s.logger.Error("get mapeo for columnas list", "mapeo_id", mapeoID, "err", err)
			writeError(w, http.StatusInternalServerError, "internal_error", "no se pudo consultar el mapeo")
		}
		return
	}

	columnas, err := s.store.ListColumnas(r.Context(), mapeoID)
	if err != nil {
		s.logger.Error("list columnas", "mapeo_id", mapeoID, "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "no se pudieron listar las columnas")
		return
	}
	res := make([]columnaResponse, 0, len(columnas))
	for _, c := range columnas {
		res = append(res, columnaToResponse(c))
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleUpdateColumna(w http.ResponseWriter, r *http.Request) {
	columnaID := chi.URLParam(r, "columnaID")
	columna, err := s.store.GetColumna(r.Context(), columnaID)
	if err != nil {
		if errors.Is(err, store.ErrColumnaNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "columna no encontrada")
		} else {
			s.logger.Error("get columna for update", "columna_id", columnaID, "err", err)
			writeError(w, http.StatusInternalServerError, "internal_error", "no se pudo consultar la columna")
		}
		return
	}

	var req updateColumnaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "cuerpo JSON inválido")
		return
	}
	if req.Nombre != nil {
		trimmed := strings.TrimSpace(*req.Nombre)
		if trimmed == "" {
			writeError(w, http.StatusBadRequest, "invalid_input", "nombre no puede quedar vacío")
			return
		}
		columna.Nombre = trimmed
	}
	if req.Tipo != nil {
		switch *req.Tipo {
		case "texto", "numero", "fecha", "booleano":
			columna.Tipo = *req.Tipo
		default:
			writeError(w, http.StatusBadRequest, "invalid_input", "tipo debe ser texto, numero, fecha o booleano")
			return
		}
	}
	if req.Requerida != nil {
		columna.Requerida = *req.Requerida
	}
	if req.Regla != nil {
		if *req.Regla == "" {
			columna.Regla = nil
		} else {
			columna.Regla = req.Regla
		}
	}
	if req.Posicion != nil {
		if *req.Posicion < 0 {
			writeError(w, http.StatusBadRequest, "invalid_input", "posicion debe ser no negativa")
			return
		}
		columna.Posicion = *req.Posicion
	}

	if err := s.store.UpdateColumna(r.Context(), columna); err != nil {
		if errors.Is(err, store.ErrColumnaNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "columna no encontrada")
			return
		}
		s.logger.Error("update columna", "columna_id", columnaID, "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "no se pudo actualizar la columna")
		return
	}
	writeJSON(w, http.StatusOK, columnaToResponse(columna))
}

func (s *Server) handleDeleteColumna(w http.ResponseWriter, r *http.Request) {
	columnaID := chi.URLParam(r, "columnaID")
	if err := s.store.DeleteColumna(r.Context(), columnaID); err != nil {
		if errors.Is(err, store.ErrColumnaNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "columna no encontrada")
		} else {
			s.logger.Error("delete columna", "columna_id", columnaID, "err", err)
			writeError(w, http.StatusInternalServerError, "internal_error", "no se pudo eliminar la columna")
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func mapeoToResponse(mapeo *schedule.Mapeo) mapeoResponse {
	return mapeoResponse{
		ID:                mapeo.ID,
		Nombre:            mapeo.Nombre,
		Origen:            mapeo.Origen,
		Destino:           mapeo.Destino,
		Activo:            mapeo.Activo,
		FechaCreacion:     mapeo.CreadoEn.UTC().Format(time.RFC3339),
		FechaModificacion: mapeo.ModificadoEn.UTC().Format(time.RFC3339),
	}
}

func columnaToResponse(columna *schedule.Columna) columnaResponse {
	return columnaResponse{
		ID:        columna.ID,
		IDMapeo:   columna.MapeoID,
		Nombre:    columna.Nombre,
		Tipo:      columna.Tipo,
		Requerida: columna.Requerida,
		Regla:     columna.Regla,
		Posicion:  columna.Posicion,
	}
}
