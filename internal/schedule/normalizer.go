package schedule

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"ingestadmin/internal/catalog"
)

// RawRow is one backend task row as decoded from JSON. Rows arrive in
// several legacy shapes; the extraction rules below try them in a fixed,
// auditable order.
type RawRow = map[string]any

// fieldRule is one named extraction attempt for a logical field. Rules for
// the same field run in order; the first hit wins.
type fieldRule struct {
	name    string
	extract func(row RawRow) (string, bool)
}

func firstString(keys ...string) func(RawRow) (string, bool) {
	return func(row RawRow) (string, bool) {
		return rawString(row, keys...)
	}
}

var (
	lineaRules = []fieldRule{
		{name: "id-linea-negocio", extract: firstString("idLineaNegocio", "lineaNegocioId")},
		{name: "id-linea-corto", extract: firstString("idLinea", "linea")},
	}
	campaniaRules = []fieldRule{
		{name: "id-campania", extract: firstString("idCampania", "campaniaId", "idCampana")},
	}
	mapeoIDRules = []fieldRule{
		{name: "id-mapeo", extract: firstString("idMapeo", "mapeoId")},
		{name: "id-ingesta", extract: firstString("idIngesta", "ingestaId")},
	}
	mapeoNombreRules = []fieldRule{
		{name: "nombre-mapeo", extract: firstString("nombreMapeo", "mapeo")},
		{name: "nombre-ingesta", extract: firstString("nombreIngesta", "ingesta")},
	}
	tareaIDRules = []fieldRule{
		{name: "id-tarea", extract: firstString("idTarea", "tareaId")},
		{name: "id-generico", extract: firstString("id")},
	}
	creadoRules = []fieldRule{
		{name: "fecha-creacion", extract: firstString("fechaCreacion", "creadoEn", "fechaAlta")},
	}
	modificadoRules = []fieldRule{
		{name: "fecha-modificacion", extract: firstString("fechaModificacion", "modificadoEn", "fechaUltimaModificacion")},
	}
)

// stageRule resolves the pipeline stage of a raw row. ordinal is the row's
// position inside its group, used only by the final positional fallback for
// legacy payloads that omit stage typing altogether.
type stageRule struct {
	name    string
	resolve func(row RawRow, ordinal int) (Stage, bool)
}

var stageRules = []stageRule{
	{
		name: "tipo-tarea-id",
		resolve: func(row RawRow, _ int) (Stage, bool) {
			if id, ok := rawInt(row, "idTipoTarea", "tipoTareaId", "idTipo"); ok {
				return StageFromID(id)
			}
			return 0, false
		},
	},
	{
		name: "horario-tipo-id",
		resolve: func(row RawRow, _ int) (Stage, bool) {
			for _, entry := range rawEntries(row, "horarios", "tareaHorarios", "detalleHorarios") {
				if id, ok := rawInt(entry, "idTipoTarea", "tipoTareaId"); ok {
					return StageFromID(id)
				}
			}
			return 0, false
		},
	},
	{
		name: "codigo",
		resolve: func(row RawRow, _ int) (Stage, bool) {
			if code, ok := rawString(row, "codigoTipoTarea", "codigo"); ok {
				return StageFromCode(code)
			}
			return 0, false
		},
	},
	{
		name: "nombre",
		resolve: func(row RawRow, _ int) (Stage, bool) {
			if name, ok := rawString(row, "tipoTarea", "nombreTipoTarea", "tipo"); ok {
				return StageFromName(name)
			}
			return 0, false
		},
	},
	{
		// Some legacy payloads rely purely on list order. Fragile when
		// the caller sends rows out of order; the normalizer warns but
		// does not second-guess the order.
		name: "posicion",
		resolve: func(_ RawRow, ordinal int) (Stage, bool) {
			return StageFromID(ordinal + 1)
		},
	},
}

// Normalizer groups flat backend task rows into TaskGroups with populated
// stage configurations.
type Normalizer struct {
	logger *slog.Logger
}

func NewNormalizer(logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{logger: logger}
}

// Normalize converts raw task rows into one TaskGroup per distinct grouping
// key. Rows that cannot be placed (no resolvable stage) are dropped with a
// warning; a group with unparseable data renders as unconfigured rather than
// failing the whole list. Output order follows first appearance of each key.
func (n *Normalizer) Normalize(rows []RawRow) []*TaskGroup {
	groups := make(map[string]*TaskGroup)
	ordinals := make(map[string]int)
	var order []string

	for _, row := range rows {
		key := groupKey(row)
		group, ok := groups[key]
		if !ok {
			group = NewTaskGroup(key)
			group.LineaID = applyRules(row, lineaRules)
			group.CampaniaID = applyRules(row, campaniaRules)
			group.MapeoID = applyRules(row, mapeoIDRules)
			group.MapeoNombre = applyRules(row, mapeoNombreRules)
			groups[key] = group
			order = append(order, key)
		}
		ordinal := ordinals[key]
		ordinals[key] = ordinal + 1

		n.mergeMetadata(group, row)

		stage, rule, ok := resolveStage(row, ordinal)
		if !ok {
			n.logger.Warn("tarea sin etapa resoluble, fila descartada", "clave", key, "posicion", ordinal)
			continue
		}
		if rule == "posicion" {
			n.logger.Warn("etapa asignada por posición de lista, el payload no trae tipo de tarea", "clave", key, "etapa", stage.Nombre())
		}
		n.attachStage(group, stage, row)
	}

	out := make([]*TaskGroup, 0, len(order))
	for _, key := range order {
		out = append(out, groups[key])
	}
	return out
}

func resolveStage(row RawRow, ordinal int) (Stage, string, bool) {
	for _, rule := range stageRules {
		if stage, ok := rule.resolve(row, ordinal); ok {
			return stage, rule.name, true
		}
	}
	return 0, "", false
}

// groupKey identifies "same TaskGroup, different stage": business line plus
// campaign (when present) plus the mapping id, falling back to the task-row
// id and then the mapping display name.
func groupKey(row RawRow) string {
	linea := applyRules(row, lineaRules)
	campania := applyRules(row, campaniaRules)
	mapeo := applyRules(row, mapeoIDRules)
	if mapeo == "" {
		mapeo = applyRules(row, tareaIDRules)
	}
	if mapeo == "" {
		mapeo = applyRules(row, mapeoNombreRules)
	}
	return linea + "|" + campania + "|" + mapeo
}

func (n *Normalizer) mergeMetadata(group *TaskGroup, row RawRow) {
	if activo, ok := rawBool(row, "activo", "estado", "habilitado"); ok && activo {
		group.Activo = true
	}
	if raw := applyRules(row, creadoRules); raw != "" {
		group.CreadoEn = mergeTimestamp(group.CreadoEn, raw, false)
	}
	if raw := applyRules(row, modificadoRules); raw != "" {
		group.ModificadoEn = mergeTimestamp(group.ModificadoEn, raw, true)
	}
}

func (n *Normalizer) attachStage(group *TaskGroup, stage Stage, row RawRow) {
	cfg := group.Stage(stage)
	if id := applyRules(row, tareaIDRules); id != "" {
		cfg.TareaID = id
	}
	cfg.Modo = resolveRowMode(row)

	entries := rawEntries(row, "horarios", "tareaHorarios", "detalleHorarios")
	if len(entries) == 0 {
		n.attachLegacyFlatSlots(group, row)
		return
	}
	for _, entry := range entries {
		slot, ok := slotFromEntry(entry)
		if !ok {
			continue
		}
		cfg.Slots = append(cfg.Slots, slot)
	}
}

// attachLegacyFlatSlots synthesizes one slot per populated flat
// día/hora pair; each pair belongs to its named stage regardless of the
// row's own stage.
func (n *Normalizer) attachLegacyFlatSlots(group *TaskGroup, row RawRow) {
	flat := []struct {
		stage   Stage
		diaKey  string
		horaKey string
	}{
		{StageCarga, "diaCarga", "horaCarga"},
		{StageValidacion, "diaValidacion", "horaValidacion"},
		{StageEnvio, "diaEnvio", "horaEnvio"},
	}
	for _, f := range flat {
		dia := resolveDay(row, f.diaKey)
		hora := ""
		if raw, ok := row[f.horaKey]; ok {
			hora = catalog.ToHourLabel(raw)
		}
		slot := Slot{Dia: dia, Hora: hora, Activo: true}
		if !slot.Complete() {
			continue
		}
		group.Stage(f.stage).Slots = append(group.Stage(f.stage).Slots, slot)
	}
}

func resolveRowMode(row RawRow) ExecutionMode {
	if id, ok := rawInt(row, "idModoEjecucion", "modoEjecucionId"); ok {
		return ResolveExecutionMode(id)
	}
	if text, ok := rawString(row, "codigoModoEjecucion", "modoEjecucion", "modo"); ok {
		return ResolveExecutionMode(text)
	}
	return ModeAutomatica
}

func slotFromEntry(entry RawRow) (Slot, bool) {
	slot := Slot{Activo: true}
	for _, key := range []string{"dia", "nombreDia", "idDia", "diaId", "fecha"} {
		if slot.Dia = resolveDay(entry, key); slot.Dia != "" {
			break
		}
	}
	for _, key := range []string{"hora", "horaEjecucion"} {
		if raw, ok := entry[key]; ok {
			if slot.Hora = catalog.ToHourLabel(raw); slot.Hora != "" {
				break
			}
		}
	}
	if !slot.Complete() {
		return Slot{}, false
	}
	if activo, ok := rawBool(entry, "activo", "estado"); ok {
		slot.Activo = activo
	}
	if id, ok := rawString(entry, "idHorario", "horarioId", "id"); ok {
		slot.HorarioID = id
	}
	return slot, true
}

// resolveDay handles day values that arrive as names, ISO dates or numeric
// catalog ids under a single key.
func resolveDay(row RawRow, key string) string {
	raw, ok := row[key]
	if !ok {
		return ""
	}
	switch v := raw.(type) {
	case string:
		return catalog.NormalizeWeekday(v)
	case float64:
		return catalog.WeekdayFromID(int(v))
	case int:
		return catalog.WeekdayFromID(v)
	}
	return ""
}

func applyRules(row RawRow, rules []fieldRule) string {
	for _, rule := range rules {
		if value, ok := rule.extract(row); ok {
			return value
		}
	}
	return ""
}

// mergeTimestamp keeps the minimum (or maximum, for latest=true) of the
// current and candidate timestamps. Unparseable candidates only fill an
// empty field.
func mergeTimestamp(current, candidate string, latest bool) string {
	cand, candOK := parseTimestamp(candidate)
	if current == "" {
		if candOK {
			return cand.Format(time.RFC3339)
		}
		return candidate
	}
	cur, curOK := parseTimestamp(current)
	if !candOK {
		return current
	}
	if !curOK {
		return cand.Format(time.RFC3339)
	}
	if (latest && cand.After(cur)) || (!latest && cand.Before(cur)) {
		return cand.Format(time.RFC3339)
	}
	return current
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTimestamp(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func rawString(row RawRow, keys ...string) (string, bool) {
	for _, key := range keys {
		raw, ok := row[key]
		if !ok {
			continue
		}
		switch v := raw.(type) {
		case string:
			if trimmed := strings.TrimSpace(v); trimmed != "" {
				return trimmed, true
			}
		case float64:
			if v == float64(int64(v)) {
				return strconv.FormatInt(int64(v), 10), true
			}
			return fmt.Sprintf("%v", v), true
		case int:
			return strconv.Itoa(v), true
		case int64:
			return strconv.FormatInt(v, 10), true
		}
	}
	return "", false
}

func rawInt(row RawRow, keys ...string) (int, bool) {
	for _, key := range keys {
		raw, ok := row[key]
		if !ok {
			continue
		}
		switch v := raw.(type) {
		case float64:
			if v == float64(int(v)) {
				return int(v), true
			}
		case int:
			return v, true
		case int64:
			return int(v), true
		case string:
			if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				return parsed, true
			}
		}
	}
	return 0, false
}

func rawBool(row RawRow, keys ...string) (bool, bool) {
	for _, key := range keys {
		raw, ok := row[key]
		if !ok {
			continue
		}
		switch v := raw.(type) {
		case bool:
			return v, true
		case float64:
			return v != 0, true
		case int:
			return v != 0, true
		case string:
			switch catalog.Fold(v) {
			case "true", "1", "si", "activo", "activa":
				return true, true
			case "false", "0", "no", "inactivo", "inactiva":
				return false, true
			}
		}
	}
	return false, false
}

func rawEntries(row RawRow, keys ...string) []RawRow {
	for _, key := range keys {
		raw, ok := row[key]
		if !ok {
			continue
		}
		list, ok := raw.([]any)
		if !ok {
			continue
		}
		var out []RawRow
		for _, item := range list {
			if entry, ok := item.(map[string]any); ok {
				out = append(out, entry)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return nil
}
