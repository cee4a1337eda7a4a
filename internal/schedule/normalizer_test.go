package schedule

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testNormalizer() *Normalizer {
	return NewNormalizer(slog.Default())
}

func TestNormalizeGroupsByKey(t *testing.T) {
	rows := []RawRow{
		{
			"idTarea":       "501",
			"idLineaNegocio": float64(1),
			"idMapeo":       float64(77),
			"codigoTipoTarea": "CAG",
			"modoEjecucion": "Automatica",
			"activo":        true,
			"horarios": []any{
				map[string]any{"idHorario": "9001", "dia": "Lunes", "hora": "22:00", "activo": true},
			},
		},
		{
			"idTarea":       "502",
			"idLineaNegocio": float64(1),
			"idMapeo":       float64(77),
			"codigoTipoTarea": "VLD",
			"modoEjecucion": "Manual",
			"activo":        false,
			"horarios": []any{
				map[string]any{"idHorario": "9002", "dia": "Martes", "hora": float64(800), "activo": true},
			},
		},
	}

	groups := testNormalizer().Normalize(rows)
	require.Len(t, groups, 1)

	group := groups[0]
	assert.Equal(t, "1", group.LineaID)
	assert.Equal(t, "77", group.MapeoID)
	assert.True(t, group.Activo)

	carga := group.Stage(StageCarga)
	assert.Equal(t, "501", carga.TareaID)
	assert.Equal(t, ModeAutomatica, carga.Modo)
	require.Len(t, carga.Slots, 1)
	assert.Equal(t, Slot{Dia: "Lunes", Hora: "22:00", Activo: true, HorarioID: "9001"}, carga.Slots[0])

	validacion := group.Stage(StageValidacion)
	assert.Equal(t, "502", validacion.TareaID)
	assert.Equal(t, ModeManual, validacion.Modo)
	require.Len(t, validacion.Slots, 1)
	assert.Equal(t, "08:00", validacion.Slots[0].Hora)

	// Send never appeared, stays unconfigured.
	envio := group.Stage(StageEnvio)
	assert.Empty(t, envio.Slots)
	assert.Equal(t, ModeAutomatica, envio.Modo)
}

func TestNormalizeOrderInsensitive(t *testing.T) {
	base := func() []RawRow {
		return []RawRow{
			{"idTarea": "1", "idLinea": "9", "idMapeo": "4", "idTipoTarea": float64(1), "horarios": []any{map[string]any{"dia": "Lunes", "hora": "06:00"}}},
			{"idTarea": "2", "idLinea": "9", "idMapeo": "4", "idTipoTarea": float64(2), "horarios": []any{map[string]any{"dia": "Martes", "hora": "06:00"}}},
			{"idTarea": "3", "idLinea": "9", "idMapeo": "4", "idTipoTarea": float64(3), "horarios": []any{map[string]any{"dia": "Jueves", "hora": "06:00"}}},
		}
	}
	forward := testNormalizer().Normalize(base())
	rows := base()
	rows[0], rows[2] = rows[2], rows[0]
	reversed := testNormalizer().Normalize(rows)

	require.Len(t, forward, 1)
	require.Len(t, reversed, 1)
	for _, stage := range Stages() {
		assert.Equal(t, forward[0].Stage(stage).TareaID, reversed[0].Stage(stage).TareaID, stage.Nombre())
		assert.Equal(t, forward[0].Stage(stage).Slots, reversed[0].Stage(stage).Slots, stage.Nombre())
	}
}

func TestNormalizeStagePrecedence(t *testing.T) {
	// Explicit type id beats the code, the code beats the name.
	row := RawRow{
		"idTarea":         "7",
		"idLinea":         "1",
		"idMapeo":         "5",
		"idTipoTarea":     float64(3),
		"codigoTipoTarea": "CAG",
		"tipoTarea":       "Validación",
	}
	stage, rule, ok := resolveStage(row, 0)
	require.True(t, ok)
	assert.Equal(t, StageEnvio, stage)
	assert.Equal(t, "tipo-tarea-id", rule)

	delete(row, "idTipoTarea")
	stage, rule, ok = resolveStage(row, 0)
	require.True(t, ok)
	assert.Equal(t, StageCarga, stage)
	assert.Equal(t, "codigo", rule)

	delete(row, "codigoTipoTarea")
	stage, rule, ok = resolveStage(row, 0)
	require.True(t, ok)
	assert.Equal(t, StageValidacion, stage)
	assert.Equal(t, "nombre", rule)

	delete(row, "tipoTarea")
	stage, rule, ok = resolveStage(row, 1)
	require.True(t, ok)
	assert.Equal(t, StageValidacion, stage)
	assert.Equal(t, "posicion", rule)
}

func TestNormalizeStageFromNestedHorarioType(t *testing.T) {
	row := RawRow{
		"idTarea": "7",
		"idLinea": "1",
		"idMapeo": "5",
		"horarios": []any{
			map[string]any{"idTipoTarea": float64(2), "dia": "Martes", "hora": "08:00"},
		},
	}
	stage, rule, ok := resolveStage(row, 0)
	require.True(t, ok)
	assert.Equal(t, StageValidacion, stage)
	assert.Equal(t, "horario-tipo-id", rule)
}

func TestNormalizeLegacyFlatFields(t *testing.T) {
	rows := []RawRow{
		{
			"idTarea":        "88",
			"idLinea":        "2",
			"idMapeo":        "10",
			"idTipoTarea":    float64(1),
			"diaCarga":       "lunes",
			"horaCarga":      float64(2200),
			"diaValidacion":  "2026-08-25", // a Tuesday
			"horaValidacion": "08:00",
		},
	}
	groups := testNormalizer().Normalize(rows)
	require.Len(t, groups, 1)

	carga := groups[0].Stage(StageCarga)
	require.Len(t, carga.Slots, 1)
	assert.Equal(t, Slot{Dia: "Lunes", Hora: "22:00", Activo: true}, carga.Slots[0])

	validacion := groups[0].Stage(StageValidacion)
	require.Len(t, validacion.Slots, 1)
	assert.Equal(t, Slot{Dia: "Martes", Hora: "08:00", Activo: true}, validacion.Slots[0])

	assert.Empty(t, groups[0].Stage(StageEnvio).Slots)
}

func TestNormalizeDropsUnresolvableSlots(t *testing.T) {
	rows := []RawRow{
		{
			"idTarea":     "3",
			"idLinea":     "1",
			"idMapeo":     "2",
			"idTipoTarea": float64(1),
			"horarios": []any{
				map[string]any{"dia": "Lunes"},                      // no hour
				map[string]any{"hora": "10:00"},                     // no day
				map[string]any{"dia": "Sábado", "hora": "10:00"},    // weekend
				map[string]any{"idDia": float64(4), "hora": "10:15"}, // ok
			},
		},
	}
	groups := testNormalizer().Normalize(rows)
	require.Len(t, groups, 1)
	slots := groups[0].Stage(StageCarga).Slots
	require.Len(t, slots, 1)
	assert.Equal(t, "Jueves", slots[0].Dia)
	assert.Equal(t, "10:15", slots[0].Hora)
}

func TestNormalizeMergesMetadata(t *testing.T) {
	rows := []RawRow{
		{"idTarea": "1", "idLinea": "1", "idMapeo": "2", "idTipoTarea": float64(1), "activo": false,
			"fechaCreacion": "2026-02-01T10:00:00Z", "fechaModificacion": "2026-03-01T10:00:00Z"},
		{"idTarea": "2", "idLinea": "1", "idMapeo": "2", "idTipoTarea": float64(2), "activo": true,
			"fechaCreacion": "2026-01-15T10:00:00Z", "fechaModificacion": "2026-02-10T10:00:00Z"},
	}
	groups := testNormalizer().Normalize(rows)
	require.Len(t, groups, 1)
	assert.True(t, groups[0].Activo)
	assert.Equal(t, "2026-01-15T10:00:00Z", groups[0].CreadoEn)
	assert.Equal(t, "2026-03-01T10:00:00Z", groups[0].ModificadoEn)
}

func TestGroupKeyFallbacks(t *testing.T) {
	withMapeo := RawRow{"idLinea": "1", "idMapeo": "7", "idTarea": "50"}
	assert.Equal(t, "1||7", groupKey(withMapeo))

	withCampania := RawRow{"idLinea": "1", "idCampania": "3", "idMapeo": "7"}
	assert.Equal(t, "1|3|7", groupKey(withCampania))

	withoutMapeo := RawRow{"idLinea": "1", "idTarea": "50"}
	assert.Equal(t, "1||50", groupKey(withoutMapeo))

	nameOnly := RawRow{"idLinea": "1", "nombreMapeo": "ventas-diarias"}
	assert.Equal(t, "1||ventas-diarias", groupKey(nameOnly))
}

func TestResolveExecutionMode(t *testing.T) {
	tests := []struct {
		name     string
		raw      any
		expected ExecutionMode
	}{
		{name: "id_automatica", raw: 1, expected: ModeAutomatica},
		{name: "id_manual_float", raw: float64(2), expected: ModeManual},
		{name: "codigo_hibrida", raw: "HIB", expected: ModeHibrida},
		{name: "texto_acentuado", raw: "automática", expected: ModeAutomatica},
		{name: "texto_manual", raw: "Manual", expected: ModeManual},
		{name: "desconocido", raw: "programada", expected: ModeAutomatica},
		{name: "nil", raw: nil, expected: ModeAutomatica},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ResolveExecutionMode(tt.raw))
		})
	}
}
