package api

import (
	"testing"

	"ingestadmin/internal/schedule"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveStageParam(t *testing.T) {
	tests := []struct {
		raw  string
		want schedule.Stage
	}{
		{"CAG", schedule.StageCarga},
		{"vld", schedule.StageValidacion},
		{"Envío", schedule.StageEnvio},
		{"envio", schedule.StageEnvio},
		{"2", schedule.StageValidacion},
	}
	for _, tt := range tests {
		got, err := resolveStageParam(tt.raw)
		require.NoError(t, err, tt.raw)
		assert.Equal(t, tt.want, got, tt.raw)
	}

	_, err := resolveStageParam("limpieza")
	require.Error(t, err)
	_, err = resolveStageParam("7")
	require.Error(t, err)
}

func TestBuildDesiredGroupNormalizesSlots(t *testing.T) {
	s := &Server{}
	req := guardarRequest{
		IDLineaNegocio: "L1",
		IDCampania:     "C9",
		Etapas: []stageInput{
			{
				Etapa: "CAG",
				Modo:  "Automática",
				Horarios: []slotInput{
					{Dia: "lunes", Hora: "8:00", Activo: true},
					{Dia: "MIÉRCOLES", Hora: "16:30", Activo: false, IDHorario: "h7"},
				},
			},
		},
	}

	group, err := s.buildDesiredGroup(req)
	require.NoError(t, err)
	assert.Equal(t, "L1", group.LineaID)
	assert.Equal(t, "C9", group.CampaniaID)

	cfg := group.Stage(schedule.StageCarga)
	assert.Equal(t, schedule.ModeAutomatica, cfg.Modo)
	require.Len(t, cfg.Slots, 2)
	assert.Equal(t, schedule.Slot{Dia: "Lunes", Hora: "08:00", Activo: true}, cfg.Slots[0])
	assert.Equal(t, schedule.Slot{Dia: "Miércoles", Hora: "16:30", Activo: false, HorarioID: "h7"}, cfg.Slots[1])
}

func TestBuildDesiredGroupRejectsUnknownDay(t *testing.T) {
	s := &Server{}
	req := guardarRequest{
		IDLineaNegocio: "L1",
		Etapas: []stageInput{
			{
				Etapa:    "CAG",
				Horarios: []slotInput{{Dia: "Domingo", Hora: "08:00", Activo: true}},
			},
		},
	}
	_, err := s.buildDesiredGroup(req)
	require.Error(t, err)
}

func TestGroupToResponseReportsReadiness(t *testing.T) {
	group := schedule.NewTaskGroup("L1||M1")
	res := groupToResponse(group)
	assert.False(t, res.ListoParaEjecutar)
	require.Len(t, res.Etapas, 3)
	assert.Equal(t, "CAG", res.Etapas[0].Etapa)

	cfg := group.Stage(schedule.StageCarga)
	cfg.Slots = append(cfg.Slots, schedule.Slot{Dia: "Lunes", Hora: "08:00", Activo: true})
	res = groupToResponse(group)
	assert.True(t, res.ListoParaEjecutar)
}

func TestGroupToResponseKeepsInactiveCargaState(t *testing.T) {
	// Listing is read-only: a group whose Carga slots are all deactivated
	// while Validación still holds active persisted slots must come back
	// exactly as stored, not cascaded away.
	group := schedule.NewTaskGroup("L1||M1")
	group.Stage(schedule.StageCarga).TareaID = "501"
	group.Stage(schedule.StageCarga).Slots = []schedule.Slot{
		{Dia: "Lunes", Hora: "22:00", Activo: false, HorarioID: "9001"},
	}
	group.Stage(schedule.StageValidacion).TareaID = "502"
	group.Stage(schedule.StageValidacion).Slots = []schedule.Slot{
		{Dia: "Martes", Hora: "08:00", Activo: true, HorarioID: "9002"},
	}

	res := groupToResponse(group)

	require.Len(t, res.Etapas, 3)
	require.Len(t, res.Etapas[1].Horarios, 1)
	assert.Equal(t, "9002", res.Etapas[1].Horarios[0].HorarioID)
	assert.True(t, res.Etapas[1].Horarios[0].Activo)

	require.Len(t, group.Stage(schedule.StageValidacion).Slots, 1)
	require.Len(t, group.Stage(schedule.StageCarga).Slots, 1)
}
