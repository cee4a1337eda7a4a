// Package mcp exposes the schedule administration surface as MCP tools, over
// stdio or mounted into the HTTP server.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"ingestadmin/internal/catalog"
	"ingestadmin/internal/gateway"
	"ingestadmin/internal/schedule"
	"ingestadmin/internal/store"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// MCPServer represents the MCP server that handles protocol communication.
type MCPServer struct {
	store      *store.Store
	gw         gateway.Gateway
	normalizer *schedule.Normalizer
	logger     *slog.Logger

	inner *server.MCPServer
}

// NewMCPServer creates a new MCP server instance.
func NewMCPServer(store *store.Store, gw gateway.Gateway, logger *slog.Logger) *MCPServer {
	s := &MCPServer{
		store:      store,
		gw:         gw,
		normalizer: schedule.NewNormalizer(logger),
		logger:     logger,
	}
	s.inner = server.NewMCPServer(
		"ingestadmin",
		"1.0.0",
		server.WithToolCapabilities(true),
	)
	s.registerTools()
	return s
}

// Run starts the MCP server using stdio transport.
func (s *MCPServer) Run() error {
	s.logger.Info("MCP server starting on stdio")
	return server.ServeStdio(s.inner)
}

// HTTPHandler returns the server mounted on the streamable HTTP transport.
func (s *MCPServer) HTTPHandler() http.Handler {
	return server.NewStreamableHTTPServer(s.inner)
}

// registerTools registers all available MCP tools.
func (s *MCPServer) registerTools() {
	// tareas_listar
	s.inner.AddTool(mcp.NewTool("tareas_listar",
		mcp.WithDescription("Lista los grupos de tareas de ingesta con sus etapas y horarios"),
		mcp.WithString("linea",
			mcp.Description("Filtrar por línea de negocio"),
		),
		mcp.WithString("campania",
			mcp.Description("Filtrar por campaña"),
		),
	), s.handleListarTareas)

	// tareas_detalle
	s.inner.AddTool(mcp.NewTool("tareas_detalle",
		mcp.WithDescription("Muestra el detalle de un grupo de tareas: etapas, modos y horarios"),
		mcp.WithString("clave",
			mcp.Required(),
			mcp.Description("Clave del grupo (línea|campaña|mapeo) tal como la devuelve tareas_listar"),
		),
	), s.handleDetalleTarea)

	// horario_validar
	s.inner.AddTool(mcp.NewTool("horario_validar",
		mcp.WithDescription("Valida un horario candidato contra el estado actual de un grupo de tareas"),
		mcp.WithString("clave",
			mcp.Required(),
			mcp.Description("Clave del grupo"),
		),
		mcp.WithString("etapa",
			mcp.Required(),
			mcp.Description("Etapa destino: CAG, VLD o ENV"),
		),
		mcp.WithString("dia",
			mcp.Required(),
			mcp.Description("Día hábil, por ejemplo 'Lunes'"),
		),
		mcp.WithString("hora",
			mcp.Required(),
			mcp.Description("Hora en formato HH:MM"),
		),
	), s.handleValidarHorario)

	// plan_previsualizar
	s.inner.AddTool(mcp.NewTool("plan_previsualizar",
		mcp.WithDescription("Previsualiza los pasos que ejecutaría un guardado sin aplicarlos"),
		mcp.WithString("linea",
			mcp.Required(),
			mcp.Description("Línea de negocio del grupo"),
		),
		mcp.WithString("campania",
			mcp.Description("Campaña del grupo"),
		),
		mcp.WithString("etapas",
			mcp.Required(),
			mcp.Description(`Estado deseado como JSON, por ejemplo [{"etapa":"CAG","idTarea":"...","modoEjecucion":"Automatica","horarios":[{"dia":"Lunes","hora":"08:00","activo":true}]}]`),
		),
	), s.handlePrevisualizarPlan)

	// monitor_runs
	s.inner.AddTool(mcp.NewTool("monitor_runs",
		mcp.WithDescription("Consulta el historial de ejecuciones de las etapas"),
		mcp.WithString("tarea",
			mcp.Description("Filtrar por ID de tarea"),
		),
		mcp.WithString("etapa",
			mcp.Description("Filtrar por etapa: CAG, VLD o ENV"),
			mcp.Enum("CAG", "VLD", "ENV"),
		),
		mcp.WithString("estado",
			mcp.Description("Filtrar por estado de ejecución"),
			mcp.Enum("queued", "running", "succeeded", "failed", "skipped"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Cantidad de registros, por defecto 20"),
			mcp.Min(1),
			mcp.Max(100),
		),
	), s.handleMonitorRuns)

	s.logger.Info("MCP tools registered", "count", 5)
}

// handleListarTareas handles the tareas_listar tool call.
func (s *MCPServer) handleListarTareas(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	scope := gateway.Scope{
		LineaID:    mcp.ParseString(request, "linea", ""),
		CampaniaID: mcp.ParseString(request, "campania", ""),
	}
	groups, err := s.loadGroups(ctx, scope)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("no se pudieron consultar las tareas: %v", err)), nil
	}
	if len(groups) == 0 {
		return mcp.NewToolResultText("No se encontraron grupos de tareas"), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d grupos de tareas:\n\n", len(groups))
	for _, group := range groups {
		ready := "no listo"
		if schedule.NewConfigurator(group).ScheduleReady() {
			ready = "listo para ejecutar"
		}
		fmt.Fprintf(&b, "• %s (%s)\n", group.Key, ready)
		for _, stage := range schedule.Stages() {
			cfg := group.Stage(stage)
			if !cfg.Configured() {
				continue
			}
			fmt.Fprintf(&b, "  %s: %d horarios (%d activos), modo %s\n",
				stage.Nombre(), len(cfg.Slots), len(cfg.ActiveSlots()), cfg.Modo)
		}
	}
	return mcp.NewToolResultText(b.String()), nil
}

// handleDetalleTarea handles the tareas_detalle tool call.
func (s *MCPServer) handleDetalleTarea(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	clave := mcp.ParseString(request, "clave", "")
	group, err := s.findGroup(ctx, clave)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Grupo: %s\n", group.Key)
	if group.MapeoNombre != "" {
		fmt.Fprintf(&b, "Mapeo: %s\n", group.MapeoNombre)
	}
	configurator := schedule.NewConfigurator(group)
	if msg := configurator.OrderingViolation(); msg != "" {
		fmt.Fprintf(&b, "Advertencia: %s\n", msg)
	}
	for _, stage := range schedule.Stages() {
		cfg := group.Stage(stage)
		fmt.Fprintf(&b, "\n%s (modo %s):\n", stage.Nombre(), cfg.Modo)
		if len(cfg.Slots) == 0 {
			b.WriteString("  sin horarios\n")
			continue
		}
		for _, slot := range configurator.SlotViews(stage) {
			estado := "inactivo"
			if slot.Activo {
				estado = "activo"
			}
			fmt.Fprintf(&b, "  %s %s (%s)\n", slot.Dia, catalog.FormatTo12Hour(slot.Hora), estado)
		}
	}
	return mcp.NewToolResultText(b.String()), nil
}

// handleValidarHorario handles the horario_validar tool call.
func (s *MCPServer) handleValidarHorario(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	clave := mcp.ParseString(request, "clave", "")
	group, err := s.findGroup(ctx, clave)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	stage, ok := schedule.StageFromCode(mcp.ParseString(request, "etapa", ""))
	if !ok {
		return mcp.NewToolResultError("etapa desconocida, use CAG, VLD o ENV"), nil
	}
	dia := catalog.NormalizeWeekday(mcp.ParseString(request, "dia", ""))
	hora := catalog.ToHourLabel(mcp.ParseString(request, "hora", ""))

	configurator := schedule.NewConfigurator(group)
	if err := configurator.AddSlot(stage, dia, hora); err != nil {
		result := fmt.Sprintf("Rechazado: %v", err)
		if rec := configurator.Recomendacion(stage); rec != "" {
			result += fmt.Sprintf("\nRecomendación: %s", rec)
		}
		return mcp.NewToolResultText(result), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Aceptado: %s %s en etapa de %s",
		dia, catalog.FormatTo12Hour(hora), strings.ToLower(stage.Nombre()))), nil
}

// handlePrevisualizarPlan handles the plan_previsualizar tool call.
func (s *MCPServer) handlePrevisualizarPlan(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	linea := mcp.ParseString(request, "linea", "")
	campania := mcp.ParseString(request, "campania", "")

	var etapas []struct {
		Etapa    string `json:"etapa"`
		IDTarea  string `json:"idTarea"`
		Modo     string `json:"modoEjecucion"`
		Horarios []struct {
			Dia       string `json:"dia"`
			Hora      string `json:"hora"`
			Activo    bool   `json:"activo"`
			IDHorario string `json:"idHorario"`
		} `json:"horarios"`
	}
	if err := json.Unmarshal([]byte(mcp.ParseString(request, "etapas", "")), &etapas); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("etapas no es un JSON válido: %v", err)), nil
	}

	desired := schedule.NewTaskGroup(linea + "|" + campania + "|")
	desired.LineaID = linea
	desired.CampaniaID = campania
	existing := schedule.ExistingState{Stages: make(map[schedule.Stage]schedule.ExistingStage)}

	for _, in := range etapas {
		stage, ok := schedule.StageFromCode(in.Etapa)
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("etapa desconocida: %s", in.Etapa)), nil
		}
		cfg := desired.Stage(stage)
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
		if in.IDTarea == "" {
			continue
		}
		tarea, err := s.store.GetTarea(ctx, in.IDTarea)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("no se pudo consultar la tarea %s: %v", in.IDTarea, err)), nil
		}
		slots, err := s.gw.ListScheduleSlots(ctx, in.IDTarea)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("no se pudieron consultar los horarios de %s: %v", in.IDTarea, err)), nil
		}
		existing.Stages[stage] = schedule.ExistingStage{TareaID: in.IDTarea, Modo: tarea.Modo, Slots: slots}
	}

	if err := schedule.ValidateGroup(desired); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("estado deseado inválido: %v", err)), nil
	}

	ops := schedule.Diff(desired, existing)
	if len(ops) == 0 {
		return mcp.NewToolResultText("Sin cambios: no se ejecutaría ningún paso"), nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "El guardado ejecutaría %d pasos:\n", len(ops))
	for i, op := range ops {
		fmt.Fprintf(&b, "  %d. %s\n", i+1, op.Label)
	}
	return mcp.NewToolResultText(b.String()), nil
}

// handleMonitorRuns handles the monitor_runs tool call.
func (s *MCPServer) handleMonitorRuns(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filter := store.RunFilter{
		TareaID: mcp.ParseString(request, "tarea", ""),
		Limit:   int(mcp.ParseFloat64(request, "limit", 20)),
	}
	if raw := mcp.ParseString(request, "etapa", ""); raw != "" {
		stage, ok := schedule.StageFromCode(raw)
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("etapa desconocida: %s", raw)), nil
		}
		filter.Etapa = &stage
	}
	if raw := mcp.ParseString(request, "estado", ""); raw != "" {
		status := schedule.RunStatus(raw)
		filter.Status = &status
	}

	runs, err := s.store.ListRuns(ctx, filter)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("no se pudieron consultar las ejecuciones: %v", err)), nil
	}
	if len(runs) == 0 {
		return mcp.NewToolResultText("Sin ejecuciones registradas"), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d ejecuciones:\n\n", len(runs))
	for _, run := range runs {
		fmt.Fprintf(&b, "[%s] %s — etapa de %s, tarea %s\n",
			run.Status, run.ID, strings.ToLower(run.Etapa.Nombre()), run.TareaID)
		fmt.Fprintf(&b, "    programado: %s\n", run.ScheduledAt.UTC().Format(time.RFC3339))
		if run.StartedAt != nil {
			fmt.Fprintf(&b, "    inicio: %s\n", run.StartedAt.UTC().Format(time.RFC3339))
		}
		if run.EndedAt != nil {
			fmt.Fprintf(&b, "    fin: %s\n", run.EndedAt.UTC().Format(time.RFC3339))
		}
		if run.Error != nil {
			fmt.Fprintf(&b, "    error: %s\n", *run.Error)
		}
		b.WriteString("\n")
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (s *MCPServer) loadGroups(ctx context.Context, scope gateway.Scope) ([]*schedule.TaskGroup, error) {
	rows, err := s.gw.FetchRawTaskRows(ctx, scope)
	if err != nil {
		return nil, err
	}
	return s.normalizer.Normalize(rows), nil
}

func (s *MCPServer) findGroup(ctx context.Context, clave string) (*schedule.TaskGroup, error) {
	groups, err := s.loadGroups(ctx, gateway.Scope{})
	if err != nil {
		return nil, fmt.Errorf("no se pudieron consultar las tareas: %w", err)
	}
	for _, group := range groups {
		if group.Key == clave {
			return group, nil
		}
	}
	return nil, fmt.Errorf("grupo no encontrado: %s", clave)
}
