package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	core "github.com/museworks/museflow/internal/agent/core"
	"github.com/museworks/museflow/internal/store"
)

// AgentHandler runs and reads workflow search runs for a project.
type AgentHandler struct {
	Store  *store.Store
	Engine *core.Engine
}

func (h *AgentHandler) Register(g *echo.Group) {
	g.POST("/:id/search", h.search)
	g.GET("/:id/search", h.results)
	g.POST("/:id/searches", h.createSavedSearch)
}

// search runs the planning workflow for a query. Mode "create" (default)
// starts a fresh thread and clears prior results; "append" resumes an
// existing thread id.
func (h *AgentHandler) search(c echo.Context) error {
	var req AgentSearchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.Query) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query is required")
	}
	ctx := c.Request().Context()
	projectID := c.Param("id")
	if _, ok, err := h.Store.GetProject(ctx, projectID, userID(c)); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	} else if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "project not found")
	}

	threadID := req.ThreadID
	switch req.Mode {
	case "", "create":
		threadID = uuid.NewString()
		if err := h.Store.DeleteAgentResults(ctx, projectID); err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	case "append":
		if threadID == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "thread_id required for append mode")
		}
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "mode must be create or append")
	}

	if _, err := h.Store.AppendAgentResult(ctx, projectID, threadID, "user", req.Query); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	final, err := h.Engine.Run(ctx, core.PlanState{InitialRequest: req.Query}, threadID)
	if err != nil {
		agentRunsTotal.WithLabelValues("failed").Inc()
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	agentRunsTotal.WithLabelValues("succeeded").Inc()
	for _, s := range final.PlanSteps {
		agentStepsTotal.WithLabelValues(string(s.Status)).Inc()
	}

	summary := ""
	if final.FinalSummary != nil {
		summary = final.FinalSummary.TextSummary
	}
	if _, err := h.Store.AppendAgentResult(ctx, projectID, threadID, "assistant", summary); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if final.FinalSummary != nil && len(final.FinalSummary.References) > 0 {
		if refs, err := json.Marshal(final.FinalSummary.References); err == nil {
			if _, err := h.Store.AppendAgentResult(ctx, projectID, threadID, "references", string(refs)); err != nil {
				c.Logger().Errorf("persist references: %v", err)
			}
		}
	}

	return c.JSON(http.StatusOK, map[string]any{
		"thread_id": threadID,
		"state":     final,
	})
}

func (h *AgentHandler) results(c echo.Context) error {
	ctx := c.Request().Context()
	projectID := c.Param("id")
	if _, ok, err := h.Store.GetProject(ctx, projectID, userID(c)); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	} else if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "project not found")
	}
	results, err := h.Store.ListAgentResults(ctx, projectID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, results)
}

func (h *AgentHandler) createSavedSearch(c echo.Context) error {
	var req SavedSearchCreateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.Query) == "" || strings.TrimSpace(req.CronExpr) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query and cron_expr are required")
	}
	ctx := c.Request().Context()
	projectID := c.Param("id")
	if _, ok, err := h.Store.GetProject(ctx, projectID, userID(c)); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	} else if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "project not found")
	}
	id, err := h.Store.CreateSavedSearch(ctx, projectID, userID(c), req.Query, req.CronExpr)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, map[string]string{"id": id})
}
