package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/museworks/museflow/internal/store"
	"github.com/museworks/museflow/provider"
)

type ProjectsHandler struct {
	Store *store.Store
	LLM   provider.Provider
}

func (h *ProjectsHandler) Register(g *echo.Group, secret []byte) {
	g.Use(withAuth(secret))
	g.POST("", h.create)
	g.GET("", h.list)
	g.GET("/:id", h.get)
	g.GET("/:id/plans", h.listPlans)
	g.POST("/:id/plans/recommend", h.recommendPlan)
	g.POST("/:id/plans/:planID/organize", h.organizePlan)
}

func (h *ProjectsHandler) create(c echo.Context) error {
	var req ProjectCreateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.Name) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name is required")
	}
	id, err := h.Store.CreateProject(c.Request().Context(), userID(c), req.Name, req.Description)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, map[string]string{"id": id})
}

func (h *ProjectsHandler) list(c echo.Context) error {
	projects, err := h.Store.ListProjects(c.Request().Context(), userID(c))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, projects)
}

func (h *ProjectsHandler) get(c echo.Context) error {
	p, ok, err := h.Store.GetProject(c.Request().Context(), c.Param("id"), userID(c))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "project not found")
	}
	return c.JSON(http.StatusOK, p)
}

func (h *ProjectsHandler) listPlans(c echo.Context) error {
	if err := h.requireProject(c); err != nil {
		return err
	}
	plans, err := h.Store.ListPlans(c.Request().Context(), c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, plans)
}

// planRecommendation is the shape the model is asked to emit for a new
// AI-suggested plan card.
type planRecommendation struct {
	Title       string `json:"title"`
	Contents    string `json:"contents"`
	Description string `json:"description"`
}

// recommendPlan asks the model for a next plan card based on the project's
// existing board and inserts it flagged is_ai.
func (h *ProjectsHandler) recommendPlan(c echo.Context) error {
	if err := h.requireProject(c); err != nil {
		return err
	}
	ctx := c.Request().Context()
	projectID := c.Param("id")

	plans, err := h.Store.ListPlans(ctx, projectID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	var board strings.Builder
	for _, p := range plans {
		fmt.Fprintf(&board, "- %s: %s\n", p.Title, p.Contents)
	}

	prompt := fmt.Sprintf(`Given this project plan board, suggest ONE next plan card.
Respond with a fenced json block: {"title": "...", "contents": "...", "description": "..."}

Board:
%s`, board.String())

	reply, err := h.LLM.Generate(ctx, provider.GenerateRequest{Content: prompt, JSONMode: true})
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, "generation failed")
	}
	rec, err := parsePlanRecommendation(reply.Text)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, "model returned no usable plan")
	}
	id, err := h.Store.CreatePlan(ctx, projectID, rec.Title, rec.Contents, rec.Description, true)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, map[string]any{"id": id, "plan": rec})
}

// organizePlan has the model rewrite an existing card's contents.
func (h *ProjectsHandler) organizePlan(c echo.Context) error {
	if err := h.requireProject(c); err != nil {
		return err
	}
	var req PlanOrganizeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()

	plan, ok, err := h.Store.GetPlan(ctx, c.Param("planID"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !ok || plan.ProjectID != c.Param("id") {
		return echo.NewHTTPError(http.StatusNotFound, "plan not found")
	}

	prompt := fmt.Sprintf(`Rewrite and organize this plan's contents. %s

Title: %s
Contents:
%s

Respond with the rewritten contents only, no preamble.`, req.Instruction, plan.Title, plan.Contents)

	reply, err := h.LLM.Generate(ctx, provider.GenerateRequest{Content: prompt})
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, "generation failed")
	}
	contents := strings.TrimSpace(reply.Text)
	if contents == "" {
		return echo.NewHTTPError(http.StatusBadGateway, "model returned empty contents")
	}
	if err := h.Store.UpdatePlanContents(ctx, plan.ID, contents); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	plan.Contents = contents
	return c.JSON(http.StatusOK, plan)
}

func (h *ProjectsHandler) requireProject(c echo.Context) error {
	_, ok, err := h.Store.GetProject(c.Request().Context(), c.Param("id"), userID(c))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "project not found")
	}
	return nil
}

var fencedBlockRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

// parsePlanRecommendation accepts fenced or bare JSON.
func parsePlanRecommendation(raw string) (planRecommendation, error) {
	body := strings.TrimSpace(raw)
	if m := fencedBlockRe.FindStringSubmatch(raw); m != nil {
		body = strings.TrimSpace(m[1])
	}
	var rec planRecommendation
	if err := json.Unmarshal([]byte(body), &rec); err != nil {
		return planRecommendation{}, err
	}
	if strings.TrimSpace(rec.Title) == "" {
		return planRecommendation{}, fmt.Errorf("recommendation has no title")
	}
	return rec, nil
}

func userID(c echo.Context) string {
	s, _ := c.Get("user_id").(string)
	return s
}
