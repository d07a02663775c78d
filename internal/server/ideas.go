package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/museworks/museflow/internal/store"
	"github.com/museworks/museflow/provider"
)

type IdeasHandler struct {
	Store *store.Store
	LLM   provider.Provider
}

func (h *IdeasHandler) Register(projects, ideas *echo.Group, secret []byte) {
	projects.POST("/:id/ideas", h.create)
	projects.GET("/:id/ideas", h.list)

	ideas.Use(withAuth(secret))
	ideas.GET("/:id", h.get)
	ideas.GET("/:id/chats", h.chats)
	ideas.POST("/:id/helper", h.helper)
	ideas.POST("/:id/report", h.report)
}

func (h *IdeasHandler) create(c echo.Context) error {
	var req IdeaCreateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.Title) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "title is required")
	}
	_, ok, err := h.Store.GetProject(c.Request().Context(), c.Param("id"), userID(c))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "project not found")
	}
	id, err := h.Store.CreateIdea(c.Request().Context(), c.Param("id"), userID(c), req.Title, req.Content)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, map[string]string{"id": id})
}

func (h *IdeasHandler) list(c echo.Context) error {
	ideas, err := h.Store.ListIdeas(c.Request().Context(), c.Param("id"), userID(c))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, ideas)
}

func (h *IdeasHandler) get(c echo.Context) error {
	idea, ok, err := h.Store.GetIdea(c.Request().Context(), c.Param("id"), userID(c))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "idea not found")
	}
	return c.JSON(http.StatusOK, idea)
}

func (h *IdeasHandler) chats(c echo.Context) error {
	idea, ok, err := h.Store.GetIdea(c.Request().Context(), c.Param("id"), userID(c))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "idea not found")
	}
	msgs, err := h.Store.ListIdeaChats(c.Request().Context(), idea.ID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, msgs)
}

// helper streams a brainstorming reply as chunked plain text, then persists
// the user/assistant pair to the idea's chat history.
func (h *IdeasHandler) helper(c echo.Context) error {
	var req IdeaHelperRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.Message) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message is required")
	}
	ctx := c.Request().Context()

	idea, ok, err := h.Store.GetIdea(ctx, c.Param("id"), userID(c))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "idea not found")
	}

	history, err := h.Store.ListIdeaChats(ctx, idea.ID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	msgs := make([]provider.Message, 0, len(history))
	for _, m := range history {
		msgs = append(msgs, provider.Message{Role: m.Role, Content: m.Content})
	}

	system := fmt.Sprintf("You are a brainstorming partner. The idea under discussion:\nTitle: %s\n%s", idea.Title, idea.Content)
	stream, err := h.LLM.GenerateStream(ctx, provider.GenerateRequest{
		System:  system,
		History: msgs,
		Content: req.Message,
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, "generation failed")
	}
	llmStreamsTotal.Inc()

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/plain; charset=utf-8")
	resp.WriteHeader(http.StatusOK)

	var full strings.Builder
	for chunk := range stream {
		full.WriteString(chunk)
		if _, err := resp.Write([]byte(chunk)); err != nil {
			break
		}
		resp.Flush()
	}

	if _, err := h.Store.CreateIdeaChat(ctx, idea.ID, "user", req.Message); err != nil {
		c.Logger().Errorf("persist user message: %v", err)
	}
	if _, err := h.Store.CreateIdeaChat(ctx, idea.ID, "assistant", full.String()); err != nil {
		c.Logger().Errorf("persist assistant message: %v", err)
	}
	return nil
}

// report generates a structured write-up for the idea and stores it on the
// idea record and in the chat history.
func (h *IdeasHandler) report(c echo.Context) error {
	ctx := c.Request().Context()

	idea, ok, err := h.Store.GetIdea(ctx, c.Param("id"), userID(c))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "idea not found")
	}

	history, err := h.Store.ListIdeaChats(ctx, idea.ID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	var chat strings.Builder
	for _, m := range history {
		fmt.Fprintf(&chat, "%s: %s\n", m.Role, m.Content)
	}

	prompt := fmt.Sprintf(`Write a structured report for this idea: goal, current thinking,
open questions, and suggested next steps.

Title: %s
Notes:
%s
Discussion so far:
%s`, idea.Title, idea.Content, chat.String())

	reply, err := h.LLM.Generate(ctx, provider.GenerateRequest{Content: prompt})
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, "generation failed")
	}
	if err := h.Store.UpdateIdeaReport(ctx, idea.ID, userID(c), reply.Text); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if _, err := h.Store.CreateIdeaChat(ctx, idea.ID, "assistant", reply.Text); err != nil {
		c.Logger().Errorf("persist report message: %v", err)
	}
	return c.JSON(http.StatusOK, map[string]string{"report": reply.Text})
}
