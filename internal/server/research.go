package server

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/jatanrathod13/researcher/internal/session"
	"github.com/jatanrathod13/researcher/internal/workflow"
)

type researchRequest struct {
	Topic string `json:"topic"`
}

// exampleTopics mirrors the suggestions offered by the original UI.
var exampleTopics = []string{
	"What are the best cruise lines in USA for first-time travelers who have never been on a cruise?",
	"What are the best affordable espresso machines for someone upgrading from a French press?",
	"What are the best off-the-beaten-path destinations in India for a first-time solo traveler?",
}

func (s *Server) createResearch(c echo.Context) error {
	var req researchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Topic) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "topic is required")
	}

	// the run outlives the request; it is canceled via DELETE, not disconnect
	id, err := s.orch.StartSession(context.Background(), req.Topic)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusAccepted, map[string]string{"session_id": id})
}

func (s *Server) getResearch(c echo.Context) error {
	id := c.Param("id")
	sess, ok := s.orch.Sessions().Get(id)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "no such session")
	}
	return c.JSON(http.StatusOK, sess.SnapshotState())
}

func (s *Server) getReport(c echo.Context) error {
	id := c.Param("id")
	sess, ok := s.orch.Sessions().Get(id)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "no such session")
	}
	snap := sess.SnapshotState()
	if snap.Result == nil {
		return echo.NewHTTPError(http.StatusConflict, "session has no result yet")
	}

	filename, mimeType, body := workflow.Artifact(snap)
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return c.Blob(http.StatusOK, mimeType, body)
}

func (s *Server) cancelResearch(c echo.Context) error {
	id := c.Param("id")
	if _, ok := s.orch.Sessions().Get(id); !ok {
		return echo.NewHTTPError(http.StatusNotFound, "no such session")
	}
	if err := s.orch.Sessions().Cancel(id); err != nil {
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	return c.JSON(http.StatusAccepted, map[string]string{"session_id": id, "status": "canceling"})
}

func (s *Server) listRuns(c echo.Context) error {
	limit := 20
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = n
	}
	runs, err := s.orch.Archive().RecentRuns(c.Request().Context(), limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if runs == nil {
		runs = []session.Snapshot{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"runs": runs})
}

func (s *Server) listExamples(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{"examples": exampleTopics})
}
