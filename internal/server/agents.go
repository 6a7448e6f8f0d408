package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/mohammad-safakhou/campaigner/internal/mediaplan"
	"github.com/mohammad-safakhou/campaigner/internal/orchestrator"
)

// AgentService runs one agent at a time outside the campaign pipeline.
// *orchestrator.Orchestrator satisfies it.
type AgentService interface {
	Strategy(ctx context.Context, brief string) (map[string]any, error)
	Copywriting(ctx context.Context, subject string) (map[string]any, error)
	Visuals(ctx context.Context, idea string) (map[string]any, error)
	Research(ctx context.Context, topic string) (map[string]any, error)
	Influencers(ctx context.Context, niche string) (map[string]any, error)
	PlanBrief(ctx context.Context, brief string, opts orchestrator.Options) (*mediaplan.Plan, error)
	LocationTrends(ctx context.Context, req orchestrator.LocationRequest) (*orchestrator.LocationTrends, error)
}

type AgentHandler struct {
	Service AgentService
	Logger  *zap.Logger
}

func (h *AgentHandler) Register(g *echo.Group) {
	g.POST("/agents/strategy", h.text(h.Service.Strategy))
	g.POST("/agents/copywriting", h.text(h.Service.Copywriting))
	g.POST("/agents/visual", h.text(h.Service.Visuals))
	g.POST("/agents/research", h.text(h.Service.Research))
	g.POST("/agents/influencer", h.text(h.Service.Influencers))
	g.POST("/agents/media", h.media)
	g.POST("/analyze-location-trends", h.locationTrends)
}

type agentRequest struct {
	Input json.RawMessage `json:"input"`
}

// text serves an agent whose input is a single string.
func (h *AgentHandler) text(run func(context.Context, string) (map[string]any, error)) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req agentRequest
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
		}
		var input string
		if err := json.Unmarshal(req.Input, &input); err != nil || strings.TrimSpace(input) == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "input is required")
		}
		out, err := run(c.Request().Context(), input)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, map[string]any{"success": true, "output": out})
	}
}

// media accepts either a brief string or an object carrying the brief and
// plan options.
func (h *AgentHandler) media(c echo.Context) error {
	var req agentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	var (
		brief string
		opts  orchestrator.Options
	)
	if err := json.Unmarshal(req.Input, &brief); err != nil {
		var obj struct {
			Brief        string `json:"brief"`
			Duration     int    `json:"duration"`
			DurationDays int    `json:"duration_days"`
			Budget       string `json:"budget"`
			Location     string `json:"location"`
		}
		if err := json.Unmarshal(req.Input, &obj); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "input must be a brief or an object")
		}
		brief = obj.Brief
		opts = orchestrator.Options{DurationDays: obj.DurationDays, Budget: obj.Budget, Location: obj.Location}
		if opts.DurationDays == 0 {
			opts.DurationDays = obj.Duration
		}
	}
	if strings.TrimSpace(brief) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "input is required")
	}
	plan, err := h.Service.PlanBrief(c.Request().Context(), brief, opts)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true, "output": plan})
}

func (h *AgentHandler) locationTrends(c echo.Context) error {
	var req orchestrator.LocationRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Location) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "location is required")
	}
	res, err := h.Service.LocationTrends(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{
		"success":     true,
		"location":    res.Location,
		"coordinates": res.Coordinates,
		"trends":      res.Trends,
	})
}
