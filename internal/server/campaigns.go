package server

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/mohammad-safakhou/campaigner/internal/campaign"
	"github.com/mohammad-safakhou/campaigner/internal/export"
	"github.com/mohammad-safakhou/campaigner/internal/mediaplan"
	"github.com/mohammad-safakhou/campaigner/internal/orchestrator"
)

// Service is the campaign pipeline the handlers call. *orchestrator.Orchestrator satisfies it.
type Service interface {
	GenerateCampaign(ctx context.Context, brief string) (*campaign.Document, error)
	RegenerateAsset(ctx context.Context, campaignID, assetID, instructions string) (*campaign.Document, error)
	GenerateMediaPlan(ctx context.Context, campaignID string, opts orchestrator.Options) (*mediaplan.Plan, error)
	Campaign(ctx context.Context, id string) (*campaign.Document, error)
	Campaigns(ctx context.Context, query string) ([]campaign.Summary, error)
	Export(ctx context.Context, id string, w io.Writer) error
}

type CampaignHandler struct {
	Service Service
	Logger  *zap.Logger
}

func (h *CampaignHandler) Register(g *echo.Group) {
	g.POST("/generate-campaign", h.generate)
	g.GET("/campaigns", h.list)
	g.GET("/campaign/:id", h.get)
	g.POST("/regenerate-asset", h.regenerate)
	g.POST("/generate-media-plan/:id", h.mediaPlan)
	g.GET("/export-campaign/:id", h.export)
	g.POST("/export-campaign/:id", h.export)
}

func (h *CampaignHandler) generate(c echo.Context) error {
	var req struct {
		Brief string `json:"brief"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Brief) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "brief is required")
	}
	doc, err := h.Service.GenerateCampaign(c.Request().Context(), req.Brief)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true, "campaign": doc})
}

func (h *CampaignHandler) list(c echo.Context) error {
	items, err := h.Service.Campaigns(c.Request().Context(), c.QueryParam("q"))
	if err != nil {
		return err
	}
	if items == nil {
		items = []campaign.Summary{}
	}
	return c.JSON(http.StatusOK, map[string]any{"campaigns": items})
}

func (h *CampaignHandler) get(c echo.Context) error {
	doc, err := h.Service.Campaign(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, doc)
}

func (h *CampaignHandler) regenerate(c echo.Context) error {
	var req struct {
		AssetID            string `json:"asset_id"`
		CampaignID         string `json:"campaign_id"`
		ModifyInstructions string `json:"modify_instructions"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.AssetID) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "asset_id is required")
	}
	doc, err := h.Service.RegenerateAsset(c.Request().Context(), req.CampaignID, req.AssetID, req.ModifyInstructions)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true, "campaign": doc})
}

func (h *CampaignHandler) mediaPlan(c echo.Context) error {
	var opts orchestrator.Options
	if err := c.Bind(&opts); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	plan, err := h.Service.GenerateMediaPlan(c.Request().Context(), c.Param("id"), opts)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true, "media_plan": plan})
}

func (h *CampaignHandler) export(c echo.Context) error {
	id := c.Param("id")
	var buf bytes.Buffer
	if err := h.Service.Export(c.Request().Context(), id, &buf); err != nil {
		return err
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+export.FileName(id)+`"`)
	return c.Blob(http.StatusOK, "application/zip", buf.Bytes())
}
