package handlers

import (
	"context"
	"log"
	"time"

	"github.com/amirphl/Kusanagi/app/dto"
	businessflow "github.com/amirphl/Kusanagi/business_flow"
	"github.com/amirphl/Kusanagi/utils"
	"github.com/gofiber/fiber/v3"
)

// ReportHandlerInterface defines the contract for campaign click reports
type ReportHandlerInterface interface {
	TrackedURLStats(c fiber.Ctx) error
	ExportTrackedURLStats(c fiber.Ctx) error
}

type ReportHandler struct {
	flow businessflow.ReportFlow
}

func NewReportHandler(flow businessflow.ReportFlow) ReportHandlerInterface {
	return &ReportHandler{flow: flow}
}

// TrackedURLStats returns click counts per tracked URL of a campaign
// @Summary Campaign tracked URL stats
// @Tags Reports
// @Produce json
// @Param cuid path string true "Campaign UID"
// @Success 200 {object} dto.APIResponse
// @Failure 404 {object} dto.APIResponse
// @Router /api/v1/campaigns/{cuid}/tracked-urls [get]
func (h *ReportHandler) TrackedURLStats(c fiber.Ctx) error {
	cuid := c.Params("cuid")
	if cuid == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.APIResponse{
			Success: false,
			Message: "Campaign UID is required",
			Error:   dto.ErrorDetail{Code: "INVALID_CAMPAIGN_UID"},
		})
	}

	stats, err := h.flow.TrackedURLStats(h.createRequestContext(c, "/campaigns/"+cuid+"/tracked-urls"), cuid)
	if err != nil {
		if businessflow.IsCampaignNotFound(err) {
			return c.Status(fiber.StatusNotFound).JSON(dto.APIResponse{
				Success: false,
				Message: "Campaign not found",
				Error:   dto.ErrorDetail{Code: "CAMPAIGN_NOT_FOUND"},
			})
		}
		log.Println("Tracked url stats failed", err)
		return c.Status(fiber.StatusInternalServerError).JSON(dto.APIResponse{
			Success: false,
			Message: "Failed to load tracked url stats",
			Error:   dto.ErrorDetail{Code: "REPORT_FAILED"},
		})
	}

	items := make([]dto.TrackedURLStatItem, 0, len(stats))
	for _, s := range stats {
		items = append(items, dto.TrackedURLStatItem{
			Destination: s.Destination,
			Hash:        s.Hash,
			Clicks:      s.Clicks,
			DateAdded:   s.DateAdded.UTC().Format(time.RFC3339),
		})
	}

	return c.JSON(dto.APIResponse{
		Success: true,
		Message: "Tracked url stats retrieved successfully",
		Data:    dto.TrackedURLStatsResponse{CampaignUID: cuid, URLs: items},
	})
}

// ExportTrackedURLStats streams the stats as an xlsx download
// @Summary Export campaign tracked URL stats
// @Tags Reports
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param cuid path string true "Campaign UID"
// @Success 200 {file} binary
// @Failure 404 {object} dto.APIResponse
// @Router /api/v1/campaigns/{cuid}/tracked-urls/export [get]
func (h *ReportHandler) ExportTrackedURLStats(c fiber.Ctx) error {
	cuid := c.Params("cuid")
	if cuid == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.APIResponse{
			Success: false,
			Message: "Campaign UID is required",
			Error:   dto.ErrorDetail{Code: "INVALID_CAMPAIGN_UID"},
		})
	}

	filename, data, err := h.flow.ExportTrackedURLStats(h.createRequestContext(c, "/campaigns/"+cuid+"/tracked-urls/export"), cuid)
	if err != nil {
		if businessflow.IsCampaignNotFound(err) {
			return c.Status(fiber.StatusNotFound).JSON(dto.APIResponse{
				Success: false,
				Message: "Campaign not found",
				Error:   dto.ErrorDetail{Code: "CAMPAIGN_NOT_FOUND"},
			})
		}
		log.Println("Tracked url export failed", err)
		return c.Status(fiber.StatusInternalServerError).JSON(dto.APIResponse{
			Success: false,
			Message: "Failed to export tracked url stats",
			Error:   dto.ErrorDetail{Code: "EXPORT_FAILED"},
		})
	}

	c.Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	return c.Send(data)
}

func (h *ReportHandler) createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	ctx = context.WithValue(ctx, utils.RequestIDKey, c.Get("X-Request-ID"))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	ctx = context.WithValue(ctx, utils.CancelFuncKey, cancel)
	return ctx
}
