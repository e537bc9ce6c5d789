package handler

import (
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sangkips/coopmart-api/internal/application/service"
	"github.com/sangkips/coopmart-api/internal/presentation/http/dto/response"
)

// ReportHandler serves demand reports and workbook downloads
type ReportHandler struct {
	reportService *service.ReportService
}

// NewReportHandler creates a new report handler
func NewReportHandler(reportService *service.ReportService) *ReportHandler {
	return &ReportHandler{reportService: reportService}
}

// Demand returns aggregated demand rows as JSON
func (h *ReportHandler) Demand(c *gin.Context) {
	rows, err := h.reportService.DemandReport(c.Request.Context(), c.Query("branch_code"), c.Query("department"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Demand retrieved successfully", rows)
}

// ExportDemand streams the per-branch demand workbook. Branches exported as placeholders
// are listed in the X-Export-Warnings header.
func (h *ReportHandler) ExportDemand(c *gin.Context) {
	export, err := h.reportService.ExportDemandWorkbook(c.Request.Context(), c.Query("department"))
	if err != nil {
		response.Error(c, err)
		return
	}

	if len(export.Warnings) > 0 {
		c.Header("X-Export-Warnings", strings.Join(export.Warnings, "; "))
	}
	response.Workbook(c, fmt.Sprintf("demand-%s.xlsx", time.Now().Format("20060102-1504")), export.Workbook)
}

// ItemsPack streams items, prices and markups as one workbook
func (h *ReportHandler) ItemsPack(c *gin.Context) {
	data, err := h.reportService.ExportItemsPack(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Workbook(c, "items-pack.xlsx", data)
}
