package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/sangkips/coopmart-api/internal/application/service"
	"github.com/sangkips/coopmart-api/internal/presentation/http/dto/response"
)

// ReferenceHandler serves branches, departments and the item master
type ReferenceHandler struct {
	referenceService *service.ReferenceService
}

func NewReferenceHandler(referenceService *service.ReferenceService) *ReferenceHandler {
	return &ReferenceHandler{referenceService: referenceService}
}

func (h *ReferenceHandler) Branches(c *gin.Context) {
	branches, err := h.referenceService.ListBranches(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Branches retrieved successfully", branches)
}

func (h *ReferenceHandler) Departments(c *gin.Context) {
	departments, err := h.referenceService.ListDepartments(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Departments retrieved successfully", departments)
}

func (h *ReferenceHandler) Items(c *gin.Context) {
	items, err := h.referenceService.ListItems(c.Request.Context(), c.Query("search"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Items retrieved successfully", items)
}
