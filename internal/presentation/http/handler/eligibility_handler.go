package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/sangkips/coopmart-api/internal/application/service"
	"github.com/sangkips/coopmart-api/internal/presentation/http/dto/response"
)

// MemberHandler serves member records and eligibility
type MemberHandler struct {
	eligibilityService *service.EligibilityService
	referenceService   *service.ReferenceService
}

// NewMemberHandler creates a new member handler
func NewMemberHandler(eligibilityService *service.EligibilityService, referenceService *service.ReferenceService) *MemberHandler {
	return &MemberHandler{eligibilityService: eligibilityService, referenceService: referenceService}
}

// Eligibility returns how much the member may still order under each payment option
func (h *MemberHandler) Eligibility(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	snap, err := h.eligibilityService.GetEligibility(c.Request.Context(), p, c.Param("member_no"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Eligibility retrieved successfully", snap)
}

// Get returns one member record
func (h *MemberHandler) Get(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	member, err := h.referenceService.GetMember(c.Request.Context(), p, c.Param("member_no"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Member retrieved successfully", member)
}
