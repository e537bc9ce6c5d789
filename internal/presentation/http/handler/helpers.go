package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sangkips/coopmart-api/internal/presentation/http/dto/response"
	"github.com/sangkips/coopmart-api/internal/presentation/http/middleware"
	"github.com/sangkips/coopmart-api/pkg/apperror"
	"github.com/sangkips/coopmart-api/pkg/identity"
)

// principal returns the authenticated caller, writing a 401 when there is none
func principal(c *gin.Context) (identity.Principal, bool) {
	p, ok := middleware.GetPrincipal(c)
	if !ok {
		response.Unauthorized(c, "User not authenticated")
		return identity.Principal{}, false
	}
	return p, true
}

// pathID parses the :id route parameter
func pathID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "Invalid order ID")
		return uuid.Nil, false
	}
	return id, true
}

// bindJSON decodes the body into req, reporting binding failures field by field
func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fieldErrs := make([]apperror.FieldError, 0, len(verrs))
			for _, fe := range verrs {
				fieldErrs = append(fieldErrs, apperror.FieldError{Field: fe.Field(), Message: "failed on '" + fe.Tag() + "'"})
			}
			response.ValidationError(c, fieldErrs)
			return false
		}
		response.BadRequest(c, "Invalid request body")
		return false
	}
	return true
}
