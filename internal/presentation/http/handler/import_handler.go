package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sangkips/coopmart-api/internal/application/service"
	"github.com/sangkips/coopmart-api/internal/importer"
	"github.com/sangkips/coopmart-api/internal/presentation/http/dto/response"
)

// ImportHandler accepts sheet uploads or JSON rows for the bulk upsert pipeline
type ImportHandler struct {
	importService *service.ImportService
	maxUpload     int64
}

// NewImportHandler creates a new import handler; uploads above maxUpload bytes are rejected
func NewImportHandler(importService *service.ImportService, maxUpload int64) *ImportHandler {
	return &ImportHandler{importService: importService, maxUpload: maxUpload}
}

// Import handles POST /imports/:kind
func (h *ImportHandler) Import(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	kind, err := importer.ParseKind(c.Param("kind"))
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	table, ok := h.readTable(c)
	if !ok {
		return
	}

	result, err := h.importService.Import(c.Request.Context(), kind, table, p.Username)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Import processed", result)
}

func (h *ImportHandler) readTable(c *gin.Context) (importer.Table, bool) {
	if h.maxUpload > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload)
	}

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		fh, err := c.FormFile("file")
		if err != nil {
			response.BadRequest(c, "Upload a sheet in the \"file\" field")
			return importer.Table{}, false
		}
		f, err := fh.Open()
		if err != nil {
			response.BadRequest(c, "Unreadable upload")
			return importer.Table{}, false
		}
		defer f.Close()

		table, err := importer.Read(f, fh.Filename)
		if errors.Is(err, importer.ErrUnsupportedFormat) {
			response.BadRequest(c, err.Error())
			return importer.Table{}, false
		}
		if err != nil {
			response.BadRequest(c, "Could not parse sheet: "+err.Error())
			return importer.Table{}, false
		}
		return table, true
	}

	var req struct {
		Rows []map[string]interface{} `json:"rows" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return importer.Table{}, false
	}
	return importer.FromMaps(req.Rows), true
}
