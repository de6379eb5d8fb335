package handler

import (
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/campushire/placement-api/internal/service"
	appErrors "github.com/campushire/placement-api/pkg/errors"
	"github.com/campushire/placement-api/pkg/response"
)

// ReportHandler exposes reporting endpoints.
type ReportHandler struct {
	exports *service.ExportService
}

// NewReportHandler constructs handler.
func NewReportHandler(exports *service.ExportService) *ReportHandler {
	return &ReportHandler{exports: exports}
}

func reportFormat(c *gin.Context) (service.ReportFormat, bool) {
	format := service.ReportFormat(strings.ToLower(c.DefaultQuery("format", "csv")))
	switch format {
	case service.ReportFormatCSV, service.ReportFormatPDF:
		return format, true
	}
	response.Error(c, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf"))
	return "", false
}

// DriveReport godoc
// @Summary Render the selection outcome of a drive
// @Tags Reports
// @Produce json
// @Param id path string true "Drive ID"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {object} response.Envelope
// @Router /reports/drives/{id} [get]
func (h *ReportHandler) DriveReport(c *gin.Context) {
	format, ok := reportFormat(c)
	if !ok {
		return
	}
	result, err := h.exports.DriveReport(c.Request.Context(), c.Param("id"), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// OfferReport godoc
// @Summary Render the offer ledger of a drive
// @Tags Reports
// @Produce json
// @Param id path string true "Drive ID"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {object} response.Envelope
// @Router /reports/drives/{id}/offers [get]
func (h *ReportHandler) OfferReport(c *gin.Context) {
	format, ok := reportFormat(c)
	if !ok {
		return
	}
	result, err := h.exports.OfferReport(c.Request.Context(), c.Param("id"), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Download godoc
// @Summary Download a rendered report by signed token
// @Tags Reports
// @Produce octet-stream
// @Param token query string true "Signed download token"
// @Success 200 {file} binary
// @Router /reports/download [get]
func (h *ReportHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token required"))
		return
	}
	file, relPath, err := h.exports.Open(token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()

	name := filepath.Base(relPath)
	contentType := "text/csv"
	if strings.HasSuffix(name, ".pdf") {
		contentType = "application/pdf"
	}
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to stat report file"))
		return
	}
	c.DataFromReader(http.StatusOK, info.Size(), contentType, file, nil)
}
