package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/campushire/placement-api/internal/models"
	"github.com/campushire/placement-api/internal/service"
	appErrors "github.com/campushire/placement-api/pkg/errors"
	"github.com/campushire/placement-api/pkg/response"
)

// CompanyHandler exposes REST endpoints for recruiting companies.
type CompanyHandler struct {
	service *service.CompanyService
}

// NewCompanyHandler constructs the handler.
func NewCompanyHandler(svc *service.CompanyService) *CompanyHandler {
	return &CompanyHandler{service: svc}
}

// Create godoc
// @Summary Register a company
// @Tags Companies
// @Accept json
// @Produce json
// @Param payload body service.CompanyRequest true "Company payload"
// @Success 201 {object} response.Envelope
// @Router /companies [post]
func (h *CompanyHandler) Create(c *gin.Context) {
	var req service.CompanyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid company payload"))
		return
	}
	company, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, company)
}

// Update godoc
// @Summary Update a company
// @Tags Companies
// @Accept json
// @Produce json
// @Param id path string true "Company ID"
// @Param payload body service.CompanyRequest true "Company payload"
// @Success 200 {object} response.Envelope
// @Router /companies/{id} [put]
func (h *CompanyHandler) Update(c *gin.Context) {
	var req service.CompanyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid company payload"))
		return
	}
	company, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, company, nil)
}

// Get godoc
// @Summary Get a company
// @Tags Companies
// @Produce json
// @Param id path string true "Company ID"
// @Success 200 {object} response.Envelope
// @Router /companies/{id} [get]
func (h *CompanyHandler) Get(c *gin.Context) {
	company, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, company, nil)
}

// Summary godoc
// @Summary Hiring summary for a company
// @Tags Companies
// @Produce json
// @Param id path string true "Company ID"
// @Success 200 {object} response.Envelope
// @Router /companies/{id}/summary [get]
func (h *CompanyHandler) Summary(c *gin.Context) {
	summary, err := h.service.Summary(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// List godoc
// @Summary List companies
// @Tags Companies
// @Produce json
// @Param search query string false "Name"
// @Param industry query string false "Industry"
// @Param active query bool false "Active flag"
// @Success 200 {object} response.Envelope
// @Router /companies [get]
func (h *CompanyHandler) List(c *gin.Context) {
	filter := models.CompanyFilter{
		Search:    strings.TrimSpace(c.Query("search")),
		Industry:  c.Query("industry"),
		Active:    queryBool(c, "active"),
		Page:      queryInt(c, "page", 1),
		PageSize:  queryInt(c, "page_size", 20),
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}
	companies, total, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, companies, paginationFrom(filter.Page, filter.PageSize, total))
}
