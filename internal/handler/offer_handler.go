package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/campushire/placement-api/internal/lifecycle"
	"github.com/campushire/placement-api/internal/models"
	"github.com/campushire/placement-api/internal/service"
	appErrors "github.com/campushire/placement-api/pkg/errors"
	"github.com/campushire/placement-api/pkg/response"
)

// OfferHandler exposes REST endpoints for the offer lifecycle.
type OfferHandler struct {
	service *service.OfferService
}

// NewOfferHandler constructs the handler.
func NewOfferHandler(svc *service.OfferService) *OfferHandler {
	return &OfferHandler{service: svc}
}

// Issue godoc
// @Summary Issue an offer to a selected application
// @Tags Offers
// @Accept json
// @Produce json
// @Param payload body service.IssueOfferRequest true "Offer payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /offers [post]
func (h *OfferHandler) Issue(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.IssueOfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid offer payload"))
		return
	}
	offer, err := h.service.Issue(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, offer)
}

// Get godoc
// @Summary Get an offer
// @Tags Offers
// @Produce json
// @Param id path string true "Offer ID"
// @Success 200 {object} response.Envelope
// @Router /offers/{id} [get]
func (h *OfferHandler) Get(c *gin.Context) {
	offer, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, offer, nil)
}

// List godoc
// @Summary List offers
// @Tags Offers
// @Produce json
// @Param drive_id query string false "Drive"
// @Param student_id query string false "Student"
// @Param status query string false "Status"
// @Success 200 {object} response.Envelope
// @Router /offers [get]
func (h *OfferHandler) List(c *gin.Context) {
	filter := models.OfferFilter{
		StudentID:     c.Query("student_id"),
		DriveID:       c.Query("drive_id"),
		ApplicationID: c.Query("application_id"),
		Status:        lifecycle.OfferStatus(strings.ToUpper(c.Query("status"))),
		Page:          queryInt(c, "page", 1),
		PageSize:      queryInt(c, "page_size", 20),
		SortBy:        c.Query("sort_by"),
		SortOrder:     c.Query("sort_order"),
	}
	offers, total, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, offers, paginationFrom(filter.Page, filter.PageSize, total))
}

// Respond godoc
// @Summary Respond to a pending offer
// @Description Accept, reject or counter; a response past the deadline resolves the offer to EXPIRED
// @Tags Offers
// @Accept json
// @Produce json
// @Param id path string true "Offer ID"
// @Param payload body service.RespondOfferRequest true "Response"
// @Success 200 {object} response.Envelope
// @Failure 410 {object} response.Envelope
// @Router /offers/{id}/respond [post]
func (h *OfferHandler) Respond(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.RespondOfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid response payload"))
		return
	}
	offer, err := h.service.Respond(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, offer, nil)
}
