package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/campushire/placement-api/internal/models"
	"github.com/campushire/placement-api/internal/service"
	appErrors "github.com/campushire/placement-api/pkg/errors"
	"github.com/campushire/placement-api/pkg/response"
)

// DriveHandler exposes REST endpoints for placement drives.
type DriveHandler struct {
	service *service.DriveService
}

// NewDriveHandler constructs the handler.
func NewDriveHandler(svc *service.DriveService) *DriveHandler {
	return &DriveHandler{service: svc}
}

// Create godoc
// @Summary Create a drive
// @Tags Drives
// @Accept json
// @Produce json
// @Param payload body service.CreateDriveRequest true "Drive payload"
// @Success 201 {object} response.Envelope
// @Router /drives [post]
func (h *DriveHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.CreateDriveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid drive payload"))
		return
	}
	drive, err := h.service.Create(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, drive)
}

// Update godoc
// @Summary Update a draft drive
// @Tags Drives
// @Accept json
// @Produce json
// @Param id path string true "Drive ID"
// @Param payload body service.CreateDriveRequest true "Drive payload"
// @Success 200 {object} response.Envelope
// @Router /drives/{id} [put]
func (h *DriveHandler) Update(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.CreateDriveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid drive payload"))
		return
	}
	drive, err := h.service.Update(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, drive, nil)
}

// Get godoc
// @Summary Get a drive with its derived phase
// @Tags Drives
// @Produce json
// @Param id path string true "Drive ID"
// @Success 200 {object} response.Envelope
// @Router /drives/{id} [get]
func (h *DriveHandler) Get(c *gin.Context) {
	drive, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, drive, nil)
}

// List godoc
// @Summary List drives
// @Tags Drives
// @Produce json
// @Param university_id query string false "University"
// @Param company_id query string false "Company"
// @Param status query string false "Drive status"
// @Success 200 {object} response.Envelope
// @Router /drives [get]
func (h *DriveHandler) List(c *gin.Context) {
	filter := models.DriveFilter{
		UniversityID:   c.Query("university_id"),
		CompanyID:      c.Query("company_id"),
		Status:         models.DriveStatus(strings.ToUpper(c.Query("status"))),
		ApprovalStatus: models.ApprovalStatus(strings.ToUpper(c.Query("approval_status"))),
		Search:         strings.TrimSpace(c.Query("search")),
		Page:           queryInt(c, "page", 1),
		PageSize:       queryInt(c, "page_size", 20),
		SortBy:         c.Query("sort_by"),
		SortOrder:      c.Query("sort_order"),
	}
	drives, total, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, drives, paginationFrom(filter.Page, filter.PageSize, total))
}

// Approve godoc
// @Summary Record the university's approval decision
// @Tags Drives
// @Accept json
// @Produce json
// @Param id path string true "Drive ID"
// @Param payload body service.ApprovalRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Router /drives/{id}/approve [post]
func (h *DriveHandler) Approve(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.ApprovalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid approval payload"))
		return
	}
	drive, err := h.service.Approve(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, drive, nil)
}

// Publish godoc
// @Summary Activate an approved drive
// @Tags Drives
// @Produce json
// @Param id path string true "Drive ID"
// @Success 200 {object} response.Envelope
// @Router /drives/{id}/publish [post]
func (h *DriveHandler) Publish(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	drive, err := h.service.Publish(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, drive, nil)
}

// Complete godoc
// @Summary Close out an active drive
// @Tags Drives
// @Produce json
// @Param id path string true "Drive ID"
// @Success 200 {object} response.Envelope
// @Router /drives/{id}/complete [post]
func (h *DriveHandler) Complete(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	drive, err := h.service.Complete(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, drive, nil)
}

// Cancel godoc
// @Summary Cancel a draft or active drive
// @Tags Drives
// @Produce json
// @Param id path string true "Drive ID"
// @Success 200 {object} response.Envelope
// @Router /drives/{id}/cancel [post]
func (h *DriveHandler) Cancel(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	drive, err := h.service.Cancel(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, drive, nil)
}

// BuildRoster godoc
// @Summary Evaluate students and build the eligible roster
// @Tags Drives
// @Produce json
// @Param id path string true "Drive ID"
// @Param invite query bool false "Invite eligible students"
// @Success 200 {object} response.Envelope
// @Router /drives/{id}/roster [post]
func (h *DriveHandler) BuildRoster(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	invite, _ := strconv.ParseBool(c.Query("invite"))
	added, err := h.service.BuildRoster(c.Request.Context(), actor, c.Param("id"), invite)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"eligible": added, "invited": invite}, nil)
}

// Candidates godoc
// @Summary List the drive roster
// @Tags Drives
// @Produce json
// @Param id path string true "Drive ID"
// @Success 200 {object} response.Envelope
// @Router /drives/{id}/candidates [get]
func (h *DriveHandler) Candidates(c *gin.Context) {
	candidates, err := h.service.Candidates(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, candidates, nil)
}

// AddCandidate godoc
// @Summary Manually add a student to the roster
// @Tags Drives
// @Accept json
// @Produce json
// @Param id path string true "Drive ID"
// @Param payload body map[string]string true "Student ID"
// @Success 204 {object} response.Envelope
// @Router /drives/{id}/candidates [post]
func (h *DriveHandler) AddCandidate(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var payload struct {
		StudentID string `json:"student_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "student_id is required"))
		return
	}
	if err := h.service.AddCandidate(c.Request.Context(), actor, c.Param("id"), payload.StudentID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Statistics godoc
// @Summary Drive statistics
// @Description Roll-up counts recomputed from live rows behind a short cache
// @Tags Drives
// @Produce json
// @Param id path string true "Drive ID"
// @Success 200 {object} response.Envelope
// @Router /drives/{id}/statistics [get]
func (h *DriveHandler) Statistics(c *gin.Context) {
	stats, err := h.service.Statistics(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}
