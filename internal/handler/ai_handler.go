package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campushire/placement-api/internal/service"
	appErrors "github.com/campushire/placement-api/pkg/errors"
	"github.com/campushire/placement-api/pkg/response"
)

// AIHandler exposes Gemini-backed screening endpoints.
type AIHandler struct {
	service *service.AIService
}

// NewAIHandler constructs the handler.
func NewAIHandler(svc *service.AIService) *AIHandler {
	return &AIHandler{service: svc}
}

type resumeMatchRequest struct {
	ResumeText     string `json:"resume_text" binding:"required"`
	JobDescription string `json:"job_description" binding:"required"`
}

// MatchResume godoc
// @Summary Score a resume against a job description
// @Tags AI
// @Accept json
// @Produce json
// @Param payload body resumeMatchRequest true "Resume and job description"
// @Success 200 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /ai/match-resume [post]
func (h *AIHandler) MatchResume(c *gin.Context) {
	var req resumeMatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "resume_text and job_description are required"))
		return
	}
	result, err := h.service.MatchResume(c.Request.Context(), req.ResumeText, req.JobDescription)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Screen godoc
// @Summary Screen all candidates of a drive
// @Tags AI
// @Produce json
// @Param id path string true "Drive ID"
// @Success 200 {object} response.Envelope
// @Router /ai/drives/{id}/screen [post]
func (h *AIHandler) Screen(c *gin.Context) {
	screened, err := h.service.ScreenCandidates(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"screened": screened}, nil)
}

// Recommend godoc
// @Summary Generate a recommendation letter draft for a student
// @Tags AI
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /ai/students/{id}/recommend [post]
func (h *AIHandler) Recommend(c *gin.Context) {
	result, err := h.service.Recommend(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
