package handlers

import (
	"net/http"
	"time"

	"github.com/dipauto/certidao-api/internal/models"
	"github.com/dipauto/certidao-api/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// ExtractionHandler handles certificate extraction requests
type ExtractionHandler struct {
	planner   services.PlannerInterface
	extractor services.ExtractorInterface
	logger    *logrus.Logger
}

// NewExtractionHandler creates a new extraction handler
func NewExtractionHandler(planner services.PlannerInterface, extractor services.ExtractorInterface, logger *logrus.Logger) *ExtractionHandler {
	return &ExtractionHandler{
		planner:   planner,
		extractor: extractor,
		logger:    logger,
	}
}

// Extract runs the full pipeline for one due diligence case: plan the
// task set from the posted parties and shareholders, then execute it.
// @Summary Extract certificates for a case
// @Description Plans and retrieves nada consta certificates for every company and shareholder of a due diligence case
// @Tags Extraction
// @Accept json
// @Produce json
// @Param request body models.ExtractionRequest true "Case snapshot"
// @Success 200 {object} models.ExtractionResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 429 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Router /extracoes [post]
func (h *ExtractionHandler) Extract(c *gin.Context) {
	start := time.Now()
	requestID := c.GetString("request_id")

	var request models.ExtractionRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		h.logger.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Warn("Invalid extraction request format")

		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:     "Invalid request format",
			Message:   err.Error(),
			Code:      models.ErrorCodeInvalidRequest,
			Timestamp: time.Now(),
			Path:      c.Request.URL.Path,
		})
		return
	}

	tasks := h.planner.Plan(request.Parties, request.Shareholders)
	if len(tasks) == 0 {
		h.logger.WithFields(logrus.Fields{
			"request_id": requestID,
			"analise_id": request.CaseID,
		}).Warn("No eligible entities in extraction request")

		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:     "No eligible entities",
			Message:   "No seller company or shareholder in the request qualifies for any certificate",
			Code:      models.ErrorCodeInvalidRequest,
			Timestamp: time.Now(),
			Path:      c.Request.URL.Path,
		})
		return
	}

	h.logger.WithFields(logrus.Fields{
		"request_id": requestID,
		"analise_id": request.CaseID,
		"tasks":      len(tasks),
	}).Info("Processing certificate extraction")

	summary := h.extractor.Run(c.Request.Context(), request.CaseID, tasks)

	duration := time.Since(start)
	h.logger.WithFields(logrus.Fields{
		"request_id": requestID,
		"analise_id": request.CaseID,
		"total":      summary.Total,
		"success":    summary.Succeeded,
		"failures":   summary.Failed,
		"skipped":    summary.Skipped,
		"duration":   duration,
	}).Info("Certificate extraction completed")

	c.JSON(http.StatusOK, models.ExtractionResponse{
		Success:       true,
		Summary:       summary,
		ExecutionTime: duration.String(),
		Timestamp:     time.Now(),
	})
}

// Plan returns the task set a case would produce without touching any
// portal. Useful for inspecting eligibility decisions.
// @Summary Plan certificate tasks for a case
// @Description Dry run: lists which certificates would be requested for the posted parties and shareholders
// @Tags Extraction
// @Accept json
// @Produce json
// @Param request body models.ExtractionRequest true "Case snapshot"
// @Success 200 {object} models.PlanResponse
// @Failure 400 {object} models.ErrorResponse
// @Router /extracoes/planejar [post]
func (h *ExtractionHandler) Plan(c *gin.Context) {
	requestID := c.GetString("request_id")

	var request models.ExtractionRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:     "Invalid request format",
			Message:   err.Error(),
			Code:      models.ErrorCodeInvalidRequest,
			Timestamp: time.Now(),
			Path:      c.Request.URL.Path,
		})
		return
	}

	tasks := h.planner.Plan(request.Parties, request.Shareholders)

	h.logger.WithFields(logrus.Fields{
		"request_id": requestID,
		"analise_id": request.CaseID,
		"tasks":      len(tasks),
	}).Info("Extraction plan generated")

	c.JSON(http.StatusOK, models.PlanResponse{
		CaseID:    request.CaseID,
		Tasks:     tasks,
		Timestamp: time.Now(),
	})
}
