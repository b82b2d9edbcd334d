package handlers

import (
	"net/http"
	"time"

	"github.com/dipauto/certidao-api/internal/cert"
	"github.com/dipauto/certidao-api/internal/models"
	"github.com/dipauto/certidao-api/internal/services"
	"github.com/dipauto/certidao-api/internal/utils"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// CacheHandler handles cache management requests
type CacheHandler struct {
	cacheService services.CacheServiceInterface
	logger       *logrus.Logger
}

// NewCacheHandler creates a new cache handler
func NewCacheHandler(cacheService services.CacheServiceInterface, logger *logrus.Logger) *CacheHandler {
	return &CacheHandler{
		cacheService: cacheService,
		logger:       logger,
	}
}

// GetStats handles cache statistics request
// @Summary Get cache statistics
// @Description Get cache layer health and entry counts
// @Tags Cache
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /cache/stats [get]
func (h *CacheHandler) GetStats(c *gin.Context) {
	requestID := c.GetString("request_id")

	h.logger.WithField("request_id", requestID).Info("Getting cache statistics")

	c.JSON(http.StatusOK, map[string]interface{}{
		"health":    h.cacheService.Health(),
		"timestamp": time.Now(),
	})
}

// Clear handles cache clear request
// @Summary Clear all cache
// @Description Clear all cached certificate results, forcing fresh portal retrievals
// @Tags Cache
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 500 {object} models.ErrorResponse
// @Router /cache/clear [delete]
func (h *CacheHandler) Clear(c *gin.Context) {
	requestID := c.GetString("request_id")

	h.logger.WithField("request_id", requestID).Info("Clearing certificate cache")

	if err := h.cacheService.Clear(c.Request.Context()); err != nil {
		h.logger.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to clear cache")

		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:     "Internal server error",
			Message:   "Failed to clear cache",
			Code:      "CACHE_CLEAR_ERROR",
			Timestamp: time.Now(),
			Path:      c.Request.URL.Path,
		})
		return
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"message":   "Cache cleared successfully",
		"timestamp": time.Now(),
		"success":   true,
	})
}

// Delete handles deletion of one cached certificate result
// @Summary Delete one cached certificate
// @Description Delete the cached result for a source and tax ID, forcing a fresh retrieval on the next run
// @Tags Cache
// @Param fonte path string true "Certificate source" Enums(STJ_PJ, STJ_PF, TJGO_CIVEL, TJGO_CRIMINAL)
// @Param documento path string true "CNPJ or CPF digits"
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Router /cache/{fonte}/{documento} [delete]
func (h *CacheHandler) Delete(c *gin.Context) {
	requestID := c.GetString("request_id")
	sourceParam := c.Param("fonte")
	docParam := c.Param("documento")

	source := models.SourceType(sourceParam)
	if _, ok := cert.SourceFor(source); !ok {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:     "Invalid source",
			Message:   "Unknown certificate source: " + sourceParam,
			Code:      "INVALID_SOURCE",
			Timestamp: time.Now(),
			Path:      c.Request.URL.Path,
		})
		return
	}

	doc := utils.CleanDocumento(docParam)
	if len(doc) != 11 && len(doc) != 14 {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:     "Invalid document",
			Message:   "Document must contain 11 (CPF) or 14 (CNPJ) digits",
			Code:      "INVALID_DOCUMENT",
			Timestamp: time.Now(),
			Path:      c.Request.URL.Path,
		})
		return
	}

	cacheKey := "cert:" + string(source) + ":" + doc

	if err := h.cacheService.Delete(c.Request.Context(), cacheKey); err != nil {
		h.logger.WithFields(logrus.Fields{
			"request_id": requestID,
			"key":        cacheKey,
			"error":      err.Error(),
		}).Error("Failed to delete cache entry")

		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:     "Internal server error",
			Message:   "Failed to delete from cache",
			Code:      "CACHE_DELETE_ERROR",
			Timestamp: time.Now(),
			Path:      c.Request.URL.Path,
		})
		return
	}

	h.logger.WithFields(logrus.Fields{
		"request_id": requestID,
		"key":        cacheKey,
	}).Info("Cache entry deleted")

	c.JSON(http.StatusOK, map[string]interface{}{
		"message":   "Cache entry deleted",
		"fonte":     source,
		"documento": doc,
		"timestamp": time.Now(),
		"success":   true,
	})
}
