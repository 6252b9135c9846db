package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"field-service/internal/capture"
	"field-service/internal/service"
)

const (
	maxUploadBytes = 5 << 20
	maxBackupBytes = 50 << 20
)

type Handler struct {
	fieldService   *service.FieldService
	yieldService   *service.YieldService
	reportService  *service.ReportService
	shareService   *service.ShareService
	captureService *service.CaptureService
	log            zerolog.Logger
}

func NewHandler(
	fieldService *service.FieldService,
	yieldService *service.YieldService,
	reportService *service.ReportService,
	shareService *service.ShareService,
	captureService *service.CaptureService,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		fieldService:   fieldService,
		yieldService:   yieldService,
		reportService:  reportService,
		shareService:   shareService,
		captureService: captureService,
		log:            log,
	}
}

func (h *Handler) Register(r *gin.Engine, shareMiddleware gin.HandlerFunc) {
	fields := r.Group("/fields")
	{
		fields.GET("", h.listFields)
		fields.POST("", h.registerField)
		fields.GET("/:id", h.getField)
		fields.PATCH("/:id", h.editField)
		fields.DELETE("/:id", h.deleteField)
		fields.GET("/:id/details", h.getFieldDetails)
		fields.GET("/:id/snapshots", h.listSnapshots)
		fields.GET("/:id/snapshots/latest", h.getLatestSnapshot)
		fields.POST("/:id/snapshots", h.recordSnapshot)
		fields.GET("/:id/events", h.listEvents)
		fields.POST("/:id/events", h.addEvent)
		fields.GET("/:id/report", h.getReport)
		fields.GET("/:id/export.xlsx", h.exportWorkbook)
		fields.POST("/:id/share", h.createShareLink)
		fields.POST("/:id/yield-prediction", h.predictYield)
	}

	r.GET("/shared/:token", shareMiddleware, h.getSharedField)

	r.GET("/preferences", h.getPreferences)
	r.PUT("/preferences", h.savePreferences)

	data := r.Group("/data")
	{
		data.GET("/export", h.exportData)
		data.POST("/import", h.importData)
	}

	boundaries := r.Group("/boundaries")
	{
		boundaries.POST("/points", h.capturePoints)
		boundaries.POST("/center-radius", h.captureCenterRadius)
		boundaries.POST("/square", h.captureSquare)
		boundaries.POST("/import", h.importBoundary)
		boundaries.POST("/walk", h.startWalk)
		boundaries.POST("/walk/:id/samples", h.pushWalkSamples)
		boundaries.POST("/walk/:id/stop", h.stopWalk)
		boundaries.DELETE("/walk/:id", h.discardWalk)
	}

	r.GET("/gps/accuracy", h.classifyAccuracy)
}

func (h *Handler) handleError(c *gin.Context, err error) {
	var validation *service.ValidationError
	var importErr *capture.ImportError
	switch {
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid input",
			"details": validation.Reasons,
		})
	case errors.As(err, &importErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error": importErr.Reason,
			"kind":  importErr.Kind,
		})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, errorResponse(err.Error()))
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
	case errors.Is(err, service.ErrConflict):
		c.JSON(http.StatusConflict, errorResponse(err.Error()))
	case errors.Is(err, service.ErrUnavailable):
		c.JSON(http.StatusServiceUnavailable, errorResponse(err.Error()))
	case errors.Is(err, service.ErrUpstream):
		h.log.Warn().Err(err).Str("path", c.FullPath()).Msg("upstream failure")
		c.JSON(http.StatusBadGateway, gin.H{
			"error": "yield prediction service failed",
			"hint":  "try again in a moment",
		})
	default:
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("handler error")
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
	}
}

func successResponse(data interface{}) gin.H {
	return gin.H{
		"data": data,
	}
}

func errorResponse(message string) gin.H {
	return gin.H{
		"error": message,
	}
}

func pathID(c *gin.Context) (string, bool) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		c.JSON(http.StatusBadRequest, errorResponse("invalid id"))
		return "", false
	}
	return id, true
}
