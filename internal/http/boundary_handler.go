package http

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"field-service/internal/capture"
	"field-service/internal/service"
)

func (h *Handler) capturePoints(c *gin.Context) {
	var req service.PointsInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	result, err := h.captureService.Points(req)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(result))
}

func (h *Handler) captureCenterRadius(c *gin.Context) {
	var req service.CenterRadiusInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	result, err := h.captureService.CenterRadius(req)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(result))
}

func (h *Handler) captureSquare(c *gin.Context) {
	var req service.SquareInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	result, err := h.captureService.Square(req)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(result))
}

// importBoundary takes a multipart upload in the "file" part.
func (h *Handler) importBoundary(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)

	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("a boundary file is required in the \"file\" field"))
		return
	}
	file, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("failed to open uploaded file"))
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("failed to read uploaded file"))
		return
	}

	outcome, err := h.captureService.Import(header.Filename, content)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(outcome))
}

func (h *Handler) startWalk(c *gin.Context) {
	var gate capture.AccuracyGate
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&gate); err != nil {
			c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
			return
		}
	}

	session, err := h.captureService.StartWalk(gate)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, successResponse(session))
}

func (h *Handler) pushWalkSamples(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req struct {
		Samples []capture.Position `json:"samples" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	session, err := h.captureService.PushSamples(c.Request.Context(), id, req.Samples)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(session))
}

func (h *Handler) stopWalk(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	result, err := h.captureService.FinishWalk(id)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(result))
}

func (h *Handler) discardWalk(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	if err := h.captureService.DiscardWalk(id); err != nil {
		h.handleError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) classifyAccuracy(c *gin.Context) {
	raw := strings.TrimSpace(c.Query("meters"))
	meters, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("meters must be a number"))
		return
	}

	reading, err := h.captureService.Accuracy(meters)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(gin.H{
		"accuracy":       reading.Accuracy,
		"timestamp":      reading.Timestamp,
		"status":         reading.Status,
		"label":          reading.Status.Label(),
		"recommendation": reading.Status.Recommendation(),
	}))
}
