package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"field-service/internal/model"
)

func (h *Handler) getPreferences(c *gin.Context) {
	prefs, err := h.fieldService.Preferences(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(prefs))
}

func (h *Handler) savePreferences(c *gin.Context) {
	var req model.UserPreferences
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	prefs, err := h.fieldService.SavePreferences(c.Request.Context(), req)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(prefs))
}

func (h *Handler) exportData(c *gin.Context) {
	data, err := h.fieldService.Export(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}

	filename := fmt.Sprintf("field-backup-%s.json", time.Now().UTC().Format(time.DateOnly))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/json", data)
}

func (h *Handler) importData(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBackupBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, errorResponse("backup document is too large"))
			return
		}
		c.JSON(http.StatusBadRequest, errorResponse("failed to read request body"))
		return
	}

	if err := h.fieldService.Import(c.Request.Context(), body); err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(gin.H{"imported": true}))
}
