package http

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"field-service/internal/http/middleware"
	"field-service/internal/model"
	"field-service/internal/narration"
	"field-service/internal/service"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (h *Handler) listFields(c *gin.Context) {
	fields, err := h.fieldService.List(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(fields))
}

func (h *Handler) registerField(c *gin.Context) {
	var req service.RegisterInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	field, err := h.fieldService.Register(c.Request.Context(), req, middleware.MustActor(c))
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, successResponse(field))
}

func (h *Handler) getField(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	field, err := h.fieldService.Get(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(field))
}

func (h *Handler) getFieldDetails(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	details, err := h.fieldService.Details(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(details))
}

func (h *Handler) editField(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var patch model.FieldPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	field, err := h.fieldService.Edit(c.Request.Context(), id, patch, middleware.MustActor(c))
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(field))
}

func (h *Handler) deleteField(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	if err := h.fieldService.Delete(c.Request.Context(), id); err != nil {
		h.handleError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) listSnapshots(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	snapshots, err := h.fieldService.Snapshots(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(snapshots))
}

func (h *Handler) getLatestSnapshot(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	snapshot, err := h.fieldService.LatestSnapshot(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(snapshot))
}

func (h *Handler) recordSnapshot(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req service.SnapshotInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	snapshot, err := h.fieldService.RecordSnapshot(c.Request.Context(), id, req, middleware.MustActor(c))
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, successResponse(snapshot))
}

func (h *Handler) listEvents(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	events, err := h.fieldService.Timeline(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(events))
}

func (h *Handler) addEvent(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req service.EventInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	event, err := h.fieldService.AddEvent(c.Request.Context(), id, req, middleware.MustActor(c))
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, successResponse(event))
}

func (h *Handler) getReport(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	opts := narration.DefaultOptions()
	if raw := strings.TrimSpace(c.Query("length")); raw != "" {
		opts.Length = narration.Length(strings.ToLower(raw))
	}
	if raw := strings.TrimSpace(c.Query("lang")); raw != "" {
		opts.Language = strings.ToLower(raw)
	}
	if raw := strings.TrimSpace(c.Query("volume")); raw != "" {
		volume, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse("volume must be a number between 0 and 1"))
			return
		}
		opts.Volume = volume
	}
	if raw := strings.TrimSpace(c.Query("muted")); raw != "" {
		muted, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse("muted must be true or false"))
			return
		}
		opts.Muted = muted
	}

	utterance, err := h.reportService.Narrate(c.Request.Context(), id, opts)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(utterance))
}

func (h *Handler) exportWorkbook(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	data, filename, err := h.reportService.Workbook(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, xlsxContentType, data)
}

func (h *Handler) createShareLink(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	link, err := h.shareService.Create(c.Request.Context(), id, middleware.MustActor(c))
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, successResponse(link))
}

func (h *Handler) getSharedField(c *gin.Context) {
	claims, ok := middleware.MustShareClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("missing share claims"))
		return
	}

	shared, err := h.shareService.Shared(c.Request.Context(), claims)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(shared))
}

func (h *Handler) predictYield(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req service.YieldInput
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
			return
		}
	}

	record, err := h.yieldService.Predict(c.Request.Context(), id, req, middleware.MustActor(c))
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(record))
}
