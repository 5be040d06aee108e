package events

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/wiktoriasw/Invitations/internal/apperr"
	"github.com/wiktoriasw/Invitations/internal/middleware"
	"github.com/wiktoriasw/Invitations/pkg/response"
	"github.com/wiktoriasw/Invitations/pkg/storage"
	"github.com/wiktoriasw/Invitations/pkg/utils"
)

// CreateRequest is the body for POST /events.
type CreateRequest struct {
	Name             string  `json:"name" binding:"required"`
	Description      *string `json:"description"`
	IsPublic         bool    `json:"is_public"`
	StartTime        string  `json:"start_time" binding:"required"`
	Location         string  `json:"location" binding:"required"`
	Menu             string  `json:"menu" binding:"required"`
	DecisionDeadline string  `json:"decision_deadline" binding:"required"`
}

// ModifyRequest is the body for PUT /events/:uuid. Absent and null fields are ignored.
type ModifyRequest struct {
	Name             *string `json:"name"`
	Description      *string `json:"description"`
	IsPublic         *bool   `json:"is_public"`
	StartTime        *string `json:"start_time"`
	Location         *string `json:"location"`
	Menu             *string `json:"menu"`
	DecisionDeadline *string `json:"decision_deadline"`
}

// PhotoUploadRequest is the body for POST /events/:uuid/background_photo/upload_url.
type PhotoUploadRequest struct {
	ContentType string `json:"content_type" binding:"required"`
}

// Handler handles event HTTP endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates an events handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// Create handles POST /events.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	start, err := utils.ParseTime(req.StartTime)
	if err != nil {
		response.BadRequest(c, "invalid start_time")
		return
	}
	deadline, err := utils.ParseTime(req.DecisionDeadline)
	if err != nil {
		response.BadRequest(c, "invalid decision_deadline")
		return
	}
	e, err := h.svc.Create(c.Request.Context(), middleware.CurrentUser(c), Input{
		Name:             req.Name,
		Description:      req.Description,
		IsPublic:         req.IsPublic,
		StartTime:        start,
		Location:         req.Location,
		Menu:             req.Menu,
		DecisionDeadline: deadline,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, e)
}

// ListMine handles GET /events.
func (h *Handler) ListMine(c *gin.Context) {
	skip, limit := utils.Pagination(c)
	list, err := h.svc.ListMine(c.Request.Context(), middleware.CurrentUser(c), skip, limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, list)
}

// ListPublic handles GET /events/public.
func (h *Handler) ListPublic(c *gin.Context) {
	skip, limit := utils.Pagination(c)
	list, err := h.svc.ListPublic(c.Request.Context(), skip, limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, list)
}

// Get handles GET /events/:uuid.
func (h *Handler) Get(c *gin.Context) {
	id, ok := utils.UUIDParam(c, "uuid")
	if !ok {
		response.NotFound(c, "event not found")
		return
	}
	e, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, e)
}

// Modify handles PUT /events/:uuid.
func (h *Handler) Modify(c *gin.Context) {
	id, ok := utils.UUIDParam(c, "uuid")
	if !ok {
		response.NotFound(c, "event not found")
		return
	}
	var req ModifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	patch := Patch{
		Name:        req.Name,
		Description: req.Description,
		IsPublic:    req.IsPublic,
		Location:    req.Location,
		Menu:        req.Menu,
	}
	var err error
	if patch.StartTime, err = optionalTime(req.StartTime); err != nil {
		response.BadRequest(c, "invalid start_time")
		return
	}
	if patch.DecisionDeadline, err = optionalTime(req.DecisionDeadline); err != nil {
		response.BadRequest(c, "invalid decision_deadline")
		return
	}
	e, err := h.svc.Modify(c.Request.Context(), middleware.CurrentUser(c), id, patch)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, e)
}

// Delete handles DELETE /events/:uuid.
func (h *Handler) Delete(c *gin.Context) {
	id, ok := utils.UUIDParam(c, "uuid")
	if !ok {
		response.NotFound(c, "event not found")
		return
	}
	e, err := h.svc.Delete(c.Request.Context(), middleware.CurrentUser(c), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, e)
}

// Guests handles GET /events/:uuid/guests.
func (h *Handler) Guests(c *gin.Context) {
	id, ok := utils.UUIDParam(c, "uuid")
	if !ok {
		response.NotFound(c, "event not found")
		return
	}
	skip, limit := utils.Pagination(c)
	list, err := h.svc.Guests(c.Request.Context(), middleware.CurrentUser(c), id, skip, limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, list)
}

// Stats handles GET /events/:uuid/stats.
func (h *Handler) Stats(c *gin.Context) {
	id, ok := utils.UUIDParam(c, "uuid")
	if !ok {
		response.NotFound(c, "event not found")
		return
	}
	st, err := h.svc.Stats(c.Request.Context(), middleware.CurrentUser(c), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, st)
}

// PhotoUploadURL handles POST /events/:uuid/background_photo/upload_url.
func (h *Handler) PhotoUploadURL(c *gin.Context) {
	id, ok := utils.UUIDParam(c, "uuid")
	if !ok {
		response.NotFound(c, "event not found")
		return
	}
	var req PhotoUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	up, err := h.svc.PhotoUploadURL(c.Request.Context(), middleware.CurrentUser(c), id, req.ContentType)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, up)
}

// UploadPhoto handles POST /events/:uuid/background_photo (multipart field "file").
func (h *Handler) UploadPhoto(c *gin.Context) {
	id, ok := utils.UUIDParam(c, "uuid")
	if !ok {
		response.NotFound(c, "event not found")
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, storage.MaxPhotoSize+1024*1024)
	fh, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "file is required")
		return
	}
	if fh.Size > storage.MaxPhotoSize {
		response.BadRequest(c, "file too large")
		return
	}
	f, err := fh.Open()
	if err != nil {
		response.BadRequest(c, "cannot read file")
		return
	}
	defer f.Close()
	e, err := h.svc.UploadPhoto(c.Request.Context(), middleware.CurrentUser(c), id, fh.Header.Get("Content-Type"), f)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, e)
}

// Photo handles GET /events/:uuid/background_photo by redirecting to a pre-signed URL.
func (h *Handler) Photo(c *gin.Context) {
	id, ok := utils.UUIDParam(c, "uuid")
	if !ok {
		response.NotFound(c, "event not found")
		return
	}
	url, err := h.svc.PhotoURL(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Redirect(http.StatusFound, url)
}

func (h *Handler) fail(c *gin.Context, err error) {
	if errors.Is(err, ErrPhotosDisabled) {
		response.ServiceUnavailable(c, err.Error())
		return
	}
	if apperr.Message(err, "") == "" {
		h.logger.Error("events request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	response.Error(c, err)
}

func optionalTime(s *string) (*time.Time, error) {
	if s == nil {
		return nil, nil
	}
	t, err := utils.ParseTime(*s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
