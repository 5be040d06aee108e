package guests

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wiktoriasw/Invitations/internal/apperr"
	"github.com/wiktoriasw/Invitations/internal/middleware"
	"github.com/wiktoriasw/Invitations/internal/models"
	"github.com/wiktoriasw/Invitations/pkg/response"
	"github.com/wiktoriasw/Invitations/pkg/utils"
)

// CreateRequest is the body for POST /guests.
type CreateRequest struct {
	EventUUID    string `json:"event_uuid" binding:"required"`
	Name         string `json:"name"`
	Surname      string `json:"surname"`
	Email        string `json:"email"`
	Phone        string `json:"phone" binding:"max=20"`
	HasCompanion bool   `json:"has_companion"`
}

// AnswerRequest is the body for POST /guests/:uuid/answer.
type AnswerRequest struct {
	Answer   *bool   `json:"answer" binding:"required"`
	Menu     *string `json:"menu"`
	Comments *string `json:"comments"`
}

// CompanionAnswerRequest is the body for POST /guests/:uuid/companion_answer.
type CompanionAnswerRequest struct {
	Answer   *bool   `json:"answer" binding:"required"`
	Menu     *string `json:"menu"`
	Comments *string `json:"comments"`
	Name     *string `json:"name"`
	Surname  *string `json:"surname"`
}

// GuestResponse is a guest with its companion's uuid when it has one.
type GuestResponse struct {
	*models.Guest
	CompanionUUID *uuid.UUID `json:"companion_uuid,omitempty"`
}

// Handler handles guest and RSVP endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a guests handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// Create handles POST /guests (organizer of the target event).
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	eventID, err := uuid.Parse(req.EventUUID)
	if err != nil {
		response.NotFound(c, "event not found")
		return
	}
	created, err := h.svc.Create(c.Request.Context(), middleware.CurrentUser(c), CreateInput{
		EventUUID:    eventID,
		Name:         req.Name,
		Surname:      req.Surname,
		Email:        req.Email,
		Phone:        req.Phone,
		HasCompanion: req.HasCompanion,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	res := GuestResponse{Guest: created.Guest}
	if created.Companion != nil {
		res.CompanionUUID = &created.Companion.UUID
	}
	response.OK(c, res)
}

// List handles GET /guests (admin).
func (h *Handler) List(c *gin.Context) {
	skip, limit := utils.Pagination(c)
	list, err := h.svc.List(c.Request.Context(), skip, limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, list)
}

// Get handles GET /guests/:uuid.
func (h *Handler) Get(c *gin.Context) {
	id, ok := utils.UUIDParam(c, "uuid")
	if !ok {
		response.NotFound(c, "guest not found")
		return
	}
	g, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, g)
}

// Delete handles DELETE /guests/:uuid (organizer).
func (h *Handler) Delete(c *gin.Context) {
	id, ok := utils.UUIDParam(c, "uuid")
	if !ok {
		response.NotFound(c, "guest not found")
		return
	}
	g, err := h.svc.Delete(c.Request.Context(), middleware.CurrentUser(c), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, g)
}

// Answer handles POST /guests/:uuid/answer.
func (h *Handler) Answer(c *gin.Context) {
	id, ok := utils.UUIDParam(c, "uuid")
	if !ok {
		response.NotFound(c, "guest not found")
		return
	}
	var req AnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	res, err := h.svc.Answer(c.Request.Context(), id, AnswerInput{
		Answer:   *req.Answer,
		Menu:     req.Menu,
		Comments: req.Comments,
	})
	if err != nil {
		// Companions hitting the primary endpoint get 401 on the wire.
		if errors.Is(err, ErrCompanionSelfAnswer) {
			response.Unauthorized(c, err.Error())
			return
		}
		h.fail(c, err)
		return
	}
	response.OK(c, GuestResponse{Guest: res.Guest, CompanionUUID: res.CompanionUUID})
}

// CompanionAnswer handles POST /guests/:uuid/companion_answer.
func (h *Handler) CompanionAnswer(c *gin.Context) {
	id, ok := utils.UUIDParam(c, "uuid")
	if !ok {
		response.NotFound(c, "companion not found")
		return
	}
	var req CompanionAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	g, err := h.svc.CompanionAnswer(c.Request.Context(), id, CompanionAnswerInput{
		Answer:   *req.Answer,
		Menu:     req.Menu,
		Comments: req.Comments,
		Name:     req.Name,
		Surname:  req.Surname,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, g)
}

func (h *Handler) fail(c *gin.Context, err error) {
	if apperr.Message(err, "") == "" {
		h.logger.Error("guests request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	response.Error(c, err)
}
