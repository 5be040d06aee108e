package users

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/wiktoriasw/Invitations/internal/apperr"
	"github.com/wiktoriasw/Invitations/internal/middleware"
	"github.com/wiktoriasw/Invitations/internal/models"
	"github.com/wiktoriasw/Invitations/pkg/response"
	"github.com/wiktoriasw/Invitations/pkg/utils"
)

// CreateRequest is the body for POST /users.
type CreateRequest struct {
	Email    string `json:"email" binding:"required,max=50"`
	Password string `json:"password" binding:"required"`
}

// ChangeRoleRequest is the body for POST /users/:uuid/role.
type ChangeRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

// Handler handles user administration endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a users handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// Create handles POST /users.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	user, err := h.svc.Create(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, user)
}

// List handles GET /users (admin).
func (h *Handler) List(c *gin.Context) {
	skip, limit := utils.Pagination(c)
	list, err := h.svc.List(c.Request.Context(), skip, limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, list)
}

// Get handles GET /users/:uuid (admin).
func (h *Handler) Get(c *gin.Context) {
	id, ok := utils.UUIDParam(c, "uuid")
	if !ok {
		response.NotFound(c, "user not found")
		return
	}
	user, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, user)
}

// ChangeRole handles POST /users/:uuid/role (admin, not self).
func (h *Handler) ChangeRole(c *gin.Context) {
	id, ok := utils.UUIDParam(c, "uuid")
	if !ok {
		response.NotFound(c, "user not found")
		return
	}
	var req ChangeRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	user, err := h.svc.ChangeRole(c.Request.Context(), middleware.CurrentUser(c), id, models.Role(req.Role))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, user)
}

// Delete handles DELETE /users/:uuid (self or admin, never admin-self).
func (h *Handler) Delete(c *gin.Context) {
	id, ok := utils.UUIDParam(c, "uuid")
	if !ok {
		response.NotFound(c, "user not found")
		return
	}
	user, err := h.svc.Delete(c.Request.Context(), middleware.CurrentUser(c), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, user)
}

func (h *Handler) fail(c *gin.Context, err error) {
	if apperr.Message(err, "") == "" {
		h.logger.Error("users request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	response.Error(c, err)
}
