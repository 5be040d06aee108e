package auth

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/wiktoriasw/Invitations/internal/middleware"
	"github.com/wiktoriasw/Invitations/internal/models"
	"github.com/wiktoriasw/Invitations/pkg/response"
)

// LoginRequest is the body for POST /token (form or JSON).
type LoginRequest struct {
	Username string `form:"username" json:"username" binding:"required"`
	Password string `form:"password" json:"password" binding:"required"`
}

// TokenResponse is the POST /token response.
type TokenResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	User        *models.User `json:"user"`
}

// ChangePasswordRequest is the body for POST /change_password.
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

// ForgotPasswordRequest is the body for POST /forget_password.
type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

// ResetPasswordRequest is the body for POST /reset_password_with_token.
type ResetPasswordRequest struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

// Handler handles credential HTTP endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates an auth handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// Login handles POST /token.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBind(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	user, token, err := h.svc.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if !errors.Is(err, ErrBadCredentials) {
			h.logger.Error("authenticate failed", zap.Error(err))
		}
		response.Error(c, err)
		return
	}
	response.OK(c, TokenResponse{AccessToken: token, TokenType: "bearer", User: user})
}

// Me handles GET /users/me.
func (h *Handler) Me(c *gin.Context) {
	response.OK(c, middleware.CurrentUser(c))
}

// ChangePassword handles POST /change_password.
func (h *Handler) ChangePassword(c *gin.Context) {
	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	user, err := h.svc.ChangePassword(c.Request.Context(), middleware.CurrentUser(c), req.OldPassword, req.NewPassword)
	if err != nil {
		if errors.Is(err, ErrWrongPassword) {
			response.NotAcceptable(c, "wrong password")
			return
		}
		response.Error(c, err)
		return
	}
	response.OK(c, user)
}

// ForgotPassword handles POST /forget_password. The reply is identical whether or not the email exists.
func (h *Handler) ForgotPassword(c *gin.Context) {
	var req ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err == nil && req.Email != "" {
		if err := h.svc.ForgotPassword(c.Request.Context(), req.Email); err != nil {
			h.logger.Error("forgot password failed", zap.Error(err))
		}
	}
	response.OK(c, gin.H{"status": "ok"})
}

// ResetPassword handles POST /reset_password_with_token.
func (h *Handler) ResetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	user, err := h.svc.RedeemResetToken(c.Request.Context(), req.Token, req.NewPassword)
	if err != nil {
		if errors.Is(err, ErrTokenNotFound) || errors.Is(err, ErrTokenExpired) {
			response.Unauthorized(c, err.Error())
			return
		}
		h.logger.Error("reset password failed", zap.Error(err))
		response.Error(c, err)
		return
	}
	h.logger.Info("password reset", zap.String("user_uuid", user.UUID.String()))
	response.OK(c, user)
}
