package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"

	"clinic-portal-server/internal/backend"
	"clinic-portal-server/internal/middleware"
	"clinic-portal-server/internal/utils"
)

// AuthHandler handles authentication-related requests.
type AuthHandler struct {
	Auth backend.Authenticator
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(auth backend.Authenticator) *AuthHandler {
	return &AuthHandler{Auth: auth}
}

// LoginRequest represents the request body for user login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email" msg:"กรุณากรอกอีเมล"`
	Password string `json:"password" validate:"required" msg:"กรุณากรอกรหัสผ่าน"`
}

// Login exchanges credentials for a session.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if !utils.BindJSON(c, &req) {
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if err := utils.Validate(&req); err != nil {
		respondError(c, err, nil)
		return
	}

	session, err := h.Auth.CurrentSession(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err, nil)
		return
	}
	if session == nil {
		utils.Unauthorized(c, "Email not confirmed")
		return
	}
	utils.Success(c, "Login successful", session)
}

// ProfileResponse is the caller as seen by the token.
type ProfileResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// GetProfile returns the identity of the bearer token.
func (h *AuthHandler) GetProfile(c *gin.Context) {
	claims, ok := middleware.GetClaimsFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not found in token")
		return
	}
	utils.Success(c, "Profile retrieved successfully", ProfileResponse{
		ID:    claims.UserID(),
		Email: claims.Email,
		Role:  claims.AppRole(),
	})
}
