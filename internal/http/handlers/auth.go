package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/secondbrain-backend/internal/http/response"
	apperr "github.com/yungbote/secondbrain-backend/internal/pkg/errors"
	"github.com/yungbote/secondbrain-backend/internal/services"
)

type AuthHandler struct {
	authService services.AuthService
}

func NewAuthHandler(authService services.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

func (ah *AuthHandler) Signup(c *gin.Context) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
		Email    string `json:"email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondAppError(c, apperr.Validation(err.Error()))
		return
	}
	user, err := ah.authService.Signup(c.Request.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		response.RespondAppError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"success": true, "userId": user.ID.String()})
}

func (ah *AuthHandler) Signin(c *gin.Context) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondAppError(c, apperr.Validation(err.Error()))
		return
	}
	token, err := ah.authService.Signin(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		response.RespondAppError(c, err)
		return
	}
	response.RespondOK(c, gin.H{
		"success":    true,
		"token":      token,
		"expires_in": int(ah.authService.GetAccessTTL().Seconds()),
	})
}
