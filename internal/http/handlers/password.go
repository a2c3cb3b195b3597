package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/tasktracker-backend/internal/http/response"
	"github.com/yungbote/tasktracker-backend/internal/services"
)

type PasswordHandler struct {
	resetService services.PasswordResetService
}

func NewPasswordHandler(resetService services.PasswordResetService) *PasswordHandler {
	return &PasswordHandler{resetService: resetService}
}

// POST /forgot-password/
// body: { "email": "..." }
func (ph *PasswordHandler) ForgotPassword(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required,email"`
	}
	if !bindJSON(c, &req) {
		return
	}
	if err := ph.resetService.RequestReset(c.Request.Context(), req.Email); err != nil {
		response.RespondAPIError(c, err, "forgot_password_failed")
		return
	}
	response.RespondOK(c, gin.H{"message": services.ForgotPasswordMessage})
}

// POST /reset-password/
// body: { "uid", "token", "new_password", "confirm_password" }
// Field rules are checked by the service so the mismatch check keeps its order.
func (ph *PasswordHandler) ResetPassword(c *gin.Context) {
	var req struct {
		UID             string `json:"uid"`
		Token           string `json:"token"`
		NewPassword     string `json:"new_password"`
		ConfirmPassword string `json:"confirm_password"`
	}
	if !bindJSON(c, &req) {
		return
	}
	err := ph.resetService.ResetPassword(c.Request.Context(), services.ResetPasswordInput{
		UID:             req.UID,
		Token:           req.Token,
		NewPassword:     req.NewPassword,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		response.RespondAPIError(c, err, "reset_password_failed")
		return
	}
	response.RespondOK(c, gin.H{"message": "Password reset successful"})
}
