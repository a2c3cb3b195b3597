package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/tasktracker-backend/internal/http/response"
	"github.com/yungbote/tasktracker-backend/internal/platform/apierr"
	"github.com/yungbote/tasktracker-backend/internal/platform/ctxutil"
	"github.com/yungbote/tasktracker-backend/internal/platform/logger"
	"github.com/yungbote/tasktracker-backend/internal/services"
)

var errMissingCredentials = apierr.Unauthorized("unauthorized", errors.New("Authentication credentials were not provided."))

type AuthMiddleware struct {
	log         *logger.Logger
	authService services.AuthService
}

func NewAuthMiddleware(log *logger.Logger, authService services.AuthService) *AuthMiddleware {
	middlewareLogger := log.With("middleware", "AuthMiddleware")
	return &AuthMiddleware{log: middlewareLogger, authService: authService}
}

func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := extractTokenFromAll(c)
		if tokenString == "" {
			response.RespondAPIError(c, errMissingCredentials, "unauthorized")
			c.Abort()
			return
		}
		ctx, err := am.authService.SetContextFromToken(c.Request.Context(), tokenString)
		if err != nil {
			am.log.Debug("Token rejected", "path", c.FullPath(), "error", err)
			response.RespondAPIError(c, err, "unauthorized")
			c.Abort()
			return
		}
		rd := ctxutil.GetRequestData(ctx)
		if rd == nil || rd.UserID == 0 {
			response.RespondAPIError(c, errMissingCredentials, "unauthorized")
			c.Abort()
			return
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func extractTokenFromAll(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}
	return strings.TrimSpace(c.Query("token"))
}
