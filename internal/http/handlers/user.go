package handlers

import (
	"github.com/gin-gonic/gin"

	types "github.com/yungbote/tasktracker-backend/internal/domain"
	"github.com/yungbote/tasktracker-backend/internal/http/response"
	"github.com/yungbote/tasktracker-backend/internal/platform/dbctx"
	"github.com/yungbote/tasktracker-backend/internal/services"
)

type UserHandler struct {
	userService services.UserService
}

func NewUserHandler(userService services.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

func userBody(u *types.User) gin.H {
	return gin.H{
		"id":         u.ID,
		"email":      u.Email,
		"first_name": u.FirstName,
		"last_name":  u.LastName,
	}
}

// GET /me/
func (uh *UserHandler) GetMe(c *gin.Context) {
	me, err := uh.userService.GetMe(dbctx.Context{Ctx: c.Request.Context()})
	if err != nil {
		response.RespondAPIError(c, err, "get_me_failed")
		return
	}
	response.RespondOK(c, userBody(me))
}

// PATCH /me/
// body: { "first_name": "...", "last_name": "..." }
func (uh *UserHandler) ChangeName(c *gin.Context) {
	var req struct {
		FirstName string `json:"first_name" binding:"required,max=150"`
		LastName  string `json:"last_name" binding:"required,max=150"`
	}
	if !bindJSON(c, &req) {
		return
	}
	u, err := uh.userService.UpdateName(c.Request.Context(), req.FirstName, req.LastName)
	if err != nil {
		response.RespondAPIError(c, err, "change_name_failed")
		return
	}
	response.RespondOK(c, userBody(u))
}
