package http

import (
	"github.com/gin-gonic/gin"

	"github.com/ragviet/ragviet-service/internal/domain/auth"
)

const authUserKey = "auth_user"

func setAuthUser(c *gin.Context, user auth.UserView) {
	c.Set(authUserKey, user)
}

func getAuthUser(c *gin.Context) (auth.UserView, bool) {
	value, ok := c.Get(authUserKey)
	if !ok {
		return auth.UserView{}, false
	}
	user, ok := value.(auth.UserView)
	return user, ok
}
