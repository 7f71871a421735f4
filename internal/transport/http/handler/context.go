package handler

import (
	"github.com/gin-gonic/gin"

	"docuchat/internal/access"
	"docuchat/internal/transport/http/middleware"
)

// identity is the authenticated caller, as placed on the context by the
// JWT middleware. Core calls always receive it explicitly.
type identity struct {
	UserID   uint
	Username string
	Role     access.Role
}

func identityFromContext(c *gin.Context) (identity, bool) {
	userIDAny, ok := c.Get(middleware.ContextUserIDKey)
	if !ok {
		return identity{}, false
	}
	userID, ok := userIDAny.(uint)
	if !ok {
		return identity{}, false
	}

	usernameAny, ok := c.Get(middleware.ContextUsernameKey)
	if !ok {
		return identity{}, false
	}
	username, ok := usernameAny.(string)
	if !ok || username == "" {
		return identity{}, false
	}

	roleAny, ok := c.Get(middleware.ContextRoleKey)
	if !ok {
		return identity{}, false
	}
	role, ok := roleAny.(access.Role)
	if !ok {
		return identity{}, false
	}

	return identity{UserID: userID, Username: username, Role: role}, true
}
