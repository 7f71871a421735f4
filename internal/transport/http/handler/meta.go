package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"docuchat/internal/access"
	"docuchat/internal/transport/http/response"
)

// MetaHandler serves the enumerations the frontend renders as dropdowns:
// roles, confidentiality levels, and the permission matrix.
type MetaHandler struct{}

func NewMetaHandler() *MetaHandler {
	return &MetaHandler{}
}

func (h *MetaHandler) Roles(c *gin.Context) {
	response.OK(c, gin.H{"roles": access.Roles()})
}

func (h *MetaHandler) Levels(c *gin.Context) {
	response.OK(c, gin.H{"confidentiality_levels": access.Levels()})
}

// AllowedLevels returns the levels visible to the authenticated caller.
func (h *MetaHandler) AllowedLevels(c *gin.Context) {
	id, ok := identityFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	levels, err := access.AllowedLevels(id.Role)
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeInvalidRole, err.Error())
		return
	}
	response.OK(c, gin.H{
		"role":           id.Role,
		"allowed_levels": levels,
	})
}

// RolePermissions returns the full role → permission matrix.
func (h *MetaHandler) RolePermissions(c *gin.Context) {
	matrix := make(map[string]gin.H, len(access.Roles()))
	for _, role := range access.Roles() {
		visible, err := access.AllowedLevels(role)
		if err != nil {
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "resolve permissions failed")
			return
		}
		uploadable := make([]access.Level, 0, len(access.Levels()))
		for _, level := range access.Levels() {
			ok, err := access.CanUpload(role, level)
			if err != nil {
				response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "resolve permissions failed")
				return
			}
			if ok {
				uploadable = append(uploadable, level)
			}
		}
		matrix[string(role)] = gin.H{
			"visible_levels": visible,
			"upload_levels":  uploadable,
		}
	}
	response.OK(c, gin.H{"role_permissions": matrix})
}
