package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/teamello/backend/internal/services"
	"github.com/teamello/backend/pkg/response"
)

type SystemConfigHandler struct {
	configService *services.SystemConfigService
}

func NewSystemConfigHandler(configService *services.SystemConfigService) *SystemConfigHandler {
	return &SystemConfigHandler{configService: configService}
}

// List returns the runtime settings, optionally one group (?group=analysis).
// GET /api/settings
func (h *SystemConfigHandler) List(c *gin.Context) {
	var (
		configs interface{}
		err     error
	)
	if group := c.Query("group"); group != "" {
		configs, err = h.configService.GetByGroup(group)
	} else {
		configs, err = h.configService.List()
	}
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, configs)
}

// Update sets runtime settings from a {key: value} object. Unknown keys are rejected.
// PUT /api/settings
func (h *SystemConfigHandler) Update(c *gin.Context) {
	var req map[string]string
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if err := h.configService.SetMany(req); err != nil {
		fail(c, err)
		return
	}

	configs, err := h.configService.List()
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, configs)
}
