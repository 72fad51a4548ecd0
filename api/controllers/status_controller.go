package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/moyoez/fleet-notify/tool"
)

// HandleStatus returns the connection status and frame counters.
// GET /api/self/v1/status
func (ctrl *NotificationController) HandleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"running":    true,
		"connection": ctrl.svc.Status(),
		"frames":     ctrl.svc.Stats(),
	})
}

// HandleReconnect restarts the connection loop, e.g. after it gave up.
// POST /api/self/v1/reconnect
func (ctrl *NotificationController) HandleReconnect(c *gin.Context) {
	if err := ctrl.svc.Reconnect(); err != nil {
		writeServiceError(c, err)
		return
	}
	tool.DefaultLogger.Infof("[Gateway] Manual reconnect requested")
	c.JSON(http.StatusOK, tool.FastReturnSuccessWithData(ctrl.svc.Status()))
}
