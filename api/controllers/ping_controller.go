package controllers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/moyoez/fleet-notify/tool"
)

const (
	defaultPingCount = 3
	maxPingCount     = 10
	pingTimeout      = 5 * time.Second
)

// PingFunc probes a host. It is tool.PingHost outside of tests.
type PingFunc func(ctx context.Context, host string, count int, timeout time.Duration) (tool.PingResult, error)

// HandlePing checks ICMP reachability of the fleet server, to tell a dead
// network from a dead notification endpoint.
// GET /api/self/v1/diagnostics/ping?count=3
func (ctrl *NotificationController) HandlePing(ping PingFunc) gin.HandlerFunc {
	if ping == nil {
		ping = tool.PingHost
	}
	return func(c *gin.Context) {
		host, err := tool.ServerHost(ctrl.svc.Config().ServerURL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, tool.FastReturnError(err.Error()))
			return
		}
		count := defaultPingCount
		if raw := c.Query("count"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				c.JSON(http.StatusBadRequest, tool.FastReturnError("count must be a positive integer"))
				return
			}
			count = min(n, maxPingCount)
		}

		result, err := ping(c.Request.Context(), host, count, pingTimeout)
		if err != nil {
			tool.DefaultLogger.Warnf("[Gateway] Ping %s failed: %v", host, err)
			c.JSON(http.StatusBadGateway, tool.FastReturnErrorWithData(err.Error(), map[string]any{"host": host}))
			return
		}
		c.JSON(http.StatusOK, tool.FastReturnSuccessWithData(result))
	}
}
