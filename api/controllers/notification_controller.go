package controllers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/moyoez/fleet-notify/present"
	"github.com/moyoez/fleet-notify/session"
	"github.com/moyoez/fleet-notify/tool"
)

type NotificationController struct {
	svc NotificationService
}

func NewNotificationController(svc NotificationService) *NotificationController {
	return &NotificationController{svc: svc}
}

// HandleList returns the notifications with presentation hints.
// GET /api/self/v1/notifications
func (ctrl *NotificationController) HandleList(c *gin.Context) {
	ctrl.svc.EnsureLoaded(c.Request.Context())
	c.JSON(http.StatusOK, tool.FastReturnSuccessWithData(present.NewSnapshotView(ctrl.svc.Snapshot(), time.Now())))
}

// HandleOpen marks the notification read and returns where it leads.
// POST /api/self/v1/notifications/:id/open
func (ctrl *NotificationController) HandleOpen(c *gin.Context) {
	id := c.Param("id")
	target, err := ctrl.svc.Open(id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	tool.DefaultLogger.Debugf("[Gateway] Opened notification %s -> %s %s", id, target.Action, target.Path)
	c.JSON(http.StatusOK, tool.FastReturnSuccessWithData(target))
}

// HandleRead marks a single notification read.
// POST /api/self/v1/notifications/:id/read
func (ctrl *NotificationController) HandleRead(c *gin.Context) {
	if err := ctrl.svc.MarkRead(c.Param("id")); err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, tool.FastReturnSuccess())
}

// HandleReadAll marks every notification read.
// POST /api/self/v1/notifications/read-all
func (ctrl *NotificationController) HandleReadAll(c *gin.Context) {
	if err := ctrl.svc.MarkAllRead(); err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, tool.FastReturnSuccess())
}

// HandleRefresh reloads the recent notifications from the server.
// POST /api/self/v1/notifications/refresh
func (ctrl *NotificationController) HandleRefresh(c *gin.Context) {
	if err := ctrl.svc.Refresh(c.Request.Context()); err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, tool.FastReturnSuccessWithData(present.NewSnapshotView(ctrl.svc.Snapshot(), time.Now())))
}

func writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, session.ErrNotFound):
		c.JSON(http.StatusNotFound, tool.FastReturnError(err.Error()))
	case errors.Is(err, session.ErrClosed):
		c.JSON(http.StatusServiceUnavailable, tool.FastReturnError(err.Error()))
	default:
		c.JSON(http.StatusInternalServerError, tool.FastReturnError(err.Error()))
	}
}
