package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/skip2/go-qrcode"

	"github.com/moyoez/fleet-notify/present"
	"github.com/moyoez/fleet-notify/tool"
	"github.com/moyoez/fleet-notify/types"
)

const (
	defaultQRSize = 200
	maxQRSize     = 512
)

// HandleQRCode returns a PNG QR code of the page a notification leads to, so
// it can be opened on a phone.
// GET /api/self/v1/notifications/:id/qrcode?size=200x200
func (ctrl *NotificationController) HandleQRCode(c *gin.Context) {
	n, ok := ctrl.svc.Lookup(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, tool.FastReturnError("notification not found"))
		return
	}
	target := present.Route(n.Type, n.Data)
	if target.Action != types.TargetNavigate {
		c.JSON(http.StatusUnprocessableEntity, tool.FastReturnError("notification has no page to open"))
		return
	}

	size := parseSize(c.Query("size"))
	if size <= 0 {
		size = defaultQRSize
	}
	if size > maxQRSize {
		size = maxQRSize
	}

	link := tool.BuildTargetURL(ctrl.svc.Config().ServerURL, target.Path)
	png, err := qrcode.Encode(link, qrcode.Medium, size)
	if err != nil {
		c.JSON(http.StatusInternalServerError, tool.FastReturnError("Failed to encode QR code: "+err.Error()))
		return
	}
	c.Header("X-Target-URL", link)
	c.Data(http.StatusOK, "image/png", png)
}

// parseSize parses size from "200x200" or "200" and returns the pixel dimension.
func parseSize(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	if idx := strings.Index(s, "x"); idx > 0 {
		s = strings.TrimSpace(s[:idx])
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0
	}
	return n
}
