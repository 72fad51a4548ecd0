// Package present holds the pure presentation rules the gateway applies to
// notifications: where a selected notification leads and how it is shown.
package present

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/moyoez/fleet-notify/types"
)

const DefaultIcon = "bi-bell"

var icons = map[types.NotificationType]string{
	types.NotifyTypeMaintenance: "bi-tools",
	types.NotifyTypeRoute:       "bi-map",
	types.NotifyTypeEmergency:   "bi-exclamation-triangle-fill",
	types.NotifyTypeSystem:      "bi-gear",
	types.NotifyTypeMessage:     "bi-chat-dots",
	types.NotifyTypeAlert:       "bi-bell-fill",
	types.NotifyTypeDriver:      "bi-person-badge",
}

// Icon returns the icon class for a type, DefaultIcon for unknown types.
func Icon(t types.NotificationType) string {
	if icon, ok := icons[t]; ok {
		return icon
	}
	return DefaultIcon
}

// RequiresInteraction reports whether the alert must stay until dismissed.
func RequiresInteraction(p types.Priority) bool {
	return p.Normalize() == types.PriorityHigh
}

// Route maps a selected notification to its target. It never navigates itself.
func Route(t types.NotificationType, data map[string]any) types.Target {
	switch t {
	case types.NotifyTypeMaintenance:
		if id, ok := identifier(data, "vehicle_id"); ok {
			return types.Target{Action: types.TargetNavigate, Path: "/vehicle-maintenance/" + id}
		}
	case types.NotifyTypeRoute:
		if id, ok := identifier(data, "route_id"); ok {
			return types.Target{Action: types.TargetNavigate, Path: "/route/" + id}
		}
	case types.NotifyTypeEmergency:
		return types.Target{Action: types.TargetNavigate, Path: "/emergency-alerts"}
	case types.NotifyTypeMessage:
		return types.Target{Action: types.TargetClosePanel}
	}
	return types.Target{}
}

// identifier reads an id out of the opaque payload. JSON numbers arrive as float64.
func identifier(data map[string]any, key string) (string, bool) {
	raw, ok := data[key]
	if !ok || raw == nil {
		return "", false
	}
	var id string
	switch v := raw.(type) {
	case string:
		id = strings.TrimSpace(v)
	case float64:
		if v != math.Trunc(v) {
			return "", false
		}
		id = strconv.FormatInt(int64(v), 10)
	case int:
		id = strconv.Itoa(v)
	case int64:
		id = strconv.FormatInt(v, 10)
	case json.Number:
		id = v.String()
	default:
		return "", false
	}
	return id, id != ""
}

// TimeAgo renders a relative timestamp the way the notification panel does.
func TimeAgo(created, now time.Time) string {
	if created.IsZero() {
		return ""
	}
	seconds := int(now.Sub(created).Seconds())
	switch {
	case seconds < 60:
		return "Just now"
	case seconds < 3600:
		return plural(seconds/60, "minute")
	case seconds < 86400:
		return plural(seconds/3600, "hour")
	case seconds < 604800:
		return plural(seconds/86400, "day")
	}
	return created.Local().Format("2006-01-02")
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s ago", unit)
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}

// BadgeLabel is the unread badge text; empty hides the badge.
func BadgeLabel(count int) string {
	switch {
	case count <= 0:
		return ""
	case count > 99:
		return "99+"
	}
	return strconv.Itoa(count)
}

// View is a notification decorated for the gateway.
type View struct {
	types.Notification
	Icon               string       `json:"icon"`
	TimeAgo            string       `json:"timeAgo"`
	RequireInteraction bool         `json:"requireInteraction"`
	Target             types.Target `json:"target"`
}

func NewView(n types.Notification, now time.Time) View {
	n.Priority = n.Priority.Normalize()
	return View{
		Notification:       n,
		Icon:               Icon(n.Type),
		TimeAgo:            TimeAgo(n.CreatedAt, now),
		RequireInteraction: RequiresInteraction(n.Priority),
		Target:             Route(n.Type, n.Data),
	}
}

// SnapshotView is a snapshot decorated for the gateway.
type SnapshotView struct {
	Notifications []View `json:"notifications"`
	UnreadCount   int    `json:"unreadCount"`
	Badge         string `json:"badge"`
}

func NewSnapshotView(s types.Snapshot, now time.Time) SnapshotView {
	views := make([]View, 0, len(s.Notifications))
	for _, n := range s.Notifications {
		views = append(views, NewView(n, now))
	}
	return SnapshotView{
		Notifications: views,
		UnreadCount:   s.UnreadCount,
		Badge:         BadgeLabel(s.UnreadCount),
	}
}
