package types

import "time"

// NotificationType is the server-declared category of a notification.
// The set is open: unknown values are kept as-is and get default presentation.
type NotificationType string

const (
	NotifyTypeMaintenance NotificationType = "maintenance"
	NotifyTypeRoute       NotificationType = "route"
	NotifyTypeEmergency   NotificationType = "emergency"
	NotifyTypeSystem      NotificationType = "system"
	NotifyTypeMessage     NotificationType = "message"
	NotifyTypeAlert       NotificationType = "alert"
	NotifyTypeDriver      NotificationType = "driver"
)

// Priority controls whether presentation may require explicit dismissal.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// Normalize maps anything that is not low or high (e.g. the server's "medium") to normal.
func (p Priority) Normalize() Priority {
	switch p {
	case PriorityLow, PriorityHigh:
		return p
	default:
		return PriorityNormal
	}
}

// ReadState is the client-side read state of a notification.
type ReadState string

const (
	ReadStateUnread      ReadState = "unread"
	ReadStateReadPending ReadState = "read-pending" // optimistic, waiting for server confirmation
	ReadStateRead        ReadState = "read"
)

// Notification is one server-pushed event.
type Notification struct {
	ID        string           `json:"id"`
	Type      NotificationType `json:"type"`
	Subject   string           `json:"subject"`
	Message   string           `json:"message"`
	Priority  Priority         `json:"priority,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	Data      map[string]any   `json:"data,omitempty"`       // navigation payload, never validated
	Read      bool             `json:"read,omitempty"`       // only set by the recent-notifications fetch
	ReadState ReadState        `json:"read_state,omitempty"` // local state, not sent by the server
}

// Clone returns a copy that does not share the Data map.
func (n Notification) Clone() Notification {
	if n.Data != nil {
		data := make(map[string]any, len(n.Data))
		for k, v := range n.Data {
			data[k] = v
		}
		n.Data = data
	}
	return n
}

// RecentNotifications is the body of GET /recent-notifications.
type RecentNotifications struct {
	Notifications []Notification `json:"notifications"`
	UnreadCount   int            `json:"unread_count"`
}

// AlertPayload is what an alert sink hands to the desktop helper.
type AlertPayload struct {
	Type               string         `json:"type"`
	Title              string         `json:"title"`
	Message            string         `json:"message"`
	Icon               string         `json:"icon,omitempty"`
	RequireInteraction bool           `json:"requireInteraction,omitempty"`
	Tag                string         `json:"tag,omitempty"`
	Data               map[string]any `json:"data,omitempty"`
}
