package types

// Snapshot is a point-in-time copy of the notification store.
type Snapshot struct {
	Notifications []Notification `json:"notifications"`
	UnreadCount   int            `json:"unreadCount"`
}

// TargetAction tells the gateway what to do with a selected notification.
type TargetAction string

const (
	TargetNone       TargetAction = ""
	TargetNavigate   TargetAction = "navigate"
	TargetClosePanel TargetAction = "close-panel"
)

// Target is where a selected notification leads.
type Target struct {
	Action TargetAction `json:"action,omitempty"`
	Path   string       `json:"path,omitempty"`
}
