package notify

import (
	"unicode/utf8"

	"github.com/moyoez/fleet-notify/present"
	"github.com/moyoez/fleet-notify/tool"
	"github.com/moyoez/fleet-notify/types"
)

// AlertSink is the capability to alert the user about a pushed notification
// (sound, vibration, OS notification). Environments without it use Noop.
type AlertSink interface {
	Alert(notification types.Notification)
}

// Noop drops every alert.
type Noop struct{}

func (Noop) Alert(types.Notification) {}

// LogSink writes alerts to the default logger.
type LogSink struct{}

func (LogSink) Alert(n types.Notification) {
	tool.DefaultLogger.Infof("[Alert] %s (%s): %s", n.Subject, n.Type, n.Message)
}

// Multi fans an alert out to several sinks.
type Multi []AlertSink

func (m Multi) Alert(n types.Notification) {
	for _, sink := range m {
		if sink != nil {
			sink.Alert(n)
		}
	}
}

// BuildAlertPayload converts a notification into what the desktop helper expects.
func BuildAlertPayload(n types.Notification) *types.AlertPayload {
	message := n.Message
	if len(message) > MaxAlertMessageLen {
		cut := MaxAlertMessageLen
		for cut > 0 && !utf8.RuneStart(message[cut]) {
			cut--
		}
		message = message[:cut] + "..."
	}
	return &types.AlertPayload{
		Type:               string(n.Type),
		Title:              n.Subject,
		Message:            message,
		Icon:               present.Icon(n.Type),
		RequireInteraction: present.RequiresInteraction(n.Priority),
		Tag:                n.ID,
		Data:               n.Data,
	}
}
