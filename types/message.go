package types

import "encoding/json"

// Frame types on the notification channel.
const (
	FrameTypeSubscribe        = "subscribe"
	FrameTypeNotification     = "notification"
	FrameTypeUnreadCount      = "unread_count"
	FrameTypeNotificationRead = "notification_read"
)

// NotificationsChannel is the channel name sent in the subscribe frame.
const NotificationsChannel = "notifications"

// Frame is the raw envelope of every message in both directions.
type Frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Message is the decoded, typed form of a frame. The set of implementations is closed.
type Message interface {
	FrameType() string
	isMessage()
}

// SubscribeMessage is sent every time the channel opens.
type SubscribeMessage struct {
	Channel string `json:"channel"`
}

// NotificationMessage carries a newly pushed notification.
type NotificationMessage struct {
	Notification Notification
}

// UnreadCountMessage is the server-authoritative unread counter.
type UnreadCountMessage struct {
	Count int `json:"count"`
}

// NotificationReadMessage confirms that the server persisted a read.
type NotificationReadMessage struct {
	NotificationID string `json:"notification_id"`
}

func (SubscribeMessage) FrameType() string        { return FrameTypeSubscribe }
func (NotificationMessage) FrameType() string     { return FrameTypeNotification }
func (UnreadCountMessage) FrameType() string      { return FrameTypeUnreadCount }
func (NotificationReadMessage) FrameType() string { return FrameTypeNotificationRead }

func (SubscribeMessage) isMessage()        {}
func (NotificationMessage) isMessage()     {}
func (UnreadCountMessage) isMessage()      {}
func (NotificationReadMessage) isMessage() {}
