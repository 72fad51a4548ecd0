package controllers

import (
	"context"

	"github.com/moyoez/fleet-notify/dispatch"
	"github.com/moyoez/fleet-notify/types"
)

// NotificationService is what the gateway needs from the notification session.
// *session.Session implements it.
type NotificationService interface {
	Snapshot() types.Snapshot
	Lookup(id string) (types.Notification, bool)
	EnsureLoaded(ctx context.Context)
	Open(id string) (types.Target, error)
	MarkRead(id string) error
	MarkAllRead() error
	Refresh(ctx context.Context) error
	Reconnect() error
	Status() types.ConnectionStatus
	Stats() dispatch.Stats
	Config() types.AppConfig
}
