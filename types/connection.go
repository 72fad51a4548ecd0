package types

import "time"

// ConnectionState is the state of the connection supervisor.
type ConnectionState string

const (
	ConnectionIdle         ConnectionState = "idle"
	ConnectionConnecting   ConnectionState = "connecting"
	ConnectionOpen         ConnectionState = "open"
	ConnectionReconnecting ConnectionState = "reconnecting"
	ConnectionFailed       ConnectionState = "failed" // terminal until an explicit connect
)

// ConnectionStatus is the observable state of the supervisor.
type ConnectionStatus struct {
	State     ConnectionState `json:"state"`
	Attempt   int             `json:"attempt"`
	LastError string          `json:"lastError,omitempty"`
	ChangedAt time.Time       `json:"changedAt"`
}
