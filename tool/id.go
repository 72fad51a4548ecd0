package tool

import (
	"github.com/google/uuid"
)

// NewClientID returns the id this process sends as X-Client-ID, so the server
// can tell several admin sessions of the same user apart.
func NewClientID() string {
	return uuid.New().String()
}
