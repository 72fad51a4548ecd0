package notifyhub

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

func TestUpgraderChecksOrigin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := New()
	engine := gin.New()
	engine.GET("/ws", HandleNotifyWS(hub, nil))
	server := httptest.NewServer(engine)
	defer server.Close()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"

	tests := []struct {
		origin string
		ok     bool
	}{
		{"", true},
		{"http://localhost:3000", true},
		{"http://127.0.0.1:53318", true},
		{"https://evil.example", false},
		{"http://localhost.evil.example", false},
	}
	for _, tt := range tests {
		header := http.Header{}
		if tt.origin != "" {
			header.Set("Origin", tt.origin)
		}
		conn, _, err := websocket.DefaultDialer.Dial(url, header)
		if tt.ok && err != nil {
			t.Errorf("origin %q: expected handshake to succeed, got %v", tt.origin, err)
		}
		if !tt.ok && err == nil {
			t.Errorf("origin %q: expected handshake to fail", tt.origin)
		}
		if conn != nil {
			conn.Close()
		}
	}
}
