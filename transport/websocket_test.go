package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestWebSocketDialerEcho(t *testing.T) {
	gotHeader := make(chan string, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader <- r.Header.Get("Authorization")
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(mt, data); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	dialer := &WebSocketDialer{
		URL:    wsURL(server),
		Header: http.Header{"Authorization": []string{"Bearer abc"}},
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ch, err := dialer.Dial(ctx)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer ch.Close()

	if h := <-gotHeader; h != "Bearer abc" {
		t.Errorf("expected Authorization header, got %q", h)
	}
	if err := ch.Send(ctx, []byte(`{"type":"subscribe"}`)); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	data, err := ch.Receive()
	if err != nil {
		t.Fatalf("receive failed: %v", err)
	}
	if string(data) != `{"type":"subscribe"}` {
		t.Errorf("unexpected echo: %s", data)
	}
}

func TestWebSocketDialerRefused(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer server.Close()

	dialer := &WebSocketDialer{URL: wsURL(server)}
	if _, err := dialer.Dial(context.Background()); err == nil {
		t.Fatal("expected dial error")
	}
}

func TestChannelReceiveAfterServerClose(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn.Close()
	}))
	defer server.Close()

	ch, err := (&WebSocketDialer{URL: wsURL(server)}).Dial(context.Background())
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	if _, err := ch.Receive(); err == nil {
		t.Error("expected receive error after server close")
	}
	if err := ch.Close(); err != nil {
		t.Logf("close after server close: %v", err)
	}
	if err := ch.Send(context.Background(), []byte("x")); err != ErrChannelClosed {
		t.Errorf("expected ErrChannelClosed, got %v", err)
	}
}
