package notify

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/bytedance/sonic"
	"github.com/moyoez/fleet-notify/tool"
	"github.com/moyoez/fleet-notify/types"
)

// NotifyWriteChunkSize is the chunk size when writing payload to Unix socket (avoid large single write).
const NotifyWriteChunkSize = 32 * 1024 // 32KB

// MaxAlertMessageLen keeps alert bodies short enough for OS notification bubbles.
const MaxAlertMessageLen = 512

var (
	// DefaultUnixSocketPath is where the desktop helper listens
	DefaultUnixSocketPath = "/tmp/fleet-notify-alert.sock"
	// UnixSocketTimeout is the timeout for Unix socket operations
	UnixSocketTimeout = 3 * time.Second
)

// SocketSink forwards alerts to a desktop helper over a Unix domain socket.
// The helper plays the sound and shows the OS notification.
type SocketSink struct {
	Path    string
	Timeout time.Duration
	// Done, if set, receives the result of every delivery. Used by tests.
	Done chan<- error
}

// NewSocketSink returns a sink for path, DefaultUnixSocketPath when empty.
func NewSocketSink(path string) *SocketSink {
	if path == "" {
		path = DefaultUnixSocketPath
	}
	return &SocketSink{Path: path, Timeout: UnixSocketTimeout}
}

// Alert delivers in the background so a slow helper never stalls the channel reader.
func (s *SocketSink) Alert(n types.Notification) {
	payload := BuildAlertPayload(n)
	go func() {
		err := s.Send(payload)
		if err != nil {
			tool.DefaultLogger.Warnf("[Alert] Failed to deliver alert %s: %v", n.ID, err)
		}
		if s.Done != nil {
			s.Done <- err
		}
	}()
}

// Send writes one length-prefixed JSON payload and reads the helper's reply.
func (s *SocketSink) Send(alert *types.AlertPayload) error {
	socketPath := s.Path
	if socketPath == "" {
		socketPath = DefaultUnixSocketPath
	}
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = UnixSocketTimeout
	}

	// Check if socket file exists
	if _, err := os.Stat(socketPath); os.IsNotExist(err) {
		return fmt.Errorf("unix socket not found: %s (is the desktop helper running?)", socketPath)
	}

	var payload []byte
	var err error
	if alert != nil {
		payload, err = sonic.Marshal(alert)
		if err != nil {
			return fmt.Errorf("failed to serialize alert: %w", err)
		}
	} else {
		payload = []byte("{}")
	}

	// Reject payload over 32KB
	if len(payload) > NotifyWriteChunkSize {
		return fmt.Errorf("alert payload too large: %d bytes (max %d)", len(payload), NotifyWriteChunkSize)
	}

	conn, err := net.DialTimeout("unix", socketPath, timeout)
	if err != nil {
		return fmt.Errorf("failed to connect to Unix socket %s: %w", socketPath, err)
	}
	defer func() {
		if err := conn.Close(); err != nil {
			tool.DefaultLogger.Errorf("Failed to close Unix socket connection: %v", err)
		}
	}()

	if err := conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		tool.DefaultLogger.Errorf("Failed to set write deadline: %v", err)
	}

	// Send length prefix (4 bytes, little-endian uint32) then payload in chunks
	lengthBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(lengthBuf, uint32(len(payload)))
	if _, err := conn.Write(lengthBuf); err != nil {
		return fmt.Errorf("failed to write length to Unix socket: %w", err)
	}
	tool.DefaultLogger.Debugf("Sending alert to Unix socket (len=%d): %s", len(payload), string(payload))
	for off := 0; off < len(payload); {
		chunkEnd := min(off+NotifyWriteChunkSize, len(payload))
		nw, err := conn.Write(payload[off:chunkEnd])
		if err != nil {
			return fmt.Errorf("failed to write payload to Unix socket: %w", err)
		}
		off += nw
	}

	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		tool.DefaultLogger.Errorf("Failed to set read deadline: %v", err)
	}

	buf := make([]byte, 4096)
	n, err := conn.Read(buf)
	if err != nil && err != io.EOF {
		return fmt.Errorf("failed to read response from Unix socket: %w", err)
	}

	if n > 0 {
		var response map[string]any
		if err := sonic.Unmarshal(buf[:n], &response); err != nil {
			tool.DefaultLogger.Debugf("Unix socket response (raw): %s", string(buf[:n]))
		} else if errMsg, ok := response["error"].(string); ok && errMsg != "" {
			return fmt.Errorf("desktop helper returned error: %s", errMsg)
		}
	}

	if alert != nil {
		tool.DefaultLogger.Infof("[UnixSocket] Alert sent: %s - %s", alert.Type, alert.Title)
	}
	return nil
}
