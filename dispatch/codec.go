package dispatch

import (
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/moyoez/fleet-notify/types"
)

var (
	// ErrMalformed covers frames that do not parse or lack a type.
	ErrMalformed = errors.New("malformed frame")
	// ErrUnknownType is returned for frame types this client does not know.
	ErrUnknownType = errors.New("unknown frame type")
)

// Decode parses a raw frame into the typed message union.
func Decode(raw []byte) (types.Message, error) {
	var frame types.Frame
	if err := sonic.Unmarshal(raw, &frame); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if frame.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrMalformed)
	}

	switch frame.Type {
	case types.FrameTypeNotification:
		var n types.Notification
		if err := decodeData(frame, &n); err != nil {
			return nil, err
		}
		if n.ID == "" {
			return nil, fmt.Errorf("%w: notification without id", ErrMalformed)
		}
		return types.NotificationMessage{Notification: n}, nil
	case types.FrameTypeUnreadCount:
		var data struct {
			Count *int `json:"count"`
		}
		if err := decodeData(frame, &data); err != nil {
			return nil, err
		}
		if data.Count == nil {
			return nil, fmt.Errorf("%w: unread_count without count", ErrMalformed)
		}
		return types.UnreadCountMessage{Count: *data.Count}, nil
	case types.FrameTypeNotificationRead:
		var data types.NotificationReadMessage
		if err := decodeData(frame, &data); err != nil {
			return nil, err
		}
		if data.NotificationID == "" {
			return nil, fmt.Errorf("%w: notification_read without notification_id", ErrMalformed)
		}
		return data, nil
	case types.FrameTypeSubscribe:
		var data types.SubscribeMessage
		if err := decodeData(frame, &data); err != nil {
			return nil, err
		}
		return data, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownType, frame.Type)
}

func decodeData(frame types.Frame, v any) error {
	if len(frame.Data) == 0 {
		return fmt.Errorf("%w: %s without data", ErrMalformed, frame.Type)
	}
	if err := sonic.Unmarshal(frame.Data, v); err != nil {
		return fmt.Errorf("%w: %s data: %v", ErrMalformed, frame.Type, err)
	}
	return nil
}

// Encode serialises a message into a wire frame.
func Encode(msg types.Message) ([]byte, error) {
	var data any
	switch m := msg.(type) {
	case types.NotificationMessage:
		data = m.Notification
	default:
		data = m
	}
	payload, err := sonic.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize %s data: %w", msg.FrameType(), err)
	}
	frame, err := sonic.Marshal(types.Frame{Type: msg.FrameType(), Data: payload})
	if err != nil {
		return nil, fmt.Errorf("failed to serialize %s frame: %w", msg.FrameType(), err)
	}
	return frame, nil
}
