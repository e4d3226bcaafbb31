// Package remote implements the correlated call layer over the single
// WebSocket connection to the player-control service.
package remote

import "encoding/json"

const (
	namespaceResult = "result"
	resultTypeError = "error"

	ChannelConnect   = "connect"
	ChannelTrack     = "track"
	ChannelPlayState = "playState"

	codeRequired = "CODE_REQUIRED"
)

// Request is the outbound wire shape of a call.
type Request struct {
	RequestID uint64 `json:"requestID"`
	Namespace string `json:"namespace"`
	Method    string `json:"method"`
	Arguments []any  `json:"arguments"`
}

// inbound covers both correlated results and unsolicited notifications.
type inbound struct {
	RequestID *uint64         `json:"requestID"`
	Namespace string          `json:"namespace"`
	Type      string          `json:"type"`
	Value     json.RawMessage `json:"value"`
	Channel   string          `json:"channel"`
	Payload   json.RawMessage `json:"payload"`
}

// Notification is an unsolicited message forwarded without interpretation.
type Notification struct {
	Channel string
	Payload json.RawMessage
}

type NotificationHandler interface {
	HandleNotification(n Notification)
}

// NotificationHandlerFunc adapts a function to NotificationHandler.
type NotificationHandlerFunc func(n Notification)

func (f NotificationHandlerFunc) HandleNotification(n Notification) { f(n) }
