package websocket

import (
	"context"
	"encoding/json"

	"github.com/jobyojnahub-a11y/websevixof/internal/realtime"
)

// FrameHandler is what a connection hands its inbound frames to.
type FrameHandler interface {
	Connected(conn realtime.Conn)
	HandleFrame(ctx context.Context, conn realtime.Conn, raw []byte) realtime.Ack
}

// envelope is one room delivery as it travels between processes.
type envelope struct {
	Room   string          `json:"room"`
	Except string          `json:"except,omitempty"`
	Frame  json.RawMessage `json:"frame"`
}

type joinRequest struct {
	client *Client
	room   string
}

// Options tune the connection manager.
type Options struct {
	AllowedOrigins []string
	RatePerSecond  float64
	Burst          int
	SendBuffer     int
}

func (o Options) withDefaults() Options {
	if o.RatePerSecond <= 0 {
		o.RatePerSecond = 20
	}
	if o.Burst <= 0 {
		o.Burst = 40
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = 64
	}
	return o
}
