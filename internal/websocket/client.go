package websocket

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/jobyojnahub-a11y/websevixof/internal/identity"
	"github.com/jobyojnahub-a11y/websevixof/internal/realtime"
)

const (
	pingPeriod   = 30 * time.Second
	pongWait     = 75 * time.Second
	writeWait    = 10 * time.Second
	maxFrameSize = 512 * 1024
)

var (
	ErrClientClosed = errors.New("websocket client: closed")
	ErrSlowClient   = errors.New("websocket client: send buffer full")
)

// Client is one upgraded connection. It implements realtime.Conn.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	id       string
	identity identity.Identity
	remoteIP string
	limiter  *rate.Limiter

	// rooms is owned by the hub goroutine.
	rooms map[string]struct{}

	done      chan struct{}
	closeOnce sync.Once
	mu        sync.Mutex
	isClosed  bool
}

func newClient(hub *Hub, conn *websocket.Conn, id string, ident identity.Identity, remoteIP string, opts Options) *Client {
	return &Client{
		hub:      hub,
		conn:     conn,
		send:     make(chan []byte, opts.SendBuffer),
		id:       id,
		identity: ident,
		remoteIP: remoteIP,
		limiter:  rate.NewLimiter(rate.Limit(opts.RatePerSecond), opts.Burst),
		rooms:    make(map[string]struct{}),
		done:     make(chan struct{}),
	}
}

func (cl *Client) ID() string                  { return cl.id }
func (cl *Client) Identity() identity.Identity { return cl.identity }
func (cl *Client) RemoteIP() string            { return cl.remoteIP }

func (cl *Client) Join(room string) {
	cl.hub.join(cl, room)
}

// Send queues an event for this connection only.
func (cl *Client) Send(event string, payload interface{}) error {
	frame, err := realtime.Encode(event, payload)
	if err != nil {
		return err
	}
	select {
	case <-cl.done:
		return ErrClientClosed
	default:
	}
	select {
	case cl.send <- frame:
		return nil
	case <-cl.done:
		return ErrClientClosed
	default:
		return ErrSlowClient
	}
}

func (cl *Client) close() {
	cl.closeOnce.Do(func() {
		close(cl.done)
		cl.mu.Lock()
		cl.isClosed = true
		if cl.conn != nil {
			cl.conn.Close()
		}
		cl.mu.Unlock()
	})
}

func (cl *Client) write(messageType int, data []byte) error {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	if cl.isClosed {
		return ErrClientClosed
	}
	cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return cl.conn.WriteMessage(messageType, data)
}

func (cl *Client) keepAlive() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-cl.done:
			return
		case <-ticker.C:
			if err := cl.write(websocket.PingMessage, nil); err != nil {
				log.Debug().Err(err).Str("connId", cl.id).Msg("ping failed")
				cl.close()
				return
			}
		}
	}
}

func (cl *Client) writeMessage() {
	defer cl.close()

	for {
		select {
		case <-cl.done:
			return
		case frame := <-cl.send:
			if err := cl.write(websocket.TextMessage, frame); err != nil {
				log.Debug().Err(err).Str("connId", cl.id).Msg("write failed")
				return
			}
		}
	}
}

// readMessage feeds frames to handler one at a time, so events from one
// connection are applied in the order they were sent.
func (cl *Client) readMessage(ctx context.Context, handler FrameHandler) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("connId", cl.id).Msg("recovered from panic in read loop")
		}
		cl.hub.Unregister(cl)
		cl.close()
		log.Info().Str("connId", cl.id).Str("room", cl.identity.Room()).Msg("client disconnected")
	}()

	cl.conn.SetReadLimit(maxFrameSize)
	cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	cl.conn.SetPongHandler(func(string) error {
		return cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := cl.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived) {
				log.Warn().Err(err).Str("connId", cl.id).Msg("error reading websocket message")
			}
			return
		}
		cl.conn.SetReadDeadline(time.Now().Add(pongWait))

		if !cl.limiter.Allow() {
			cl.rateLimited(message)
			continue
		}

		ack := handler.HandleFrame(ctx, cl, message)
		observeEvent(ack.Event, string(ack.Status))
	}
}

func (cl *Client) rateLimited(raw []byte) {
	frame, _, _ := realtime.Decode(raw)
	observeEvent(frame.Event, string(realtime.AckRejected))
	if frame.AckID == "" {
		return
	}
	_ = cl.Send(realtime.EventAck, realtime.Ack{
		AckID:  frame.AckID,
		Event:  frame.Event,
		Status: realtime.AckRejected,
		Reason: realtime.ReasonRateLimited,
	})
}
