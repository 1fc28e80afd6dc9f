package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"

	"github.com/jobyojnahub-a11y/websevixof/internal/realtime"
)

var ErrHubClosed = errors.New("websocket hub: closed")

// Hub owns room membership. All of its maps, and every Client.rooms set,
// are touched only by the Run goroutine.
type Hub struct {
	clients    map[*Client]struct{}
	rooms      map[string]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	joins      chan joinRequest
	deliveries chan envelope

	redis     *redis.Client
	publisher *Publisher
	done      chan struct{}
}

// NewHub builds a hub. With a nil redis client every emit is delivered
// locally only.
func NewHub(redisClient *redis.Client) *Hub {
	h := &Hub{
		clients:    make(map[*Client]struct{}),
		rooms:      make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		joins:      make(chan joinRequest),
		deliveries: make(chan envelope, 256),
		redis:      redisClient,
		done:       make(chan struct{}),
	}
	if redisClient != nil {
		h.publisher = NewPublisher(redisClient)
	}
	return h
}

// Run processes hub traffic until ctx is cancelled, then closes every
// connection.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	if h.redis != nil {
		go h.subscribe(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				h.remove(client)
				client.close()
			}
			return

		case client := <-h.register:
			h.clients[client] = struct{}{}
			incConnections()

		case client := <-h.unregister:
			h.remove(client)

		case req := <-h.joins:
			if _, ok := h.clients[req.client]; !ok {
				continue
			}
			members, ok := h.rooms[req.room]
			if !ok {
				members = make(map[*Client]struct{})
				h.rooms[req.room] = members
				setRooms(len(h.rooms))
			}
			members[req.client] = struct{}{}
			req.client.rooms[req.room] = struct{}{}

		case env := <-h.deliveries:
			h.deliver(env)
		}
	}
}

// Emit implements realtime.Emitter. With Redis the event reaches this
// process back through the subscription, like every other process.
func (h *Hub) Emit(ctx context.Context, msg realtime.Message) error {
	if h.publisher != nil {
		return h.publisher.Emit(ctx, msg)
	}

	frame, err := realtime.Encode(msg.Event, msg.Payload)
	if err != nil {
		return err
	}
	return h.enqueue(ctx, envelope{Room: msg.Room, Except: msg.Except, Frame: frame})
}

func (h *Hub) enqueue(ctx context.Context, env envelope) error {
	select {
	case <-h.done:
		return ErrHubClosed
	default:
	}
	select {
	case h.deliveries <- env:
		return nil
	case <-h.done:
		return ErrHubClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Hub) Register(client *Client) error {
	select {
	case h.register <- client:
		return nil
	case <-h.done:
		return ErrHubClosed
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) join(client *Client, room string) {
	select {
	case h.joins <- joinRequest{client: client, room: room}:
	case <-h.done:
	}
}

func (h *Hub) deliver(env envelope) {
	delivered := 0
	for client := range h.rooms[env.Room] {
		if client.id == env.Except {
			continue
		}
		select {
		case client.send <- []byte(env.Frame):
			delivered++
		default:
			log.Warn().Str("connId", client.id).Str("room", env.Room).Msg("dropping slow websocket client")
			h.remove(client)
			client.close()
			incDropped()
		}
	}
	if delivered > 0 {
		addDelivered(delivered)
	}
}

func (h *Hub) remove(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	for room := range client.rooms {
		members := h.rooms[room]
		delete(members, client)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	client.rooms = make(map[string]struct{})
	decConnections()
	setRooms(len(h.rooms))
}

func (h *Hub) subscribe(ctx context.Context) {
	pubsub := h.redis.PSubscribe(ctx, channelPrefix+"*")
	defer pubsub.Close()

	log.Info().Str("pattern", channelPrefix+"*").Msg("subscribed to room channels")
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				log.Warn().Err(err).Str("channel", msg.Channel).Msg("discarding malformed room envelope")
				continue
			}
			if env.Room == "" {
				env.Room = strings.TrimPrefix(msg.Channel, channelPrefix)
			}
			if err := h.enqueue(ctx, env); err != nil {
				return
			}
		}
	}
}
