package websocket

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobyojnahub-a11y/websevixof/internal/realtime"
)

type redisCluster struct {
	server *miniredis.Miniredis
	hubs   []*Hub
}

func newRedisCluster(t *testing.T, processes int) *redisCluster {
	t.Helper()
	c := &redisCluster{server: miniredis.RunT(t)}
	for i := 0; i < processes; i++ {
		hub := NewHub(c.client(t))
		ctx, cancel := context.WithCancel(context.Background())
		go hub.Run(ctx)
		t.Cleanup(cancel)
		c.hubs = append(c.hubs, hub)
	}

	// Emits are only seen by hubs whose pattern subscription is live.
	admin := c.client(t)
	require.Eventually(t, func() bool {
		n, err := admin.PubSubNumPat(context.Background()).Result()
		return err == nil && n == int64(processes)
	}, 2*time.Second, 10*time.Millisecond)
	return c
}

func (c *redisCluster) client(t *testing.T) *redis.Client {
	t.Helper()
	client := NewRedisClient(c.server.Addr(), "")
	t.Cleanup(func() { client.Close() })
	return client
}

func TestPublisherReachesEveryProcess(t *testing.T) {
	cluster := newRedisCluster(t, 2)
	room := realtime.ConversationRoom("VISITOR-s1")

	onA := testClient(t, cluster.hubs[0], "a", 4)
	onB := testClient(t, cluster.hubs[1], "b", 4)
	elsewhere := testClient(t, cluster.hubs[1], "c", 4)
	onA.Join(room)
	onB.Join(room)

	publisher := NewPublisher(cluster.client(t))
	require.NoError(t, publisher.Emit(context.Background(), realtime.Message{
		Room:    room,
		Event:   realtime.EventReceiveMessage,
		Payload: map[string]string{"message": "hi"},
	}))

	for _, client := range []*Client{onA, onB} {
		frame := receive(t, client)
		assert.Equal(t, realtime.EventReceiveMessage, frame.Event)
		var payload map[string]string
		require.NoError(t, json.Unmarshal(frame.Data, &payload))
		assert.Equal(t, "hi", payload["message"])
	}
	assertNothing(t, elsewhere)
}

func TestHubEmitExcludesSenderAcrossProcesses(t *testing.T) {
	cluster := newRedisCluster(t, 2)
	room := realtime.ConversationRoom("A")

	sender := testClient(t, cluster.hubs[0], "sender", 4)
	localPeer := testClient(t, cluster.hubs[0], "local", 4)
	remotePeer := testClient(t, cluster.hubs[1], "remote", 4)
	for _, client := range []*Client{sender, localPeer, remotePeer} {
		client.Join(room)
	}

	require.NoError(t, cluster.hubs[0].Emit(context.Background(), realtime.Message{
		Room:    room,
		Event:   realtime.EventTyping,
		Payload: map[string]string{"conversationId": "A", "sender": "Visitor"},
		Except:  sender.ID(),
	}))

	assert.Equal(t, realtime.EventTyping, receive(t, localPeer).Event)
	assert.Equal(t, realtime.EventTyping, receive(t, remotePeer).Event)
	assertNothing(t, sender)
}

func TestHubDiscardsMalformedEnvelopes(t *testing.T) {
	cluster := newRedisCluster(t, 1)
	member := testClient(t, cluster.hubs[0], "m", 4)
	member.Join(realtime.AdminRoom)

	publisher := cluster.client(t)
	require.NoError(t, publisher.Publish(context.Background(), channelPrefix+realtime.AdminRoom, "not json").Err())
	require.NoError(t, NewPublisher(publisher).Emit(context.Background(), realtime.Message{
		Room:    realtime.AdminRoom,
		Event:   realtime.EventVisitorLeft,
		Payload: map[string]string{"sessionId": "s1"},
	}))

	assert.Equal(t, realtime.EventVisitorLeft, receive(t, member).Event)
	assertNothing(t, member)
}
