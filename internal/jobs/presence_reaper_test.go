package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobyojnahub-a11y/websevixof/internal/model"
	"github.com/jobyojnahub-a11y/websevixof/internal/realtime"
)

type mockSweeper struct {
	expired    []model.VisitorSessionItem
	reaped     []model.VisitorSessionItem
	expireErr  error
	reapCalls  int
	lastMaxAge time.Duration
}

func (m *mockSweeper) ExpirePendingOffers(ctx context.Context, maxAge time.Duration) ([]model.VisitorSessionItem, error) {
	m.lastMaxAge = maxAge
	return m.expired, m.expireErr
}

func (m *mockSweeper) ReapStaleSessions(ctx context.Context, maxIdle time.Duration) ([]model.VisitorSessionItem, error) {
	m.reapCalls++
	return m.reaped, nil
}

type mockEmitter struct {
	mu       sync.Mutex
	messages []realtime.Message
}

func (m *mockEmitter) Emit(ctx context.Context, msg realtime.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
	return nil
}

func TestPresenceReaperExpiresOffers(t *testing.T) {
	sweeper := &mockSweeper{expired: []model.VisitorSessionItem{{SessionID: "s1"}, {SessionID: "s2"}}}
	emitter := &mockEmitter{}
	job := NewPresenceReaper(sweeper, emitter, time.Minute, 30*time.Second, 0)

	job.RunOnce(context.Background())

	assert.Equal(t, 30*time.Second, sweeper.lastMaxAge)
	assert.Zero(t, sweeper.reapCalls, "stale reaping is disabled by default")
	require.Len(t, emitter.messages, 2)
	for _, msg := range emitter.messages {
		assert.Equal(t, realtime.AdminRoom, msg.Room)
		assert.Equal(t, realtime.EventVisitorUpdate, msg.Event)
	}
}

func TestPresenceReaperReapsStaleSessions(t *testing.T) {
	sweeper := &mockSweeper{reaped: []model.VisitorSessionItem{{SessionID: "s9"}}}
	emitter := &mockEmitter{}
	job := NewPresenceReaper(sweeper, emitter, time.Minute, 30*time.Second, 10*time.Minute)

	job.RunOnce(context.Background())

	assert.Equal(t, 1, sweeper.reapCalls)
	require.Len(t, emitter.messages, 1)
	assert.Equal(t, realtime.EventVisitorLeft, emitter.messages[0].Event)
	assert.Equal(t, map[string]string{"sessionId": "s9"}, emitter.messages[0].Payload)
}

func TestPresenceReaperContinuesAfterOfferFailure(t *testing.T) {
	sweeper := &mockSweeper{
		expireErr: errors.New("dynamodb unavailable"),
		reaped:    []model.VisitorSessionItem{{SessionID: "s3"}},
	}
	emitter := &mockEmitter{}
	job := NewPresenceReaper(sweeper, emitter, time.Minute, 30*time.Second, time.Minute)

	job.RunOnce(context.Background())

	assert.Equal(t, 1, sweeper.reapCalls)
	require.Len(t, emitter.messages, 1)
}

func TestPresenceReaperStartStop(t *testing.T) {
	job := NewPresenceReaper(&mockSweeper{}, &mockEmitter{}, 10*time.Millisecond, time.Second, 0)

	job.Start()
	time.Sleep(30 * time.Millisecond)
	job.Stop()
}

func TestPresenceReaperDefaultsNonPositiveInterval(t *testing.T) {
	for _, interval := range []time.Duration{0, -time.Second} {
		job := NewPresenceReaper(&mockSweeper{}, &mockEmitter{}, interval, 30*time.Second, 0)
		assert.Equal(t, defaultInterval, job.interval)

		job.Start()
		job.Stop()
	}
}
