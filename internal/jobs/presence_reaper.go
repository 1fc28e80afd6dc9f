package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jobyojnahub-a11y/websevixof/internal/model"
	"github.com/jobyojnahub-a11y/websevixof/internal/realtime"
)

const (
	runTimeout      = 30 * time.Second
	defaultInterval = time.Minute
)

type SessionSweeper interface {
	ExpirePendingOffers(ctx context.Context, maxAge time.Duration) ([]model.VisitorSessionItem, error)
	ReapStaleSessions(ctx context.Context, maxIdle time.Duration) ([]model.VisitorSessionItem, error)
}

// PresenceReaper periodically resets unanswered connection offers and,
// when staleAfter is positive, marks silent sessions as left. Every change
// is pushed to the admin room.
type PresenceReaper struct {
	sessions    SessionSweeper
	emitter     realtime.Emitter
	interval    time.Duration
	offerExpiry time.Duration
	staleAfter  time.Duration
	done        chan struct{}
}

func NewPresenceReaper(
	sessions SessionSweeper,
	emitter realtime.Emitter,
	interval time.Duration,
	offerExpiry time.Duration,
	staleAfter time.Duration,
) *PresenceReaper {
	if interval <= 0 {
		interval = defaultInterval
	}
	return &PresenceReaper{
		sessions:    sessions,
		emitter:     emitter,
		interval:    interval,
		offerExpiry: offerExpiry,
		staleAfter:  staleAfter,
		done:        make(chan struct{}),
	}
}

func (j *PresenceReaper) Start() {
	go j.run()
	log.Info().
		Dur("interval", j.interval).
		Dur("offerExpiry", j.offerExpiry).
		Dur("staleAfter", j.staleAfter).
		Msg("presence reaper started")
}

func (j *PresenceReaper) Stop() {
	close(j.done)
	log.Info().Msg("presence reaper stopped")
}

func (j *PresenceReaper) run() {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.sweep()
		}
	}
}

func (j *PresenceReaper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()
	j.RunOnce(ctx)
}

// RunOnce performs a single sweep.
func (j *PresenceReaper) RunOnce(ctx context.Context) {
	if j.offerExpiry > 0 {
		expired, err := j.sessions.ExpirePendingOffers(ctx, j.offerExpiry)
		if err != nil {
			log.Error().Err(err).Msg("failed to expire pending offers")
		}
		for _, session := range expired {
			j.emit(ctx, realtime.EventVisitorUpdate, session)
		}
		if len(expired) > 0 {
			log.Info().Int("count", len(expired)).Msg("expired pending connection offers")
		}
	}

	if j.staleAfter <= 0 {
		return
	}
	reaped, err := j.sessions.ReapStaleSessions(ctx, j.staleAfter)
	if err != nil {
		log.Error().Err(err).Msg("failed to reap stale sessions")
	}
	for _, session := range reaped {
		j.emit(ctx, realtime.EventVisitorLeft, map[string]string{"sessionId": session.SessionID})
	}
	if len(reaped) > 0 {
		log.Info().Int("count", len(reaped)).Msg("reaped stale visitor sessions")
	}
}

func (j *PresenceReaper) emit(ctx context.Context, event string, payload interface{}) {
	err := j.emitter.Emit(ctx, realtime.Message{Room: realtime.AdminRoom, Event: event, Payload: payload})
	if err != nil {
		log.Warn().Err(err).Str("event", event).Msg("failed to broadcast reaper update")
	}
}
