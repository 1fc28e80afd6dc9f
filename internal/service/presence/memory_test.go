package presence

import (
	"context"
	"sync"

	"github.com/jobyojnahub-a11y/websevixof/internal/model"
)

type memoryRepository struct {
	mu       sync.Mutex
	sessions map[string]model.VisitorSessionItem
	failNext error
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{sessions: make(map[string]model.VisitorSessionItem)}
}

func (m *memoryRepository) fail() error {
	err := m.failNext
	m.failNext = nil
	return err
}

func (m *memoryRepository) Get(ctx context.Context, sessionID string) (model.VisitorSessionItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[sessionID]
	if !ok {
		return model.VisitorSessionItem{}, ErrNotFound
	}
	return clone(session), nil
}

func (m *memoryRepository) Upsert(ctx context.Context, rec ConnectRecord, now string) (model.VisitorSessionItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return model.VisitorSessionItem{}, err
	}
	session, ok := m.sessions[rec.SessionID]
	if !ok {
		session = model.VisitorSessionItem{
			SessionID:               rec.SessionID,
			VisitorID:               rec.VisitorID,
			LandingPage:             rec.LandingPage,
			SessionStart:            now,
			CreatedAt:               now,
			Referrer:                rec.Referrer,
			ReferrerType:            rec.ReferrerType,
			SearchTerm:              rec.SearchTerm,
			IsReturning:             rec.IsReturning,
			VisitCount:              1,
			Actions:                 []model.VisitorAction{},
			ScrollDepth:             map[string]int{},
			AdminConnectionResponse: model.ConnectionResponseNone,
		}
	}
	session.PagesVisited = append(session.PagesVisited, model.PageVisit{Page: rec.CurrentPage, Timestamp: now})
	session.CurrentPage = rec.CurrentPage
	session.Status = model.SessionStatusActive
	session.LastActivity = now
	session.UpdatedAt = now
	if rec.Device != "" {
		session.Device = rec.Device
	}
	if rec.Browser != "" {
		session.Browser = rec.Browser
	}
	if rec.OS != "" {
		session.OS = rec.OS
	}
	if rec.IPAddress != "" {
		session.IPAddress = rec.IPAddress
	}
	m.sessions[rec.SessionID] = session
	return clone(session), nil
}

func (m *memoryRepository) Reopen(ctx context.Context, sessionID, now string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[sessionID]
	if !ok || session.Status != model.SessionStatusLeft {
		return ErrStale
	}
	session.VisitCount++
	session.IsReturning = true
	session.UpdatedAt = now
	m.sessions[sessionID] = session
	return nil
}

func (m *memoryRepository) live(sessionID string, mutate func(*model.VisitorSessionItem)) (model.VisitorSessionItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return model.VisitorSessionItem{}, err
	}
	session, ok := m.sessions[sessionID]
	if !ok {
		return model.VisitorSessionItem{}, ErrNotFound
	}
	if session.Status == model.SessionStatusLeft {
		return model.VisitorSessionItem{}, ErrSessionLeft
	}
	mutate(&session)
	m.sessions[sessionID] = session
	return clone(session), nil
}

func (m *memoryRepository) existing(sessionID string, mutate func(*model.VisitorSessionItem)) (model.VisitorSessionItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return model.VisitorSessionItem{}, err
	}
	session, ok := m.sessions[sessionID]
	if !ok {
		return model.VisitorSessionItem{}, ErrNotFound
	}
	mutate(&session)
	m.sessions[sessionID] = session
	return clone(session), nil
}

func (m *memoryRepository) RecordPageChange(ctx context.Context, sessionID string, visit model.PageVisit, timeSpent int64, score int, now string) (model.VisitorSessionItem, error) {
	return m.live(sessionID, func(s *model.VisitorSessionItem) {
		s.CurrentPage = visit.Page
		s.Status = model.SessionStatusActive
		s.LastActivity = now
		s.UpdatedAt = now
		s.PagesVisited = append(s.PagesVisited, visit)
		s.TimeOnSite += timeSpent
		s.EngagementScore += score
	})
}

func (m *memoryRepository) RecordAction(ctx context.Context, sessionID string, action model.VisitorAction, scroll *ScrollSample, score int, now string) (model.VisitorSessionItem, error) {
	return m.live(sessionID, func(s *model.VisitorSessionItem) {
		s.Status = model.SessionStatusActive
		s.LastActivity = now
		s.UpdatedAt = now
		s.Actions = append(s.Actions, action)
		s.EngagementScore += score
		if scroll != nil {
			s.ScrollDepth[scroll.Page] = scroll.Percent
		}
	})
}

func (m *memoryRepository) MarkIdle(ctx context.Context, sessionID, now string) (model.VisitorSessionItem, error) {
	return m.live(sessionID, func(s *model.VisitorSessionItem) {
		s.Status = model.SessionStatusIdle
		s.UpdatedAt = now
	})
}

func (m *memoryRepository) MarkLeft(ctx context.Context, sessionID, now string) (model.VisitorSessionItem, error) {
	return m.existing(sessionID, func(s *model.VisitorSessionItem) {
		s.Status = model.SessionStatusLeft
		s.LastActivity = now
		s.UpdatedAt = now
	})
}

func (m *memoryRepository) MarkOffered(ctx context.Context, sessionID, now string) (model.VisitorSessionItem, error) {
	return m.existing(sessionID, func(s *model.VisitorSessionItem) {
		s.AdminConnectionOffered = true
		s.AdminConnectionResponse = model.ConnectionResponsePending
		s.AdminConnectionOfferedAt = now
		s.UpdatedAt = now
	})
}

func (m *memoryRepository) RecordResponse(ctx context.Context, sessionID string, accepted bool, now string) (model.VisitorSessionItem, error) {
	return m.existing(sessionID, func(s *model.VisitorSessionItem) {
		s.ConnectedWithAdmin = accepted
		s.AdminConnectionResponse = model.ConnectionResponseDeclined
		if accepted {
			s.AdminConnectionResponse = model.ConnectionResponseAccepted
		}
		s.UpdatedAt = now
	})
}

func (m *memoryRepository) MarkChatInitiated(ctx context.Context, sessionID, conversationID, now string) (model.VisitorSessionItem, error) {
	return m.existing(sessionID, func(s *model.VisitorSessionItem) {
		s.ChatInitiated = true
		s.ConversationID = conversationID
		s.UpdatedAt = now
	})
}

func (m *memoryRepository) MarkAccepted(ctx context.Context, sessionID, conversationID, now string) (model.VisitorSessionItem, error) {
	return m.existing(sessionID, func(s *model.VisitorSessionItem) {
		s.AdminConnectionOffered = true
		s.AdminConnectionResponse = model.ConnectionResponseAccepted
		s.ConnectedWithAdmin = true
		s.ChatInitiated = true
		s.ConversationID = conversationID
		s.UpdatedAt = now
	})
}

func (m *memoryRepository) ExpireOffer(ctx context.Context, sessionID, offeredAt, now string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[sessionID]
	if !ok || session.AdminConnectionResponse != model.ConnectionResponsePending || session.AdminConnectionOfferedAt != offeredAt {
		return ErrStale
	}
	session.AdminConnectionResponse = model.ConnectionResponseNone
	session.UpdatedAt = now
	m.sessions[sessionID] = session
	return nil
}

func (m *memoryRepository) MarkStale(ctx context.Context, sessionID, lastActivity, now string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[sessionID]
	if !ok || session.LastActivity != lastActivity || session.Status == model.SessionStatusLeft {
		return ErrStale
	}
	session.Status = model.SessionStatusLeft
	session.UpdatedAt = now
	m.sessions[sessionID] = session
	return nil
}

func (m *memoryRepository) filter(keep func(model.VisitorSessionItem) bool) []model.VisitorSessionItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.VisitorSessionItem
	for _, s := range m.sessions {
		if keep(s) {
			out = append(out, clone(s))
		}
	}
	return out
}

func (m *memoryRepository) ListActiveSince(ctx context.Context, since string) ([]model.VisitorSessionItem, error) {
	return m.filter(func(s model.VisitorSessionItem) bool {
		return s.LastActivity >= since && (s.Status == model.SessionStatusActive || s.Status == model.SessionStatusIdle)
	}), nil
}

func (m *memoryRepository) ListPendingOffers(ctx context.Context, offeredBefore string) ([]model.VisitorSessionItem, error) {
	return m.filter(func(s model.VisitorSessionItem) bool {
		return s.AdminConnectionResponse == model.ConnectionResponsePending && s.AdminConnectionOfferedAt < offeredBefore
	}), nil
}

func (m *memoryRepository) ListStale(ctx context.Context, activeBefore string) ([]model.VisitorSessionItem, error) {
	return m.filter(func(s model.VisitorSessionItem) bool {
		return s.LastActivity < activeBefore && s.Status != model.SessionStatusLeft
	}), nil
}

func (m *memoryRepository) Count(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions), nil
}

func clone(s model.VisitorSessionItem) model.VisitorSessionItem {
	s.PagesVisited = append([]model.PageVisit(nil), s.PagesVisited...)
	s.Actions = append([]model.VisitorAction(nil), s.Actions...)
	depth := make(map[string]int, len(s.ScrollDepth))
	for k, v := range s.ScrollDepth {
		depth[k] = v
	}
	s.ScrollDepth = depth
	return s
}
