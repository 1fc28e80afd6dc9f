package presence

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jobyojnahub-a11y/websevixof/internal/apperr"
	"github.com/jobyojnahub-a11y/websevixof/internal/database"
	"github.com/jobyojnahub-a11y/websevixof/internal/model"
)

// Engagement weights per recorded interaction.
const (
	pageChangeScore = 2
	actionScore     = 1
)

type ConnectParams struct {
	SessionID   string
	VisitorID   string
	LandingPage string
	CurrentPage string
	Referrer    string
	Device      string
	Browser     string
	OS          string
	IPAddress   string
	Country     string
	City        string
	IsReturning bool
}

type PageChangeParams struct {
	SessionID          string
	NewPage            string
	TimeOnPreviousPage int64
}

type ActionParams struct {
	SessionID   string
	Action      string
	Element     string
	Page        string
	ScrollDepth int
}

// Result carries the stored session after an operation. Changed is false
// when the event arrived after the session left and was ignored.
type Result struct {
	Session model.VisitorSessionItem
	Changed bool
}

type Service struct {
	repo Repository
	now  func() time.Time
}

func New(db *database.Database) *Service {
	return NewWithRepository(NewDynamoRepository(db), time.Now)
}

func NewWithRepository(repo Repository, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{repo: repo, now: now}
}

func (s *Service) timestamp() string {
	return model.Timestamp(s.now())
}

// Connect upserts the session for visitor_connected. A session that had
// left is reopened: the same browser reuses its stored session id across
// visits.
func (s *Service) Connect(ctx context.Context, params ConnectParams) (Result, error) {
	params.SessionID = strings.TrimSpace(params.SessionID)
	params.VisitorID = strings.TrimSpace(params.VisitorID)
	if params.SessionID == "" || params.VisitorID == "" || params.LandingPage == "" || params.CurrentPage == "" {
		return Result{}, apperr.Validation("sessionId, visitorId, landingPage and currentPage are required")
	}

	now := s.timestamp()

	if err := s.repo.Reopen(ctx, params.SessionID, now); err != nil && !errors.Is(err, ErrStale) {
		return Result{}, apperr.Internal("could not reopen session", err)
	}

	referrerType, searchTerm := ClassifyReferrer(params.Referrer)
	session, err := s.repo.Upsert(ctx, ConnectRecord{
		SessionID:    params.SessionID,
		VisitorID:    params.VisitorID,
		LandingPage:  params.LandingPage,
		CurrentPage:  params.CurrentPage,
		Referrer:     params.Referrer,
		ReferrerType: referrerType,
		SearchTerm:   searchTerm,
		Device:       params.Device,
		Browser:      params.Browser,
		OS:           params.OS,
		IPAddress:    params.IPAddress,
		Country:      params.Country,
		City:         params.City,
		IsReturning:  params.IsReturning,
	}, now)
	if err != nil {
		return Result{}, apperr.Internal("could not store session", err)
	}
	return Result{Session: session, Changed: true}, nil
}

func (s *Service) PageChange(ctx context.Context, params PageChangeParams) (Result, error) {
	if params.SessionID == "" || params.NewPage == "" {
		return Result{}, apperr.Validation("sessionId and newPage are required")
	}
	spent := params.TimeOnPreviousPage
	if spent < 0 {
		spent = 0
	}

	now := s.timestamp()
	visit := model.PageVisit{Page: params.NewPage, Timestamp: now, TimeSpent: spent}
	session, err := s.repo.RecordPageChange(ctx, params.SessionID, visit, spent, pageChangeScore, now)
	return s.liveResult(ctx, params.SessionID, session, err)
}

func (s *Service) RecordAction(ctx context.Context, params ActionParams) (Result, error) {
	if params.SessionID == "" || params.Action == "" {
		return Result{}, apperr.Validation("sessionId and action are required")
	}

	now := s.timestamp()
	var scroll *ScrollSample
	if params.Page != "" && params.ScrollDepth > 0 {
		percent := params.ScrollDepth
		if percent > 100 {
			percent = 100
		}
		scroll = &ScrollSample{Page: params.Page, Percent: percent}
	}

	action := model.VisitorAction{Action: params.Action, Element: params.Element, Timestamp: now}
	session, err := s.repo.RecordAction(ctx, params.SessionID, action, scroll, actionScore, now)
	return s.liveResult(ctx, params.SessionID, session, err)
}

func (s *Service) MarkIdle(ctx context.Context, sessionID string) (Result, error) {
	if sessionID == "" {
		return Result{}, apperr.Validation("sessionId is required")
	}
	session, err := s.repo.MarkIdle(ctx, sessionID, s.timestamp())
	return s.liveResult(ctx, sessionID, session, err)
}

func (s *Service) MarkLeft(ctx context.Context, sessionID string) (Result, error) {
	if sessionID == "" {
		return Result{}, apperr.Validation("sessionId is required")
	}
	session, err := s.repo.MarkLeft(ctx, sessionID, s.timestamp())
	if err != nil {
		return Result{}, s.storeError(err)
	}
	return Result{Session: session, Changed: true}, nil
}

func (s *Service) OfferConnection(ctx context.Context, sessionID string) (Result, error) {
	if sessionID == "" {
		return Result{}, apperr.Validation("visitorSessionId is required")
	}
	session, err := s.repo.MarkOffered(ctx, sessionID, s.timestamp())
	if err != nil {
		return Result{}, s.storeError(err)
	}
	return Result{Session: session, Changed: true}, nil
}

func (s *Service) RecordConnectionResponse(ctx context.Context, sessionID string, accepted bool) (Result, error) {
	if sessionID == "" {
		return Result{}, apperr.Validation("visitorSessionId is required")
	}
	session, err := s.repo.RecordResponse(ctx, sessionID, accepted, s.timestamp())
	if err != nil {
		return Result{}, s.storeError(err)
	}
	return Result{Session: session, Changed: true}, nil
}

// MarkChatInitiated binds a conversation to the session. Sessions that were
// never registered are skipped: a chat can start before telemetry arrives.
func (s *Service) MarkChatInitiated(ctx context.Context, sessionID, conversationID string) error {
	_, err := s.repo.MarkChatInitiated(ctx, sessionID, conversationID, s.timestamp())
	if errors.Is(err, ErrNotFound) {
		log.Debug().Str("sessionId", sessionID).Msg("chat started for unknown session")
		return nil
	}
	if err != nil {
		return apperr.Internal("could not bind conversation to session", err)
	}
	return nil
}

// AcceptConnection marks the session connected to an admin on the admin's
// initiative. Unlike MarkChatInitiated the session must exist.
func (s *Service) AcceptConnection(ctx context.Context, sessionID, conversationID string) (model.VisitorSessionItem, error) {
	if sessionID == "" {
		return model.VisitorSessionItem{}, apperr.Validation("visitorSessionId is required")
	}
	session, err := s.repo.MarkAccepted(ctx, sessionID, conversationID, s.timestamp())
	if err != nil {
		return model.VisitorSessionItem{}, s.storeError(err)
	}
	return session, nil
}

func (s *Service) Get(ctx context.Context, sessionID string) (model.VisitorSessionItem, error) {
	session, err := s.repo.Get(ctx, sessionID)
	if err != nil {
		return model.VisitorSessionItem{}, s.storeError(err)
	}
	return session, nil
}

// ListRecent returns active or idle sessions seen within window, most
// recent first.
func (s *Service) ListRecent(ctx context.Context, window time.Duration, limit int) ([]model.VisitorSessionItem, error) {
	if window <= 0 {
		return nil, apperr.Validation("window must be positive")
	}
	since := model.Timestamp(s.now().Add(-window))
	sessions, err := s.repo.ListActiveSince(ctx, since)
	if err != nil {
		return nil, apperr.Internal("could not list visitors", err)
	}

	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].LastActivity > sessions[j].LastActivity
	})
	if limit > 0 && len(sessions) > limit {
		sessions = sessions[:limit]
	}
	return sessions, nil
}

func (s *Service) Count(ctx context.Context) (int, error) {
	count, err := s.repo.Count(ctx)
	if err != nil {
		return 0, apperr.Internal("could not count visitors", err)
	}
	return count, nil
}

// ExpirePendingOffers resets offers left pending for longer than maxAge.
func (s *Service) ExpirePendingOffers(ctx context.Context, maxAge time.Duration) ([]model.VisitorSessionItem, error) {
	cutoff := model.Timestamp(s.now().Add(-maxAge))
	pending, err := s.repo.ListPendingOffers(ctx, cutoff)
	if err != nil {
		return nil, err
	}

	now := s.timestamp()
	var expired []model.VisitorSessionItem
	for _, session := range pending {
		err := s.repo.ExpireOffer(ctx, session.SessionID, session.AdminConnectionOfferedAt, now)
		if errors.Is(err, ErrStale) {
			continue
		}
		if err != nil {
			return expired, err
		}
		session.AdminConnectionResponse = model.ConnectionResponseNone
		session.UpdatedAt = now
		expired = append(expired, session)
	}
	return expired, nil
}

// ReapStaleSessions marks sessions without activity for maxIdle as left.
// A session touched concurrently keeps its state.
func (s *Service) ReapStaleSessions(ctx context.Context, maxIdle time.Duration) ([]model.VisitorSessionItem, error) {
	cutoff := model.Timestamp(s.now().Add(-maxIdle))
	stale, err := s.repo.ListStale(ctx, cutoff)
	if err != nil {
		return nil, err
	}

	now := s.timestamp()
	var reaped []model.VisitorSessionItem
	for _, session := range stale {
		err := s.repo.MarkStale(ctx, session.SessionID, session.LastActivity, now)
		if errors.Is(err, ErrStale) {
			continue
		}
		if err != nil {
			return reaped, err
		}
		session.Status = model.SessionStatusLeft
		session.UpdatedAt = now
		reaped = append(reaped, session)
	}
	return reaped, nil
}

func (s *Service) liveResult(ctx context.Context, sessionID string, session model.VisitorSessionItem, err error) (Result, error) {
	if errors.Is(err, ErrSessionLeft) {
		current, getErr := s.repo.Get(ctx, sessionID)
		if getErr != nil {
			return Result{}, s.storeError(getErr)
		}
		return Result{Session: current, Changed: false}, nil
	}
	if err != nil {
		return Result{}, s.storeError(err)
	}
	return Result{Session: session, Changed: true}, nil
}

func (s *Service) storeError(err error) error {
	if errors.Is(err, ErrNotFound) {
		return apperr.NotFound("session not found", err)
	}
	return apperr.Internal("presence store failure", err)
}
