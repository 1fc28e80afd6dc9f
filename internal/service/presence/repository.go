package presence

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jobyojnahub-a11y/websevixof/internal/database"
	"github.com/jobyojnahub-a11y/websevixof/internal/model"
)

var (
	ErrNotFound = errors.New("presence repository: not found")
	// ErrSessionLeft is returned by live-only updates on a session whose
	// status is already left.
	ErrSessionLeft = errors.New("presence repository: session left")
	// ErrStale means a conditional write lost against a newer update.
	ErrStale = errors.New("presence repository: precondition no longer holds")
)

type ConnectRecord struct {
	SessionID    string
	VisitorID    string
	LandingPage  string
	CurrentPage  string
	Referrer     string
	ReferrerType model.ReferrerType
	SearchTerm   string
	Device       string
	Browser      string
	OS           string
	IPAddress    string
	Country      string
	City         string
	IsReturning  bool
}

type ScrollSample struct {
	Page    string
	Percent int
}

type Repository interface {
	Get(ctx context.Context, sessionID string) (model.VisitorSessionItem, error)
	Upsert(ctx context.Context, rec ConnectRecord, now string) (model.VisitorSessionItem, error)
	Reopen(ctx context.Context, sessionID, now string) error
	RecordPageChange(ctx context.Context, sessionID string, visit model.PageVisit, timeSpent int64, score int, now string) (model.VisitorSessionItem, error)
	RecordAction(ctx context.Context, sessionID string, action model.VisitorAction, scroll *ScrollSample, score int, now string) (model.VisitorSessionItem, error)
	MarkIdle(ctx context.Context, sessionID, now string) (model.VisitorSessionItem, error)
	MarkLeft(ctx context.Context, sessionID, now string) (model.VisitorSessionItem, error)
	MarkOffered(ctx context.Context, sessionID, now string) (model.VisitorSessionItem, error)
	RecordResponse(ctx context.Context, sessionID string, accepted bool, now string) (model.VisitorSessionItem, error)
	MarkChatInitiated(ctx context.Context, sessionID, conversationID, now string) (model.VisitorSessionItem, error)
	MarkAccepted(ctx context.Context, sessionID, conversationID, now string) (model.VisitorSessionItem, error)
	ExpireOffer(ctx context.Context, sessionID, offeredAt, now string) error
	MarkStale(ctx context.Context, sessionID, lastActivity, now string) error
	ListActiveSince(ctx context.Context, since string) ([]model.VisitorSessionItem, error)
	ListPendingOffers(ctx context.Context, offeredBefore string) ([]model.VisitorSessionItem, error)
	ListStale(ctx context.Context, activeBefore string) ([]model.VisitorSessionItem, error)
	Count(ctx context.Context) (int, error)
}

type DynamoRepository struct {
	db *database.Database
}

func NewDynamoRepository(db *database.Database) Repository {
	return &DynamoRepository{db: db}
}

func sessionKey(sessionID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		model.VisitorSessionKey: database.S(sessionID),
	}
}

func emptyList() types.AttributeValue {
	return &types.AttributeValueMemberL{Value: []types.AttributeValue{}}
}

func (r *DynamoRepository) Get(ctx context.Context, sessionID string) (model.VisitorSessionItem, error) {
	var item model.VisitorSessionItem
	err := r.db.Client.GetItem(ctx, model.VisitorSessionsTable, sessionKey(sessionID), &item)
	if errors.Is(err, database.ErrItemNotFound) {
		return model.VisitorSessionItem{}, ErrNotFound
	}
	return item, err
}

func (r *DynamoRepository) Upsert(ctx context.Context, rec ConnectRecord, now string) (model.VisitorSessionItem, error) {
	u := database.NewUpdate().
		SetIfNotExists("visitorId", rec.VisitorID).
		SetIfNotExists("landingPage", rec.LandingPage).
		SetIfNotExists("sessionStart", now).
		SetIfNotExists("createdAt", now).
		SetIfNotExists("referrerType", rec.ReferrerType).
		SetIfNotExists("isReturning", rec.IsReturning).
		SetIfNotExists("visitCount", 1).
		SetIfNotExists("timeOnSite", 0).
		SetIfNotExists("engagementScore", 0).
		SetIfNotExists("actions", emptyList()).
		SetIfNotExists("scrollDepth", &types.AttributeValueMemberM{Value: map[string]types.AttributeValue{}}).
		SetIfNotExists("chatInitiated", false).
		SetIfNotExists("connectedWithAdmin", false).
		SetIfNotExists("adminConnectionOffered", false).
		SetIfNotExists("adminConnectionResponse", model.ConnectionResponseNone).
		SetIfNotExists("orderFormStarted", false).
		SetIfNotExists("orderFormStep", 0).
		SetIfNotExists("orderCompleted", false).
		Append("pagesVisited", []model.PageVisit{{Page: rec.CurrentPage, Timestamp: now}}).
		Set("currentPage", rec.CurrentPage).
		Set("status", model.SessionStatusActive).
		Set("lastActivity", now).
		Set("updatedAt", now)

	if rec.Referrer != "" {
		u.SetIfNotExists("referrer", rec.Referrer)
	}
	if rec.SearchTerm != "" {
		u.SetIfNotExists("searchTerm", rec.SearchTerm)
	}
	for attr, value := range map[string]string{
		"device":    rec.Device,
		"browser":   rec.Browser,
		"os":        rec.OS,
		"ipAddress": rec.IPAddress,
		"country":   rec.Country,
		"city":      rec.City,
	} {
		if value != "" {
			u.Set(attr, value)
		}
	}

	var item model.VisitorSessionItem
	if err := r.db.Client.Apply(ctx, model.VisitorSessionsTable, sessionKey(rec.SessionID), u, &item); err != nil {
		return model.VisitorSessionItem{}, err
	}
	return item, nil
}

func (r *DynamoRepository) Reopen(ctx context.Context, sessionID, now string) error {
	u := database.NewUpdate().
		Add("visitCount", 1).
		Set("isReturning", true).
		Set("updatedAt", now).
		IfEqual("status", model.SessionStatusLeft)

	err := r.db.Client.Apply(ctx, model.VisitorSessionsTable, sessionKey(sessionID), u, nil)
	if errors.Is(err, database.ErrConditionFailed) {
		return ErrStale
	}
	return err
}

func (r *DynamoRepository) RecordPageChange(ctx context.Context, sessionID string, visit model.PageVisit, timeSpent int64, score int, now string) (model.VisitorSessionItem, error) {
	u := database.NewUpdate().
		Set("currentPage", visit.Page).
		Set("status", model.SessionStatusActive).
		Set("lastActivity", now).
		Set("updatedAt", now).
		Append("pagesVisited", []model.PageVisit{visit}).
		Add("timeOnSite", timeSpent).
		Add("engagementScore", int64(score))

	return r.applyLive(ctx, sessionID, u)
}

func (r *DynamoRepository) RecordAction(ctx context.Context, sessionID string, action model.VisitorAction, scroll *ScrollSample, score int, now string) (model.VisitorSessionItem, error) {
	u := database.NewUpdate().
		Set("status", model.SessionStatusActive).
		Set("lastActivity", now).
		Set("updatedAt", now).
		Append("actions", []model.VisitorAction{action}).
		Add("engagementScore", int64(score))
	if scroll != nil {
		u.SetPath(scroll.Percent, "scrollDepth", scroll.Page)
	}

	return r.applyLive(ctx, sessionID, u)
}

func (r *DynamoRepository) MarkIdle(ctx context.Context, sessionID, now string) (model.VisitorSessionItem, error) {
	u := database.NewUpdate().
		Set("status", model.SessionStatusIdle).
		Set("updatedAt", now)

	return r.applyLive(ctx, sessionID, u)
}

func (r *DynamoRepository) MarkLeft(ctx context.Context, sessionID, now string) (model.VisitorSessionItem, error) {
	u := database.NewUpdate().
		Set("status", model.SessionStatusLeft).
		Set("lastActivity", now).
		Set("updatedAt", now)

	return r.applyExisting(ctx, sessionID, u)
}

func (r *DynamoRepository) MarkOffered(ctx context.Context, sessionID, now string) (model.VisitorSessionItem, error) {
	u := database.NewUpdate().
		Set("adminConnectionOffered", true).
		Set("adminConnectionResponse", model.ConnectionResponsePending).
		Set("adminConnectionOfferedAt", now).
		Set("updatedAt", now)

	return r.applyExisting(ctx, sessionID, u)
}

func (r *DynamoRepository) RecordResponse(ctx context.Context, sessionID string, accepted bool, now string) (model.VisitorSessionItem, error) {
	response := model.ConnectionResponseDeclined
	if accepted {
		response = model.ConnectionResponseAccepted
	}
	u := database.NewUpdate().
		Set("connectedWithAdmin", accepted).
		Set("adminConnectionResponse", response).
		Set("updatedAt", now)

	return r.applyExisting(ctx, sessionID, u)
}

func (r *DynamoRepository) MarkChatInitiated(ctx context.Context, sessionID, conversationID, now string) (model.VisitorSessionItem, error) {
	u := database.NewUpdate().
		Set("chatInitiated", true).
		Set("conversationId", conversationID).
		Set("updatedAt", now)

	return r.applyExisting(ctx, sessionID, u)
}

// MarkAccepted records an admin-initiated connection the visitor never had
// to answer.
func (r *DynamoRepository) MarkAccepted(ctx context.Context, sessionID, conversationID, now string) (model.VisitorSessionItem, error) {
	u := database.NewUpdate().
		Set("adminConnectionOffered", true).
		Set("adminConnectionResponse", model.ConnectionResponseAccepted).
		Set("connectedWithAdmin", true).
		Set("chatInitiated", true).
		Set("conversationId", conversationID).
		Set("updatedAt", now)

	return r.applyExisting(ctx, sessionID, u)
}

func (r *DynamoRepository) ExpireOffer(ctx context.Context, sessionID, offeredAt, now string) error {
	u := database.NewUpdate().
		Set("adminConnectionResponse", model.ConnectionResponseNone).
		Set("updatedAt", now).
		IfEqual("adminConnectionResponse", model.ConnectionResponsePending).
		IfEqual("adminConnectionOfferedAt", offeredAt)

	err := r.db.Client.Apply(ctx, model.VisitorSessionsTable, sessionKey(sessionID), u, nil)
	if errors.Is(err, database.ErrConditionFailed) {
		return ErrStale
	}
	return err
}

func (r *DynamoRepository) MarkStale(ctx context.Context, sessionID, lastActivity, now string) error {
	u := database.NewUpdate().
		Set("status", model.SessionStatusLeft).
		Set("updatedAt", now).
		IfEqual("lastActivity", lastActivity).
		IfNotEqual("status", model.SessionStatusLeft)

	err := r.db.Client.Apply(ctx, model.VisitorSessionsTable, sessionKey(sessionID), u, nil)
	if errors.Is(err, database.ErrConditionFailed) {
		return ErrStale
	}
	return err
}

func (r *DynamoRepository) ListActiveSince(ctx context.Context, since string) ([]model.VisitorSessionItem, error) {
	return r.scan(ctx,
		"#lastActivity >= :since AND (#status = :active OR #status = :idle)",
		map[string]types.AttributeValue{
			":since":  database.S(since),
			":active": database.S(string(model.SessionStatusActive)),
			":idle":   database.S(string(model.SessionStatusIdle)),
		},
		map[string]string{"#lastActivity": "lastActivity", "#status": "status"},
	)
}

func (r *DynamoRepository) ListPendingOffers(ctx context.Context, offeredBefore string) ([]model.VisitorSessionItem, error) {
	return r.scan(ctx,
		"#response = :pending AND #offeredAt < :before",
		map[string]types.AttributeValue{
			":pending": database.S(string(model.ConnectionResponsePending)),
			":before":  database.S(offeredBefore),
		},
		map[string]string{"#response": "adminConnectionResponse", "#offeredAt": "adminConnectionOfferedAt"},
	)
}

func (r *DynamoRepository) ListStale(ctx context.Context, activeBefore string) ([]model.VisitorSessionItem, error) {
	return r.scan(ctx,
		"#lastActivity < :before AND #status <> :left",
		map[string]types.AttributeValue{
			":before": database.S(activeBefore),
			":left":   database.S(string(model.SessionStatusLeft)),
		},
		map[string]string{"#lastActivity": "lastActivity", "#status": "status"},
	)
}

func (r *DynamoRepository) Count(ctx context.Context) (int, error) {
	return r.db.Client.Count(ctx, model.VisitorSessionsTable, "", nil, nil)
}

func (r *DynamoRepository) scan(ctx context.Context, filter string, values map[string]types.AttributeValue, names map[string]string) ([]model.VisitorSessionItem, error) {
	items, err := r.db.Client.ScanAllWithFilter(ctx, model.VisitorSessionsTable, filter, values, names)
	if err != nil {
		return nil, err
	}
	return database.UnmarshalItems[model.VisitorSessionItem](items)
}

// applyLive updates a session that exists and has not left.
func (r *DynamoRepository) applyLive(ctx context.Context, sessionID string, u *database.Update) (model.VisitorSessionItem, error) {
	u.IfExists(model.VisitorSessionKey).IfNotEqual("status", model.SessionStatusLeft)

	var item model.VisitorSessionItem
	err := r.db.Client.Apply(ctx, model.VisitorSessionsTable, sessionKey(sessionID), u, &item)
	if errors.Is(err, database.ErrConditionFailed) {
		if _, getErr := r.Get(ctx, sessionID); errors.Is(getErr, ErrNotFound) {
			return model.VisitorSessionItem{}, ErrNotFound
		}
		return model.VisitorSessionItem{}, ErrSessionLeft
	}
	if err != nil {
		return model.VisitorSessionItem{}, fmt.Errorf("update session %s: %w", sessionID, err)
	}
	return item, nil
}

func (r *DynamoRepository) applyExisting(ctx context.Context, sessionID string, u *database.Update) (model.VisitorSessionItem, error) {
	u.IfExists(model.VisitorSessionKey)

	var item model.VisitorSessionItem
	err := r.db.Client.Apply(ctx, model.VisitorSessionsTable, sessionKey(sessionID), u, &item)
	if errors.Is(err, database.ErrConditionFailed) {
		return model.VisitorSessionItem{}, ErrNotFound
	}
	if err != nil {
		return model.VisitorSessionItem{}, fmt.Errorf("update session %s: %w", sessionID, err)
	}
	return item, nil
}
