package model

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestVisitorConversationRoundTrip(t *testing.T) {
	id := VisitorConversationID("s1")
	assert.Equal(t, "VISITOR-s1", id)

	sessionID, ok := VisitorSessionFromConversation(id)
	assert.True(t, ok)
	assert.Equal(t, "s1", sessionID)

	_, ok = VisitorSessionFromConversation("order-77")
	assert.False(t, ok)
	_, ok = VisitorSessionFromConversation("VISITOR-")
	assert.False(t, ok)
}

func TestTimestampSortsLexically(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	times := []time.Time{
		base.Add(1500 * time.Millisecond),
		base,
		base.Add(10 * time.Nanosecond),
		base.Add(time.Second),
	}

	stamps := make([]string, len(times))
	for i, ts := range times {
		stamps[i] = Timestamp(ts)
	}
	sort.Strings(stamps)

	assert.Equal(t, Timestamp(base), stamps[0])
	assert.Equal(t, Timestamp(base.Add(10*time.Nanosecond)), stamps[1])
	assert.Equal(t, Timestamp(base.Add(time.Second)), stamps[2])
	assert.Equal(t, Timestamp(base.Add(1500*time.Millisecond)), stamps[3])
}

func TestEnumValidation(t *testing.T) {
	assert.True(t, RoleAdmin.Valid())
	assert.False(t, Role("agent").Valid())
	assert.True(t, ConversationStatusResolved.Valid())
	assert.False(t, ConversationStatus("open").Valid())
	assert.True(t, PriorityUrgent.Valid())
	assert.False(t, Priority("p0").Valid())
}
