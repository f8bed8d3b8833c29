package cleanup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waveleads/lead-agent-platform/internal/conversation"
)

type fakeStore struct {
	active  []conversation.Conversation
	listErr error
	saveErr error
	saved   []conversation.Conversation
}

func (f *fakeStore) ListActive(_ context.Context) ([]conversation.Conversation, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.active, nil
}

func (f *fakeStore) Save(_ context.Context, c *conversation.Conversation) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, *c)
	return nil
}

func activeConversation(contactKey string, stage conversation.Stage, lastActivity time.Time) conversation.Conversation {
	c := conversation.NewConversation(contactKey, "", lastActivity)
	c.Stage = stage
	c.AppendInbound("oi", lastActivity, nil)
	return *c
}

func TestSweepRetiresIdleConversations(t *testing.T) {
	now := time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)
	store := &fakeStore{active: []conversation.Conversation{
		activeConversation("idle", conversation.StageCollectRole, now.Add(-30*time.Hour)),
	}}

	sweeper := NewSweeper(store, time.Hour, 24*time.Hour, nil, nil).WithClock(func() time.Time { return now })
	require.NoError(t, sweeper.Sweep(context.Background()))

	require.Len(t, store.saved, 1)
	got := store.saved[0]
	assert.Equal(t, conversation.StageAbandoned, got.Stage)
	assert.False(t, got.Active)
	// Re-scored after the stage change: field and stage points are gone,
	// only the (zero) reply bonus survives.
	assert.Equal(t, conversation.Score(&got), got.LeadScore)
}

func TestSweepSparesBookedAndFinished(t *testing.T) {
	now := time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)
	stale := now.Add(-72 * time.Hour)
	store := &fakeStore{active: []conversation.Conversation{
		activeConversation("booked", conversation.StageConfirmBooking, stale),
		activeConversation("done", conversation.StageCompleted, stale),
		activeConversation("gone", conversation.StageAbandoned, stale),
	}}

	sweeper := NewSweeper(store, time.Hour, 24*time.Hour, nil, nil).WithClock(func() time.Time { return now })
	require.NoError(t, sweeper.Sweep(context.Background()))
	assert.Empty(t, store.saved)
}

func TestSweepSparesRecentlyActive(t *testing.T) {
	now := time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)
	store := &fakeStore{active: []conversation.Conversation{
		activeConversation("fresh", conversation.StageCollectName, now.Add(-2*time.Hour)),
	}}

	sweeper := NewSweeper(store, time.Hour, 24*time.Hour, nil, nil).WithClock(func() time.Time { return now })
	require.NoError(t, sweeper.Sweep(context.Background()))
	assert.Empty(t, store.saved)
}

func TestSweepToleratesVersionConflict(t *testing.T) {
	now := time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)
	store := &fakeStore{
		active: []conversation.Conversation{
			activeConversation("racing", conversation.StageCollectEmail, now.Add(-48*time.Hour)),
		},
		saveErr: conversation.ErrVersionConflict,
	}

	sweeper := NewSweeper(store, time.Hour, 24*time.Hour, nil, nil).WithClock(func() time.Time { return now })
	require.NoError(t, sweeper.Sweep(context.Background()))
}

func TestSweepListError(t *testing.T) {
	store := &fakeStore{listErr: errors.New("table offline")}
	sweeper := NewSweeper(store, time.Hour, 24*time.Hour, nil, nil)
	assert.Error(t, sweeper.Sweep(context.Background()))
}
