package usecase

import (
	"context"
	"testing"

	"arbitex/internal/domain/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newQueryEnv(t *testing.T) (*mediationTestEnv, *MediationQueryUseCase) {
	t.Helper()
	env := newMediationEnv(200)
	return env, NewMediationQueryUseCase(env.repo, env.subChatRepo)
}

func TestPendingAssignmentsProjection(t *testing.T) {
	env, query := newQueryEnv(t)

	pending := env.create(t)
	env.toAssigned(t)

	result := query.PendingAssignments(context.Background(), 20, 0)
	require.False(t, result.Degraded)
	assert.Equal(t, int64(1), result.Total)

	items := result.Items.([]*entity.MediationRequest)
	require.Len(t, items, 1)
	assert.Equal(t, pending.ID, items[0].ID)
	assert.Equal(t, entity.StatusPendingMediatorSelection, items[0].Status)
}

func TestPendingDecisionProjection(t *testing.T) {
	env, query := newQueryEnv(t)

	assigned := env.toAssigned(t)
	env.toAccepted(t)

	result := query.PendingDecision(context.Background(), "mediator-1", 20, 0)
	require.False(t, result.Degraded)

	items := result.Items.([]*entity.MediationRequest)
	require.Len(t, items, 1)
	assert.Equal(t, assigned.ID, items[0].ID)

	// Another mediator sees nothing.
	result = query.PendingDecision(context.Background(), "mediator-2", 20, 0)
	items = result.Items.([]*entity.MediationRequest)
	assert.Empty(t, items)
}

func TestAwaitingPartiesProjection(t *testing.T) {
	env, query := newQueryEnv(t)

	accepted := env.toAccepted(t)
	funded := env.toFunded(t)
	env.toInProgress(t)

	result := query.AwaitingParties(context.Background(), "mediator-1", 20, 0)
	require.False(t, result.Degraded)

	items := result.Items.([]*entity.MediationRequest)
	ids := map[string]bool{}
	for _, m := range items {
		ids[m.ID] = true
	}
	assert.Len(t, items, 2)
	assert.True(t, ids[accepted.ID])
	assert.True(t, ids[funded.ID])
}

func TestMySummariesAnnotatesUnreadCounts(t *testing.T) {
	env, query := newQueryEnv(t)
	ctx := context.Background()

	m := env.toAccepted(t)
	_, err := env.subChats.PostMessage(ctx, "seller-1", m.MainChatID, PostMessageInput{Type: "text", Body: "hi"})
	require.NoError(t, err)

	result := query.MySummaries(ctx, "buyer-1", 20, 0)
	require.False(t, result.Degraded)

	summaries := result.Items.([]*MediationSummary)
	require.Len(t, summaries, 1)
	assert.Equal(t, m.ID, summaries[0].Mediation.ID)
	// Two system messages plus the seller's message.
	assert.Equal(t, 3, summaries[0].UnreadCount)

	// A non-participant has no summaries at all.
	result = query.MySummaries(ctx, "stranger-1", 20, 0)
	summaries = result.Items.([]*MediationSummary)
	assert.Empty(t, summaries)
}

// A failed read degrades to an empty, flagged projection instead of an
// error.
func TestProjectionsDegradeOnStoreFailure(t *testing.T) {
	env, query := newQueryEnv(t)
	env.create(t)

	env.repo.failLists = true

	for name, result := range map[string]*ProjectionResult{
		"pending assignments": query.PendingAssignments(context.Background(), 20, 0),
		"pending decision":    query.PendingDecision(context.Background(), "mediator-1", 20, 0),
		"awaiting parties":    query.AwaitingParties(context.Background(), "mediator-1", 20, 0),
		"my summaries":        query.MySummaries(context.Background(), "buyer-1", 20, 0),
	} {
		assert.True(t, result.Degraded, name)
		assert.Equal(t, int64(0), result.Total, name)
		assert.Empty(t, result.Items, name)
	}
}
