package services

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"agent-mission-system/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLedger is an in-memory Ledger with the same race semantics as the real
// store: claim inserts are atomic and duplicate-checked, balance updates are
// version-guarded.
type fakeLedger struct {
	mu     sync.Mutex
	agents map[string]*models.Agent
	claims map[string]*models.Claim
	txs    []models.PointsTransaction

	failFetchClaim  error
	failInsertClaim error
	staleUpdates    int // inject N version conflicts before accepting
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		agents: make(map[string]*models.Agent),
		claims: make(map[string]*models.Claim),
	}
}

func (f *fakeLedger) addAgent(id string, points int64) *models.Agent {
	agent := &models.Agent{
		ID:               id,
		WalletAddress:    "wallet-" + id,
		Codename:         "agent_" + id,
		TotalPoints:      points,
		ExperiencePoints: points,
		Level:            1,
	}
	f.agents[id] = agent
	return agent
}

func claimKey(agentID, actionCode string) string { return agentID + "|" + actionCode }

func (f *fakeLedger) FetchIdentity(ctx context.Context, walletAddress string) (*models.Agent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.agents {
		if a.WalletAddress == walletAddress {
			copied := *a
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeLedger) FetchIdentityByID(ctx context.Context, agentID string) (*models.Agent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.agents[agentID]
	if !ok {
		return nil, nil
	}
	copied := *a
	return &copied, nil
}

func (f *fakeLedger) CreateIdentity(ctx context.Context, walletAddress, codename string) (*models.Agent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.agents {
		if a.WalletAddress == walletAddress {
			return nil, ErrDuplicateIdentity
		}
	}
	agent := &models.Agent{
		ID:               fmt.Sprintf("agent-%d", len(f.agents)+1),
		WalletAddress:    walletAddress,
		Codename:         codename,
		TotalPoints:      WelcomePoints,
		ExperiencePoints: WelcomePoints,
		Level:            1,
	}
	f.agents[agent.ID] = agent
	copied := *agent
	return &copied, nil
}

func (f *fakeLedger) FetchClaim(ctx context.Context, agentID, actionCode string) (*models.Claim, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFetchClaim != nil {
		return nil, f.failFetchClaim
	}
	c, ok := f.claims[claimKey(agentID, actionCode)]
	if !ok {
		return nil, nil
	}
	copied := *c
	return &copied, nil
}

func (f *fakeLedger) InsertClaim(ctx context.Context, agentID, actionCode string, pointsAwarded int64) (*models.Claim, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failInsertClaim != nil {
		return nil, f.failInsertClaim
	}
	key := claimKey(agentID, actionCode)
	if _, exists := f.claims[key]; exists {
		return nil, ErrDuplicateClaim
	}
	claim := &models.Claim{
		ID:            key,
		AgentID:       agentID,
		ActionCode:    actionCode,
		PointsAwarded: pointsAwarded,
	}
	f.claims[key] = claim
	copied := *claim
	return &copied, nil
}

func (f *fakeLedger) UpdateBalance(ctx context.Context, agent *models.Agent, newPoints, newXP int64, newLevel int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.agents[agent.ID]
	if !ok {
		return ErrRemoteUnavailable
	}
	if f.staleUpdates > 0 {
		f.staleUpdates--
		stored.Version++ // a concurrent writer got there first
		return ErrStaleBalance
	}
	if stored.Version != agent.Version {
		return ErrStaleBalance
	}
	stored.TotalPoints = newPoints
	stored.ExperiencePoints = newXP
	stored.Level = newLevel
	stored.Version++
	return nil
}

func (f *fakeLedger) RecordTransaction(ctx context.Context, entry *models.PointsTransaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.txs = append(f.txs, *entry)
	return nil
}

func TestCreditActionFirstThenReplay(t *testing.T) {
	ledger := newFakeLedger()
	ledger.addAgent("a1", 0)
	flow := NewCreditFlow(ledger)
	ctx := context.Background()

	first := flow.CreditAction(ctx, "a1", "CLICK_MISSION", 1, "Completed mission: CLICK_MISSION")
	assert.Equal(t, CreditStatusCredited, first.Status)
	assert.Equal(t, int64(1), first.NewBalance)

	second := flow.CreditAction(ctx, "a1", "CLICK_MISSION", 1, "Completed mission: CLICK_MISSION")
	assert.Equal(t, CreditStatusAlreadyClaimed, second.Status)

	agent, err := ledger.FetchIdentityByID(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), agent.TotalPoints, "replay must not double-credit")
}

func TestCreditActionConcurrentCallers(t *testing.T) {
	ledger := newFakeLedger()
	ledger.addAgent("a1", 0)
	flow := NewCreditFlow(ledger)

	const callers = 16
	results := make(chan CreditResult, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- flow.CreditAction(context.Background(), "a1", "CLICK_MISSION", 1, "race")
		}()
	}
	wg.Wait()
	close(results)

	credited, already := 0, 0
	for r := range results {
		switch r.Status {
		case CreditStatusCredited:
			credited++
		case CreditStatusAlreadyClaimed:
			already++
		default:
			t.Fatalf("unexpected result: %+v", r)
		}
	}
	assert.Equal(t, 1, credited, "exactly one caller wins the claim insert")
	assert.Equal(t, callers-1, already)

	agent, err := ledger.FetchIdentityByID(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), agent.TotalPoints)
}

func TestCreditActionDistinctActionsAccumulate(t *testing.T) {
	ledger := newFakeLedger()
	ledger.addAgent("a1", 0)
	flow := NewCreditFlow(ledger)
	ctx := context.Background()

	for i, action := range []string{"CLICK_MISSION", "NIGHT_RECON", "DEAD_DROP"} {
		r := flow.CreditAction(ctx, "a1", action, 5, "credit")
		assert.Equal(t, CreditStatusCredited, r.Status)
		assert.Equal(t, int64(5*(i+1)), r.NewBalance)
	}

	agent, _ := ledger.FetchIdentityByID(ctx, "a1")
	assert.Equal(t, int64(15), agent.TotalPoints)
	assert.Len(t, ledger.txs, 3)
}

func TestCreditActionRetryAfterFailure(t *testing.T) {
	ledger := newFakeLedger()
	ledger.addAgent("a1", 0)
	ledger.failInsertClaim = ErrRemoteUnavailable
	flow := NewCreditFlow(ledger)
	ctx := context.Background()

	failed := flow.CreditAction(ctx, "a1", "CLICK_MISSION", 1, "credit")
	assert.Equal(t, CreditStatusFailed, failed.Status)
	assert.NotEmpty(t, failed.Reason)

	// Nothing was applied: no claim, untouched balance.
	claim, err := ledger.FetchClaim(ctx, "a1", "CLICK_MISSION")
	require.NoError(t, err)
	assert.Nil(t, claim)
	agent, _ := ledger.FetchIdentityByID(ctx, "a1")
	assert.Equal(t, int64(0), agent.TotalPoints)

	// Backend recovers; the retry credits exactly once.
	ledger.failInsertClaim = nil
	retried := flow.CreditAction(ctx, "a1", "CLICK_MISSION", 1, "credit")
	assert.Equal(t, CreditStatusCredited, retried.Status)
	assert.Equal(t, int64(1), retried.NewBalance)
}

func TestCreditActionFetchClaimFailure(t *testing.T) {
	ledger := newFakeLedger()
	ledger.addAgent("a1", 0)
	ledger.failFetchClaim = ErrRemoteUnavailable
	flow := NewCreditFlow(ledger)

	r := flow.CreditAction(context.Background(), "a1", "CLICK_MISSION", 1, "credit")
	assert.Equal(t, CreditStatusFailed, r.Status)
}

func TestCreditActionUnknownIdentity(t *testing.T) {
	flow := NewCreditFlow(newFakeLedger())

	r := flow.CreditAction(context.Background(), "ghost", "CLICK_MISSION", 1, "credit")
	assert.Equal(t, CreditStatusFailed, r.Status)
	assert.Equal(t, "identity not found", r.Reason)
}

func TestCreditActionVersionConflictRetried(t *testing.T) {
	ledger := newFakeLedger()
	ledger.addAgent("a1", 10)
	ledger.staleUpdates = 1
	flow := NewCreditFlow(ledger)

	r := flow.CreditAction(context.Background(), "a1", "NIGHT_RECON", 5, "credit")
	assert.Equal(t, CreditStatusCredited, r.Status)
	assert.Equal(t, int64(15), r.NewBalance)

	agent, _ := ledger.FetchIdentityByID(context.Background(), "a1")
	assert.Equal(t, int64(15), agent.TotalPoints)
}

func TestCreditActionLevelNeverDecreases(t *testing.T) {
	ledger := newFakeLedger()
	agent := ledger.addAgent("a1", 0)
	agent.Level = 7 // manually boosted beyond the curve

	flow := NewCreditFlow(ledger)
	r := flow.CreditAction(context.Background(), "a1", "CLICK_MISSION", 1, "credit")
	assert.Equal(t, CreditStatusCredited, r.Status)
	assert.Equal(t, 7, r.NewLevel)
}
