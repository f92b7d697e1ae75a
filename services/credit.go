// services/credit.go
package services

import (
	"context"
	"errors"
	"log"

	"agent-mission-system/models"
)

// CreditStatus is the terminal state of one CreditAction call.
type CreditStatus string

const (
	CreditStatusCredited       CreditStatus = "credited"
	CreditStatusAlreadyClaimed CreditStatus = "already_claimed"
	CreditStatusFailed         CreditStatus = "failed"
)

// CreditResult reports what happened. AlreadyClaimed is not an error: the
// reward was granted by an earlier (or concurrent) call.
type CreditResult struct {
	Status     CreditStatus `json:"status"`
	NewBalance int64        `json:"new_balance,omitempty"`
	NewLevel   int          `json:"new_level,omitempty"`
	Reason     string       `json:"reason,omitempty"`
}

// balanceRetries bounds the re-read loop when a concurrent credit for a
// different action bumped the version between our read and write.
const balanceRetries = 3

// CreditFlow decides whether an agent may be credited for an action and
// applies the credit exactly once. The claim insert's unique index is the
// sole arbiter under concurrent callers.
type CreditFlow struct {
	Ledger Ledger
}

func NewCreditFlow(ledger Ledger) *CreditFlow {
	return &CreditFlow{Ledger: ledger}
}

// CreditAction runs the flow for one (agent, actionCode) pair.
//
// Replays are safe at every step: before any mutation a Failed result means
// nothing was applied, and once the claim row exists every replay terminates
// in AlreadyClaimed.
func (f *CreditFlow) CreditAction(ctx context.Context, agentID, actionCode string, rewardAmount int64, description string) CreditResult {
	// Step 1: an existing claim ends the flow with no mutation.
	claim, err := f.Ledger.FetchClaim(ctx, agentID, actionCode)
	if err != nil {
		return CreditResult{Status: CreditStatusFailed, Reason: err.Error()}
	}
	if claim != nil {
		return CreditResult{Status: CreditStatusAlreadyClaimed}
	}

	// Step 2: fresh balance read, never the cached copy.
	agent, err := f.Ledger.FetchIdentityByID(ctx, agentID)
	if err != nil {
		return CreditResult{Status: CreditStatusFailed, Reason: err.Error()}
	}
	if agent == nil {
		return CreditResult{Status: CreditStatusFailed, Reason: "identity not found"}
	}

	// Step 3: the claim insert. Losing the race here is the normal
	// AlreadyClaimed path, not a failure.
	if _, err := f.Ledger.InsertClaim(ctx, agentID, actionCode, rewardAmount); err != nil {
		if errors.Is(err, ErrDuplicateClaim) {
			return CreditResult{Status: CreditStatusAlreadyClaimed}
		}
		return CreditResult{Status: CreditStatusFailed, Reason: err.Error()}
	}

	// Step 4: balance write. The claim is durable from here on, so a failed
	// write leaves a stale balance (repaired by the reconciler), never a
	// double credit.
	newPoints := agent.TotalPoints + rewardAmount
	newXP := agent.ExperiencePoints + rewardAmount
	newLevel := levelFloor(LevelForXP(newXP), agent.Level)

	for attempt := 0; ; attempt++ {
		err = f.Ledger.UpdateBalance(ctx, agent, newPoints, newXP, newLevel)
		if err == nil {
			break
		}
		if !errors.Is(err, ErrStaleBalance) || attempt >= balanceRetries {
			log.Printf("⚠️  Claim %s/%s recorded but balance update failed: %v (reconciler will repair)",
				agentID, actionCode, err)
			return CreditResult{Status: CreditStatusCredited, NewBalance: newPoints, NewLevel: newLevel}
		}
		// Another writer bumped the version; recompute from a fresh read.
		agent, err = f.Ledger.FetchIdentityByID(ctx, agentID)
		if err != nil || agent == nil {
			log.Printf("⚠️  Claim %s/%s recorded but re-read failed: %v (reconciler will repair)",
				agentID, actionCode, err)
			return CreditResult{Status: CreditStatusCredited, NewBalance: newPoints, NewLevel: newLevel}
		}
		newPoints = agent.TotalPoints + rewardAmount
		newXP = agent.ExperiencePoints + rewardAmount
		newLevel = levelFloor(LevelForXP(newXP), agent.Level)
	}

	// History entry; the balance is already committed, so losing this line
	// is log-worthy but not user-facing.
	entry := models.PointsTransaction{
		AgentID:     agentID,
		Amount:      rewardAmount,
		Type:        models.TransactionEarned,
		Description: description,
	}
	if err := f.Ledger.RecordTransaction(ctx, &entry); err != nil {
		log.Printf("⚠️  Failed to record transaction for %s/%s: %v", agentID, actionCode, err)
	}

	return CreditResult{Status: CreditStatusCredited, NewBalance: newPoints, NewLevel: newLevel}
}

// levelFloor keeps levels monotonic non-decreasing.
func levelFloor(computed, current int) int {
	if computed < current {
		return current
	}
	return computed
}
