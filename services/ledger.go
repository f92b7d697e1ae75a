// services/ledger.go
package services

import (
	"context"
	"errors"
	"fmt"

	"agent-mission-system/models"

	"gorm.io/gorm"
)

// Ledger error taxonomy. Duplicate errors are expected race outcomes, not
// failures; ErrRemoteUnavailable means the operation must be treated as
// not-applied and may be retried.
var (
	ErrDuplicateIdentity = errors.New("identity already exists")
	ErrDuplicateClaim    = errors.New("claim already exists")
	ErrStaleBalance      = errors.New("balance version conflict")
	ErrRemoteUnavailable = errors.New("ledger unavailable")
)

// WelcomePoints is the fixed grant applied exactly once when an identity is
// created on first wallet connect.
const WelcomePoints int64 = 1

// Ledger is the typed boundary to the authoritative store. The crediting flow
// receives one via injection rather than a package-level singleton.
type Ledger interface {
	FetchIdentity(ctx context.Context, walletAddress string) (*models.Agent, error)
	FetchIdentityByID(ctx context.Context, agentID string) (*models.Agent, error)
	CreateIdentity(ctx context.Context, walletAddress, codename string) (*models.Agent, error)
	FetchClaim(ctx context.Context, agentID, actionCode string) (*models.Claim, error)
	InsertClaim(ctx context.Context, agentID, actionCode string, pointsAwarded int64) (*models.Claim, error)
	UpdateBalance(ctx context.Context, agent *models.Agent, newPoints, newXP int64, newLevel int) error
	RecordTransaction(ctx context.Context, entry *models.PointsTransaction) error
}

// GormLedger implements Ledger on the agents/claims tables.
type GormLedger struct {
	DB *gorm.DB
}

func NewGormLedger(db *gorm.DB) *GormLedger {
	return &GormLedger{DB: db}
}

// mapLedgerErr translates GORM errors into the ledger taxonomy.
// Requires gorm.Config{TranslateError: true} so unique violations surface
// as gorm.ErrDuplicatedKey.
func mapLedgerErr(err error, duplicate error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return duplicate
	}
	return fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
}

// FetchIdentity looks up the agent by wallet address. Absence is nil, not an error.
func (l *GormLedger) FetchIdentity(ctx context.Context, walletAddress string) (*models.Agent, error) {
	var agent models.Agent
	err := l.DB.WithContext(ctx).Where("wallet_address = ?", walletAddress).First(&agent).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}
	return &agent, nil
}

func (l *GormLedger) FetchIdentityByID(ctx context.Context, agentID string) (*models.Agent, error) {
	var agent models.Agent
	err := l.DB.WithContext(ctx).Where("id = ?", agentID).First(&agent).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}
	return &agent, nil
}

// CreateIdentity inserts a new agent with the welcome grant already applied,
// plus its bonus ledger entry, in one transaction. The reconciler derives
// expected balances from claims and bonus entries, so the grant and its
// history line must land (or fail) together — a grant without the bonus row
// would read as drift and get debited away.
// A concurrent creation for the same wallet loses on the wallet_address unique
// index and gets ErrDuplicateIdentity — callers re-fetch and carry on.
func (l *GormLedger) CreateIdentity(ctx context.Context, walletAddress, codename string) (*models.Agent, error) {
	agent := models.Agent{
		WalletAddress:    walletAddress,
		Codename:         codename,
		TotalPoints:      WelcomePoints,
		ExperiencePoints: WelcomePoints,
		Level:            1,
	}
	err := l.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&agent).Error; err != nil {
			return err
		}
		welcome := models.PointsTransaction{
			AgentID:     agent.ID,
			Amount:      WelcomePoints,
			Type:        models.TransactionBonus,
			Description: "Welcome bonus - connected wallet for the first time",
		}
		return tx.Create(&welcome).Error
	})
	if err != nil {
		return nil, mapLedgerErr(err, ErrDuplicateIdentity)
	}
	return &agent, nil
}

// FetchClaim returns the claim for (agent, action) or nil when absent.
func (l *GormLedger) FetchClaim(ctx context.Context, agentID, actionCode string) (*models.Claim, error) {
	var claim models.Claim
	err := l.DB.WithContext(ctx).
		Where("agent_id = ? AND action_code = ?", agentID, actionCode).
		First(&claim).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}
	return &claim, nil
}

// InsertClaim writes the claim row. Of N concurrent inserts for the same
// (agent, action) pair exactly one succeeds; the rest get ErrDuplicateClaim.
func (l *GormLedger) InsertClaim(ctx context.Context, agentID, actionCode string, pointsAwarded int64) (*models.Claim, error) {
	claim := models.Claim{
		AgentID:       agentID,
		ActionCode:    actionCode,
		PointsAwarded: pointsAwarded,
	}
	if err := l.DB.WithContext(ctx).Create(&claim).Error; err != nil {
		return nil, mapLedgerErr(err, ErrDuplicateClaim)
	}
	return &claim, nil
}

// UpdateBalance writes the new balance/level guarded by the version the caller
// read. A zero-row update means another writer got there first; the caller
// re-reads and recomputes rather than overwriting blind.
func (l *GormLedger) UpdateBalance(ctx context.Context, agent *models.Agent, newPoints, newXP int64, newLevel int) error {
	res := l.DB.WithContext(ctx).Model(&models.Agent{}).
		Where("id = ? AND version = ?", agent.ID, agent.Version).
		Updates(map[string]interface{}{
			"total_points":      newPoints,
			"experience_points": newXP,
			"level":             newLevel,
			"version":           agent.Version + 1,
		})
	if res.Error != nil {
		return fmt.Errorf("%w: %v", ErrRemoteUnavailable, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrStaleBalance
	}
	return nil
}

// RecordTransaction appends a points ledger entry.
func (l *GormLedger) RecordTransaction(ctx context.Context, entry *models.PointsTransaction) error {
	if err := l.DB.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}
	return nil
}
