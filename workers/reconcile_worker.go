package workers

import (
	"context"
	"log"
	"time"

	"agent-mission-system/services"

	"gorm.io/gorm"
)

// BalanceReconciler closes the documented inconsistency window: a claim can be
// durable while the balance write failed or the caller walked away. The
// claims table plus bonus ledger entries are the ground truth for earned
// points, so drifted balances are recomputed from them.
type BalanceReconciler struct {
	DB *gorm.DB
}

func NewBalanceReconciler(db *gorm.DB) *BalanceReconciler {
	return &BalanceReconciler{DB: db}
}

type driftRow struct {
	ID       string
	Version  int64
	Level    int
	Points   int64
	Expected int64
}

// findDrift returns agents whose stored balance disagrees with the sum of
// their claims and bonus transactions.
func (r *BalanceReconciler) findDrift() ([]driftRow, error) {
	var rows []driftRow
	err := r.DB.Raw(`
		SELECT a.id, a.version, a.level, a.total_points AS points,
		       COALESCE(c.earned, 0) + COALESCE(b.bonus, 0) AS expected
		FROM agents a
		LEFT JOIN (
			SELECT agent_id, SUM(points_awarded) AS earned
			FROM claims GROUP BY agent_id
		) c ON c.agent_id = a.id
		LEFT JOIN (
			SELECT agent_id, SUM(amount) AS bonus
			FROM points_transactions WHERE type = 'bonus' GROUP BY agent_id
		) b ON b.agent_id = a.id
		WHERE a.deleted_at IS NULL
		  AND a.total_points <> COALESCE(c.earned, 0) + COALESCE(b.bonus, 0)
	`).Scan(&rows).Error
	return rows, err
}

// repair writes the recomputed balance, guarded by the version read in the
// same pass. A concurrent credit bumping the version just defers the row to
// the next tick.
func (r *BalanceReconciler) repair(row driftRow) error {
	level := services.LevelForXP(row.Expected)
	if level < row.Level {
		level = row.Level // levels never go down
	}
	res := r.DB.Table("agents").
		Where("id = ? AND version = ?", row.ID, row.Version).
		Updates(map[string]interface{}{
			"total_points":      row.Expected,
			"experience_points": row.Expected,
			"level":             level,
			"version":           row.Version + 1,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		log.Printf("🔧 Reconciled agent %s: %d → %d points", row.ID, row.Points, row.Expected)
	}
	return nil
}

// PollBalances runs the reconciliation loop until ctx is cancelled.
func PollBalances(ctx context.Context, r *BalanceReconciler, pollInterval time.Duration) {
	log.Println("Starting balance reconciliation polling...")

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Balance reconciliation stopped.")
			return
		case <-ticker.C:
			rows, err := r.findDrift()
			if err != nil {
				log.Printf("❌ Error scanning for balance drift: %v", err)
				continue
			}
			if len(rows) == 0 {
				continue
			}
			log.Printf("📥 Found %d drifted balance(s).", len(rows))
			for _, row := range rows {
				if err := r.repair(row); err != nil {
					log.Printf("❌ Failed to reconcile agent %s: %v", row.ID, err)
				}
			}
		}
	}
}
