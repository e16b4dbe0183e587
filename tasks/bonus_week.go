package tasks

import (
	"fmt"
	"log"
	"time"

	"grounded/utils/database"
	"grounded/utils/database/audit"
	"grounded/utils/database/bonuses"

	"github.com/jmoiron/sqlx"
)

const bonusWeekStateKey = "bonus_week_start"

// ResetBonusWeek reseeds the bonus-claim queue when the week has rolled
// over, and is a no-op otherwise. Safe to call repeatedly.
func ResetBonusWeek(db *sqlx.DB, now time.Time) error {
	weekStart := bonuses.WeekStart(now)

	current, err := database.GetState(db, bonusWeekStateKey)
	if err != nil {
		return err
	}
	if current == weekStart {
		return nil
	}

	tx, err := db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin bonus-week transaction: %w", err)
	}
	defer tx.Rollback()

	if err := bonuses.ResetWeek(tx, weekStart); err != nil {
		return err
	}
	if err := database.SetState(tx, bonusWeekStateKey, weekStart); err != nil {
		return err
	}
	err = audit.Record(tx, "system", "bonus.reset_week", map[string]interface{}{
		"week_start": weekStart,
	}, now)
	if err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit bonus-week transaction: %w", err)
	}

	log.Printf("Bonus week reset for %s", weekStart)
	return nil
}
