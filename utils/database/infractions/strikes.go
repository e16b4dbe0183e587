package infractions

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"grounded/model"
	"grounded/utils"

	"github.com/jmoiron/sqlx"
)

// GetStrikes returns the strike count for a (kid, definition) pair, or 0 if
// the pair has never been struck.
func GetStrikes(q sqlx.Ext, kidID, defID int64) (int, error) {
	var count int
	err := sqlx.Get(q, &count,
		"SELECT strike_count FROM infraction_strikes WHERE kid_id = ? AND infraction_def_id = ?",
		kidID, defID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get strikes for kid %d def %d: %w", kidID, defID, err)
	}
	return count, nil
}

// SetStrikes upserts the strike count for a (kid, definition) pair.
func SetStrikes(q sqlx.Ext, kidID, defID int64, count int, now time.Time) error {
	_, err := q.Exec(`INSERT INTO infraction_strikes(kid_id, infraction_def_id, strike_count, updated_at)
	                  VALUES(?, ?, ?, ?)
	                  ON CONFLICT(kid_id, infraction_def_id) DO UPDATE SET
	                    strike_count = excluded.strike_count,
	                    updated_at = excluded.updated_at`,
		kidID, defID, count, utils.ISOFromTime(now))
	if err != nil {
		return fmt.Errorf("failed to set strikes for kid %d def %d: %w", kidID, defID, err)
	}
	return nil
}

// ResetStrikes zeroes the strike count for a (kid, definition) pair.
func ResetStrikes(q sqlx.Ext, kidID, defID int64, now time.Time) error {
	return SetStrikes(q, kidID, defID, 0, now)
}

// ListStrikes returns a kid's strike counters across all definitions.
func ListStrikes(q sqlx.Ext, kidID int64) ([]model.StrikeCounter, error) {
	var counters []model.StrikeCounter
	err := sqlx.Select(q, &counters,
		"SELECT * FROM infraction_strikes WHERE kid_id = ? ORDER BY infraction_def_id ASC",
		kidID)
	if err != nil {
		return nil, fmt.Errorf("failed to list strikes for kid %d: %w", kidID, err)
	}
	return counters, nil
}
