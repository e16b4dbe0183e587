package bonuses

import (
	"errors"
	"fmt"
	"time"

	"grounded/model"
	"grounded/utils"
	"grounded/utils/database/kids"
	"grounded/utils/database/privileges"

	"github.com/jmoiron/sqlx"
)

// ErrUnavailable is returned when a claim or resolution races another caller
// and loses, or targets an instance in the wrong state.
var ErrUnavailable = errors.New("bonus instance is not in the required state")

// ErrUnknownKid is returned when a claim names a kid that does not exist.
var ErrUnknownKid = errors.New("unknown kid")

// WeekStart returns the Monday of t's week, date-only.
func WeekStart(t time.Time) string {
	t = t.UTC()
	offset := (int(t.Weekday()) + 6) % 7 // Monday = 0
	return utils.DateFromTime(t.AddDate(0, 0, -offset))
}

// SeedWeek creates one available instance per active bonus definition for the
// given week. Definitions that already have an instance that week are skipped,
// so reseeding is harmless.
func SeedWeek(q sqlx.Ext, weekStart string) error {
	_, err := q.Exec(`INSERT INTO bonus_instances(bonus_def_id, week_start)
	                  SELECT d.id, ? FROM bonus_defs d
	                  WHERE d.active = 1
	                    AND NOT EXISTS (
	                      SELECT 1 FROM bonus_instances i
	                      WHERE i.bonus_def_id = d.id AND i.week_start = ?
	                    )`, weekStart, weekStart)
	if err != nil {
		return fmt.Errorf("failed to seed bonus week %s: %w", weekStart, err)
	}
	return nil
}

// ResetWeek wipes and reseeds the given week's instances.
func ResetWeek(q sqlx.Ext, weekStart string) error {
	if _, err := q.Exec(`DELETE FROM bonus_instances WHERE week_start = ?`, weekStart); err != nil {
		return fmt.Errorf("failed to clear bonus week %s: %w", weekStart, err)
	}
	return SeedWeek(q, weekStart)
}

// ListWeek retrieves the given week's instances with their definition fields.
func ListWeek(q sqlx.Ext, weekStart string) ([]model.BonusInstance, error) {
	var instances []model.BonusInstance
	err := sqlx.Select(q, &instances,
		`SELECT i.id, i.bonus_def_id, i.week_start, i.status, i.claimed_by_kid, i.claimed_at, i.resolved_at,
		        d.label, d.phone_min, d.games_min
		 FROM bonus_instances i
		 JOIN bonus_defs d ON d.id = i.bonus_def_id
		 WHERE i.week_start = ?
		 ORDER BY d.label ASC`, weekStart)
	if err != nil {
		return nil, fmt.Errorf("failed to list bonus instances for week %s: %w", weekStart, err)
	}
	return instances, nil
}

// Claim marks an instance as claimed by a kid. The UPDATE is conditioned on
// the instance still being available, so two concurrent claims cannot both
// win: the loser sees zero affected rows and gets ErrUnavailable. The
// claimed_by_kid column carries no foreign key, so the kid is checked here.
func Claim(q sqlx.Ext, instanceID, kidID int64, now time.Time) error {
	ok, err := kids.Exists(q, kidID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownKid, kidID)
	}
	result, err := q.Exec(`UPDATE bonus_instances
	                       SET status = ?, claimed_by_kid = ?, claimed_at = ?
	                       WHERE id = ? AND status = ?`,
		model.BonusClaimed, kidID, utils.ISOFromTime(now), instanceID, model.BonusAvailable)
	if err != nil {
		return fmt.Errorf("failed to claim bonus instance %d: %w", instanceID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected for bonus instance %d: %w", instanceID, err)
	}
	if rowsAffected != 1 {
		return ErrUnavailable
	}
	return nil
}

// Approve resolves a claimed instance and credits the claiming kid's banked
// minutes, in one transaction.
func Approve(db *sqlx.DB, instanceID int64, now time.Time) error {
	tx, err := db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin approve transaction: %w", err)
	}
	defer tx.Rollback()

	var instance model.BonusInstance
	err = tx.Get(&instance,
		`SELECT i.id, i.bonus_def_id, i.week_start, i.status, i.claimed_by_kid, i.claimed_at, i.resolved_at,
		        d.label, d.phone_min, d.games_min
		 FROM bonus_instances i
		 JOIN bonus_defs d ON d.id = i.bonus_def_id
		 WHERE i.id = ?`, instanceID)
	if err != nil {
		return fmt.Errorf("failed to get bonus instance %d: %w", instanceID, err)
	}
	if instance.Status != model.BonusClaimed || instance.ClaimedBy == nil {
		return ErrUnavailable
	}

	result, err := tx.Exec(`UPDATE bonus_instances SET status = ?, resolved_at = ? WHERE id = ? AND status = ?`,
		model.BonusApproved, utils.ISOFromTime(now), instanceID, model.BonusClaimed)
	if err != nil {
		return fmt.Errorf("failed to approve bonus instance %d: %w", instanceID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected for bonus instance %d: %w", instanceID, err)
	}
	if rowsAffected != 1 {
		return ErrUnavailable
	}

	if err := privileges.ApplyBonus(tx, *instance.ClaimedBy, instance.PhoneMin, instance.GamesMin); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit approve transaction: %w", err)
	}
	return nil
}

// Reject resolves a claimed instance without crediting anything.
func Reject(q sqlx.Ext, instanceID int64, now time.Time) error {
	result, err := q.Exec(`UPDATE bonus_instances SET status = ?, resolved_at = ? WHERE id = ? AND status = ?`,
		model.BonusRejected, utils.ISOFromTime(now), instanceID, model.BonusClaimed)
	if err != nil {
		return fmt.Errorf("failed to reject bonus instance %d: %w", instanceID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected for bonus instance %d: %w", instanceID, err)
	}
	if rowsAffected != 1 {
		return ErrUnavailable
	}
	return nil
}

// AddDef inserts a new bonus definition and returns its ID.
func AddDef(q sqlx.Ext, def model.BonusDef) (int64, error) {
	result, err := sqlx.NamedExec(q, `INSERT INTO bonus_defs (label, phone_min, games_min, active)
	          VALUES (:label, :phone_min, :games_min, :active)`, def)
	if err != nil {
		return 0, fmt.Errorf("failed to insert bonus def: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID: %w", err)
	}
	return id, nil
}
