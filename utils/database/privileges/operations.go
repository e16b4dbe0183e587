package privileges

import (
	"fmt"
	"time"

	"grounded/model"
	"grounded/utils"

	"github.com/jmoiron/sqlx"
)

// EnsureRow creates the privilege row for a kid if it does not exist yet.
// New rows start fully unlocked with zero banked minutes.
func EnsureRow(q sqlx.Ext, kidID int64) error {
	_, err := q.Exec(`INSERT OR IGNORE INTO privileges(kid_id) VALUES(?)`, kidID)
	if err != nil {
		return fmt.Errorf("failed to ensure privilege row for kid %d: %w", kidID, err)
	}
	return nil
}

// GetForKid retrieves the raw privilege row for a kid, creating it if needed.
// No expiry evaluation happens here; see Normalize.
func GetForKid(q sqlx.Ext, kidID int64) (*model.PrivilegeRecord, error) {
	if err := EnsureRow(q, kidID); err != nil {
		return nil, err
	}
	var pv model.PrivilegeRecord
	err := sqlx.Get(q, &pv, "SELECT * FROM privileges WHERE kid_id = ?", kidID)
	if err != nil {
		return nil, fmt.Errorf("failed to get privileges for kid %d: %w", kidID, err)
	}
	return &pv, nil
}

// Normalize clears every lock whose expiry has passed and returns the
// reconciled record. The clearing write is idempotent: the UPDATE is
// conditioned on the stored expiry still being past-due, so concurrent
// readers repeating it are harmless. Locks with a NULL expiry (indefinite)
// are never touched.
func Normalize(q sqlx.Ext, kidID int64, now time.Time) (*model.PrivilegeRecord, bool, error) {
	pv, err := GetForKid(q, kidID)
	if err != nil {
		return nil, false, err
	}

	nowISO := utils.ISOFromTime(now)
	cleared := false

	for _, c := range model.Categories {
		until := pv.LockedUntil(c)
		if !pv.Locked(c) || until == nil {
			continue
		}
		expiry, err := utils.ParseISO(*until)
		if err != nil || expiry.After(now) {
			continue
		}

		query := fmt.Sprintf(`UPDATE privileges
		                      SET %s_locked = 0, %s_locked_until = NULL
		                      WHERE kid_id = ? AND %s_locked_until IS NOT NULL AND %s_locked_until <= ?`,
			c, c, c, c)
		if _, err := q.Exec(query, kidID, nowISO); err != nil {
			return nil, false, fmt.Errorf("failed to clear expired %s lock for kid %d: %w", c, kidID, err)
		}
		cleared = true
	}

	if !cleared {
		return pv, false, nil
	}

	pv, err = GetForKid(q, kidID)
	if err != nil {
		return nil, false, err
	}
	return pv, true, nil
}

// SetLocks unconditionally sets each category's lock flag. A category
// transitioning to unlocked has its expiry cleared in the same write; a
// category locked through this path gets no timer (indefinite lock).
func SetLocks(q sqlx.Ext, kidID int64, phone, games, other bool) error {
	if err := EnsureRow(q, kidID); err != nil {
		return err
	}
	_, err := q.Exec(`UPDATE privileges
	                  SET phone_locked = ?,
	                      games_locked = ?,
	                      other_locked = ?,
	                      phone_locked_until = CASE WHEN ? THEN phone_locked_until ELSE NULL END,
	                      games_locked_until = CASE WHEN ? THEN games_locked_until ELSE NULL END,
	                      other_locked_until = CASE WHEN ? THEN other_locked_until ELSE NULL END
	                  WHERE kid_id = ?`,
		phone, games, other, phone, games, other, kidID)
	if err != nil {
		return fmt.Errorf("failed to set locks for kid %d: %w", kidID, err)
	}
	return nil
}

// SetBanks overwrites the banked minutes for all three categories.
func SetBanks(q sqlx.Ext, kidID int64, phoneMin, gamesMin, otherMin int) error {
	if err := EnsureRow(q, kidID); err != nil {
		return err
	}
	_, err := q.Exec(`UPDATE privileges
	                  SET bank_phone_min = ?, bank_games_min = ?, bank_other_min = ?
	                  WHERE kid_id = ?`,
		phoneMin, gamesMin, otherMin, kidID)
	if err != nil {
		return fmt.Errorf("failed to set banks for kid %d: %w", kidID, err)
	}
	return nil
}

// ApplyBonus credits banked minutes for phone and games (bonus rewards never
// touch the other category).
func ApplyBonus(q sqlx.Ext, kidID int64, phoneMin, gamesMin int) error {
	if err := EnsureRow(q, kidID); err != nil {
		return err
	}
	_, err := q.Exec(`UPDATE privileges
	                  SET bank_phone_min = bank_phone_min + ?,
	                      bank_games_min = bank_games_min + ?
	                  WHERE kid_id = ?`,
		phoneMin, gamesMin, kidID)
	if err != nil {
		return fmt.Errorf("failed to apply bonus for kid %d: %w", kidID, err)
	}
	return nil
}

// SetLockUntil locks a category until the given ISO timestamp, or unlocks it
// entirely when until is nil.
func SetLockUntil(q sqlx.Ext, kidID int64, category string, until *string) error {
	if err := model.CheckCategory(category); err != nil {
		return err
	}
	if err := EnsureRow(q, kidID); err != nil {
		return err
	}

	locked := 0
	if until != nil {
		locked = 1
	}
	query := fmt.Sprintf(`UPDATE privileges SET %s_locked = ?, %s_locked_until = ? WHERE kid_id = ?`,
		category, category)
	if _, err := q.Exec(query, locked, until, kidID); err != nil {
		return fmt.Errorf("failed to set %s lock for kid %d: %w", category, kidID, err)
	}
	return nil
}

// AddLockMinutes stacks minutes onto a category's lock, measured from
// whichever is later of now or the currently stored expiry, and returns the
// resulting expiry. The current value is read here, inside the caller's
// transaction, never from earlier request state.
func AddLockMinutes(q sqlx.Ext, kidID int64, category string, minutes int, now time.Time) (string, error) {
	if err := model.CheckCategory(category); err != nil {
		return "", err
	}
	pv, err := GetForKid(q, kidID)
	if err != nil {
		return "", err
	}

	base := now
	if cur := pv.LockedUntil(category); cur != nil {
		if t, err := utils.ParseISO(*cur); err == nil && t.After(base) {
			base = t
		}
	}

	until := utils.ISOFromTime(base.Add(time.Duration(minutes) * time.Minute))
	if err := SetLockUntil(q, kidID, category, &until); err != nil {
		return "", err
	}
	return until, nil
}

// ExtendAllLocked stacks minutes onto every currently locked category using
// the add-mode composition rule. Unlocked categories are untouched. Returns
// the resulting expiry per extended category.
func ExtendAllLocked(q sqlx.Ext, kidID int64, minutes int, now time.Time) (map[string]string, error) {
	pv, err := GetForKid(q, kidID)
	if err != nil {
		return nil, err
	}

	extended := make(map[string]string)
	for _, c := range model.Categories {
		if !pv.Locked(c) {
			continue
		}
		until, err := AddLockMinutes(q, kidID, c, minutes, now)
		if err != nil {
			return nil, err
		}
		extended[c] = until
	}
	return extended, nil
}
