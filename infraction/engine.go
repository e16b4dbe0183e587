package infraction

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"grounded/model"
	"grounded/utils"
	"grounded/utils/database/audit"
	"grounded/utils/database/infractions"
	"grounded/utils/database/kids"
	"grounded/utils/database/privileges"

	"github.com/jmoiron/sqlx"
)

// Engine turns logged rule violations into privilege locks and resolves
// their later reviews. All mutations are transactional read-modify-write
// sequences: nothing is computed from state read outside the transaction
// that writes it. There is no background scheduler; expired locks are
// cleared lazily on read (GetPrivileges).
type Engine struct {
	db *sqlx.DB

	// Now supplies the current time; overridable in tests.
	Now func() time.Time
}

// NewEngine creates an engine on top of an initialized database.
func NewEngine(db *sqlx.DB) *Engine {
	return &Engine{db: db, Now: time.Now}
}

// DB exposes the underlying handle for collaborators (handlers, tasks).
func (e *Engine) DB() *sqlx.DB { return e.db }

// Preview computes what Apply would do for (kid, definition) without
// mutating anything. The output is identical to what Apply would persist
// when invoked on the same state.
func (e *Engine) Preview(kidID, defID int64) (*model.ConsequenceResult, error) {
	def, err := infractions.GetDefByID(e.db, defID)
	if err != nil {
		return nil, wrapLookup(err, "infraction definition")
	}
	if err := e.checkKid(e.db, kidID); err != nil {
		return nil, err
	}

	strikeBefore, err := infractions.GetStrikes(e.db, kidID, defID)
	if err != nil {
		return nil, err
	}
	pv, err := privileges.GetForKid(e.db, kidID)
	if err != nil {
		return nil, err
	}

	return computeOutcome(def, strikeBefore, pv, e.Now()), nil
}

// Apply increments the kid's strike counter for the definition, computes the
// consequence, applies the lock expiries to the privilege record and appends
// the event, all in one transaction. A zero-day or block-less consequence
// still increments the strike and records the event.
func (e *Engine) Apply(kidID, defID int64, note, actor string) (*model.ConsequenceResult, error) {
	var result *model.ConsequenceResult
	err := e.withRetry(func() error {
		var err error
		result, err = e.applyTx(kidID, defID, note, actor)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (e *Engine) applyTx(kidID, defID int64, note, actor string) (*model.ConsequenceResult, error) {
	def, err := infractions.GetDefByID(e.db, defID)
	if err != nil {
		return nil, wrapLookup(err, "infraction definition")
	}

	now := e.Now()

	tx, err := e.db.Beginx()
	if err != nil {
		return nil, fmt.Errorf("failed to begin apply transaction: %w", err)
	}
	defer tx.Rollback()

	if err := e.checkKid(tx, kidID); err != nil {
		return nil, err
	}

	strikeBefore, err := infractions.GetStrikes(tx, kidID, defID)
	if err != nil {
		return nil, err
	}
	pv, err := privileges.GetForKid(tx, kidID)
	if err != nil {
		return nil, err
	}

	out := computeOutcome(def, strikeBefore, pv, now)
	out.Note = note

	if err := infractions.SetStrikes(tx, kidID, defID, out.StrikeAfter, now); err != nil {
		return nil, err
	}

	for _, c := range model.Categories {
		until, ok := out.ComputedUntil[c]
		if !ok {
			continue
		}
		if err := privileges.SetLockUntil(tx, kidID, c, &until); err != nil {
			return nil, err
		}
	}

	event := model.InfractionEvent{
		KidID:           kidID,
		InfractionDefID: defID,
		TS:              utils.ISOFromTime(now),
		Actor:           actor,
		StrikeBefore:    out.StrikeBefore,
		StrikeAfter:     out.StrikeAfter,
		DaysApplied:     out.DaysApplied,
		Mode:            out.Mode,
		BlocksJSON:      encodeBlocks(out.Blocks),
		ComputedJSON:    encodeJSON(out.ComputedUntil),
		ReviewOn:        out.ReviewOn,
		Note:            note,
	}
	eventID, err := infractions.AddEvent(tx, event)
	if err != nil {
		return nil, err
	}
	out.EventID = eventID

	err = audit.Record(tx, actor, "infraction.apply", map[string]interface{}{
		"kid_id":        kidID,
		"def_id":        defID,
		"def_code":      def.Code,
		"event_id":      eventID,
		"strike_before": out.StrikeBefore,
		"strike_after":  out.StrikeAfter,
		"days_applied":  out.DaysApplied,
		"mode":          out.Mode,
		"review_on":     out.ReviewOn,
	}, now)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit apply transaction: %w", err)
	}
	return out, nil
}

// Resolve applies a review decision to a past event. The event is terminal
// once reviewed: resolving it again fails with ErrInvalidState and mutates
// nothing. resetStrike zeroes the (kid, definition) counter independently of
// the chosen action.
func (e *Engine) Resolve(eventID int64, action string, keepMinutes int, actor, note string, resetStrike bool) (*model.ResolutionResult, error) {
	switch action {
	case model.ReviewActionOnly, model.ReviewActionUnlock, model.ReviewActionShorten:
	default:
		return nil, fmt.Errorf("%w: unsupported review action %q", ErrInvalidInput, action)
	}
	if keepMinutes < 0 {
		return nil, fmt.Errorf("%w: negative keep minutes", ErrInvalidInput)
	}

	var result *model.ResolutionResult
	err := e.withRetry(func() error {
		var err error
		result, err = e.resolveTx(eventID, action, keepMinutes, actor, note, resetStrike)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (e *Engine) resolveTx(eventID int64, action string, keepMinutes int, actor, note string, resetStrike bool) (*model.ResolutionResult, error) {
	now := e.Now()

	tx, err := e.db.Beginx()
	if err != nil {
		return nil, fmt.Errorf("failed to begin resolve transaction: %w", err)
	}
	defer tx.Rollback()

	event, err := infractions.GetEventByID(tx, eventID)
	if err != nil {
		return nil, wrapLookup(err, "infraction event")
	}
	if event.ReviewedAt != nil && *event.ReviewedAt != "" {
		return nil, fmt.Errorf("%w: event %d is already reviewed", ErrInvalidState, eventID)
	}

	blocks := event.Blocks()
	resolved := make(map[string]*string)

	switch action {
	case model.ReviewActionUnlock:
		for _, c := range model.Categories {
			if !blocks[c] {
				continue
			}
			if err := privileges.SetLockUntil(tx, event.KidID, c, nil); err != nil {
				return nil, err
			}
			resolved[c] = nil
		}

	case model.ReviewActionShorten:
		target := now.Add(time.Duration(keepMinutes) * time.Minute)
		targetISO := utils.ISOFromTime(target)

		pv, err := privileges.GetForKid(tx, event.KidID)
		if err != nil {
			return nil, err
		}
		for _, c := range model.Categories {
			if !blocks[c] {
				continue
			}
			// Never extend: a lock already ending sooner than the
			// target stays as-is.
			if cur := pv.LockedUntil(c); cur != nil {
				if t, err := utils.ParseISO(*cur); err == nil && t.Before(target) {
					kept := *cur
					resolved[c] = &kept
					continue
				}
			}
			untilISO := targetISO
			if err := privileges.SetLockUntil(tx, event.KidID, c, &untilISO); err != nil {
				return nil, err
			}
			resolved[c] = &untilISO
		}
	}

	if resetStrike {
		if err := infractions.ResetStrikes(tx, event.KidID, event.InfractionDefID, now); err != nil {
			return nil, err
		}
	}

	resolvedJSON, err := json.Marshal(resolved)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize resolved-until map: %w", err)
	}
	marked, err := infractions.MarkReviewed(tx, eventID, utils.ISOFromTime(now), actor, note, action, string(resolvedJSON))
	if err != nil {
		return nil, err
	}
	if !marked {
		return nil, fmt.Errorf("%w: event %d is already reviewed", ErrInvalidState, eventID)
	}

	err = audit.Record(tx, actor, "infraction.review", map[string]interface{}{
		"event_id":       eventID,
		"kid_id":         event.KidID,
		"review_action":  action,
		"review_note":    note,
		"resolved_until": resolved,
		"strike_reset":   resetStrike,
	}, now)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit resolve transaction: %w", err)
	}

	return &model.ResolutionResult{
		EventID:       eventID,
		Action:        action,
		ResolvedUntil: resolved,
		StrikeReset:   resetStrike,
	}, nil
}

// GetPrivileges returns a kid's privilege record with lazy expiry applied:
// any lock whose timestamp has passed is cleared and the clearing is written
// through before the record is returned. Repeating the clear is a no-op.
func (e *Engine) GetPrivileges(kidID int64) (*model.PrivilegeRecord, error) {
	if err := e.checkKid(e.db, kidID); err != nil {
		return nil, err
	}
	pv, _, err := privileges.Normalize(e.db, kidID, e.Now())
	return pv, err
}

// SetLocks is the direct admin override for lock flags. Unlocking always
// clears the category's timer; locking this way sets no timer (indefinite).
func (e *Engine) SetLocks(kidID int64, phone, games, other bool, actor string) error {
	if err := e.checkKid(e.db, kidID); err != nil {
		return err
	}
	return e.withRetry(func() error {
		tx, err := e.db.Beginx()
		if err != nil {
			return fmt.Errorf("failed to begin set-locks transaction: %w", err)
		}
		defer tx.Rollback()

		if err := privileges.SetLocks(tx, kidID, phone, games, other); err != nil {
			return err
		}
		err = audit.Record(tx, actor, "privileges.set_locks", map[string]interface{}{
			"kid_id": kidID,
			"phone":  phone,
			"games":  games,
			"other":  other,
		}, e.Now())
		if err != nil {
			return err
		}
		return tx.Commit()
	})
}

// SetBanks overwrites a kid's banked minutes. Negative values are rejected.
func (e *Engine) SetBanks(kidID int64, phoneMin, gamesMin, otherMin int, actor string) error {
	if phoneMin < 0 || gamesMin < 0 || otherMin < 0 {
		return fmt.Errorf("%w: negative banked minutes", ErrInvalidInput)
	}
	if err := e.checkKid(e.db, kidID); err != nil {
		return err
	}
	return e.withRetry(func() error {
		tx, err := e.db.Beginx()
		if err != nil {
			return fmt.Errorf("failed to begin set-banks transaction: %w", err)
		}
		defer tx.Rollback()

		if err := privileges.SetBanks(tx, kidID, phoneMin, gamesMin, otherMin); err != nil {
			return err
		}
		err = audit.Record(tx, actor, "privileges.set_banks", map[string]interface{}{
			"kid_id": kidID,
			"phone":  phoneMin,
			"games":  gamesMin,
			"other":  otherMin,
		}, e.Now())
		if err != nil {
			return err
		}
		return tx.Commit()
	})
}

// ExtendAllLocked stacks minutes onto every currently locked category for a
// kid, add-mode style. Returns the resulting expiry per extended category.
func (e *Engine) ExtendAllLocked(kidID int64, minutes int, actor string) (map[string]string, error) {
	if minutes <= 0 {
		return nil, fmt.Errorf("%w: extension minutes must be positive", ErrInvalidInput)
	}
	if err := e.checkKid(e.db, kidID); err != nil {
		return nil, err
	}

	var extended map[string]string
	err := e.withRetry(func() error {
		tx, err := e.db.Beginx()
		if err != nil {
			return fmt.Errorf("failed to begin extend transaction: %w", err)
		}
		defer tx.Rollback()

		extended, err = privileges.ExtendAllLocked(tx, kidID, minutes, e.Now())
		if err != nil {
			return err
		}
		err = audit.Record(tx, actor, "privileges.extend_all", map[string]interface{}{
			"kid_id":   kidID,
			"minutes":  minutes,
			"extended": extended,
		}, e.Now())
		if err != nil {
			return err
		}
		return tx.Commit()
	})
	if err != nil {
		return nil, err
	}
	return extended, nil
}

// ListDue returns unreviewed events whose review date falls within
// horizonDays of now, for review-queue UIs.
func (e *Engine) ListDue(horizonDays int) ([]model.InfractionEvent, error) {
	horizon := utils.DateFromTime(e.Now().AddDate(0, 0, horizonDays))
	return infractions.ListDue(e.db, horizon, 200)
}

// History returns a kid's event history, newest first.
func (e *Engine) History(kidID int64, limit int) ([]model.InfractionEvent, error) {
	if err := e.checkKid(e.db, kidID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}
	return infractions.ListEventsByKid(e.db, kidID, limit)
}

func (e *Engine) checkKid(q sqlx.Ext, kidID int64) error {
	ok, err := kids.Exists(q, kidID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: kid %d", ErrNotFound, kidID)
	}
	return nil
}

// withRetry runs fn, retrying once transparently when sqlite reports lock
// contention. Everything else surfaces to the caller unchanged.
func (e *Engine) withRetry(fn func() error) error {
	err := fn()
	if err != nil && isBusy(err) {
		time.Sleep(50 * time.Millisecond)
		err = fn()
	}
	return err
}

func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "database table is locked")
}

func wrapLookup(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrNotFound, what)
	}
	return err
}

func encodeBlocks(blocks map[string]bool) string {
	ints := make(map[string]int, len(blocks))
	for _, c := range model.Categories {
		if blocks[c] {
			ints[c] = 1
		} else {
			ints[c] = 0
		}
	}
	return encodeJSON(ints)
}

func encodeJSON(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}
