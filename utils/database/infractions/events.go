package infractions

import (
	"fmt"

	"grounded/model"

	"github.com/jmoiron/sqlx"
)

// AddEvent appends a new infraction event and returns the new record's ID.
func AddEvent(q sqlx.Ext, event model.InfractionEvent) (int64, error) {
	query := `INSERT INTO infraction_events (kid_id, infraction_def_id, ts, actor, strike_before, strike_after, days_applied, mode, blocks_json, computed_until_json, review_on, note)
	          VALUES (:kid_id, :infraction_def_id, :ts, :actor, :strike_before, :strike_after, :days_applied, :mode, :blocks_json, :computed_until_json, :review_on, :note)`

	result, err := sqlx.NamedExec(q, query, event)
	if err != nil {
		return 0, fmt.Errorf("failed to insert infraction event: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID: %w", err)
	}

	return id, nil
}

// GetEventByID retrieves a single infraction event by its primary key.
func GetEventByID(q sqlx.Ext, id int64) (*model.InfractionEvent, error) {
	var event model.InfractionEvent
	err := sqlx.Get(q, &event, "SELECT * FROM infraction_events WHERE id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("failed to get infraction event by id %d: %w", id, err)
	}
	return &event, nil
}

// ListEventsByKid retrieves a kid's infraction history, newest first.
func ListEventsByKid(q sqlx.Ext, kidID int64, limit int) ([]model.InfractionEvent, error) {
	var events []model.InfractionEvent
	err := sqlx.Select(q, &events,
		"SELECT * FROM infraction_events WHERE kid_id = ? ORDER BY ts DESC, id DESC LIMIT ?",
		kidID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list infraction events for kid %d: %w", kidID, err)
	}
	return events, nil
}

// ListDue retrieves unreviewed events whose review date is on or before
// horizonDate (YYYY-MM-DD), ordered by review date ascending then event
// timestamp descending.
func ListDue(q sqlx.Ext, horizonDate string, limit int) ([]model.InfractionEvent, error) {
	var events []model.InfractionEvent
	err := sqlx.Select(q, &events,
		`SELECT * FROM infraction_events
		 WHERE review_on IS NOT NULL
		   AND review_on <= ?
		   AND (reviewed_at IS NULL OR reviewed_at = '')
		 ORDER BY review_on ASC, ts DESC
		 LIMIT ?`,
		horizonDate, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list due infraction events: %w", err)
	}
	return events, nil
}

// ListUpcoming retrieves unreviewed events whose review date falls after
// afterDate and on or before horizonDate.
func ListUpcoming(q sqlx.Ext, afterDate, horizonDate string, limit int) ([]model.InfractionEvent, error) {
	var events []model.InfractionEvent
	err := sqlx.Select(q, &events,
		`SELECT * FROM infraction_events
		 WHERE review_on IS NOT NULL
		   AND review_on > ?
		   AND review_on <= ?
		   AND (reviewed_at IS NULL OR reviewed_at = '')
		 ORDER BY review_on ASC, ts DESC
		 LIMIT ?`,
		afterDate, horizonDate, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list upcoming infraction events: %w", err)
	}
	return events, nil
}

// MarkReviewed records the review outcome on an event. The update is
// conditioned on the event not having been reviewed yet; it returns false
// when the event was already terminal (or does not exist) so callers can
// refuse to overwrite a resolution.
func MarkReviewed(q sqlx.Ext, eventID int64, reviewedAt, reviewedBy, reviewNote, reviewAction, resolvedJSON string) (bool, error) {
	result, err := q.Exec(`UPDATE infraction_events
	                       SET reviewed_at = ?,
	                           reviewed_by = ?,
	                           review_note = ?,
	                           review_action = ?,
	                           review_resolved_until_json = ?
	                       WHERE id = ? AND (reviewed_at IS NULL OR reviewed_at = '')`,
		reviewedAt, reviewedBy, reviewNote, reviewAction, resolvedJSON, eventID)
	if err != nil {
		return false, fmt.Errorf("failed to mark infraction event %d reviewed: %w", eventID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check rows affected for infraction event %d: %w", eventID, err)
	}
	return rowsAffected == 1, nil
}
