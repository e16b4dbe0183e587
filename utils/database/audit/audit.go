package audit

import (
	"encoding/json"
	"fmt"
	"time"

	"grounded/model"
	"grounded/utils"

	"github.com/jmoiron/sqlx"
)

// Record appends an audit entry with a JSON detail payload. Audit rows are
// written inside the same transaction as the mutation they describe.
func Record(q sqlx.Ext, actor, action string, detail map[string]interface{}, now time.Time) error {
	detailJSON, err := json.Marshal(detail)
	if err != nil {
		return fmt.Errorf("failed to serialize audit detail for %s: %w", action, err)
	}
	_, err = q.Exec(`INSERT INTO audit_log(ts, actor, action, detail) VALUES(?, ?, ?, ?)`,
		utils.ISOFromTime(now), actor, action, string(detailJSON))
	if err != nil {
		return fmt.Errorf("failed to insert audit entry for %s: %w", action, err)
	}
	return nil
}

// ListRecent retrieves the newest audit entries.
func ListRecent(q sqlx.Ext, limit int) ([]model.AuditEntry, error) {
	var entries []model.AuditEntry
	err := sqlx.Select(q, &entries, "SELECT * FROM audit_log ORDER BY id DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	return entries, nil
}
