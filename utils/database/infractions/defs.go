package infractions

import (
	"fmt"

	"grounded/model"

	"github.com/jmoiron/sqlx"
)

// GetDefByID retrieves a single infraction definition by its primary key.
func GetDefByID(q sqlx.Ext, id int64) (*model.InfractionDef, error) {
	var def model.InfractionDef
	err := sqlx.Get(q, &def, "SELECT * FROM infraction_defs WHERE id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("failed to get infraction def by id %d: %w", id, err)
	}
	return &def, nil
}

// GetDefByCode retrieves a single infraction definition by its unique code.
func GetDefByCode(q sqlx.Ext, code string) (*model.InfractionDef, error) {
	var def model.InfractionDef
	err := sqlx.Get(q, &def, "SELECT * FROM infraction_defs WHERE code = ?", code)
	if err != nil {
		return nil, fmt.Errorf("failed to get infraction def by code %s: %w", code, err)
	}
	return &def, nil
}

// ListDefs retrieves infraction definitions. With activeOnly, disabled
// definitions are excluded (they can still be applied when selected
// explicitly, they just don't appear in default pickers).
func ListDefs(q sqlx.Ext, activeOnly bool) ([]model.InfractionDef, error) {
	var defs []model.InfractionDef
	query := "SELECT * FROM infraction_defs ORDER BY active DESC, sort_order ASC, label ASC"
	if activeOnly {
		query = "SELECT * FROM infraction_defs WHERE active = 1 ORDER BY sort_order ASC, label ASC"
	}
	err := sqlx.Select(q, &defs, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list infraction defs: %w", err)
	}
	return defs, nil
}

// AddDef inserts a new infraction definition and returns its ID.
func AddDef(q sqlx.Ext, def model.InfractionDef) (int64, error) {
	result, err := sqlx.NamedExec(q, `INSERT INTO infraction_defs (code, label, active, mode, days, ladder_json, blocks_json, review_days, sort_order)
	          VALUES (:code, :label, :active, :mode, :days, :ladder_json, :blocks_json, :review_days, :sort_order)`, def)
	if err != nil {
		return 0, fmt.Errorf("failed to insert infraction def: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID: %w", err)
	}
	return id, nil
}

// UpdateDef overwrites an existing infraction definition.
func UpdateDef(q sqlx.Ext, def model.InfractionDef) error {
	result, err := sqlx.NamedExec(q, `UPDATE infraction_defs
	          SET code = :code, label = :label, active = :active, mode = :mode,
	              days = :days, ladder_json = :ladder_json, blocks_json = :blocks_json,
	              review_days = :review_days, sort_order = :sort_order
	          WHERE id = :id`, def)
	if err != nil {
		return fmt.Errorf("failed to update infraction def %d: %w", def.ID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected for infraction def %d: %w", def.ID, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("no infraction def found with id %d", def.ID)
	}
	return nil
}
