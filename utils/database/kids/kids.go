package kids

import (
	"database/sql"
	"errors"
	"fmt"

	"grounded/model"

	"github.com/jmoiron/sqlx"
)

// Exists reports whether a kid with the given id is present.
func Exists(q sqlx.Ext, id int64) (bool, error) {
	var one int
	err := sqlx.Get(q, &one, "SELECT 1 FROM kids WHERE id = ? LIMIT 1", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check kid %d: %w", id, err)
	}
	return true, nil
}

// GetByID retrieves a single kid by its primary key.
func GetByID(q sqlx.Ext, id int64) (*model.Kid, error) {
	var kid model.Kid
	err := sqlx.Get(q, &kid, "SELECT * FROM kids WHERE id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("failed to get kid by id %d: %w", id, err)
	}
	return &kid, nil
}

// List retrieves all active kids ordered by name.
func List(q sqlx.Ext) ([]model.Kid, error) {
	var all []model.Kid
	err := sqlx.Select(q, &all, "SELECT * FROM kids WHERE active = 1 ORDER BY name ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to list kids: %w", err)
	}
	return all, nil
}

// Add inserts a new kid and returns the new record's ID.
func Add(q sqlx.Ext, name string) (int64, error) {
	result, err := q.Exec("INSERT INTO kids(name) VALUES(?)", name)
	if err != nil {
		return 0, fmt.Errorf("failed to insert kid: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID: %w", err)
	}
	return id, nil
}
