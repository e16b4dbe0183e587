package model

// Kid is a tracked household member. Privileges, strikes and events all hang
// off the kid id.
type Kid struct {
	ID     int64  `db:"id" json:"id"`
	Name   string `db:"name" json:"name"`
	Active bool   `db:"active" json:"active"`
}
