package model

// Bonus instance statuses. An instance is claimable exactly once per week.
const (
	BonusAvailable = "available"
	BonusClaimed   = "claimed"
	BonusApproved  = "approved"
	BonusRejected  = "rejected"
)

// BonusDef is an admin-managed weekly bonus chore. Approving a completed
// bonus credits the kid's banked minutes.
type BonusDef struct {
	ID       int64  `db:"id" json:"id"`
	Label    string `db:"label" json:"label"`
	PhoneMin int    `db:"phone_min" json:"phone_min"`
	GamesMin int    `db:"games_min" json:"games_min"`
	Active   bool   `db:"active" json:"active"`
}

// BonusInstance is one claimable slot of a bonus definition for a given week.
// week_start is the Monday of the week, date-only.
type BonusInstance struct {
	ID         int64   `db:"id" json:"id"`
	BonusDefID int64   `db:"bonus_def_id" json:"bonus_def_id"`
	WeekStart  string  `db:"week_start" json:"week_start"`
	Status     string  `db:"status" json:"status"`
	ClaimedBy  *int64  `db:"claimed_by_kid" json:"claimed_by_kid"`
	ClaimedAt  *string `db:"claimed_at" json:"claimed_at"`
	ResolvedAt *string `db:"resolved_at" json:"resolved_at"`
	Label      string  `db:"label" json:"label"` // joined from bonus_defs
	PhoneMin   int     `db:"phone_min" json:"phone_min"`
	GamesMin   int     `db:"games_min" json:"games_min"`
}
