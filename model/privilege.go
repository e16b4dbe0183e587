package model

// PrivilegeRecord represents the per-kid privilege state in the database.
// The database table is named 'privileges', one row per kid, created lazily
// on first reference. A locked category with a NULL until timestamp is an
// indefinite (manual) lock; a non-NULL until timestamp may be in the past,
// in which case the category is logically unlocked but not yet cleared.
type PrivilegeRecord struct {
	KidID            int64   `db:"kid_id"`
	PhoneLocked      bool    `db:"phone_locked"`
	GamesLocked      bool    `db:"games_locked"`
	OtherLocked      bool    `db:"other_locked"`
	PhoneLockedUntil *string `db:"phone_locked_until"` // ISO-8601 UTC or NULL
	GamesLockedUntil *string `db:"games_locked_until"`
	OtherLockedUntil *string `db:"other_locked_until"`
	BankPhoneMin     int     `db:"bank_phone_min"`
	BankGamesMin     int     `db:"bank_games_min"`
	BankOtherMin     int     `db:"bank_other_min"`
}

// Locked returns the lock flag for a category.
func (p *PrivilegeRecord) Locked(category string) bool {
	switch category {
	case CategoryPhone:
		return p.PhoneLocked
	case CategoryGames:
		return p.GamesLocked
	case CategoryOther:
		return p.OtherLocked
	}
	return false
}

// LockedUntil returns the lock-expiry timestamp for a category, or nil.
func (p *PrivilegeRecord) LockedUntil(category string) *string {
	switch category {
	case CategoryPhone:
		return p.PhoneLockedUntil
	case CategoryGames:
		return p.GamesLockedUntil
	case CategoryOther:
		return p.OtherLockedUntil
	}
	return nil
}

// Bank returns the banked minutes for a category.
func (p *PrivilegeRecord) Bank(category string) int {
	switch category {
	case CategoryPhone:
		return p.BankPhoneMin
	case CategoryGames:
		return p.BankGamesMin
	case CategoryOther:
		return p.BankOtherMin
	}
	return 0
}

// PrivilegeView is the map-shaped form of a PrivilegeRecord used by API
// responses and event payloads.
type PrivilegeView struct {
	KidID       int64              `json:"kid_id"`
	Locks       map[string]bool    `json:"locks"`
	LockedUntil map[string]*string `json:"locked_until"`
	Banks       map[string]int     `json:"banks"`
}

// View converts the row into its map-shaped form.
func (p *PrivilegeRecord) View() *PrivilegeView {
	v := &PrivilegeView{
		KidID:       p.KidID,
		Locks:       make(map[string]bool, len(Categories)),
		LockedUntil: make(map[string]*string, len(Categories)),
		Banks:       make(map[string]int, len(Categories)),
	}
	for _, c := range Categories {
		v.Locks[c] = p.Locked(c)
		v.LockedUntil[c] = p.LockedUntil(c)
		v.Banks[c] = p.Bank(c)
	}
	return v
}
