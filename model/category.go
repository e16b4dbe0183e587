package model

import "fmt"

// Lock categories. Each one is an independently lockable privilege.
const (
	CategoryPhone = "phone"
	CategoryGames = "games"
	CategoryOther = "other"
)

// Categories lists all lock categories in display order.
var Categories = []string{CategoryPhone, CategoryGames, CategoryOther}

// ValidCategory reports whether s names a known lock category.
func ValidCategory(s string) bool {
	switch s {
	case CategoryPhone, CategoryGames, CategoryOther:
		return true
	}
	return false
}

// CheckCategory returns an error for unknown category names.
func CheckCategory(s string) error {
	if !ValidCategory(s) {
		return fmt.Errorf("unknown category %q", s)
	}
	return nil
}
