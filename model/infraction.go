package model

import "encoding/json"

// Infraction modes. 'set' replaces a lock's remaining time measured from now;
// 'add' stacks the duration onto whichever is later of now or the current expiry.
const (
	ModeSet = "set"
	ModeAdd = "add"
)

// Review actions recorded on an event when it is resolved.
const (
	ReviewActionOnly    = "review_only"
	ReviewActionUnlock  = "unlock"
	ReviewActionShorten = "shorten"
)

// InfractionDef is an admin-managed policy row describing how a rule violation
// translates into lock time. The engine consumes these read-only; the 'infraction_defs'
// table is edited through the admin surface.
type InfractionDef struct {
	ID         int64  `db:"id" json:"id"`
	Code       string `db:"code" json:"code"`
	Label      string `db:"label" json:"label"`
	Active     bool   `db:"active" json:"active"`
	Mode       string `db:"mode" json:"mode"` // set | add
	Days       int    `db:"days" json:"days"`
	LadderJSON string `db:"ladder_json" json:"ladder_json"` // JSON array of day counts indexed by strike
	BlocksJSON string `db:"blocks_json" json:"blocks_json"` // JSON object category -> 0/1
	ReviewDays int    `db:"review_days" json:"review_days"` // 0 means derive from days applied
	SortOrder  int    `db:"sort_order" json:"sort_order"`
}

// NormalizedMode returns the definition's mode, coercing unknown values to 'set'.
func (d *InfractionDef) NormalizedMode() string {
	if d.Mode == ModeAdd {
		return ModeAdd
	}
	return ModeSet
}

// Ladder decodes the strike ladder, dropping non-positive entries.
func (d *InfractionDef) Ladder() []int {
	var raw []int
	if err := json.Unmarshal([]byte(d.LadderJSON), &raw); err != nil {
		return nil
	}
	vals := make([]int, 0, len(raw))
	for _, n := range raw {
		if n > 0 {
			vals = append(vals, n)
		}
	}
	return vals
}

// Blocks decodes the blocked-category set. Unknown keys are ignored and
// missing categories default to unblocked.
func (d *InfractionDef) Blocks() map[string]bool {
	blocks := make(map[string]bool, len(Categories))
	for _, c := range Categories {
		blocks[c] = false
	}
	var raw map[string]int
	if err := json.Unmarshal([]byte(d.BlocksJSON), &raw); err != nil {
		return blocks
	}
	for _, c := range Categories {
		if raw[c] == 1 {
			blocks[c] = true
		}
	}
	return blocks
}

// StrikeCounter tracks how many times a definition has been applied to a kid.
// The 'infraction_strikes' table has one row per (kid, definition).
type StrikeCounter struct {
	KidID           int64  `db:"kid_id" json:"kid_id"`
	InfractionDefID int64  `db:"infraction_def_id" json:"infraction_def_id"`
	StrikeCount     int    `db:"strike_count" json:"strike_count"`
	UpdatedAt       string `db:"updated_at" json:"updated_at"`
}

// InfractionEvent is one append-only row in 'infraction_events', recorded per
// engine application. Review fields stay NULL until the event is resolved;
// once reviewed_at is set the event is terminal.
type InfractionEvent struct {
	ID              int64   `db:"id" json:"id"`
	KidID           int64   `db:"kid_id" json:"kid_id"`
	InfractionDefID int64   `db:"infraction_def_id" json:"infraction_def_id"`
	TS              string  `db:"ts" json:"ts"`
	Actor           string  `db:"actor" json:"actor"`
	StrikeBefore    int     `db:"strike_before" json:"strike_before"`
	StrikeAfter     int     `db:"strike_after" json:"strike_after"`
	DaysApplied     int     `db:"days_applied" json:"days_applied"`
	Mode            string  `db:"mode" json:"mode"`
	BlocksJSON      string  `db:"blocks_json" json:"blocks_json"`
	ComputedJSON    string  `db:"computed_until_json" json:"computed_until_json"`
	ReviewOn        *string `db:"review_on" json:"review_on"` // date-only, YYYY-MM-DD
	Note            string  `db:"note" json:"note"`

	ReviewedAt   *string `db:"reviewed_at" json:"reviewed_at"`
	ReviewedBy   *string `db:"reviewed_by" json:"reviewed_by"`
	ReviewNote   *string `db:"review_note" json:"review_note"`
	ReviewAction *string `db:"review_action" json:"review_action"`
	ResolvedJSON *string `db:"review_resolved_until_json" json:"review_resolved_until_json"`
}

// Blocks decodes the category set captured at application time.
func (e *InfractionEvent) Blocks() map[string]bool {
	blocks := make(map[string]bool, len(Categories))
	for _, c := range Categories {
		blocks[c] = false
	}
	var raw map[string]int
	if err := json.Unmarshal([]byte(e.BlocksJSON), &raw); err != nil {
		return blocks
	}
	for _, c := range Categories {
		if raw[c] == 1 {
			blocks[c] = true
		}
	}
	return blocks
}

// ComputedUntil decodes the per-category expiry timestamps captured at
// application time.
func (e *InfractionEvent) ComputedUntil() map[string]string {
	out := make(map[string]string)
	if err := json.Unmarshal([]byte(e.ComputedJSON), &out); err != nil {
		return map[string]string{}
	}
	return out
}

// ConsequenceResult is the outcome of applying (or previewing) an infraction.
type ConsequenceResult struct {
	EventID       int64             `json:"event_id,omitempty"` // 0 for previews
	KidID         int64             `json:"kid_id"`
	DefID         int64             `json:"def_id"`
	DefCode       string            `json:"def_code"`
	DefLabel      string            `json:"def_label"`
	StrikeBefore  int               `json:"strike_before"`
	StrikeAfter   int               `json:"strike_after"`
	DaysApplied   int               `json:"days_applied"`
	Mode          string            `json:"mode"`
	Blocks        map[string]bool   `json:"blocks"`
	ComputedUntil map[string]string `json:"computed_until"`
	ReviewOn      *string           `json:"review_on"`
	Note          string            `json:"note,omitempty"`
}

// ResolutionResult is the outcome of resolving an event review.
type ResolutionResult struct {
	EventID       int64              `json:"event_id"`
	Action        string             `json:"action"`
	ResolvedUntil map[string]*string `json:"resolved_until"`
	StrikeReset   bool               `json:"strike_reset"`
}
