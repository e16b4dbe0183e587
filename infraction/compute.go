package infraction

import (
	"time"

	"grounded/model"
	"grounded/utils"
)

// computeDays resolves the lock duration for a strike number. A non-empty
// ladder is indexed by strike number and clamps to its last rung once strikes
// run past the end; otherwise the flat default applies.
func computeDays(def *model.InfractionDef, strikeAfter int) int {
	ladder := def.Ladder()
	if len(ladder) > 0 {
		idx := strikeAfter - 1
		if idx < 0 {
			idx = 0
		}
		if idx >= len(ladder) {
			idx = len(ladder) - 1
		}
		return ladder[idx]
	}
	if def.Days < 0 {
		return 0
	}
	return def.Days
}

// computeReviewDays resolves the review period: an explicit review_days wins,
// a zero-day consequence needs no review, and everything else gets half the
// applied days rounded up, minimum one.
func computeReviewDays(def *model.InfractionDef, daysApplied int) int {
	if def.ReviewDays > 0 {
		return def.ReviewDays
	}
	if daysApplied <= 0 {
		return 0
	}
	half := (daysApplied + 1) / 2
	if half < 1 {
		half = 1
	}
	return half
}

// computeOutcome derives the full consequence of applying def at the given
// strike count, composing new lock expiries against the freshly read
// privilege state. It is pure: Preview returns it as-is and Apply persists
// exactly what it returns.
func computeOutcome(def *model.InfractionDef, strikeBefore int, pv *model.PrivilegeRecord, now time.Time) *model.ConsequenceResult {
	strikeAfter := strikeBefore + 1
	daysApplied := computeDays(def, strikeAfter)
	minutes := daysApplied * 1440
	mode := def.NormalizedMode()
	blocks := def.Blocks()

	var reviewOn *string
	if reviewDays := computeReviewDays(def, daysApplied); reviewDays > 0 {
		d := utils.DateFromTime(now.AddDate(0, 0, reviewDays))
		reviewOn = &d
	}

	computed := make(map[string]string)
	for _, c := range model.Categories {
		if !blocks[c] || minutes <= 0 {
			continue
		}
		base := now
		if mode == model.ModeAdd {
			if cur := pv.LockedUntil(c); cur != nil {
				if t, err := utils.ParseISO(*cur); err == nil && t.After(base) {
					base = t
				}
			}
		}
		computed[c] = utils.ISOFromTime(base.Add(time.Duration(minutes) * time.Minute))
	}

	return &model.ConsequenceResult{
		KidID:         pv.KidID,
		DefID:         def.ID,
		DefCode:       def.Code,
		DefLabel:      def.Label,
		StrikeBefore:  strikeBefore,
		StrikeAfter:   strikeAfter,
		DaysApplied:   daysApplied,
		Mode:          mode,
		Blocks:        blocks,
		ComputedUntil: computed,
		ReviewOn:      reviewOn,
	}
}
