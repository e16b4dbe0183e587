package tasks

import (
	"fmt"
	"time"

	"grounded/model"
	"grounded/utils"
	"grounded/utils/database"
	"grounded/utils/database/infractions"

	"github.com/jmoiron/sqlx"
)

const reviewNotifyStateKey = "review_notified_on"

// NotifyDueReviews posts a webhook digest when infraction reviews are due,
// at most once per day.
func NotifyDueReviews(cfg *model.Config, db *sqlx.DB, now time.Time) error {
	today := utils.DateFromTime(now)

	lastNotified, err := database.GetState(db, reviewNotifyStateKey)
	if err != nil {
		return err
	}
	if lastNotified == today {
		return nil
	}

	due, err := infractions.ListDue(db, today, 200)
	if err != nil {
		return err
	}
	if len(due) == 0 {
		return nil
	}

	message := fmt.Sprintf("%d infraction review(s) due on %s", len(due), today)
	if err := utils.LogWarn(cfg.WebhookURL, "review", "due", message); err != nil {
		return err
	}

	return database.SetState(db, reviewNotifyStateKey, today)
}
