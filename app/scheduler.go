package app

import (
	"log"
	"sync"
	"time"

	"grounded/infraction"
	"grounded/model"
	"grounded/tasks"
	"grounded/utils"

	"github.com/jmoiron/sqlx"
)

// AppProvider defines the methods the scheduler needs from the App.
type AppProvider interface {
	GetConfig() *model.Config
	GetDB() *sqlx.DB
	GetEngine() *infraction.Engine
}

// Scheduler manages the periodic housekeeping tasks: the weekly bonus-queue
// reset and the review-due webhook digest. Lock expiry is deliberately not
// scheduled here; locks are cleared lazily on read.
type Scheduler struct {
	app  AppProvider
	done chan struct{}
	wg   sync.WaitGroup

	bonusTicker  *time.Ticker
	reviewTicker *time.Ticker
}

// NewScheduler creates a new scheduler.
func NewScheduler(app AppProvider) *Scheduler {
	return &Scheduler{
		app:  app,
		done: make(chan struct{}),
	}
}

// Start begins all scheduled tasks.
func (s *Scheduler) Start() {
	s.wg.Add(2)

	go s.startBonusWeekTask()
	go s.startReviewNotifier()
}

// Stop terminates all scheduled tasks gracefully.
func (s *Scheduler) Stop() {
	log.Println("Stopping scheduler...")
	close(s.done)
	s.wg.Wait()
	log.Println("Scheduler stopped.")
}

func (s *Scheduler) startBonusWeekTask() {
	defer s.wg.Done()
	if !s.app.GetConfig().BonusResetEnabled {
		log.Println("Bonus week reset is disabled by configuration.")
		return
	}

	s.runBonusWeekTask()

	s.bonusTicker = time.NewTicker(1 * time.Hour)
	defer s.bonusTicker.Stop()
	for {
		select {
		case <-s.bonusTicker.C:
			s.runBonusWeekTask()
		case <-s.done:
			return
		}
	}
}

func (s *Scheduler) runBonusWeekTask() {
	now := s.app.GetEngine().Now()
	if err := tasks.ResetBonusWeek(s.app.GetDB(), now); err != nil {
		log.Printf("Error resetting bonus week: %v", err)
		if werr := utils.LogError(s.app.GetConfig().WebhookURL, "bonus", "reset_week", err.Error()); werr != nil {
			log.Printf("Failed to send error notification: %v", werr)
		}
	}
}

func (s *Scheduler) startReviewNotifier() {
	defer s.wg.Done()

	s.runReviewNotifier()

	s.reviewTicker = time.NewTicker(30 * time.Minute)
	defer s.reviewTicker.Stop()
	for {
		select {
		case <-s.reviewTicker.C:
			s.runReviewNotifier()
		case <-s.done:
			return
		}
	}
}

func (s *Scheduler) runReviewNotifier() {
	now := s.app.GetEngine().Now()
	if err := tasks.NotifyDueReviews(s.app.GetConfig(), s.app.GetDB(), now); err != nil {
		log.Printf("Error notifying due reviews: %v", err)
	}
}
