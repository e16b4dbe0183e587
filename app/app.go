package app

import (
	"grounded/infraction"
	"grounded/model"

	"github.com/jmoiron/sqlx"
)

// App wires the engine, database and configuration together.
type App struct {
	cfg       *model.Config
	db        *sqlx.DB
	engine    *infraction.Engine
	scheduler *Scheduler
}

// New creates the application around an initialized database.
func New(cfg *model.Config, db *sqlx.DB) (*App, error) {
	a := &App{
		cfg:    cfg,
		db:     db,
		engine: infraction.NewEngine(db),
	}
	a.scheduler = NewScheduler(a)
	return a, nil
}

func (a *App) GetConfig() *model.Config      { return a.cfg }
func (a *App) GetDB() *sqlx.DB               { return a.db }
func (a *App) GetEngine() *infraction.Engine { return a.engine }

// Close releases the database handle.
func (a *App) Close() error {
	return a.db.Close()
}
