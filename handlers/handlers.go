package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"grounded/infraction"
	"grounded/model"
	"grounded/utils"

	"github.com/jmoiron/sqlx"
)

// Provider is what the handlers need from the application.
type Provider interface {
	GetConfig() *model.Config
	GetDB() *sqlx.DB
	GetEngine() *infraction.Engine
}

// Register wires all API routes onto the mux.
func Register(mux *http.ServeMux, app Provider) {
	kid := NewKidHandler(app)
	priv := NewPrivilegesHandler(app)
	inf := NewInfractionHandler(app)
	review := NewReviewHandler(app)
	bonus := NewBonusHandler(app)

	mux.HandleFunc("/api/kids", kid.Kids)
	mux.HandleFunc("/api/privileges", priv.Get)
	mux.HandleFunc("/api/privileges/locks", priv.SetLocks)
	mux.HandleFunc("/api/privileges/banks", priv.SetBanks)
	mux.HandleFunc("/api/privileges/extend", priv.Extend)
	mux.HandleFunc("/api/infractions/defs", inf.Defs)
	mux.HandleFunc("/api/infractions/preview", inf.Preview)
	mux.HandleFunc("/api/infractions/apply", inf.Apply)
	mux.HandleFunc("/api/infractions/strikes", inf.Strikes)
	mux.HandleFunc("/api/infractions/history", inf.History)
	mux.HandleFunc("/api/reviews/due", review.Due)
	mux.HandleFunc("/api/reviews/upcoming", review.Upcoming)
	mux.HandleFunc("/api/reviews/resolve", review.Resolve)
	mux.HandleFunc("/api/bonuses", bonus.List)
	mux.HandleFunc("/api/bonuses/defs", bonus.AddDef)
	mux.HandleFunc("/api/bonuses/claim", bonus.Claim)
	mux.HandleFunc("/api/bonuses/approve", bonus.Approve)
	mux.HandleFunc("/api/bonuses/reject", bonus.Reject)
	mux.HandleFunc("/api/audit", AuditHandler(app))
	mux.HandleFunc("/api/system", SystemInfoHandler(app))
}

// respondEngineError maps the engine error taxonomy onto HTTP statuses.
func respondEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, infraction.ErrNotFound):
		utils.RespondMessage(w, http.StatusNotFound, err.Error())
	case errors.Is(err, infraction.ErrInvalidState):
		utils.RespondMessage(w, http.StatusConflict, err.Error())
	case errors.Is(err, infraction.ErrInvalidInput):
		utils.RespondMessage(w, http.StatusBadRequest, err.Error())
	default:
		log.Printf("Internal error handling request: %v", err)
		utils.RespondMessage(w, http.StatusInternalServerError, "internal error")
	}
}

// queryID reads an int64 query parameter.
func queryID(r *http.Request, name string) (int64, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
