package apply

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/2beens/wodcareer/internal/auth"
	"github.com/2beens/wodcareer/internal/career"
	"github.com/2beens/wodcareer/internal/ledger"
	"github.com/2beens/wodcareer/internal/telemetry/tracing"
	"github.com/2beens/wodcareer/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

//go:generate mockgen -source=$GOFILE -destination=handler_mocks_test.go -package=apply_test

type service interface {
	ApplyImpact(ctx context.Context, req ImpactRequest) (*ImpactResponse, error)
	SubmitResult(ctx context.Context, req ResultRequest) (*ResultResponse, error)
	Career(ctx context.Context, userID int) (career.Snapshot, error)
	Missions(ctx context.Context, userID int) ([]ledger.UserMission, error)
}

type Handler struct {
	service service
}

func NewHandler(service service) *Handler {
	return &Handler{
		service: service,
	}
}

// impactBody accepts the overrides under athlete_impact or impact.
type impactBody struct {
	AnalysisID    *int           `json:"analysis_id"`
	AthleteImpact map[string]any `json:"athlete_impact"`
	Impact        map[string]any `json:"impact"`
}

func (h *Handler) HandleApplyImpact(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.apply.impact")
	defer span.End()

	athleteID, workoutID, ok := requestIDs(w, r)
	if !ok {
		return
	}

	var body impactBody
	if r.ContentLength != 0 {
		d := json.NewDecoder(r.Body)
		d.UseNumber()
		if err := d.Decode(&body); err != nil {
			log.Tracef("apply impact, unmarshal json body: %s", err)
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
	}
	overrides := body.AthleteImpact
	if overrides == nil {
		overrides = body.Impact
	}

	resp, err := h.service.ApplyImpact(ctx, ImpactRequest{
		UserID:     athleteID,
		WorkoutID:  workoutID,
		AnalysisID: body.AnalysisID,
		Impact:     overrides,
	})
	if err != nil {
		writeError(w, "apply impact", err)
		return
	}
	pkg.WriteJSON(w, resp, http.StatusOK)
}

func (h *Handler) HandleSubmitResult(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.apply.result")
	defer span.End()

	if r.Header.Get("Content-Type") != "application/json" {
		http.Error(w, "invalid content type", http.StatusBadRequest)
		return
	}

	athleteID, workoutID, ok := requestIDs(w, r)
	if !ok {
		return
	}

	var req ResultRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Tracef("submit result, unmarshal json body: %s", err)
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	req.UserID = athleteID
	req.WorkoutID = workoutID

	resp, err := h.service.SubmitResult(ctx, req)
	if err != nil {
		writeError(w, "submit result", err)
		return
	}
	pkg.WriteJSON(w, resp, http.StatusCreated)
}

func (h *Handler) HandleCareer(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.apply.career")
	defer span.End()

	athleteID, ok := auth.AthleteIDFromContext(ctx)
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	snap, err := h.service.Career(ctx, athleteID)
	if err != nil {
		writeError(w, "career", err)
		return
	}
	pkg.WriteJSON(w, snap, http.StatusOK)
}

func (h *Handler) HandleMissions(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.apply.missions")
	defer span.End()

	athleteID, ok := auth.AthleteIDFromContext(ctx)
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	missions, err := h.service.Missions(ctx, athleteID)
	if err != nil {
		writeError(w, "missions", err)
		return
	}
	pkg.WriteJSON(w, missions, http.StatusOK)
}

// requestIDs reads the authenticated athlete and the workoutId route var,
// writing the error response when either is missing.
func requestIDs(w http.ResponseWriter, r *http.Request) (athleteID, workoutID int, ok bool) {
	athleteID, ok = auth.AthleteIDFromContext(r.Context())
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return 0, 0, false
	}

	workoutID, err := strconv.Atoi(mux.Vars(r)["workoutId"])
	if err != nil || workoutID <= 0 {
		http.Error(w, "invalid workout id", http.StatusBadRequest)
		return 0, 0, false
	}
	return athleteID, workoutID, true
}

func writeError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrWorkoutNotFound), errors.Is(err, ErrAnalysisNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ErrEmptyImpact):
		http.Error(w, "impact is empty", http.StatusBadRequest)
	case errors.Is(err, ErrInvalidResult):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		log.Errorf("%s: %s", op, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
