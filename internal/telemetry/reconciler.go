// Package telemetry infers real departure and return times from vehicle GPS presence.
package telemetry

import (
	"context"
	"errors"
	"strings"
	"time"

	pkgerrors "github.com/angelmondragon/fieldops-backend/pkg/errors"
	"github.com/angelmondragon/fieldops-backend/pkg/logger"
)

// DefaultReturnRadiusKm is the distance under which a sample counts as back at base.
const DefaultReturnRadiusKm = 6.0

// Reconciliation holds the inferred window. Either side may be nil.
type Reconciliation struct {
	RealStart      *time.Time
	RealCompletion *time.Time
}

// Found reports whether a departure was detected.
func (r Reconciliation) Found() bool {
	return r.RealStart != nil
}

// Reconciler answers GPS reconciliation queries.
type Reconciler interface {
	Reconcile(ctx context.Context, vehicleID string, reference time.Time) (Reconciliation, error)
}

type reconciler struct {
	repo     Repository
	radiusKm float64
	logg     *logger.Logger
}

// NewReconciler validates its dependencies. A non-positive radius uses DefaultReturnRadiusKm.
func NewReconciler(repo Repository, radiusKm float64, logg *logger.Logger) (Reconciler, error) {
	if repo == nil {
		return nil, errors.New("telemetry repository required")
	}
	if logg == nil {
		return nil, errors.New("logger required")
	}
	if radiusKm <= 0 {
		radiusKm = DefaultReturnRadiusKm
	}
	return &reconciler{repo: repo, radiusKm: radiusKm, logg: logg}, nil
}

// Reconcile finds the first departure after reference, then the first return after
// that departure. Missing data is a normal outcome and yields empty fields.
func (r *reconciler) Reconcile(ctx context.Context, vehicleID string, reference time.Time) (Reconciliation, error) {
	vehicleID = strings.TrimSpace(vehicleID)
	if vehicleID == "" {
		return Reconciliation{}, nil
	}
	ctx = r.logg.WithField(ctx, "vehicle_id", vehicleID)

	departure, err := r.repo.FirstDepartureAfter(ctx, vehicleID, reference)
	if err != nil {
		return Reconciliation{}, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "query vehicle departure")
	}
	if departure == nil {
		r.logg.Info(ctx, "no gps departure after reference")
		return Reconciliation{}, nil
	}

	start := departure.DetectedAt
	out := Reconciliation{RealStart: &start}

	candidates, err := r.repo.ReturnCandidates(ctx, vehicleID, start, r.radiusKm)
	if err != nil {
		return Reconciliation{}, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "query vehicle return")
	}
	for _, c := range candidates {
		if c.DetectedAt.After(start) {
			completion := c.DetectedAt
			out.RealCompletion = &completion
			break
		}
	}
	if out.RealCompletion == nil {
		r.logg.Info(ctx, "gps departure found without a return")
	}
	return out, nil
}
