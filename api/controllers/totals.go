package controllers

import (
	"net/http"

	"github.com/angelmondragon/fieldops-backend/api/responses"
	"github.com/angelmondragon/fieldops-backend/internal/worklog"
	"github.com/angelmondragon/fieldops-backend/pkg/logger"
)

// UserTotalsRecompute rebuilds one user's cached total hours from the ledger.
func UserTotalsRecompute(svc worklog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := uuidParam(w, r, logg, "userId")
		if !ok {
			return
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithUserID(ctx, userID.String())
		}

		total, err := svc.RecomputeTotalHours(ctx, userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{
			"user_id":     userID,
			"total_hours": total,
		})
	}
}

// AdminTotalsReset recomputes every user's total. Per-user failures are
// reported in the summary and through the error log, not as a failed request.
func AdminTotalsReset(svc worklog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summary, err := svc.ResetAllTotals(r.Context())
		if err != nil && summary.Users == 0 {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err != nil && logg != nil {
			logg.Error(r.Context(), "totals.reset_partial", err)
		}

		responses.WriteSuccess(w, summary)
	}
}
