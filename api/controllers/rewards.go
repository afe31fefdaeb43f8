package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/glowmart/storefront-backend/api/responses"
	"github.com/glowmart/storefront-backend/api/validators"
	rewardsvc "github.com/glowmart/storefront-backend/internal/rewards"
	pkgerrors "github.com/glowmart/storefront-backend/pkg/errors"
	"github.com/glowmart/storefront-backend/pkg/logger"
)

type rewardsLedgerEntryResponse struct {
	Points    int        `json:"points"`
	Reason    string     `json:"reason"`
	OrderID   *uuid.UUID `json:"order_id,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

type rewardsResponse struct {
	PointsBalance  int                          `json:"points_balance"`
	LifetimePoints int                          `json:"lifetime_points"`
	Tier           string                       `json:"tier"`
	Ledger         []rewardsLedgerEntryResponse `json:"ledger"`
}

// GetRewards returns the caller's loyalty account and recent ledger entries.
func GetRewards(svc rewardsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "rewards service unavailable"))
			return
		}

		customerID, err := customerIDFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		account, err := svc.GetAccount(r.Context(), customerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, _ := validators.ParseQueryInt(r, "limit", 20, 1, 100)
		entries, err := svc.ListLedger(r.Context(), customerID, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ledger := make([]rewardsLedgerEntryResponse, 0, len(entries))
		for _, entry := range entries {
			ledger = append(ledger, rewardsLedgerEntryResponse{
				Points:    entry.Points,
				Reason:    entry.Reason.String(),
				OrderID:   entry.OrderID,
				CreatedAt: entry.CreatedAt,
			})
		}

		responses.WriteSuccess(w, rewardsResponse{
			PointsBalance:  account.PointsBalance,
			LifetimePoints: account.LifetimePoints,
			Tier:           account.Tier.String(),
			Ledger:         ledger,
		})
	}
}
