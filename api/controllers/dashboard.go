package controllers

import (
	"net/http"

	"github.com/codinglabe/believe-app/api/responses"
	"github.com/codinglabe/believe-app/internal/dashboard"
	pkgerrors "github.com/codinglabe/believe-app/pkg/errors"
	"github.com/codinglabe/believe-app/pkg/logger"
)

func SellerDashboard(svc dashboard.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "dashboard service unavailable"))
			return
		}
		sellerID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		stats, err := svc.SellerStats(r.Context(), sellerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, stats)
	}
}
