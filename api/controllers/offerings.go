package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/codinglabe/believe-app/api/responses"
	"github.com/codinglabe/believe-app/api/validators"
	"github.com/codinglabe/believe-app/internal/offerings"
	"github.com/codinglabe/believe-app/pkg/db/models"
	"github.com/codinglabe/believe-app/pkg/enums"
	pkgerrors "github.com/codinglabe/believe-app/pkg/errors"
	"github.com/codinglabe/believe-app/pkg/logger"
	"github.com/codinglabe/believe-app/pkg/pagination"
)

// OfferingStatusFunc moves an offering to its next status.
type OfferingStatusFunc func(ctx context.Context, offeringID uuid.UUID) (*models.FractionalOffering, error)

// OfferingList is the public catalogue. Drafts are never listed here.
func OfferingList(svc offerings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "offerings service unavailable"))
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params := offerings.ListParams{
			PublicOnly: true,
			Limit:      limit,
			Cursor:     strings.TrimSpace(r.URL.Query().Get("cursor")),
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, err := enums.ParseOfferingStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
				return
			}
			params.Status = &status
		}

		page, err := svc.List(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

func OfferingGet(svc offerings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "offerings service unavailable"))
			return
		}
		offeringID, err := validators.ParseUUIDParam(r, "offeringId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		offering, err := svc.Get(r.Context(), offeringID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if offering.Status == enums.OfferingStatusDraft {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "offering not found"))
			return
		}
		responses.WriteSuccess(w, offering)
	}
}

// OfferingPurchase buys shares and/or tokens for the authenticated user.
func OfferingPurchase(svc offerings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "offerings service unavailable"))
			return
		}
		userID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		offeringID, err := validators.ParseUUIDParam(r, "offeringId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req offerings.PurchaseRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		req.OfferingID = offeringID
		req.UserID = userID
		req.RequestID = requestKey(r)

		order, err := svc.Purchase(r.Context(), req)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}

func AdminOfferingCreate(svc offerings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "offerings service unavailable"))
			return
		}

		var req offerings.CreateOfferingRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		offering, err := svc.Create(r.Context(), req)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, offering)
	}
}

func AdminOfferingUpdate(svc offerings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "offerings service unavailable"))
			return
		}
		offeringID, err := validators.ParseUUIDParam(r, "offeringId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req offerings.UpdateOfferingRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		offering, err := svc.Update(r.Context(), offeringID, req)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, offering)
	}
}

// AdminOfferingStatus wraps Publish or Close.
func AdminOfferingStatus(op OfferingStatusFunc, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if op == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "offerings service unavailable"))
			return
		}
		offeringID, err := validators.ParseUUIDParam(r, "offeringId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		offering, err := op(r.Context(), offeringID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, offering)
	}
}

// MyFractionalOrders lists the authenticated user's offering purchases.
func MyFractionalOrders(svc offerings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "offerings service unavailable"))
			return
		}
		userID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.ListOrders(r.Context(), userID, pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}
