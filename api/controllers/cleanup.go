package controllers

import (
	"context"
	"net/http"

	"github.com/lacucina/restaurant-backend/api/responses"
	"github.com/lacucina/restaurant-backend/api/validators"
	"github.com/lacucina/restaurant-backend/internal/retention"
	pkgerrors "github.com/lacucina/restaurant-backend/pkg/errors"
	"github.com/lacucina/restaurant-backend/pkg/logger"
)

const maxRetentionDays = 3650

type RetentionService interface {
	Days() int
	Preview(ctx context.Context, days int) (*retention.Preview, error)
	Purge(ctx context.Context, days int) (*retention.PurgeResult, error)
}

// OrdersCleanupPreview reports what DELETE /orders/cleanup would remove.
func OrdersCleanupPreview(svc RetentionService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "retention service unavailable"))
			return
		}
		days, err := validators.ParseQueryInt(r, "days", svc.Days(), 1, maxRetentionDays)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		preview, err := svc.Preview(r.Context(), days)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, preview)
	}
}

// OrdersCleanupPurge deletes orders older than the retention horizon.
func OrdersCleanupPurge(svc RetentionService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "retention service unavailable"))
			return
		}
		days, err := validators.ParseQueryInt(r, "days", svc.Days(), 1, maxRetentionDays)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		res, err := svc.Purge(r.Context(), days)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, res)
	}
}
