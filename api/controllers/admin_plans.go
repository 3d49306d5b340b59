package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/agentos-labs/agentos-backend/api/responses"
	"github.com/agentos-labs/agentos-backend/api/validators"
	"github.com/agentos-labs/agentos-backend/internal/plans"
	pkgerrors "github.com/agentos-labs/agentos-backend/pkg/errors"
	"github.com/agentos-labs/agentos-backend/pkg/logger"
)

type upsertPlanRequest struct {
	plans.UpsertInput
	OriginalSlug string `json:"original_slug"`
}

func ListPlans(svc plans.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := svc.List(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		views := make([]plans.View, 0, len(rows))
		for _, row := range rows {
			views = append(views, plans.ToView(row))
		}
		responses.WriteSuccess(w, views)
	}
}

func GetPlan(svc plans.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slug := chi.URLParam(r, "slug")
		plan, err := svc.Get(r.Context(), slug)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if plan == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "plan not found"))
			return
		}
		responses.WriteSuccess(w, plans.ToView(*plan))
	}
}

// UpsertPlan creates or updates a plan. original_slug renames in place.
func UpsertPlan(svc plans.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req upsertPlanRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		slug, err := svc.Upsert(r.Context(), req.UpsertInput, req.OriginalSlug)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"slug": slug})
	}
}

func DeletePlan(svc plans.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slug := chi.URLParam(r, "slug")
		if err := svc.Delete(r.Context(), slug); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"slug": slug, "status": "deleted"})
	}
}
