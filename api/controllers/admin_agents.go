package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/agentos-labs/agentos-backend/api/responses"
	"github.com/agentos-labs/agentos-backend/api/validators"
	"github.com/agentos-labs/agentos-backend/internal/agents"
	pkgerrors "github.com/agentos-labs/agentos-backend/pkg/errors"
	"github.com/agentos-labs/agentos-backend/pkg/logger"
)

type upsertAgentRequest struct {
	agents.UpsertInput
	OriginalSlug string `json:"original_slug"`
}

func ListAgents(svc agents.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := svc.List(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		views := make([]agents.View, 0, len(rows))
		for _, row := range rows {
			views = append(views, agents.ToView(row))
		}
		responses.WriteSuccess(w, views)
	}
}

func GetAgent(svc agents.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slug := chi.URLParam(r, "slug")
		agent, err := svc.Get(r.Context(), slug)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if agent == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "agent not found"))
			return
		}
		responses.WriteSuccess(w, agents.ToView(*agent))
	}
}

func UpsertAgent(svc agents.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req upsertAgentRequest
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

func DeleteAgent(svc agents.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slug := chi.URLParam(r, "slug")
		if err := svc.Delete(r.Context(), slug); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"slug": slug, "status": "deleted"})
	}
}
