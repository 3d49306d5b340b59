package controllers

import (
	"net/http"
	"strings"

	"github.com/agentos-labs/agentos-backend/api/responses"
	"github.com/agentos-labs/agentos-backend/api/validators"
	"github.com/agentos-labs/agentos-backend/internal/transcripts"
	pkgerrors "github.com/agentos-labs/agentos-backend/pkg/errors"
	"github.com/agentos-labs/agentos-backend/pkg/logger"
	"github.com/agentos-labs/agentos-backend/pkg/pagination"
)

// SaveTranscript stores a finished conversation and finalizes its ledger row.
func SaveTranscript(svc transcripts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "transcript service unavailable"))
			return
		}

		var input transcripts.SaveInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input.UserAgent = r.UserAgent()

		view, err := svc.Save(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, view)
	}
}

// ListTranscripts returns a filtered, cursor-paginated transcript page.
func ListTranscripts(svc transcripts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "transcript service unavailable"))
			return
		}

		postID, err := validators.ParseQueryInt64(r, "post_id", 0)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		filters := transcripts.ListFilters{
			PostID:           postID,
			AgentID:          strings.TrimSpace(r.URL.Query().Get("agent_id")),
			UserKey:          strings.TrimSpace(r.URL.Query().Get("user_key")),
			SubscriptionSlug: strings.TrimSpace(r.URL.Query().Get("subscription_slug")),
		}
		params := pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		}

		result, err := svc.List(r.Context(), filters, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
