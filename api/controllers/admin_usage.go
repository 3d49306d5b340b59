package controllers

import (
	"net/http"
	"strings"

	"github.com/agentos-labs/agentos-backend/api/responses"
	"github.com/agentos-labs/agentos-backend/api/validators"
	"github.com/agentos-labs/agentos-backend/internal/usage"
	pkgerrors "github.com/agentos-labs/agentos-backend/pkg/errors"
	"github.com/agentos-labs/agentos-backend/pkg/logger"
)

// UsageSummary reports one user's consumption under one plan over a window.
func UsageSummary(svc usage.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userKey := strings.TrimSpace(r.URL.Query().Get("user_key"))
		slug := strings.TrimSpace(r.URL.Query().Get("slug"))
		if userKey == "" || slug == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "user_key and slug are required"))
			return
		}

		periodHours, err := validators.ParseQueryInt(r, "period_hours", 24, 1, 24*365)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		summary, err := svc.Summarize(r.Context(), slug, userKey, periodHours)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"user_key":     userKey,
			"slug":         slug,
			"period_hours": periodHours,
			"summary":      summary,
		})
	}
}
