package agents

import (
	"github.com/agentos-labs/agentos-backend/pkg/db/models"
)

// UpsertInput carries admin-provided agent fields before sanitation.
type UpsertInput struct {
	Slug                string   `json:"slug"`
	Label               string   `json:"label" validate:"required"`
	Mode                string   `json:"mode"`
	Model               string   `json:"model"`
	Voice               string   `json:"voice"`
	BasePrompt          string   `json:"base_prompt"`
	PostTypes           []string `json:"post_types"`
	ShowTranscript      *bool    `json:"show_transcript"`
	RequireSubscription bool     `json:"require_subscription"`
	SessionTokenCap     int64    `json:"session_token_cap"`
}

// View is the admin-facing agent shape.
type View struct {
	Slug                string   `json:"slug"`
	Label               string   `json:"label"`
	Mode                string   `json:"mode"`
	Model               string   `json:"model"`
	Voice               string   `json:"voice"`
	BasePrompt          string   `json:"base_prompt"`
	PostTypes           []string `json:"post_types"`
	ShowTranscript      bool     `json:"show_transcript"`
	RequireSubscription bool     `json:"require_subscription"`
	SessionTokenCap     int64    `json:"session_token_cap"`
}

// ToView converts a model row to its API shape.
func ToView(agent models.Agent) View {
	postTypes := make([]string, 0, len(agent.PostTypes))
	postTypes = append(postTypes, agent.PostTypes...)
	return View{
		Slug:                agent.Slug,
		Label:               agent.Label,
		Mode:                string(agent.Mode),
		Model:               agent.Model,
		Voice:               agent.Voice,
		BasePrompt:          agent.BasePrompt,
		PostTypes:           postTypes,
		ShowTranscript:      agent.ShowTranscript,
		RequireSubscription: agent.RequireSubscription,
		SessionTokenCap:     agent.SessionTokenCap,
	}
}
