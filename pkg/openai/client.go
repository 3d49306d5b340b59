package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/agentos-labs/agentos-backend/pkg/config"
	apperrors "github.com/agentos-labs/agentos-backend/pkg/errors"
	"github.com/agentos-labs/agentos-backend/pkg/logger"
)

const realtimeSessionsPath = "/v1/realtime/sessions"

var errAPIKeyRequired = errors.New("openai api key is required")

// Client mints ephemeral realtime sessions against the OpenAI API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	fallback   SessionParams
	logg       *logger.Logger
}

// SessionParams selects the model and voice for a realtime session.
type SessionParams struct {
	Model        string
	Voice        string
	Instructions string
}

// Session is the upstream grant handed back to the browser client.
type Session struct {
	ID           string `json:"id"`
	Model        string `json:"model"`
	Voice        string `json:"voice"`
	ClientSecret string `json:"client_secret"`
	ExpiresAt    int64  `json:"expires_at"`
}

// NewClient validates configuration and returns a ready client.
func NewClient(cfg config.OpenAIConfig, logg *logger.Logger) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		baseURL:    baseURL,
		apiKey:     apiKey,
		fallback: SessionParams{
			Model: cfg.FallbackModel,
			Voice: cfg.FallbackVoice,
		},
		logg: logg,
	}, nil
}

type createSessionRequest struct {
	Model        string `json:"model"`
	Voice        string `json:"voice,omitempty"`
	Instructions string `json:"instructions,omitempty"`
}

type createSessionResponse struct {
	ID           string `json:"id"`
	Model        string `json:"model"`
	Voice        string `json:"voice"`
	ClientSecret struct {
		Value     string `json:"value"`
		ExpiresAt int64  `json:"expires_at"`
	} `json:"client_secret"`
}

// CreateRealtimeSession requests an ephemeral session token. Missing model or
// voice fall back to the configured defaults. Upstream 429 and 5xx responses
// map to a retryable error; other failures are terminal.
func (c *Client) CreateRealtimeSession(ctx context.Context, params SessionParams) (*Session, error) {
	if params.Model == "" {
		params.Model = c.fallback.Model
	}
	if params.Voice == "" {
		params.Voice = c.fallback.Voice
	}

	body, err := json.Marshal(createSessionRequest{
		Model:        params.Model,
		Voice:        params.Voice,
		Instructions: params.Instructions,
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "encoding session request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+realtimeSessionsPath, bytes.NewReader(body))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "building session request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeUpstream, err, "realtime session request failed")
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeUpstream, err, "reading session response")
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, c.statusError(ctx, resp.StatusCode, payload)
	}

	var decoded createSessionResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeUpstream, err, "decoding session response")
	}
	if decoded.ClientSecret.Value == "" {
		return nil, apperrors.New(apperrors.CodeUpstream, "session response missing client secret")
	}

	return &Session{
		ID:           decoded.ID,
		Model:        decoded.Model,
		Voice:        decoded.Voice,
		ClientSecret: decoded.ClientSecret.Value,
		ExpiresAt:    decoded.ClientSecret.ExpiresAt,
	}, nil
}

func (c *Client) statusError(ctx context.Context, status int, payload []byte) error {
	msg := upstreamMessage(payload)
	if c.logg != nil {
		ctx = c.logg.WithField(ctx, "status", status)
		c.logg.Warn(ctx, fmt.Sprintf("openai session request rejected: %s", msg))
	}
	if status == http.StatusTooManyRequests || status >= http.StatusInternalServerError {
		return apperrors.New(apperrors.CodeUpstream, fmt.Sprintf("upstream unavailable (status %d)", status))
	}
	return apperrors.New(apperrors.CodeDependency, fmt.Sprintf("upstream rejected session request (status %d)", status))
}

func upstreamMessage(payload []byte) string {
	var body struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(payload, &body); err != nil || body.Error.Message == "" {
		return "no error detail"
	}
	return body.Error.Message
}
