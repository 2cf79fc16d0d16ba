package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/responses"
)

var (
	ErrNotConfigured = errors.New("llm: api key is not configured")
	ErrEmptyResponse = errors.New("llm: response carried no output text")
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Settings selects the endpoint and model for one call. Zero Temperature and
// MaxOutputTokens leave the provider defaults.
type Settings struct {
	BaseURL         string
	APIKey          string
	Model           string
	Temperature     float64
	MaxOutputTokens int
}

func (s Settings) Configured() bool {
	return strings.TrimSpace(s.APIKey) != ""
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Completer is what the chat service needs from a model provider.
type Completer interface {
	Complete(ctx context.Context, settings Settings, messages []Message) (string, error)
}

// Client talks to an OpenAI compatible Responses API. Settings are per call because
// each user may bring their own endpoint and key.
type Client struct {
	httpClient *http.Client
}

func NewClient(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{httpClient: httpClient}
}

var _ Completer = (*Client)(nil)

// Complete sends messages in order and returns the joined output text.
func (c *Client) Complete(ctx context.Context, settings Settings, messages []Message) (string, error) {
	if !settings.Configured() {
		return "", ErrNotConfigured
	}
	params, err := toSDKRequest(settings, messages)
	if err != nil {
		return "", err
	}

	var rawResp *http.Response
	var rawBody []byte
	_, err = c.service(settings).New(
		ctx,
		params,
		option.WithResponseInto(&rawResp),
		option.WithResponseBodyInto(&rawBody),
	)
	if err != nil {
		return "", wrapRequestError(err, settings, rawResp)
	}
	if len(rawBody) == 0 {
		return "", fmt.Errorf("%w: empty body model=%q", ErrEmptyResponse, settings.Model)
	}
	text, err := parseOutputText(rawBody)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

func (c *Client) service(settings Settings) *responses.ResponseService {
	opts := []option.RequestOption{option.WithHTTPClient(c.httpClient)}
	if base := strings.TrimSpace(settings.BaseURL); base != "" {
		opts = append(opts, option.WithBaseURL(base))
	}
	opts = append(opts, option.WithAPIKey(strings.TrimSpace(settings.APIKey)))
	svc := responses.NewResponseService(opts...)
	return &svc
}

func toSDKRequest(settings Settings, messages []Message) (responses.ResponseNewParams, error) {
	var out responses.ResponseNewParams
	if model := strings.TrimSpace(settings.Model); model != "" {
		out.Model = model
	}
	if settings.Temperature > 0 {
		out.Temperature = param.NewOpt(settings.Temperature)
	}
	if settings.MaxOutputTokens > 0 {
		out.MaxOutputTokens = param.NewOpt(int64(settings.MaxOutputTokens))
	}
	items := make(responses.ResponseInputParam, 0, len(messages))
	for i, msg := range messages {
		if strings.TrimSpace(msg.Content) == "" {
			continue
		}
		item, err := toSDKInputItem(msg)
		if err != nil {
			return responses.ResponseNewParams{}, fmt.Errorf("invalid message[%d]: %w", i, err)
		}
		items = append(items, item)
	}
	if len(items) == 0 {
		return responses.ResponseNewParams{}, errors.New("llm: no messages to send")
	}
	out.Input.OfInputItemList = items
	return out, nil
}

func toSDKInputItem(msg Message) (responses.ResponseInputItemUnionParam, error) {
	role := strings.TrimSpace(msg.Role)
	switch role {
	case RoleSystem, RoleUser, RoleAssistant:
	default:
		return responses.ResponseInputItemUnionParam{}, fmt.Errorf("unsupported role %q", msg.Role)
	}
	raw, err := json.Marshal(map[string]any{
		"type":    "message",
		"role":    role,
		"content": msg.Content,
	})
	if err != nil {
		return responses.ResponseInputItemUnionParam{}, fmt.Errorf("marshal input item failed: %w", err)
	}
	var out responses.ResponseInputItemUnionParam
	if err := json.Unmarshal(raw, &out); err != nil {
		return responses.ResponseInputItemUnionParam{}, fmt.Errorf("decode input item failed: %w", err)
	}
	return out, nil
}

type responseContentPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type responseItem struct {
	Type    string                `json:"type"`
	ID      string                `json:"id"`
	Content []responseContentPart `json:"content"`
}

type responsePayload struct {
	ID     string         `json:"id"`
	Output []responseItem `json:"output"`
}

func parseOutputText(raw []byte) (string, error) {
	var decoded responsePayload
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", fmt.Errorf("decode responses payload failed: %w", err)
	}
	var b strings.Builder
	for _, item := range decoded.Output {
		if strings.TrimSpace(item.Type) != "message" {
			continue
		}
		for _, part := range item.Content {
			if strings.TrimSpace(part.Type) != "output_text" || strings.TrimSpace(part.Text) == "" {
				continue
			}
			if b.Len() > 0 {
				b.WriteString("\n")
			}
			b.WriteString(part.Text)
		}
	}
	return b.String(), nil
}

func wrapRequestError(err error, settings Settings, rawResp *http.Response) error {
	var apiErr *responses.Error
	if errors.As(err, &apiErr) {
		resp := rawResp
		if resp == nil {
			resp = apiErr.Response
		}
		body := strings.TrimSpace(apiErr.RawJSON())
		if body == "" {
			body = strings.TrimSpace(err.Error())
		}
		return fmt.Errorf(
			"responses api status %d request_id=%q model=%q response=%s",
			apiErr.StatusCode,
			responseRequestID(resp),
			settings.Model,
			clip(body, 600),
		)
	}
	return fmt.Errorf("responses request failed model=%q: %w", settings.Model, err)
}

func responseRequestID(resp *http.Response) string {
	if resp == nil || resp.Header == nil {
		return ""
	}
	for _, key := range []string{"x-request-id", "request-id", "openai-request-id", "x-openai-request-id"} {
		if value := strings.TrimSpace(resp.Header.Get(key)); value != "" {
			return value
		}
	}
	return ""
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
