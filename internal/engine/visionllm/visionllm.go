// Package visionllm implements the primary recognition engine on top of an
// OpenAI-compatible vision chat API. It is the only engine that produces
// tags: associative keywords derived from textual and visual content that
// broaden downstream search recall.
package visionllm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/docufuse/docufuse/internal/engine"
)

// EngineID identifies the vision-LLM engine in results and provenance.
const EngineID = "vision_llm"

const defaultPrompt = `Analyze this document image and respond with a JSON object:
{
  "text": "all text extracted from the image",
  "confidence": 0.95,
  "keywords": ["search keywords derived from text and visual content"]
}
Extract every piece of text you can read. Keywords should cover both the
textual content and what the image depicts.`

// Config holds the vision-LLM engine settings.
type Config struct {
	APIKey    string
	BaseURL   string // optional override for OpenAI-compatible providers
	Model     string
	MaxTokens int
	Prompt    string
}

// DefaultConfig returns the default engine settings. The API key must be
// supplied by the caller.
func DefaultConfig() Config {
	return Config{
		Model:     "gpt-4o-mini",
		MaxTokens: 1000,
		Prompt:    defaultPrompt,
	}
}

// Engine calls a vision-capable chat model. The client handle is reusable
// and safe for concurrent invocations.
type Engine struct {
	client *openai.Client
	cfg    Config
}

// New constructs the engine. Construction fails fast on missing
// credentials; recognition failures are reported as result data instead.
func New(cfg Config) (*Engine, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("vision llm: api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultConfig().Model
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultConfig().MaxTokens
	}
	if cfg.Prompt == "" {
		cfg.Prompt = defaultPrompt
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &Engine{client: openai.NewClientWithConfig(clientCfg), cfg: cfg}, nil
}

func (e *Engine) ID() string { return EngineID }

func (e *Engine) Capabilities() engine.Capabilities {
	return engine.Capabilities{ProvidesText: true, ProvidesTags: true}
}

// Recognize sends the original raw image (not the binarized raster, which
// would destroy visual context) and parses the structured response.
func (e *Engine) Recognize(ctx context.Context, in engine.Input) engine.Result {
	if len(in.Raw) == 0 {
		return engine.Failure(EngineID, engine.FailureProvider, errors.New("no raw image bytes"))
	}

	mime := in.MIME
	if mime == "" {
		mime = "image/png"
	}
	uri := fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(in.Raw))

	prompt := e.cfg.Prompt
	if hints := engine.CanonicalizeHints(in.Languages); len(hints) > 0 {
		prompt += "\nExpected document languages: " + strings.Join(hints, ", ") + "."
	}

	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     e.cfg.Model,
		MaxTokens: e.cfg.MaxTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: prompt},
					{
						Type:     openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{URL: uri},
					},
				},
			},
		},
	})
	if err != nil {
		return engine.Failure(EngineID, classifyErr(ctx, err), err)
	}
	if len(resp.Choices) == 0 {
		return engine.Failure(EngineID, engine.FailureProvider, errors.New("empty completion"))
	}

	text, confidence, tags, err := parsePayload(resp.Choices[0].Message.Content)
	if err != nil {
		return engine.Failure(EngineID, engine.FailureProvider, err)
	}

	return engine.Result{
		EngineID:   EngineID,
		Text:       text,
		Confidence: confidence,
		Tags:       tags,
	}
}

// visionPayload is the JSON shape the model is prompted to return.
type visionPayload struct {
	Text       string   `json:"text"`
	Confidence *float64 `json:"confidence"`
	Keywords   []string `json:"keywords"`
}

// parsePayload decodes the model response, tolerating code-fence wrapping
// some providers add despite the JSON response format.
func parsePayload(content string) (string, float64, []string, error) {
	var payload visionPayload
	if err := json.Unmarshal([]byte(stripFences(content)), &payload); err != nil {
		return "", 0, nil, fmt.Errorf("parse vision response: %w", err)
	}

	// Providers that omit confidence get the original deployment's prior.
	confidence := 0.9
	if payload.Confidence != nil {
		confidence = *payload.Confidence
	}
	if confidence < 0 {
		confidence = 0
	} else if confidence > 1 {
		confidence = 1
	}
	return payload.Text, confidence, payload.Keywords, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(s, "```")
	}
	return strings.TrimSpace(s)
}

func classifyErr(ctx context.Context, err error) engine.FailureKind {
	switch {
	case errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled):
		return engine.FailureCanceled
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return engine.FailureTimeout
	default:
		return engine.FailureProvider
	}
}
