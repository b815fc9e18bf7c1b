package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ashureev/projecthub/internal/prompts"
	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// DefaultBaseURL is Gemini's OpenAI-compatible endpoint.
const DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"

// DefaultModel is used when Config.Model is empty.
const DefaultModel = "gemini-2.5-flash"

var errNoChoices = errors.New("no choices in response")

// Config holds classifier client configuration.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	Timeout    time.Duration
	MaxTokens  int
	MaxRetries int
	// StructuredOutput sends a JSON schema response format. Disable for
	// endpoints that reject response_format.
	StructuredOutput bool
}

// OpenAIClassifier classifies messages through an OpenAI-compatible chat
// completions API.
type OpenAIClassifier struct {
	client  openai.Client
	cfg     Config
	catalog *prompts.Catalog
	schema  any
	logger  *slog.Logger
}

// NewOpenAIClassifier creates a classifier. catalog supplies the prompt
// text and the fallback replies.
func NewOpenAIClassifier(cfg Config, catalog *prompts.Catalog, logger *slog.Logger) (*OpenAIClassifier, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if catalog == nil {
		catalog = prompts.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1000
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(cfg.BaseURL),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}

	return &OpenAIClassifier{
		client:  openai.NewClient(opts...),
		cfg:     cfg,
		catalog: catalog,
		schema:  generateSchema[intentSchema](),
		logger:  logger,
	}, nil
}

// Model returns the configured model name.
func (c *OpenAIClassifier) Model() string {
	return c.cfg.Model
}

// Classify sends text to the model and returns its structured guess.
func (c *OpenAIClassifier) Classify(ctx context.Context, text, language string) IntentResult {
	content, err := c.complete(ctx, text, language)
	if err != nil {
		c.logger.WarnContext(ctx, "classifier call failed", "model", c.cfg.Model, "error", err)
		return Fallback(c.catalog.UnreachableReply(err))
	}

	res, ok := parseModelOutput(content)
	if !ok {
		c.logger.WarnContext(ctx, "classifier returned unparseable output",
			"model", c.cfg.Model,
			"content_len", len(content))
		return Fallback(c.catalog.Unparseable)
	}
	return res
}

func (c *OpenAIClassifier) complete(ctx context.Context, text, language string) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: c.cfg.Model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(c.catalog.ClassifierSystemPrompt(language)),
			openai.UserMessage(c.catalog.ClassifierUserPrompt(text, language)),
		},
		MaxTokens: openai.Int(int64(c.cfg.MaxTokens)),
	}
	if c.cfg.StructuredOutput {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:        "intent_result",
					Description: openai.String("Intent classification for a ProjectHub chat message"),
					Schema:      c.schema,
					Strict:      openai.Bool(false),
				},
			},
		}
	}

	start := time.Now()
	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}

	c.logger.DebugContext(ctx, "classifier call completed",
		"model", c.cfg.Model,
		"duration_ms", time.Since(start).Milliseconds(),
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens)

	if len(resp.Choices) == 0 {
		return "", errNoChoices
	}
	return resp.Choices[0].Message.Content, nil
}

// intentSchema describes the expected model output for structured responses.
type intentSchema struct {
	Intent   string         `json:"intent"`
	Entities map[string]any `json:"entities"`
	Reply    string         `json:"reply"`
	Action   Action         `json:"action"`
}

// JSONSchemaExtend restricts "intent" to the known intents.
func (intentSchema) JSONSchemaExtend(s *jsonschema.Schema) {
	prop, ok := s.Properties.Get("intent")
	if !ok {
		return
	}
	prop.Enum = make([]any, 0, len(Intents))
	for _, intent := range Intents {
		prop.Enum = append(prop.Enum, string(intent))
	}
}

func generateSchema[T any]() any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	return reflector.Reflect(v)
}

var _ Classifier = (*OpenAIClassifier)(nil)
