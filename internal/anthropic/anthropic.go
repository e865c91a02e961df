package anthropic

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"sort"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/longkey1/gchat/internal/gchat"
)

const (
	ProviderName   = "anthropic"
	DefaultBaseURL = "https://api.anthropic.com"
	DefaultModel   = "claude-sonnet-4-0"

	defaultMaxTokens int64 = 8192
)

// Config defines the configuration interface for Anthropic provider
type Config interface {
	GetModel() string
	GetBaseURL(provider string) (string, error)
	GetToken(provider string) (string, error)
	GetSystemPrompt() string
	WebSearchEnabled() bool
}

// Provider implements gchat.Streamer on top of the Anthropic SDK
type Provider struct {
	config Config
	client *http.Client
	logger *log.Logger
	debug  bool
}

// Option configures a Provider
type Option func(*Provider)

// WithHTTPClient sets the HTTP client handed to the SDK
func WithHTTPClient(client *http.Client) Option {
	return func(p *Provider) {
		p.client = client
	}
}

// WithLogger sets the logger; when debug is true raw stream events are logged
func WithLogger(logger *log.Logger, debug bool) Option {
	return func(p *Provider) {
		p.logger = logger
		p.debug = debug
	}
}

// NewProvider creates a new Anthropic provider instance
func NewProvider(config Config, opts ...Option) *Provider {
	p := &Provider{
		config: config,
		client: http.DefaultClient,
		logger: log.New(io.Discard, "", 0),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// newClient builds an SDK client. Retries are left to the HTTP client's
// transport so every provider shares the same 429 policy.
func (p *Provider) newClient() (anthropic.Client, error) {
	token, err := p.config.GetToken(ProviderName)
	if err != nil {
		return anthropic.Client{}, fmt.Errorf("failed to get token: %w", err)
	}
	baseURL, err := p.config.GetBaseURL(ProviderName)
	if err != nil {
		return anthropic.Client{}, fmt.Errorf("failed to get base URL: %w", err)
	}

	return anthropic.NewClient(
		option.WithHTTPClient(p.client),
		option.WithAPIKey(token),
		option.WithBaseURL(baseURL),
		option.WithMaxRetries(0),
	), nil
}

// Stream sends prompt to the Messages API and forwards every text delta
func (p *Provider) Stream(ctx context.Context, prompt string, onChunk func(chunk string)) error {
	if p.config.WebSearchEnabled() {
		return fmt.Errorf("web search is not supported by Anthropic provider")
	}

	_, modelName, err := gchat.ParseModelString(p.config.GetModel())
	if err != nil {
		return fmt.Errorf("invalid model format: %w", err)
	}

	client, err := p.newClient()
	if err != nil {
		return err
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(modelName),
		MaxTokens: defaultMaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if system := p.config.GetSystemPrompt(); system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	stream := client.Messages.NewStreaming(ctx, params)
	defer stream.Close()

	for stream.Next() {
		event := stream.Current()
		if p.debug {
			p.logger.Printf("anthropic event: %s", event.RawJSON())
		}

		switch ev := event.AsAny().(type) {
		case anthropic.ContentBlockDeltaEvent:
			if delta, ok := ev.Delta.AsAny().(anthropic.TextDelta); ok && delta.Text != "" {
				onChunk(delta.Text)
			}
		case anthropic.MessageDeltaEvent:
			if ev.Delta.StopReason == "refusal" {
				return fmt.Errorf("response refused by Anthropic")
			}
		}
	}
	if err := stream.Err(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return convertError(err)
	}
	return nil
}

// ListModels returns the list of models from the API
func (p *Provider) ListModels(ctx context.Context) ([]gchat.ModelInfo, error) {
	client, err := p.newClient()
	if err != nil {
		return nil, err
	}

	models := make([]gchat.ModelInfo, 0)
	iter := client.Models.ListAutoPaging(ctx, anthropic.ModelListParams{})
	for iter.Next() {
		model := iter.Current()
		models = append(models, gchat.ModelInfo{
			ID:          model.ID,
			Description: model.DisplayName,
			IsDefault:   model.ID == DefaultModel,
		})
	}
	if err := iter.Err(); err != nil {
		return nil, convertError(err)
	}

	// Sort models by ID (descending order)
	sort.Slice(models, func(i, j int) bool {
		return models[i].ID > models[j].ID
	})

	return models, nil
}

// convertError maps SDK status errors onto gchat.APIError
func convertError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return &gchat.APIError{
			Provider:   ProviderName,
			StatusCode: apiErr.StatusCode,
			Body:       strings.TrimSpace(apiErr.RawJSON()),
		}
	}
	return fmt.Errorf("failed to stream response: %w", err)
}
