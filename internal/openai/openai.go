package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sort"
	"strings"

	"github.com/longkey1/gchat/internal/gchat"
	"github.com/longkey1/gchat/internal/sse"
)

const (
	ProviderName   = "openai"
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-4.1"
)

// Supported models for Responses API
var responsesAPISupportedModels = []string{
	"gpt-4o",
	"gpt-4.1",
	"o3",
	"o4-mini",
	"gpt-5",
}

// ResponsesAPIRequest represents the request body for OpenAI's Responses API
type ResponsesAPIRequest struct {
	Model        string             `json:"model"`
	Input        string             `json:"input"`
	Instructions string             `json:"instructions,omitempty"`
	Tools        []ResponsesAPITool `json:"tools,omitempty"`
	Stream       bool               `json:"stream"`
}

// ResponsesAPITool represents a tool configuration
type ResponsesAPITool struct {
	Type string `json:"type"`
}

// StreamEvent is one server-sent event of a streamed response.
// Only the fields used by the provider are decoded.
type StreamEvent struct {
	Type       string                 `json:"type"`
	Delta      string                 `json:"delta,omitempty"`
	Message    string                 `json:"message,omitempty"`
	Annotation *ResponsesAPIAnnotation `json:"annotation,omitempty"`
	Response   *StreamResponse        `json:"response,omitempty"`
}

// StreamResponse carries the final status of a response
type StreamResponse struct {
	Status string `json:"status"`
	Error  *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
	IncompleteDetails *struct {
		Reason string `json:"reason"`
	} `json:"incomplete_details,omitempty"`
}

// ResponsesAPIAnnotation represents a citation annotation
type ResponsesAPIAnnotation struct {
	Type  string `json:"type"`
	Title string `json:"title,omitempty"`
	URL   string `json:"url,omitempty"`
}

// ModelsAPIResponse represents the response from OpenAI's models endpoint
type ModelsAPIResponse struct {
	Data []struct {
		ID      string `json:"id"`
		OwnedBy string `json:"owned_by"`
	} `json:"data"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Config defines the configuration interface for OpenAI provider
type Config interface {
	GetModel() string
	GetBaseURL(provider string) (string, error)
	GetToken(provider string) (string, error)
	GetSystemPrompt() string
	WebSearchEnabled() bool
}

// Provider implements gchat.Streamer for OpenAI
type Provider struct {
	config Config
	client *http.Client
	logger *log.Logger
	debug  bool
}

// Option configures a Provider
type Option func(*Provider)

// WithHTTPClient sets the HTTP client used for requests
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

// NewProvider creates a new OpenAI provider instance
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

// isResponsesAPISupported checks if the model is supported by Responses API
func isResponsesAPISupported(model string) bool {
	for _, supported := range responsesAPISupportedModels {
		if strings.HasPrefix(model, supported) {
			return true
		}
	}
	return false
}

func (p *Provider) credentials() (baseURL, token string, err error) {
	token, err = p.config.GetToken(ProviderName)
	if err != nil {
		return "", "", fmt.Errorf("failed to get token: %w", err)
	}
	baseURL, err = p.config.GetBaseURL(ProviderName)
	if err != nil {
		return "", "", fmt.Errorf("failed to get base URL: %w", err)
	}
	return strings.TrimSuffix(baseURL, "/"), token, nil
}

// Stream sends prompt to the Responses API with stream enabled and forwards
// every output text delta
func (p *Provider) Stream(ctx context.Context, prompt string, onChunk func(chunk string)) error {
	_, model, err := gchat.ParseModelString(p.config.GetModel())
	if err != nil {
		return fmt.Errorf("invalid model format: %w", err)
	}
	if !isResponsesAPISupported(model) {
		return fmt.Errorf(`model '%s' is not supported with Responses API.

Supported models: gpt-4o, gpt-4.1, o3, o4-mini, gpt-5 series`, model)
	}

	baseURL, token, err := p.credentials()
	if err != nil {
		return err
	}

	reqBody := ResponsesAPIRequest{
		Model:        model,
		Input:        prompt,
		Instructions: p.config.GetSystemPrompt(),
		Stream:       true,
	}
	if p.config.WebSearchEnabled() {
		reqBody.Tools = []ResponsesAPITool{{Type: "web_search"}}
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("error marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/responses", bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return apiError(resp)
	}

	var annotations []ResponsesAPIAnnotation
	err = sse.Read(resp.Body, func(ev sse.Event) error {
		if p.debug {
			p.logger.Printf("openai event %s: %s", ev.Name, ev.Data)
		}
		if ev.Data == "[DONE]" {
			return sse.ErrStop
		}

		var event StreamEvent
		if err := json.Unmarshal([]byte(ev.Data), &event); err != nil {
			return fmt.Errorf("error parsing stream event: %w", err)
		}

		switch event.Type {
		case "response.output_text.delta":
			if event.Delta != "" {
				onChunk(event.Delta)
			}
		case "response.output_text.annotation.added":
			if event.Annotation != nil {
				annotations = append(annotations, *event.Annotation)
			}
		case "response.failed":
			if event.Response != nil && event.Response.Error != nil {
				return fmt.Errorf("response failed: %s", event.Response.Error.Message)
			}
			return fmt.Errorf("response failed")
		case "response.incomplete":
			if event.Response != nil && event.Response.IncompleteDetails != nil {
				return fmt.Errorf("response incomplete: %s", event.Response.IncompleteDetails.Reason)
			}
			return fmt.Errorf("response incomplete")
		case "error":
			return fmt.Errorf("stream error: %s", event.Message)
		case "response.completed":
			return sse.ErrStop
		}
		return nil
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}

	if citations := extractCitations(annotations); citations != "" {
		onChunk("\n\n---\nSources:\n" + citations)
	}
	return nil
}

// ListModels returns the models usable with the Responses API
func (p *Provider) ListModels(ctx context.Context) ([]gchat.ModelInfo, error) {
	baseURL, token, err := p.credentials()
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/models", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp)
	}

	var result ModelsAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to parse API response: %w", err)
	}

	models := make([]gchat.ModelInfo, 0, len(result.Data))
	for _, model := range result.Data {
		if !isResponsesAPISupported(model.ID) {
			continue
		}
		models = append(models, gchat.ModelInfo{
			ID:          model.ID,
			Description: "Owned by " + model.OwnedBy,
			IsDefault:   model.ID == DefaultModel,
		})
	}

	sort.Slice(models, func(i, j int) bool {
		return models[i].ID > models[j].ID
	})

	return models, nil
}

func apiError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	msg := strings.TrimSpace(string(body))

	var parsed errorResponse
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Message != "" {
		msg = parsed.Error.Message
	}
	return &gchat.APIError{Provider: ProviderName, StatusCode: resp.StatusCode, Body: msg}
}

// extractCitations formats annotations into a citation list
func extractCitations(annotations []ResponsesAPIAnnotation) string {
	var citations []string
	seenURLs := make(map[string]bool)
	index := 1

	for _, annotation := range annotations {
		if annotation.Type == "url_citation" && annotation.URL != "" {
			// Skip duplicate URLs
			if seenURLs[annotation.URL] {
				continue
			}
			seenURLs[annotation.URL] = true

			title := annotation.Title
			if title == "" {
				title = "Source"
			}
			citations = append(citations, fmt.Sprintf("[%d] %s - %s", index, title, annotation.URL))
			index++
		}
	}

	return strings.Join(citations, "\n")
}
