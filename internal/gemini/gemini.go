package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"slices"
	"sort"
	"strings"

	"github.com/longkey1/gchat/internal/gchat"
	"github.com/longkey1/gchat/internal/sse"
)

const (
	ProviderName   = "gemini"
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	DefaultModel   = "gemini-2.0-flash"
)

// Finish reasons that end a stream without a usable answer
var blockingFinishReasons = []string{"SAFETY", "RECITATION", "BLOCKLIST", "PROHIBITED_CONTENT", "SPII"}

// ModelsAPIResponse represents the response from Gemini's models endpoint
type ModelsAPIResponse struct {
	Models []ModelData `json:"models"`
}

// ModelData represents a single model in the API response
type ModelData struct {
	Name                       string   `json:"name"`
	DisplayName                string   `json:"displayName"`
	Description                string   `json:"description"`
	SupportedGenerationMethods []string `json:"supportedGenerationMethods"`
}

// Request represents the request body for Gemini's generate content API
type Request struct {
	Contents          []Content `json:"contents"`
	SystemInstruction *Content  `json:"system_instruction,omitempty"`
	Tools             []Tool    `json:"tools,omitempty"`
}

// Content represents a content item in the Gemini request and response format
type Content struct {
	Role  string `json:"role,omitempty"` // "user" or "model"
	Parts []Part `json:"parts"`
}

// Part represents a part of a content item
type Part struct {
	Text string `json:"text"`
}

// Tool represents a tool configuration for Gemini
type Tool struct {
	GoogleSearch *GoogleSearch `json:"google_search,omitempty"`
}

// GoogleSearch enables Google Search grounding. It has no fields.
type GoogleSearch struct{}

// StreamResponse is one server-sent chunk of streamGenerateContent
type StreamResponse struct {
	Candidates     []Candidate     `json:"candidates"`
	PromptFeedback *PromptFeedback `json:"promptFeedback,omitempty"`
}

// Candidate represents a candidate response
type Candidate struct {
	Content           Content            `json:"content"`
	FinishReason      string             `json:"finishReason,omitempty"`
	GroundingMetadata *GroundingMetadata `json:"groundingMetadata,omitempty"`
}

// PromptFeedback reports why a prompt was rejected
type PromptFeedback struct {
	BlockReason string `json:"blockReason,omitempty"`
}

// GroundingMetadata contains grounding information
type GroundingMetadata struct {
	WebSearchQueries []string         `json:"webSearchQueries,omitempty"`
	GroundingChunks  []GroundingChunk `json:"groundingChunks,omitempty"`
}

// GroundingChunk represents a grounding source
type GroundingChunk struct {
	Web *WebChunk `json:"web,omitempty"`
}

// WebChunk contains web source information
type WebChunk struct {
	URI   string `json:"uri"`
	Title string `json:"title,omitempty"`
}

// errorResponse is the body Gemini returns with non-200 statuses
type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Config defines the configuration interface for Gemini provider
type Config interface {
	GetModel() string
	GetBaseURL(provider string) (string, error)
	GetToken(provider string) (string, error)
	GetSystemPrompt() string
	WebSearchEnabled() bool
}

// Provider implements gchat.Streamer for Gemini
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

// NewProvider creates a new Gemini provider instance
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

func (p *Provider) baseURL() (string, error) {
	baseURL, err := p.config.GetBaseURL(ProviderName)
	if err != nil {
		return "", fmt.Errorf("failed to get base URL: %w", err)
	}
	return strings.TrimSuffix(baseURL, "/"), nil
}

// Stream sends prompt to streamGenerateContent and forwards every text part
func (p *Provider) Stream(ctx context.Context, prompt string, onChunk func(chunk string)) error {
	_, modelName, err := gchat.ParseModelString(p.config.GetModel())
	if err != nil {
		return fmt.Errorf("invalid model format: %w", err)
	}
	token, err := p.config.GetToken(ProviderName)
	if err != nil {
		return fmt.Errorf("failed to get token: %w", err)
	}
	baseURL, err := p.baseURL()
	if err != nil {
		return err
	}

	reqBody := p.newRequest(prompt)
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("error marshaling request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:streamGenerateContent?alt=sse&key=%s",
		baseURL, url.PathEscape(modelName), url.QueryEscape(token))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return apiError(resp)
	}

	var grounding *GroundingMetadata
	err = sse.Read(resp.Body, func(ev sse.Event) error {
		if p.debug {
			p.logger.Printf("gemini event: %s", ev.Data)
		}

		var chunk StreamResponse
		if err := json.Unmarshal([]byte(ev.Data), &chunk); err != nil {
			return fmt.Errorf("error parsing stream chunk: %w", err)
		}
		if chunk.PromptFeedback != nil && chunk.PromptFeedback.BlockReason != "" {
			return fmt.Errorf("prompt blocked by Gemini: %s", chunk.PromptFeedback.BlockReason)
		}
		if len(chunk.Candidates) == 0 {
			return nil
		}

		candidate := chunk.Candidates[0]
		for _, part := range candidate.Content.Parts {
			if part.Text != "" {
				onChunk(part.Text)
			}
		}
		if candidate.GroundingMetadata != nil {
			grounding = candidate.GroundingMetadata
		}
		if slices.Contains(blockingFinishReasons, candidate.FinishReason) {
			return fmt.Errorf("response stopped by Gemini: %s", candidate.FinishReason)
		}
		return nil
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}

	if grounding != nil {
		if citations := extractGroundingCitations(grounding); citations != "" {
			onChunk("\n\n---\nSources:\n" + citations)
		}
	}
	return nil
}

func (p *Provider) newRequest(prompt string) Request {
	req := Request{
		Contents: []Content{{Role: "user", Parts: []Part{{Text: prompt}}}},
	}
	if system := p.config.GetSystemPrompt(); system != "" {
		req.SystemInstruction = &Content{Parts: []Part{{Text: system}}}
	}
	if p.config.WebSearchEnabled() {
		req.Tools = []Tool{{GoogleSearch: &GoogleSearch{}}}
	}
	return req
}

// ListModels returns the models that support content generation
func (p *Provider) ListModels(ctx context.Context) ([]gchat.ModelInfo, error) {
	token, err := p.config.GetToken(ProviderName)
	if err != nil {
		return nil, fmt.Errorf("failed to get token: %w", err)
	}
	baseURL, err := p.baseURL()
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/models?pageSize=1000&key=%s", baseURL, url.QueryEscape(token))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

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

	models := make([]gchat.ModelInfo, 0, len(result.Models))
	for _, model := range result.Models {
		if !slices.Contains(model.SupportedGenerationMethods, "generateContent") {
			continue
		}
		id := strings.TrimPrefix(model.Name, "models/")
		description := model.Description
		if description == "" {
			description = model.DisplayName
		}
		models = append(models, gchat.ModelInfo{
			ID:          id,
			Description: description,
			IsDefault:   id == DefaultModel,
		})
	}

	// Newest model families first
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

// extractGroundingCitations formats grounding chunks into a citation list
func extractGroundingCitations(metadata *GroundingMetadata) string {
	var citations []string
	seenURIs := make(map[string]bool)

	for i, chunk := range metadata.GroundingChunks {
		if chunk.Web == nil || chunk.Web.URI == "" || seenURIs[chunk.Web.URI] {
			continue
		}
		seenURIs[chunk.Web.URI] = true

		title := chunk.Web.Title
		if title == "" {
			title = "Source"
		}
		citations = append(citations, fmt.Sprintf("[%d] %s - %s", i+1, title, chunk.Web.URI))
	}

	return strings.Join(citations, "\n")
}
