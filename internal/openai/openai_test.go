package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/longkey1/gchat/internal/gchat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	baseURL   string
	model     string
	system    string
	webSearch bool
}

func (c testConfig) GetModel() string                  { return c.model }
func (c testConfig) GetBaseURL(string) (string, error) { return c.baseURL, nil }
func (c testConfig) GetToken(string) (string, error)   { return "sk-test", nil }
func (c testConfig) GetSystemPrompt() string           { return c.system }
func (c testConfig) WebSearchEnabled() bool            { return c.webSearch }

func event(name, data string) string {
	return fmt.Sprintf("event: %s\ndata: %s\n\n", name, data)
}

func delta(text string) string {
	return event("response.output_text.delta",
		fmt.Sprintf(`{"type":"response.output_text.delta","item_id":"msg_1","output_index":0,"content_index":0,"delta":%q}`, text))
}

func TestIsResponsesAPISupported(t *testing.T) {
	tests := []struct {
		model string
		want  bool
	}{
		{"gpt-4o", true},
		{"gpt-4o-mini", true},
		{"gpt-4.1-nano", true},
		{"o4-mini", true},
		{"gpt-3.5-turbo", false},
		{"text-embedding-3-small", false},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			assert.Equal(t, tt.want, isResponsesAPISupported(tt.model))
		})
	}
}

func TestProvider_Stream(t *testing.T) {
	var got ResponsesAPIRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/responses", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, event("response.created", `{"type":"response.created","response":{"status":"in_progress"}}`))
		fmt.Fprint(w, delta("He"))
		fmt.Fprint(w, delta("llo!"))
		fmt.Fprint(w, event("response.completed", `{"type":"response.completed","response":{"status":"completed"}}`))
	}))
	defer server.Close()

	p := NewProvider(testConfig{baseURL: server.URL, model: "openai:gpt-4.1", system: "Be brief"})

	var chunks []string
	require.NoError(t, p.Stream(context.Background(), "Hi", func(c string) { chunks = append(chunks, c) }))

	assert.Equal(t, []string{"He", "llo!"}, chunks)
	assert.True(t, got.Stream)
	assert.Equal(t, "gpt-4.1", got.Model)
	assert.Equal(t, "Hi", got.Input)
	assert.Equal(t, "Be brief", got.Instructions)
	assert.Empty(t, got.Tools)
}

func TestProvider_StreamCitations(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ResponsesAPIRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []ResponsesAPITool{{Type: "web_search"}}, req.Tools)

		fmt.Fprint(w, delta("Answer"))
		for _, url := range []string{"https://a.example", "https://a.example", "https://b.example"} {
			fmt.Fprint(w, event("response.output_text.annotation.added",
				fmt.Sprintf(`{"type":"response.output_text.annotation.added","annotation":{"type":"url_citation","url":%q}}`, url)))
		}
		fmt.Fprint(w, event("response.completed", `{"type":"response.completed","response":{"status":"completed"}}`))
	}))
	defer server.Close()

	p := NewProvider(testConfig{baseURL: server.URL, model: "openai:gpt-4o", webSearch: true})

	var out strings.Builder
	require.NoError(t, p.Stream(context.Background(), "Q", func(c string) { out.WriteString(c) }))
	assert.Equal(t, "Answer\n\n---\nSources:\n[1] Source - https://a.example\n[2] Source - https://b.example", out.String())
}

func TestProvider_StreamFailures(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{
			name: "response failed after partial text",
			body: delta("Par") + event("response.failed",
				`{"type":"response.failed","response":{"status":"failed","error":{"code":"server_error","message":"boom"}}}`),
			wantErr: "response failed: boom",
		},
		{
			name: "incomplete",
			body: delta("Par") + event("response.incomplete",
				`{"type":"response.incomplete","response":{"status":"incomplete","incomplete_details":{"reason":"max_output_tokens"}}}`),
			wantErr: "response incomplete: max_output_tokens",
		},
		{
			name:    "error event",
			body:    event("error", `{"type":"error","code":"rate_limit_exceeded","message":"slow down"}`),
			wantErr: "stream error: slow down",
		},
		{
			name:    "garbage event",
			body:    "data: {oops\n\n",
			wantErr: "error parsing stream event",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, tt.body)
			}))
			defer server.Close()

			p := NewProvider(testConfig{baseURL: server.URL, model: "openai:gpt-4.1"})
			err := p.Stream(context.Background(), "Hi", func(string) {})
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestProvider_StreamAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"Incorrect API key provided","type":"invalid_request_error"}}`)
	}))
	defer server.Close()

	p := NewProvider(testConfig{baseURL: server.URL, model: "openai:gpt-4.1"})
	err := p.Stream(context.Background(), "Hi", func(string) {})

	var apiErr *gchat.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "openai", apiErr.Provider)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "Incorrect API key provided", apiErr.Body)
}

func TestProvider_StreamUnsupportedModel(t *testing.T) {
	p := NewProvider(testConfig{baseURL: "http://unused", model: "openai:gpt-3.5-turbo"})
	err := p.Stream(context.Background(), "Hi", func(string) {})
	assert.ErrorContains(t, err, "not supported with Responses API")
}

func TestProvider_ListModels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models", r.URL.Path)
		fmt.Fprint(w, `{"data":[
			{"id":"gpt-4o","owned_by":"system"},
			{"id":"whisper-1","owned_by":"openai-internal"},
			{"id":"gpt-4.1","owned_by":"system"}
		]}`)
	}))
	defer server.Close()

	p := NewProvider(testConfig{baseURL: server.URL, model: "openai:gpt-4.1"})
	models, err := p.ListModels(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []gchat.ModelInfo{
		{ID: "gpt-4o", Description: "Owned by system"},
		{ID: "gpt-4.1", Description: "Owned by system", IsDefault: true},
	}, models)
}
