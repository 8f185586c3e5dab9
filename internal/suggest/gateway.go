package suggest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// Completer sends a system and user prompt to a text model and returns the
// model's reply text.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// GatewayConfig configures the LLM gateway client.
type GatewayConfig struct {
	ProxyURL string
	APIKey   string
	Model    string
	Timeout  time.Duration
}

const (
	DefaultProxyURL = "http://mcp-compose-http-proxy:9876"
	DefaultModel    = "google/gemini-2.0-flash-lite-001"
)

// GatewayCompleter calls the create_completion tool of an OpenRouter
// gateway exposed through an MCP HTTP proxy (JSON-RPC tools/call).
type GatewayCompleter struct {
	httpClient *http.Client
	proxyURL   string
	apiKey     string
	model      string
}

func NewGatewayCompleter(cfg GatewayConfig) *GatewayCompleter {
	proxyURL := strings.TrimRight(cfg.ProxyURL, "/")
	if proxyURL == "" {
		proxyURL = DefaultProxyURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &GatewayCompleter{
		httpClient: &http.Client{Timeout: timeout},
		proxyURL:   proxyURL,
		apiKey:     cfg.APIKey,
		model:      model,
	}
}

func (g *GatewayCompleter) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	completionRequest := map[string]interface{}{
		"model":         g.model,
		"system_prompt": systemPrompt,
		"messages": []map[string]interface{}{
			{
				"role":    "user",
				"content": userPrompt,
			},
		},
		"max_tokens":  1000,
		"temperature": 0.2,
	}

	text, err := g.callGateway(ctx, "create_completion", completionRequest)
	if err != nil {
		return "", fmt.Errorf("failed to get AI completion: %w", err)
	}

	// The tool result is itself a JSON completion object; fall back to the
	// raw text when it is not.
	if content := gjson.Get(text, "content"); gjson.Valid(text) && content.Type == gjson.String {
		return content.String(), nil
	}
	return text, nil
}

func (g *GatewayCompleter) callGateway(ctx context.Context, toolName string, args interface{}) (string, error) {
	url := fmt.Sprintf("%s/openrouter-gateway", g.proxyURL)

	requestData := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "tools/call",
		"params": map[string]interface{}{
			"name":      toolName,
			"arguments": args,
		},
	}

	jsonData, err := json.Marshal(requestData)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create HTTP request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if !gjson.ValidBytes(body) {
		return "", fmt.Errorf("failed to decode response: invalid JSON")
	}

	if rpcErr := gjson.GetBytes(body, "error.message"); rpcErr.Exists() {
		return "", fmt.Errorf("gateway error: %s", rpcErr.String())
	}
	if text := gjson.GetBytes(body, "result.content.0.text"); text.Type == gjson.String {
		return text.String(), nil
	}
	return "", fmt.Errorf("unexpected response format")
}
