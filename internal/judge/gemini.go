package judge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultGeminiModel is the locked default. Keeping a single known model
	// avoids surprise billing from typos in configuration.
	DefaultGeminiModel = "gemini-3-pro-preview"

	defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
)

// GeminiJudge calls the Gemini generateContent REST API.
type GeminiJudge struct {
	APIKey  string
	Model   string
	BaseURL string // overridable for tests
	Client  *http.Client
}

// NewGeminiJudge creates a judge for the given API key. An empty model
// selects DefaultGeminiModel.
func NewGeminiJudge(apiKey, model string) *GeminiJudge {
	if model == "" {
		model = DefaultGeminiModel
	}
	return &GeminiJudge{
		APIKey:  apiKey,
		Model:   model,
		BaseURL: defaultGeminiBaseURL,
		Client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (g *GeminiJudge) Name() string { return "gemini" }

type geminiRequest struct {
	SystemInstruction *geminiContent  `json:"system_instruction,omitempty"`
	Contents          []geminiContent `json:"contents"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Evaluate posts the prompt to generateContent and returns the concatenated
// candidate text. Rate-limit responses surface as *QuotaError.
func (g *GeminiJudge) Evaluate(ctx context.Context, systemInstruction, prompt string) (string, error) {
	reqBody := geminiRequest{
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: prompt}}},
		},
	}
	if systemInstruction != "" {
		reqBody.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: systemInstruction}}}
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", g.BaseURL, g.Model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.APIKey)

	client := g.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("call gemini: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read gemini response: %w", err)
	}

	var parsed geminiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("decode gemini response (status %d): %w", resp.StatusCode, err)
	}

	if resp.StatusCode == http.StatusTooManyRequests ||
		(parsed.Error != nil && parsed.Error.Status == "RESOURCE_EXHAUSTED") {
		detail := resp.Status
		if parsed.Error != nil && parsed.Error.Message != "" {
			detail = parsed.Error.Message
		}
		return "", &QuotaError{Backend: g.Name(), Detail: detail}
	}
	if resp.StatusCode != http.StatusOK {
		if parsed.Error != nil {
			return "", fmt.Errorf("gemini error %d: %s", resp.StatusCode, parsed.Error.Message)
		}
		return "", fmt.Errorf("gemini error %d", resp.StatusCode)
	}

	var sb strings.Builder
	for _, c := range parsed.Candidates {
		for _, p := range c.Content.Parts {
			sb.WriteString(p.Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("gemini returned no candidate text")
	}
	return sb.String(), nil
}
