package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"snaudit-backend/internal/llm"
)

const (
	apiURL = "https://api.openai.com/v1/chat/completions"

	systemPrompt = "You are a ServiceNow license analyst. Write a short executive summary " +
		"(3-5 sentences, plain text, no markdown) of the audit figures you are given. " +
		"Lead with the savings opportunity, mention inactive accounts and automation " +
		"readiness, and close with the overall risk posture. Do not invent numbers."
)

// Client implements llm.Client using OpenAI Chat Completions.
type Client struct {
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewClient constructs a new OpenAI client.
func NewClient(apiKey, model string) (*Client, error) {
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("LLM_MODEL is required for OpenAI")
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}
	timeout := 120 * time.Second
	if raw := strings.TrimSpace(os.Getenv("OPENAI_TIMEOUT_SECONDS")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			timeout = time.Duration(parsed) * time.Second
		}
	}
	return &Client{
		apiKey: apiKey,
		model:  model,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature *float32      `json:"temperature,omitempty"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage,omitempty"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// SummarizeReport sends the report aggregates to the Chat Completions API
// and returns the model's plain-text summary.
func (c *Client) SummarizeReport(ctx context.Context, input llm.SummaryInput) (string, error) {
	if strings.TrimSpace(c.model) == "" {
		return "", fmt.Errorf("LLM_MODEL is required for OpenAI")
	}

	temp := float32(0.2)
	reqBody := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: buildUserPrompt(input)},
		},
		Temperature: &temp,
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "Client.Timeout") {
			return "", fmt.Errorf("openai request timeout: %w", err)
		}
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("openai response parse: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("openai error: %s (%s)", parsed.Error.Message, parsed.Error.Type)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("openai response missing choices")
	}

	content := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("openai response empty content")
	}
	logUsage(c.model, parsed.Usage)
	return content, nil
}

func buildUserPrompt(input llm.SummaryInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Total users: %d (active %d, inactive %d)\n", input.TotalUsers, input.ActiveUsers, input.InactiveUsers)
	fmt.Fprintf(&b, "Decisions: %d\n", input.DecisionCount)
	fmt.Fprintf(&b, "Potential savings: $%.2f/month, $%.2f/year\n", input.MonthlySavings, input.AnnualSavings)
	fmt.Fprintf(&b, "Automation: %d auto-eligible, %d pending approval, %d manual review\n",
		input.AutoEligible, input.PendingApproval, input.ManualReview)
	fmt.Fprintf(&b, "License waste ratio: %.2f\n", input.WasteRatio)
	fmt.Fprintf(&b, "Risk score: %.0f/100\n", input.RiskScore)
	if len(input.ActionCounts) > 0 {
		actions := make([]string, 0, len(input.ActionCounts))
		for action := range input.ActionCounts {
			actions = append(actions, action)
		}
		sort.Strings(actions)
		b.WriteString("Recommended actions:")
		for _, action := range actions {
			fmt.Fprintf(&b, " %s=%d", action, input.ActionCounts[action])
		}
		b.WriteString("\n")
	}
	return b.String()
}

func logUsage(model string, usage *struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}) {
	if usage == nil {
		log.Printf("llm response model=%s", model)
		return
	}
	log.Printf("llm response model=%s prompt_tokens=%d completion_tokens=%d total_tokens=%d",
		model, usage.PromptTokens, usage.CompletionTokens, usage.TotalTokens)
}

var _ llm.Client = (*Client)(nil)
