// Package llm provides the chat-completion client for answer generation via
// OpenAI-compatible API endpoints (e.g. a local Ollama server).
package llm

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrCompletion marks a completion request that failed after retry. It is
// surfaced to the user for the affected question; it never crashes the
// process.
var ErrCompletion = errors.New("completion request failed")

// ErrTimeout marks a completion request that exceeded the configured timeout.
var ErrTimeout = errors.New("completion request timed out")

// DefaultTimeout is the request timeout used when none is configured.
const DefaultTimeout = 120 * time.Second

// defaultSystemPrompt instructs the model to ground its answer in the
// provided reference chunks.
const defaultSystemPrompt = "You are a question answering assistant. " +
	"Answer the question using only the provided reference material. " +
	"If the reference material does not contain the answer, say so plainly."

// LLMService defines the interface for answer generation.
type LLMService interface {
	Generate(systemPrompt string, context []string, question string) (string, error)
}

// APILLMService implements LLMService using an OpenAI-compatible chat API.
type APILLMService struct {
	Endpoint    string
	APIKey      string
	ModelName   string
	Temperature float64
	MaxTokens   int
	client      *http.Client
}

// NewAPILLMService creates a new APILLMService with the given configuration.
// A timeout of 0 falls back to DefaultTimeout.
func NewAPILLMService(endpoint, apiKey, modelName string, temperature float64, maxTokens int, timeout time.Duration) *APILLMService {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &APILLMService{
		Endpoint:    endpoint,
		APIKey:      apiKey,
		ModelName:   modelName,
		Temperature: temperature,
		MaxTokens:   maxTokens,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// chatMessage is a single message in the chat completion request/response.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatRequest is the request body for the OpenAI-compatible chat API.
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

// chatChoice is a single completion choice.
type chatChoice struct {
	Message chatMessage `json:"message"`
}

// chatResponse is the response body from the OpenAI-compatible chat API.
type chatResponse struct {
	Choices []chatChoice `json:"choices"`
	Error   *apiError    `json:"error,omitempty"`
}

// apiError represents an error returned by the API.
type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// BuildMessages assembles the system and user messages for a RAG completion.
// An empty systemPrompt falls back to the default. Context chunks are
// numbered [1], [2], … under a reference header; with no context the user
// message is just the question.
func BuildMessages(systemPrompt string, context []string, question string) []chatMessage {
	if systemPrompt == "" {
		systemPrompt = defaultSystemPrompt
	}

	var b strings.Builder
	if len(context) > 0 {
		b.WriteString("Reference material:\n")
		for i, chunk := range context {
			fmt.Fprintf(&b, "[%d] %s\n", i+1, chunk)
		}
		b.WriteString("\nQuestion:\n")
	}
	b.WriteString(question)

	return []chatMessage{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: b.String()},
	}
}

// Generate calls the chat completion API with the given prompt parts and
// returns the model's answer. A failed attempt is retried once; if both
// attempts fail the error is returned wrapped in ErrCompletion (or
// ErrTimeout when the request timed out), for the caller to surface.
func (s *APILLMService) Generate(systemPrompt string, context []string, question string) (string, error) {
	messages := BuildMessages(systemPrompt, context, question)

	answer, err := s.callAPI(messages)
	if err != nil {
		// One retry; transient upstream failures are common with local models
		answer, err = s.callAPI(messages)
	}
	if err != nil {
		if errors.Is(err, ErrTimeout) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", ErrCompletion, err)
	}
	return strings.TrimSpace(answer), nil
}

// callAPI performs a single chat completion request.
func (s *APILLMService) callAPI(messages []chatMessage) (string, error) {
	reqBody := chatRequest{
		Model:       s.ModelName,
		Messages:    messages,
		Temperature: s.Temperature,
		MaxTokens:   s.MaxTokens,
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := strings.TrimRight(s.Endpoint, "/") + "/chat/completions"
	req, err := http.NewRequest(http.MethodPost, endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.APIKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		var ue *url.Error
		if errors.As(err, &ue) && ue.Timeout() {
			return "", fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return "", fmt.Errorf("chat API request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp chatResponse
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != nil {
			return "", fmt.Errorf("chat API error (HTTP %d): %s", resp.StatusCode, errResp.Error.Message)
		}
		return "", fmt.Errorf("chat API error (HTTP %d): %s", resp.StatusCode, string(respBody))
	}

	var result chatResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if result.Error != nil {
		return "", fmt.Errorf("chat API error: %s", result.Error.Message)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("chat API returned no choices")
	}

	return result.Choices[0].Message.Content, nil
}
