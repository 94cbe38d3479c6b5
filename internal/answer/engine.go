// Package answer implements the retrieval and answering engine that
// coordinates question embedding, nearest-neighbor lookup, and LLM response
// generation.
package answer

import (
	"fmt"
	"log"
	"strings"

	"docqa/internal/embedding"
	"docqa/internal/llm"
	"docqa/internal/vecindex"
)

// DefaultTopK is the number of chunks retrieved when none is configured.
const DefaultTopK = 2

// Reasoning-span markers emitted by local reasoning models. Exactly one
// leading span is stripped from answers; anything malformed is left alone.
const (
	reasoningStart = "<think>"
	reasoningEnd   = "</think>"
)

// Response is the result of answering one question.
type Response struct {
	Answer string   `json:"answer"`
	Chunks []string `json:"chunks"` // retrieved context, nearest first
}

// Engine answers questions grounded in the vector index: embed the question,
// query for the nearest chunks, and forward chunks plus question to the
// completion collaborator.
type Engine struct {
	embedder   embedding.EmbeddingService
	index      *vecindex.FlatIndex
	llmService llm.LLMService
	topK       int
	promptFn   func() string
}

// NewEngine creates an Engine. A topK of 0 falls back to DefaultTopK.
// promptFn supplies the system prompt per call so config updates take
// effect without restarting; nil means no system prompt.
func NewEngine(es embedding.EmbeddingService, ix *vecindex.FlatIndex, ls llm.LLMService, topK int, promptFn func() string) *Engine {
	if topK <= 0 {
		topK = DefaultTopK
	}
	if promptFn == nil {
		promptFn = func() string { return "" }
	}
	return &Engine{
		embedder:   es,
		index:      ix,
		llmService: ls,
		topK:       topK,
		promptFn:   promptFn,
	}
}

// Retrieve embeds the question with the same embedding function used for
// chunks and returns the texts of the up-to-k nearest chunks, nearest first.
func (e *Engine) Retrieve(question string, k int) ([]string, error) {
	vector, err := e.embedder.Embed(question)
	if err != nil {
		return nil, fmt.Errorf("failed to embed question: %w", err)
	}

	results, err := e.index.Query(vector, k)
	if err != nil {
		return nil, fmt.Errorf("failed to query index: %w", err)
	}
	log.Printf("[Answer] question=%q k=%d results=%d index_size=%d", question, k, len(results), e.index.Size())

	chunks := make([]string, len(results))
	for i, r := range results {
		chunks[i] = r.Text
	}
	return chunks, nil
}

// Answer forwards the retrieved chunks and the question to the completion
// collaborator and post-processes the raw response: a single leading
// reasoning span is stripped, everything else is returned verbatim.
func (e *Engine) Answer(chunks []string, question string) (string, error) {
	raw, err := e.llmService.Generate(e.promptFn(), chunks, question)
	if err != nil {
		return "", err
	}
	return StripReasoning(raw), nil
}

// Ask runs the full flow for one question: retrieve topK chunks, then
// answer. With an empty index the completion still runs, with no context.
func (e *Engine) Ask(question string) (*Response, error) {
	chunks, err := e.Retrieve(question, e.topK)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		log.Printf("[Answer] no indexed chunks for question %q", question)
	}

	answer, err := e.Answer(chunks, question)
	if err != nil {
		return nil, err
	}
	return &Response{Answer: answer, Chunks: chunks}, nil
}

// StripReasoning removes one optional reasoning span, delimited by a
// matching <think>/</think> pair, from the response. If the start marker is
// absent, the end marker is missing, or the markers are out of order, the
// text is returned unmodified rather than guessed at.
func StripReasoning(text string) string {
	start := strings.Index(text, reasoningStart)
	if start < 0 {
		return text
	}
	rest := text[start+len(reasoningStart):]
	end := strings.Index(rest, reasoningEnd)
	if end < 0 {
		return text
	}
	stripped := text[:start] + rest[end+len(reasoningEnd):]
	return strings.TrimSpace(stripped)
}
