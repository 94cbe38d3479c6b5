// Package chunker provides text splitting functionality for document processing.
// It splits text into fixed word-count chunks, the unit of retrieval.
package chunker

import "strings"

// DefaultChunkSize is the default number of words per chunk.
const DefaultChunkSize = 500

// WordChunker splits text into consecutive groups of ChunkSize words.
type WordChunker struct {
	ChunkSize int // default 500
}

// Chunk represents a segment of text from a document.
type Chunk struct {
	Text       string `json:"text"`
	Index      int    `json:"index"`
	DocumentID string `json:"document_id"`
}

// NewWordChunker creates a WordChunker with default settings.
func NewWordChunker() *WordChunker {
	return &WordChunker{ChunkSize: DefaultChunkSize}
}

// Split tokenizes text on whitespace and groups the words into consecutive,
// non-overlapping chunks of ChunkSize words, rejoined with single spaces.
// Each chunk is tagged with the given documentID and an incrementing index
// starting from 0.
//
// Returns an empty slice for empty or all-whitespace text.
// The last chunk may contain fewer than ChunkSize words.
// Chunk boundaries ignore sentence structure; a chunk may split mid-sentence.
func (wc *WordChunker) Split(text string, documentID string) []Chunk {
	words := strings.Fields(text)
	if len(words) == 0 {
		return []Chunk{}
	}

	chunkSize := wc.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	var chunks []Chunk
	index := 0
	for start := 0; start < len(words); start += chunkSize {
		end := start + chunkSize
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, Chunk{
			Text:       strings.Join(words[start:end], " "),
			Index:      index,
			DocumentID: documentID,
		})
		index++
	}

	return chunks
}

// Texts returns the chunk texts in creation order.
func Texts(chunks []Chunk) []string {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	return texts
}
