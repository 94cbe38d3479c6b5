// Package embedstore persists per-document chunk texts and embedding vectors
// as a durable file cache. Each document is a pair of files keyed by its id:
// "<id>.emb" holds the raw n×d little-endian float32 embedding array and
// "<id>.chunks.json" holds the JSON array of n chunk texts, positionally
// aligned with the embeddings.
package embedstore

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	embSuffix    = ".emb"
	chunksSuffix = ".chunks.json"
)

// Entry is one persisted document's data as returned by LoadAll.
type Entry struct {
	DocumentID string
	Embeddings [][]float32
	Chunks     []string
}

// InconsistencyError reports a damaged cache entry: one file of the pair
// missing, unreadable, or the embeddings not dividing into whole vectors.
// LoadAll skips the affected document and keeps going.
type InconsistencyError struct {
	DocumentID string
	Reason     string
}

func (e *InconsistencyError) Error() string {
	return fmt.Sprintf("cache entry %s inconsistent: %s", e.DocumentID, e.Reason)
}

// Store is a file-backed embedding cache rooted at a single directory.
type Store struct {
	dir string
}

// NewStore creates the cache directory if needed and returns a Store.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Save writes the embeddings and chunk texts for docID, overwriting any
// previous entry for the same id silently. The two arrays must be parallel
// and every vector must have the same width.
func (s *Store) Save(docID string, embeddings [][]float32, chunks []string) error {
	if err := validateID(docID); err != nil {
		return err
	}
	if len(embeddings) != len(chunks) {
		return fmt.Errorf("save %s: %d embeddings but %d chunks", docID, len(embeddings), len(chunks))
	}
	if len(embeddings) > 0 {
		dim := len(embeddings[0])
		for i, v := range embeddings {
			if len(v) != dim {
				return fmt.Errorf("save %s: vector %d has width %d, expected %d", docID, i, len(v), dim)
			}
		}
	}

	chunkData, err := json.Marshal(chunks)
	if err != nil {
		return fmt.Errorf("save %s: failed to marshal chunks: %w", docID, err)
	}
	if err := os.WriteFile(s.chunksPath(docID), chunkData, 0644); err != nil {
		return fmt.Errorf("save %s: failed to write chunks file: %w", docID, err)
	}
	if err := os.WriteFile(s.embPath(docID), SerializeMatrix(embeddings), 0644); err != nil {
		return fmt.Errorf("save %s: failed to write embeddings file: %w", docID, err)
	}
	return nil
}

// Exists reports whether a complete entry (both files) is present for docID.
func (s *Store) Exists(docID string) bool {
	if validateID(docID) != nil {
		return false
	}
	if _, err := os.Stat(s.embPath(docID)); err != nil {
		return false
	}
	if _, err := os.Stat(s.chunksPath(docID)); err != nil {
		return false
	}
	return true
}

// LoadChunks reads only the chunk texts for docID.
func (s *Store) LoadChunks(docID string) ([]string, error) {
	if err := validateID(docID); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.chunksPath(docID))
	if err != nil {
		return nil, fmt.Errorf("failed to read chunks for %s: %w", docID, err)
	}
	var chunks []string
	if err := json.Unmarshal(data, &chunks); err != nil {
		return nil, &InconsistencyError{DocumentID: docID, Reason: fmt.Sprintf("chunks file undecodable: %v", err)}
	}
	return chunks, nil
}

// LoadAll scans the cache directory and returns every complete entry,
// ordered by document id for deterministic startup. Damaged entries are
// reported as InconsistencyErrors and skipped, never silently dropped:
// loading half a pair would break the index/chunk-map invariant downstream.
func (s *Store) LoadAll() ([]Entry, []error) {
	dirEntries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, []error{fmt.Errorf("failed to scan cache directory: %w", err)}
	}

	ids := make(map[string]bool)
	for _, de := range dirEntries {
		name := de.Name()
		switch {
		case strings.HasSuffix(name, embSuffix):
			ids[strings.TrimSuffix(name, embSuffix)] = true
		case strings.HasSuffix(name, chunksSuffix):
			ids[strings.TrimSuffix(name, chunksSuffix)] = true
		}
	}

	sorted := make([]string, 0, len(ids))
	for id := range ids {
		sorted = append(sorted, id)
	}
	sort.Strings(sorted)

	var entries []Entry
	var errs []error
	for _, id := range sorted {
		entry, err := s.load(id)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		entries = append(entries, entry)
	}
	return entries, errs
}

// load reads one document's file pair and cross-checks their shapes.
func (s *Store) load(docID string) (Entry, error) {
	chunkData, err := os.ReadFile(s.chunksPath(docID))
	if err != nil {
		return Entry{}, &InconsistencyError{DocumentID: docID, Reason: "chunks file missing or unreadable"}
	}
	embData, err := os.ReadFile(s.embPath(docID))
	if err != nil {
		return Entry{}, &InconsistencyError{DocumentID: docID, Reason: "embeddings file missing or unreadable"}
	}

	var chunks []string
	if err := json.Unmarshal(chunkData, &chunks); err != nil {
		return Entry{}, &InconsistencyError{DocumentID: docID, Reason: fmt.Sprintf("chunks file undecodable: %v", err)}
	}

	embeddings, err := DeserializeMatrix(embData, len(chunks))
	if err != nil {
		return Entry{}, &InconsistencyError{DocumentID: docID, Reason: err.Error()}
	}

	return Entry{DocumentID: docID, Embeddings: embeddings, Chunks: chunks}, nil
}

func (s *Store) embPath(docID string) string {
	return filepath.Join(s.dir, docID+embSuffix)
}

func (s *Store) chunksPath(docID string) string {
	return filepath.Join(s.dir, docID+chunksSuffix)
}

// validateID rejects ids that would escape the cache directory.
func validateID(docID string) error {
	if docID == "" || strings.ContainsAny(docID, "/\\") || strings.Contains(docID, "..") {
		return fmt.Errorf("invalid document id %q", docID)
	}
	return nil
}

// LogErrors writes each load error to the standard logger. Helper for
// startup paths that skip damaged entries but must not hide them.
func LogErrors(errs []error) {
	for _, err := range errs {
		log.Printf("[EmbedStore] %v", err)
	}
}
