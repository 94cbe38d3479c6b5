// Package ingest orchestrates the document ingestion pipeline:
// chunk → embed → index append → cache save, guarded by a per-document
// cache check so already-embedded documents are never recomputed.
package ingest

import (
	"fmt"
	"log"
	"sync"

	"docqa/internal/chunker"
	"docqa/internal/embedding"
	"docqa/internal/embedstore"
	"docqa/internal/vecindex"
)

// Result reports the outcome of one document ingestion.
type Result struct {
	Chunks    []string // chunk texts in document order
	FromCache bool     // true when the store already held the document
}

// Pipeline wires the chunker, embedding service, vector index and embedding
// store together. Ingestion of the same document id is serialized by a
// per-document mutex: a doubled ingest would otherwise double-append to the
// index while only one save survives, desyncing store and index.
type Pipeline struct {
	chunker  *chunker.WordChunker
	embedder embedding.EmbeddingService
	index    *vecindex.FlatIndex
	store    *embedstore.Store

	mu       sync.Mutex
	docLocks map[string]*sync.Mutex
	indexed  map[string]bool // ids whose vectors this process already appended
}

// NewPipeline creates a Pipeline with the given collaborators.
func NewPipeline(wc *chunker.WordChunker, es embedding.EmbeddingService, ix *vecindex.FlatIndex, store *embedstore.Store) *Pipeline {
	return &Pipeline{
		chunker:  wc,
		embedder: es,
		index:    ix,
		store:    store,
		docLocks: make(map[string]*sync.Mutex),
		indexed:  make(map[string]bool),
	}
}

// LoadCache repopulates the in-memory index from the embedding store. Called
// once at startup, before any ingestion or query. Damaged cache entries are
// logged and skipped; a width mismatch against the index (e.g. after an
// embedding model switch) likewise skips the entry rather than corrupting
// the index. Returns the number of documents and chunks loaded.
func (p *Pipeline) LoadCache() (docs, chunks int) {
	entries, errs := p.store.LoadAll()
	embedstore.LogErrors(errs)

	for _, e := range entries {
		if err := p.index.Append(e.Embeddings, e.Chunks); err != nil {
			log.Printf("[Ingest] skipping cached document %s: %v", e.DocumentID, err)
			continue
		}
		p.markIndexed(e.DocumentID)
		docs++
		chunks += len(e.Chunks)
	}
	log.Printf("[Ingest] cache loaded: %d documents, %d chunks, index size %d", docs, chunks, p.index.Size())
	return docs, chunks
}

// Ingest runs the pipeline for one document's extracted text. If the store
// already has an entry for docID the chunks are loaded from it and nothing
// is appended: the startup load already placed the embeddings in the index.
// Otherwise the text is chunked, embedded, appended to the index (vectors
// and texts in one step) and persisted.
func (p *Pipeline) Ingest(docID, text string) (Result, error) {
	lock := p.docLock(docID)
	lock.Lock()
	defer lock.Unlock()

	if p.store.Exists(docID) {
		cached, err := p.store.LoadChunks(docID)
		if err != nil {
			return Result{}, fmt.Errorf("failed to load cached chunks: %w", err)
		}
		log.Printf("[Ingest] document %s already embedded, %d chunks from cache", docID, len(cached))
		return Result{Chunks: cached, FromCache: true}, nil
	}

	docChunks := p.chunker.Split(text, docID)
	if len(docChunks) == 0 {
		return Result{}, fmt.Errorf("document %s produced no chunks", docID)
	}
	texts := chunker.Texts(docChunks)

	vectors, err := p.embedder.EmbedBatch(texts)
	if err != nil {
		return Result{}, fmt.Errorf("embedding error: %w", err)
	}

	// A document whose earlier ingest appended but failed to save is already
	// in the index; appending again would duplicate its vectors.
	if !p.isIndexed(docID) {
		if err := p.index.Append(vectors, texts); err != nil {
			return Result{}, fmt.Errorf("index append error: %w", err)
		}
		p.markIndexed(docID)
	}

	if err := p.store.Save(docID, vectors, texts); err != nil {
		// Index holds the vectors but the cache write failed; the indexed
		// mark keeps a retry from double-appending, and the next startup
		// simply recomputes this document.
		return Result{}, fmt.Errorf("cache save error: %w", err)
	}

	log.Printf("[Ingest] document %s embedded: %d chunks, index size %d", docID, len(texts), p.index.Size())
	return Result{Chunks: texts, FromCache: false}, nil
}

// docLock returns the mutex for docID, creating it on first use.
func (p *Pipeline) docLock(docID string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	lock, ok := p.docLocks[docID]
	if !ok {
		lock = &sync.Mutex{}
		p.docLocks[docID] = lock
	}
	return lock
}

func (p *Pipeline) isIndexed(docID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.indexed[docID]
}

func (p *Pipeline) markIndexed(docID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.indexed[docID] = true
}
