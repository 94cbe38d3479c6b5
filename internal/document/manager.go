// Package document provides the Manager that turns uploaded files into
// indexed, queryable documents and tracks their lifecycle in SQLite.
package document

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"docqa/internal/ingest"
	"docqa/internal/parser"
)

// Document statuses recorded in the documents table.
const (
	StatusProcessing = "processing"
	StatusSuccess    = "success"
	StatusCached     = "cached"
	StatusFailed     = "failed"
)

// supportedExtensions maps file extensions to parser file types.
var supportedExtensions = map[string]string{
	".pdf":  "pdf",
	".docx": "docx",
	".doc":  "doc",
	".xlsx": "xlsx",
	".xls":  "xls",
	".pptx": "pptx",
	".ppt":  "ppt",
	".txt":  "txt",
	".md":   "md",
}

// Manager orchestrates parse → ingest for uploads and records document
// metadata. The document id is the SHA-256 of the file content, so the same
// bytes uploaded twice resolve to the same cache entry.
type Manager struct {
	parser     *parser.DocumentParser
	pipeline   *ingest.Pipeline
	db         *sql.DB
	httpClient *http.Client
}

// Info holds metadata about one document.
type Info struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Type       string    `json:"type"`
	Status     string    `json:"status"`
	ChunkCount int       `json:"chunk_count"`
	FromCache  bool      `json:"from_cache"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// UploadFileRequest is a file upload.
type UploadFileRequest struct {
	FileName string `json:"file_name"`
	FileData []byte `json:"file_data"`
}

// UploadURLRequest ingests the body of a URL as plain text.
type UploadURLRequest struct {
	URL string `json:"url"`
}

// NewManager creates a Manager.
func NewManager(p *parser.DocumentParser, pipe *ingest.Pipeline, db *sql.DB) *Manager {
	return &Manager{
		parser:   p,
		pipeline: pipe,
		db:       db,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// DetectFileType maps a file name to a parser file type, or "" if the
// extension is not supported.
func DetectFileType(fileName string) string {
	return supportedExtensions[strings.ToLower(filepath.Ext(fileName))]
}

// contentID derives the document id from the file bytes.
func contentID(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// UploadFile parses the file and runs it through the ingestion pipeline.
// Extraction or embedding failures mark the document failed without
// touching the index; the error is recorded, not returned.
func (m *Manager) UploadFile(req UploadFileRequest) (*Info, error) {
	fileType := DetectFileType(req.FileName)
	if fileType == "" {
		return nil, fmt.Errorf("%w: %s", parser.ErrUnsupported, req.FileName)
	}
	if len(req.FileData) == 0 {
		return nil, fmt.Errorf("file %s is empty", req.FileName)
	}

	docID := contentID(req.FileData)
	doc := &Info{
		ID:        docID,
		Name:      req.FileName,
		Type:      fileType,
		Status:    StatusProcessing,
		CreatedAt: time.Now(),
	}
	if err := m.upsertDocument(doc); err != nil {
		return nil, fmt.Errorf("failed to record document: %w", err)
	}

	result, err := m.parser.Parse(req.FileData, fileType)
	if err != nil {
		m.markFailed(doc, fmt.Errorf("extraction error: %w", err))
		return doc, nil
	}

	return m.ingestText(doc, result.Text)
}

// UploadURL fetches the URL body and ingests it as plain text. The id is the
// hash of the fetched content, so an unchanged page stays cached.
func (m *Manager) UploadURL(req UploadURLRequest) (*Info, error) {
	if req.URL == "" {
		return nil, fmt.Errorf("url must not be empty")
	}

	resp, err := m.httpClient.Get(req.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch url: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("url returned HTTP %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read url content: %w", err)
	}

	text := parser.CleanText(string(body))
	if text == "" {
		return nil, fmt.Errorf("url content is empty")
	}

	doc := &Info{
		ID:        contentID([]byte(text)),
		Name:      req.URL,
		Type:      "url",
		Status:    StatusProcessing,
		CreatedAt: time.Now(),
	}
	if err := m.upsertDocument(doc); err != nil {
		return nil, fmt.Errorf("failed to record document: %w", err)
	}

	return m.ingestText(doc, text)
}

func (m *Manager) ingestText(doc *Info, text string) (*Info, error) {
	res, err := m.pipeline.Ingest(doc.ID, text)
	if err != nil {
		m.markFailed(doc, err)
		return doc, nil
	}

	doc.ChunkCount = len(res.Chunks)
	doc.FromCache = res.FromCache
	if res.FromCache {
		doc.Status = StatusCached
	} else {
		doc.Status = StatusSuccess
	}
	m.updateStatus(doc)
	return doc, nil
}

func (m *Manager) markFailed(doc *Info, err error) {
	doc.Status = StatusFailed
	doc.Error = err.Error()
	m.updateStatus(doc)
}

// ListDocuments returns all documents, newest first.
func (m *Manager) ListDocuments() ([]Info, error) {
	rows, err := m.db.Query(`SELECT id, name, type, status, chunk_count, from_cache, error, created_at
		FROM documents ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var docs []Info
	for rows.Next() {
		var d Info
		var errStr sql.NullString
		var createdAt sql.NullTime
		var fromCache int
		if err := rows.Scan(&d.ID, &d.Name, &d.Type, &d.Status, &d.ChunkCount, &fromCache, &errStr, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan document row: %w", err)
		}
		d.FromCache = fromCache == 1
		if errStr.Valid {
			d.Error = errStr.String
		}
		if createdAt.Valid {
			d.CreatedAt = createdAt.Time
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating document rows: %w", err)
	}
	return docs, nil
}

// upsertDocument inserts the record, or resets status on re-upload of the
// same content.
func (m *Manager) upsertDocument(doc *Info) error {
	_, err := m.db.Exec(
		`INSERT INTO documents (id, name, type, status, error, created_at) VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name, status = excluded.status, error = ''`,
		doc.ID, doc.Name, doc.Type, doc.Status, doc.Error, doc.CreatedAt,
	)
	return err
}

func (m *Manager) updateStatus(doc *Info) {
	fromCache := 0
	if doc.FromCache {
		fromCache = 1
	}
	m.db.Exec(`UPDATE documents SET status = ?, chunk_count = ?, from_cache = ?, error = ? WHERE id = ?`,
		doc.Status, doc.ChunkCount, fromCache, doc.Error, doc.ID)
}
