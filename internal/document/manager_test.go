package document

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"docqa/internal/chunker"
	"docqa/internal/db"
	"docqa/internal/embedstore"
	"docqa/internal/ingest"
	"docqa/internal/parser"
	"docqa/internal/vecindex"
)

type stubEmbedder struct {
	calls int
}

func (s *stubEmbedder) Embed(text string) ([]float32, error) {
	vecs, err := s.EmbedBatch([]string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (s *stubEmbedder) EmbedBatch(texts []string) ([][]float32, error) {
	s.calls++
	vecs := make([][]float32, len(texts))
	for i, t := range texts {
		vecs[i] = []float32{float32(len(t)), float32(len(strings.Fields(t))), 1}
	}
	return vecs, nil
}

func newTestManager(t *testing.T) (*Manager, *stubEmbedder, *vecindex.FlatIndex) {
	t.Helper()
	dir := t.TempDir()

	database, err := db.InitDB(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("InitDB: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	store, err := embedstore.NewStore(filepath.Join(dir, "cache"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	emb := &stubEmbedder{}
	ix := vecindex.NewFlatIndex(0)
	pipe := ingest.NewPipeline(&chunker.WordChunker{ChunkSize: 5}, emb, ix, store)

	return NewManager(&parser.DocumentParser{}, pipe, database), emb, ix
}

func TestDetectFileType(t *testing.T) {
	cases := map[string]string{
		"report.pdf":  "pdf",
		"notes.TXT":   "txt",
		"slides.pptx": "pptx",
		"book.Docx":   "docx",
		"data.csv":    "",
		"noext":       "",
	}
	for name, want := range cases {
		if got := DetectFileType(name); got != want {
			t.Errorf("DetectFileType(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestUploadFile_PlainText(t *testing.T) {
	m, emb, ix := newTestManager(t)

	doc, err := m.UploadFile(UploadFileRequest{
		FileName: "notes.txt",
		FileData: []byte("one two three four five six seven"),
	})
	if err != nil {
		t.Fatalf("UploadFile: %v", err)
	}
	if doc.Status != StatusSuccess {
		t.Errorf("status = %q, want %q (error: %s)", doc.Status, StatusSuccess, doc.Error)
	}
	if doc.FromCache {
		t.Error("fresh upload should not be from cache")
	}
	if doc.ChunkCount != 2 {
		t.Errorf("chunk count = %d, want 2 (7 words at size 5)", doc.ChunkCount)
	}
	if ix.Size() != 2 {
		t.Errorf("index size = %d, want 2", ix.Size())
	}
	if emb.calls != 1 {
		t.Errorf("embedding calls = %d, want 1", emb.calls)
	}
}

func TestUploadFile_SameContentHitsCache(t *testing.T) {
	m, emb, ix := newTestManager(t)
	data := []byte("alpha beta gamma delta epsilon zeta")

	first, err := m.UploadFile(UploadFileRequest{FileName: "a.txt", FileData: data})
	if err != nil {
		t.Fatalf("first UploadFile: %v", err)
	}
	// Same bytes under a different name resolve to the same document
	second, err := m.UploadFile(UploadFileRequest{FileName: "b.txt", FileData: data})
	if err != nil {
		t.Fatalf("second UploadFile: %v", err)
	}

	if second.ID != first.ID {
		t.Errorf("content ids differ: %s vs %s", first.ID, second.ID)
	}
	if !second.FromCache {
		t.Error("second upload should come from cache")
	}
	if second.Status != StatusCached {
		t.Errorf("status = %q, want %q", second.Status, StatusCached)
	}
	if emb.calls != 1 {
		t.Errorf("embedding calls = %d, want 1", emb.calls)
	}
	if ix.Size() != 2 {
		t.Errorf("index size = %d after cached upload, want 2", ix.Size())
	}
}

func TestUploadFile_UnsupportedExtension(t *testing.T) {
	m, _, _ := newTestManager(t)
	_, err := m.UploadFile(UploadFileRequest{FileName: "image.jpg", FileData: []byte("x")})
	if err == nil {
		t.Fatal("expected error for unsupported extension")
	}
	if !errors.Is(err, parser.ErrUnsupported) {
		t.Errorf("expected ErrUnsupported, got %v", err)
	}
}

func TestUploadFile_EmptyFile(t *testing.T) {
	m, _, _ := newTestManager(t)
	if _, err := m.UploadFile(UploadFileRequest{FileName: "empty.txt", FileData: nil}); err == nil {
		t.Fatal("expected error for empty file")
	}
}

func TestUploadFile_ExtractionFailureRecorded(t *testing.T) {
	m, _, ix := newTestManager(t)

	doc, err := m.UploadFile(UploadFileRequest{FileName: "broken.pdf", FileData: []byte("not a pdf")})
	if err != nil {
		t.Fatalf("UploadFile should not return an error for extraction failure: %v", err)
	}
	if doc.Status != StatusFailed {
		t.Errorf("status = %q, want %q", doc.Status, StatusFailed)
	}
	if doc.Error == "" {
		t.Error("failed document should carry the extraction error")
	}
	if ix.Size() != 0 {
		t.Errorf("index mutated by failed upload, size = %d", ix.Size())
	}

	docs, err := m.ListDocuments()
	if err != nil {
		t.Fatalf("ListDocuments: %v", err)
	}
	if len(docs) != 1 || docs[0].Status != StatusFailed {
		t.Errorf("failed document not listed: %+v", docs)
	}
}

func TestListDocuments(t *testing.T) {
	m, _, _ := newTestManager(t)

	if _, err := m.UploadFile(UploadFileRequest{FileName: "a.txt", FileData: []byte("first document words here")}); err != nil {
		t.Fatalf("UploadFile a: %v", err)
	}
	if _, err := m.UploadFile(UploadFileRequest{FileName: "b.txt", FileData: []byte("second document words here")}); err != nil {
		t.Fatalf("UploadFile b: %v", err)
	}

	docs, err := m.ListDocuments()
	if err != nil {
		t.Fatalf("ListDocuments: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("listed %d documents, want 2", len(docs))
	}
	for _, d := range docs {
		if d.Status != StatusSuccess {
			t.Errorf("document %s status = %q", d.Name, d.Status)
		}
		if d.ChunkCount == 0 {
			t.Errorf("document %s has no chunks recorded", d.Name)
		}
	}
}
