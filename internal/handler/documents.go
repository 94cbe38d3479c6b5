package handler

import (
	"errors"
	"io"
	"log"
	"net/http"

	"docqa/internal/document"
	"docqa/internal/parser"
)

// HandleDocumentUpload handles POST /api/documents/upload with a multipart
// "file" field. Extraction and embedding failures come back as a document
// record with status "failed" rather than an HTTP error.
func HandleDocumentUpload(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		maxBytes := int64(app.configMgr.Get().Server.MaxUploadMB) << 20
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
		if err := r.ParseMultipartForm(maxBytes); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid multipart form")
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			WriteError(w, http.StatusBadRequest, "missing file field")
			return
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "failed to read file")
			return
		}

		doc, err := app.manager.UploadFile(document.UploadFileRequest{
			FileName: header.Filename,
			FileData: data,
		})
		if err != nil {
			if errors.Is(err, parser.ErrUnsupported) {
				WriteError(w, http.StatusBadRequest, err.Error())
				return
			}
			log.Printf("[Documents] upload error for %s: %v", header.Filename, err)
			WriteError(w, http.StatusInternalServerError, "upload failed")
			return
		}
		WriteJSON(w, http.StatusOK, doc)
	}
}

// HandleDocumentURL handles POST /api/documents/url with {"url": ...}.
func HandleDocumentURL(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		var req document.UploadURLRequest
		if err := ReadJSONBody(r, &req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		doc, err := app.manager.UploadURL(req)
		if err != nil {
			WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		WriteJSON(w, http.StatusOK, doc)
	}
}

// HandleDocuments handles GET /api/documents.
func HandleDocuments(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		docs, err := app.manager.ListDocuments()
		if err != nil {
			log.Printf("[Documents] list error: %v", err)
			WriteError(w, http.StatusInternalServerError, "failed to list documents")
			return
		}
		if docs == nil {
			docs = []document.Info{}
		}
		WriteJSON(w, http.StatusOK, map[string]interface{}{"documents": docs})
	}
}
