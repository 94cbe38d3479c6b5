package handler

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log"
	"net/http"
	"strings"

	"docqa/internal/llm"
)

// HandleQuery handles POST /api/query with {"question": ...}. Completion
// backend failures surface as 502 with a user-visible message; the query row
// records the outcome either way.
func HandleQuery(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		var req struct {
			Question string `json:"question"`
		}
		if err := ReadJSONBody(r, &req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		question := strings.TrimSpace(req.Question)
		if question == "" {
			WriteError(w, http.StatusBadRequest, "question must not be empty")
			return
		}

		resp, err := app.engine.Ask(question)
		if err != nil {
			app.recordQuery(question, "", "failed")
			switch {
			case errors.Is(err, llm.ErrTimeout):
				WriteError(w, http.StatusGatewayTimeout, "the language model did not respond in time, please retry")
			case errors.Is(err, llm.ErrCompletion):
				WriteError(w, http.StatusBadGateway, "the language model is unavailable, please retry later")
			default:
				log.Printf("[Query] error answering %q: %v", question, err)
				WriteError(w, http.StatusInternalServerError, "failed to answer question")
			}
			return
		}

		app.recordQuery(question, resp.Answer, "answered")
		WriteJSON(w, http.StatusOK, resp)
	}
}

func (app *App) recordQuery(question, answer, status string) {
	id := make([]byte, 16)
	if _, err := rand.Read(id); err != nil {
		return
	}
	if _, err := app.db.Exec(`INSERT INTO queries (id, question, answer, status) VALUES (?, ?, ?, ?)`,
		hex.EncodeToString(id), question, answer, status); err != nil {
		log.Printf("[Query] failed to record query: %v", err)
	}
}
