package handler

import (
	"log"
	"net/http"
)

// HandleConfig handles GET and PUT /api/config. GET redacts secrets; PUT
// applies dotted-key updates and persists. Both sit behind the admin guard.
func HandleConfig(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			cfg := app.configMgr.Get()
			WriteJSON(w, http.StatusOK, map[string]interface{}{
				"llm": map[string]interface{}{
					"endpoint":    cfg.LLM.Endpoint,
					"model_name":  cfg.LLM.ModelName,
					"temperature": cfg.LLM.Temperature,
					"max_tokens":  cfg.LLM.MaxTokens,
					"api_key_set": cfg.LLM.APIKey != "",
				},
				"embedding": map[string]interface{}{
					"endpoint":    cfg.Embedding.Endpoint,
					"model_name":  cfg.Embedding.ModelName,
					"api_key_set": cfg.Embedding.APIKey != "",
				},
				"vector": map[string]interface{}{
					"chunk_size": cfg.Vector.ChunkSize,
					"top_k":      cfg.Vector.TopK,
				},
				"server": map[string]interface{}{
					"rate_limit":    cfg.Server.RateLimit,
					"max_upload_mb": cfg.Server.MaxUploadMB,
				},
			})

		case http.MethodPut:
			var updates map[string]interface{}
			if err := ReadJSONBody(r, &updates); err != nil {
				WriteError(w, http.StatusBadRequest, "invalid request body")
				return
			}
			if len(updates) == 0 {
				WriteError(w, http.StatusBadRequest, "no updates provided")
				return
			}
			if err := app.configMgr.Update(updates); err != nil {
				WriteError(w, http.StatusBadRequest, err.Error())
				return
			}
			log.Printf("[Config] updated %d keys", len(updates))
			WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})

		default:
			WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	}
}
