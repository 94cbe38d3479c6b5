// Package handler implements the HTTP API: document upload and listing,
// question answering, and admin config management.
package handler

import (
	"database/sql"

	"docqa/internal/answer"
	"docqa/internal/config"
	"docqa/internal/document"
)

// App bundles the collaborators the handlers need.
type App struct {
	manager   *document.Manager
	engine    *answer.Engine
	configMgr *config.ConfigManager
	db        *sql.DB
}

// NewApp creates an App.
func NewApp(m *document.Manager, e *answer.Engine, cm *config.ConfigManager, db *sql.DB) *App {
	return &App{
		manager:   m,
		engine:    e,
		configMgr: cm,
		db:        db,
	}
}
