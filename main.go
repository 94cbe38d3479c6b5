package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"docqa/internal/answer"
	"docqa/internal/chunker"
	"docqa/internal/cli"
	"docqa/internal/config"
	"docqa/internal/db"
	"docqa/internal/document"
	"docqa/internal/embedding"
	"docqa/internal/embedstore"
	"docqa/internal/handler"
	"docqa/internal/ingest"
	"docqa/internal/llm"
	"docqa/internal/middleware"
	"docqa/internal/parser"
	"docqa/internal/vecindex"
)

func main() {
	if err := os.MkdirAll("./data", 0755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	// 1. Config
	cm, err := config.NewConfigManager("./data/config.json", "./data/config.key")
	if err != nil {
		log.Fatalf("Failed to create config manager: %v", err)
	}
	if err := cm.Load(); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	cfg := cm.Get()

	// 2. Database
	database, err := db.InitDB(cfg.Vector.DBPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.Close()

	// 3. Services
	store, err := embedstore.NewStore(cfg.Vector.CacheDir)
	if err != nil {
		log.Fatalf("Failed to open embedding store: %v", err)
	}
	ix := vecindex.NewFlatIndex(0)
	wc := &chunker.WordChunker{ChunkSize: cfg.Vector.ChunkSize}
	dp := &parser.DocumentParser{}
	es := embedding.NewAPIEmbeddingService(
		cfg.Embedding.Endpoint, cfg.Embedding.APIKey, cfg.Embedding.ModelName,
		time.Duration(cfg.Embedding.TimeoutSecs)*time.Second,
	)
	ls := llm.NewAPILLMService(
		cfg.LLM.Endpoint, cfg.LLM.APIKey, cfg.LLM.ModelName,
		cfg.LLM.Temperature, cfg.LLM.MaxTokens,
		time.Duration(cfg.LLM.TimeoutSecs)*time.Second,
	)

	pipe := ingest.NewPipeline(wc, es, ix, store)
	pipe.LoadCache()

	dm := document.NewManager(dp, pipe, database)
	engine := answer.NewEngine(es, ix, ls, cfg.Vector.TopK,
		func() string { return cm.Get().LLM.SystemPrompt })

	// Subcommands run against the same stack, no HTTP server
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "import":
			cli.RunBatchImport(os.Args[2:], dm)
			return
		case "ask":
			cli.RunAsk(os.Args[2:], engine)
			return
		}
	}

	// 4. HTTP surface
	app := handler.NewApp(dm, engine, cm, database)

	rl := middleware.NewRateLimiter(cfg.Server.RateLimit, time.Minute)
	defer rl.Stop()
	base := middleware.Chain(middleware.RequestID(), middleware.CORS(), rl.Limit())
	admin := middleware.Chain(
		middleware.RequestID(), middleware.CORS(), rl.Limit(),
		middleware.AdminGuard(func() string { return cm.Get().Admin.PasswordHash }),
	)

	http.HandleFunc("/api/query", base(handler.HandleQuery(app)))
	http.HandleFunc("/api/documents/upload", base(handler.HandleDocumentUpload(app)))
	http.HandleFunc("/api/documents/url", base(handler.HandleDocumentURL(app)))
	http.HandleFunc("/api/documents", base(handler.HandleDocuments(app)))
	http.HandleFunc("/api/config", admin(handler.HandleConfig(app)))

	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Server.Port)
	fmt.Printf("docqa starting on http://%s\n", addr)
	log.Fatal(http.ListenAndServe(addr, nil))
}
