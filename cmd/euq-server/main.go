package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"

	"github.com/sahithikokkula/emission-uncertainty/euq/pkg/api"
	"github.com/sahithikokkula/emission-uncertainty/euq/pkg/config"
	"github.com/sahithikokkula/emission-uncertainty/euq/pkg/publish"
	"github.com/sahithikokkula/emission-uncertainty/euq/pkg/storage"
)

func main() {
	ctx := context.Background()

	cfgPath := os.Getenv("EUQ_CONFIG")
	if cfgPath == "" {
		cfgPath = "euq.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	log.Printf("Using config %s (variant %s, %d simulations)", cfgPath, cfg.Variant, cfg.Simulations)

	// Run store (SQLite). Uses local file euq.sqlite.
	dbPath := os.Getenv("EUQ_DB_PATH")
	if dbPath == "" {
		dbPath = "euq.sqlite"
	}
	log.Printf("Using database path: %s", dbPath)
	db, err := storage.Open(ctx, dbPath)
	if err != nil {
		log.Fatalf("failed to open run store: %v", err)
	}
	defer db.Close()

	store, err := publish.Open(ctx, cfg.Publish)
	if err != nil {
		log.Fatalf("failed to open blob store: %v", err)
	}
	if store != nil {
		log.Printf("Publishing runs to %s store", store.Driver())
	}

	r := mux.NewRouter()
	api.RegisterRoutes(r, db, api.Options{
		Config:  cfg,
		Store:   store,
		Metrics: api.NewMetrics(),
		Logger:  slog.New(slog.NewJSONHandler(os.Stderr, nil)),
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 150 * time.Second, // runs may take up to 120s
		IdleTimeout:  120 * time.Second,
	}

	log.Printf("EUQ server listening on http://localhost:%s", port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
	fmt.Println("server stopped")
}
