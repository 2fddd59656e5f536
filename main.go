package main

import (
	"net/http"
	"os"

	"coedit/config/database"
	"coedit/internal/document/repository"
	"coedit/internal/document/service"
	"coedit/pkg/logger"
	"coedit/router"
	"coedit/socket"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		// Not fatal: fall back to the OS environment.
		os.Stderr.WriteString("No .env file found, using environment variables from OS\n")
	}

	logger.Init()
	defer logger.Log.Sync()

	db := database.Connect()
	defer db.Close()

	// The registry is the only shared mutable state of the session layer.
	// It is built here and injected; nothing else owns room lifetimes.
	registry := socket.NewRegistry()
	repo := repository.NewDocumentRepository(db)
	arbiter := service.NewAccessArbiter(repo)
	hub := socket.NewHub(registry, repo, arbiter)

	addr := os.Getenv("ADDR")
	if addr == "" {
		addr = ":8080"
	}

	logger.Sugar.Infof("coedit backend listening on %s", addr)
	if err := http.ListenAndServe(addr, router.Setup(db, hub)); err != nil {
		logger.Sugar.Fatalf("Server stopped: %v", err)
	}
}
