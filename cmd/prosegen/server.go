package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/calyptra/prosegen/pkg/markov"
)

const (
	actionShutdown = "shutdown"
	actionRestart  = "restart"
)

// Server wires the engine and control APIs onto a single mux.
type Server struct {
	config    *Config
	logger    *slog.Logger
	engine    *markov.Engine
	engineAPI *EngineAPI
	serverAPI *ServerAPI
	mux       *http.ServeMux
}

// NewServer creates the server object and registers all routes on its mux.
func NewServer(config *Config, logger *slog.Logger, engine *markov.Engine, actionChan chan string) *Server {
	engineAPI := NewEngineAPI(engine, config.Engine, logger)
	serverAPI := NewServerAPI(config, actionChan, logger)

	server := &Server{
		config:    config,
		logger:    logger,
		engine:    engine,
		engineAPI: engineAPI,
		serverAPI: serverAPI,
		mux:       http.NewServeMux(),
	}

	server.engineAPI.RegisterRoutes(server.mux)
	server.serverAPI.RegisterRoutes(server.mux)

	return server
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		err := json.NewEncoder(w).Encode(payload)
		if err != nil {
			fmt.Printf("ERROR: Failed to encode JSON response: %v\n", err)
		}
	}
}
