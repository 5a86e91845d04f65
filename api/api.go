// Package api exposes the pipeline status over HTTP: liveness, the poll
// cursor, the current window tally, the queue depth and the recent journal
// entries. It is read-only, votes only enter the system through the chain.
package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/chainplays/chainplays/log"
	"github.com/chainplays/chainplays/storage"
	"github.com/chainplays/chainplays/vote"
)

// APIConfig type represents the configuration for the API HTTP server.
type APIConfig struct {
	Host       string
	Port       int
	Storage    *storage.Storage
	Queue      *vote.ActionQueue
	Aggregator *vote.Aggregator
	// Cursor reports the poller's next block. Optional.
	Cursor func() uint64
}

// API type represents the status API HTTP server.
type API struct {
	router     *chi.Mux
	storage    *storage.Storage
	queue      *vote.ActionQueue
	aggregator *vote.Aggregator
	cursor     func() uint64
}

// New creates a new API instance with the given configuration and starts
// the HTTP server.
func New(conf *APIConfig) (*API, error) {
	if conf == nil {
		return nil, fmt.Errorf("missing API configuration")
	}
	if conf.Storage == nil {
		return nil, fmt.Errorf("missing storage instance")
	}
	if conf.Queue == nil {
		return nil, fmt.Errorf("missing action queue")
	}
	if conf.Aggregator == nil {
		return nil, fmt.Errorf("missing aggregator")
	}
	a := &API{
		storage:    conf.Storage,
		queue:      conf.Queue,
		aggregator: conf.Aggregator,
		cursor:     conf.Cursor,
	}

	// Initialize router
	a.initRouter()
	go func() {
		log.Infow("starting API server", "host", conf.Host, "port", conf.Port)
		if err := http.ListenAndServe(fmt.Sprintf("%s:%d", conf.Host, conf.Port), a.router); err != nil {
			log.Fatalf("failed to start the API server: %v", err)
		}
	}()
	return a, nil
}

// Router returns the chi router for testing purposes
func (a *API) Router() *chi.Mux {
	return a.router
}

// registerHandlers registers all the API handlers.
func (a *API) registerHandlers() {
	log.Infow("register handler", "endpoint", PingEndpoint, "method", "GET")
	a.router.Get(PingEndpoint, func(w http.ResponseWriter, r *http.Request) {
		httpWriteOK(w)
	})
	log.Infow("register handler", "endpoint", StatusEndpoint, "method", "GET")
	a.router.Get(StatusEndpoint, a.status)
	log.Infow("register handler", "endpoint", VotesEndpoint, "method", "GET")
	a.router.Get(VotesEndpoint, a.votes)
	log.Infow("register handler", "endpoint", ActionsEndpoint, "method", "GET")
	a.router.Get(ActionsEndpoint, a.actions)
}

// initRouter creates the router with all the routes and middleware.
func (a *API) initRouter() {
	// Create the router with a basic middleware stack
	a.router = chi.NewRouter()
	a.router.Use(cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}).Handler)
	a.router.Use(middleware.Logger)
	a.router.Use(middleware.Recoverer)
	a.router.Use(middleware.Throttle(100))
	a.router.Use(middleware.Timeout(45 * time.Second))

	// Register the API handlers
	a.registerHandlers()
}
