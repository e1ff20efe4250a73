package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/npezzotti/go-chatrelay/internal/config"
	"github.com/npezzotti/go-chatrelay/internal/database"
	"github.com/npezzotti/go-chatrelay/internal/server"
)

type GoChatApp struct {
	log            *log.Logger
	db             database.ChatRepository
	mux            *http.Server
	cs             *server.ChatServer
	allowedOrigins []string
	storeTimeout   time.Duration
	startedAt      time.Time
}

// NewGoChatApp registers the REST and websocket routes on mux. The stats
// handler is expected to be registered on the same mux.
func NewGoChatApp(mux *http.ServeMux, logger *log.Logger, cs *server.ChatServer, db database.ChatRepository, cfg *config.Config) *GoChatApp {
	s := &GoChatApp{
		log:            logger,
		db:             db,
		cs:             cs,
		allowedOrigins: cfg.AllowedOrigins,
		storeTimeout:   cfg.StoreTimeout,
		startedAt:      time.Now(),
	}
	if s.storeTimeout <= 0 {
		s.storeTimeout = config.DefaultStoreTimeout
	}

	mux.HandleFunc("GET /api/health", s.healthCheck)
	mux.HandleFunc("POST /api/users/register", s.registerUser)
	mux.HandleFunc("GET /api/users", noStore(s.listUsers))
	mux.HandleFunc("GET /api/users/{id}", noStore(s.getUser))
	mux.HandleFunc("PUT /api/users/{id}/status", s.updateUserStatus)
	mux.HandleFunc("GET /api/messages/unread/{userId}", noStore(s.unreadCount))
	mux.HandleFunc("GET /api/messages/search/{roomId}", noStore(s.searchMessages))
	mux.HandleFunc("POST /api/messages/mark-read", s.markRead)
	mux.HandleFunc("GET /api/messages/{roomId}", noStore(s.getMessages))
	mux.HandleFunc("DELETE /api/messages/{messageId}", s.deleteMessage)
	mux.HandleFunc("GET /ws", s.serveWs)

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept"}),
	)(mux)

	h = handlers.CombinedLoggingHandler(logger.Writer(), h)
	h = s.errorHandler(h)

	s.mux = &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	return s
}

func (s *GoChatApp) Start() error {
	s.log.Printf("starting server on %s\n", s.mux.Addr)
	return s.mux.ListenAndServe()
}

func (s *GoChatApp) Shutdown(ctx context.Context) error {
	s.log.Println("shutting down HTTP server...")
	if err := s.mux.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}

func (s *GoChatApp) storeContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), s.storeTimeout)
}
