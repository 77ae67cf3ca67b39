package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"chat-assist/internal/analytics"
	"chat-assist/internal/contact"
	"chat-assist/internal/knowledge"
	"chat-assist/internal/llm"
	"chat-assist/internal/session"
)

// Server exposes the chat backend over HTTP. It owns no state itself; every
// handler delegates to the registry, directory, knowledge base and counters.
type Server struct {
	registry       *session.Registry
	contacts       *contact.Directory
	knowledge      *knowledge.Base
	counters       *analytics.Counters
	gateway        llm.Client
	gatewayTimeout time.Duration

	port    int
	httpSrv *http.Server
}

func New(
	port int,
	registry *session.Registry,
	contacts *contact.Directory,
	kb *knowledge.Base,
	counters *analytics.Counters,
	gateway llm.Client,
	gatewayTimeout time.Duration,
) *Server {
	return &Server{
		registry:       registry,
		contacts:       contacts,
		knowledge:      kb,
		counters:       counters,
		gateway:        gateway,
		gatewayTimeout: gatewayTimeout,
		port:           port,
	}
}

// Handler returns the full middleware-wrapped handler. Split out from Start
// so tests can drive it through httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/chatHistory/", s.handleChatHistory)
	mux.HandleFunc("/chatIds", s.handleChatIDs)
	mux.HandleFunc("/sendMessage", s.handleSendMessage)
	mux.HandleFunc("/sendMessagebot", s.taggedAppendHandler(session.RoleAssistant))
	mux.HandleFunc("/sendMessageuser", s.taggedAppendHandler(session.RoleUser))
	mux.HandleFunc("/sendMessagebotend", s.markerHandler(session.AutoModeMarker))
	mux.HandleFunc("/sendMessagebotstart", s.markerHandler(session.ManualModeMarker))
	mux.HandleFunc("/sendMessagetobot", s.handleSendToBot)
	mux.HandleFunc("/submitUserData", s.handleSubmitUserData)
	mux.HandleFunc("/storeTextareaContent", s.handleStoreTextareaContent)
	mux.HandleFunc("/welcomeMessage", s.handleWelcomeMessage)
	mux.HandleFunc("/allChatHistory", s.handleAllChatHistory)
	mux.HandleFunc("/userData/", s.handleUserData)
	mux.HandleFunc("/viewUserData", s.handleViewUserData)
	mux.HandleFunc("/analytics", s.handleAnalytics)
	mux.HandleFunc("/", s.handleRoot)

	return chainMiddlewares(mux, withCORS, withLogging)
}

func (s *Server) Start() error {
	// The write timeout must outlive a full completion-gateway round trip.
	writeTimeout := s.gatewayTimeout + 15*time.Second

	s.httpSrv = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: writeTimeout,
		IdleTimeout:  60 * time.Second,
	}

	log.Printf("starting chat backend on :%d", s.port)
	return s.httpSrv.ListenAndServe()
}

func (s *Server) Stop() error {
	if s.httpSrv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return s.httpSrv.Shutdown(ctx)
}
