package main

import (
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"chat-assist/internal/analytics"
	"chat-assist/internal/config"
	"chat-assist/internal/contact"
	"chat-assist/internal/knowledge"
	"chat-assist/internal/llm"
	"chat-assist/internal/scheduler"
	"chat-assist/internal/server"
	"chat-assist/internal/session"
	"chat-assist/internal/store"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: .env file not found: %v", err)
	}

	cfg := config.New()

	contactStore, err := store.NewFileStore[contact.Record](cfg.UserDataFilePath)
	if err != nil {
		log.Fatalf("failed to init user data store: %v", err)
	}
	contacts, err := contact.NewDirectory(contactStore)
	if err != nil {
		log.Fatalf("failed to load user data: %v", err)
	}

	idStore, err := store.NewFileStore[session.IDRecord](cfg.ChatIDsFilePath)
	if err != nil {
		log.Fatalf("failed to init chat id store: %v", err)
	}
	historyStore, err := store.NewFileStore[session.HistoryRecord](cfg.ChatHistoriesFilePath)
	if err != nil {
		log.Fatalf("failed to init chat history store: %v", err)
	}

	counters := analytics.New()
	registry, err := session.NewRegistry(idStore, historyStore, counters, func(chatID string) (session.UserData, bool) {
		rec, ok := contacts.Get(chatID)
		if !ok {
			return session.UserData{}, false
		}
		return session.UserData{Name: rec.Name, Number: rec.Number}, true
	})
	if err != nil {
		log.Fatalf("failed to load chat sessions: %v", err)
	}

	knowledgeStore, err := store.NewFileStore[knowledge.Fields](cfg.KnowledgeFilePath)
	if err != nil {
		log.Fatalf("failed to init knowledge store: %v", err)
	}
	kb, err := knowledge.NewBase(knowledgeStore)
	if err != nil {
		log.Fatalf("failed to load knowledge base: %v", err)
	}

	gateway, err := llm.NewClient(cfg)
	if err != nil {
		log.Fatalf("failed to create llm client: %v", err)
	}

	sched := scheduler.New(cfg.HistoryFlushInterval, registry.FlushHistories)
	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start flush scheduler: %v", err)
	}

	srv := server.New(cfg.Port, registry, contacts, kb, counters, gateway, cfg.GatewayTimeout)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		log.Printf("received %s, shutting down", sig)
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server failed: %v", err)
		}
	}

	if err := srv.Stop(); err != nil {
		log.Printf("server shutdown: %v", err)
	}
	sched.Stop()

	// Final snapshot so nothing acknowledged in memory is lost on exit.
	if err := registry.FlushHistories(); err != nil {
		log.Printf("final history flush failed: %v", err)
	}
}
