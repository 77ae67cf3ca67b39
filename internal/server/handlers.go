package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"chat-assist/internal/contact"
	"chat-assist/internal/knowledge"
	"chat-assist/internal/llm"
	"chat-assist/internal/session"
)

type sendMessageRequest struct {
	ChatID  string `json:"chatId"`
	Message string `json:"message"`
}

type chatRequest struct {
	ChatID string `json:"chatId"`
}

type submitUserDataRequest struct {
	ChatID string `json:"chatId"`
	Name   string `json:"name"`
	Number string `json:"number"`
}

type chatHistoryResponse struct {
	ChatID      string            `json:"chatId"`
	ChatHistory []session.Message `json:"chatHistory"`
}

type completionResponse struct {
	ChatID            string            `json:"chatId"`
	ChatHistory       []session.Message `json:"chatHistory"`
	AssistantResponse string            `json:"assistantResponse"`
}

type analyticsResponse struct {
	NumberOfContacts                   int `json:"numberOfContacts"`
	NumberOfMessagesSent               int `json:"numberOfMessagesSent"`
	NumberOfChatIDs                    int `json:"numberOfChatIds"`
	NumberOfManualMessagesEnabledChats int `json:"numberOfManualMessagesEnabledChats"`
}

// GET /chatHistory/{chatId}
func (s *Server) handleChatHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	chatID := strings.TrimPrefix(r.URL.Path, "/chatHistory/")
	if chatID == "" {
		badRequest(w, "chatId is required")
		return
	}

	sess, err := s.registry.Get(chatID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			notFound(w, fmt.Sprintf("Chat history for chatId %s not found", chatID))
			return
		}
		internalError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string][]session.Message{"chatHistory": sess.Messages()})
}

// GET /chatIds
func (s *Server) handleChatIDs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"chatIds": s.registry.ListIDs()})
}

// POST /sendMessage — append the user message, ask the completion gateway for
// a reply, append that too. The gateway call runs with no lock held; if it
// fails, the user message stays persisted and the client sees a 500.
func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		badRequest(w, "message is required")
		return
	}

	sess, msgs := s.registry.Append(req.ChatID, session.RoleUser, req.Message)

	ctx := r.Context()
	if s.gatewayTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.gatewayTimeout)
		defer cancel()
	}

	resp, err := s.gateway.Complete(ctx, s.knowledge.CurrentPrompt(), toGatewayMessages(msgs))
	if err != nil {
		internalError(w, fmt.Errorf("completion failed: %w", err))
		return
	}

	_, updated := s.registry.Append(sess.ID(), session.RoleAssistant, resp.Content)

	writeJSON(w, http.StatusOK, completionResponse{
		ChatID:            sess.ID(),
		ChatHistory:       updated,
		AssistantResponse: resp.Content,
	})
}

// POST /sendMessagebot, /sendMessageuser — append a message with the given
// role without consulting the gateway (operator-driven messages).
func (s *Server) taggedAppendHandler(role string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		var req sendMessageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			badRequest(w, "invalid JSON body")
			return
		}
		if strings.TrimSpace(req.Message) == "" {
			badRequest(w, "message is required")
			return
		}

		sess, msgs := s.registry.Append(req.ChatID, role, req.Message)
		writeJSON(w, http.StatusOK, chatHistoryResponse{ChatID: sess.ID(), ChatHistory: msgs})
	}
}

// POST /sendMessagebotend, /sendMessagebotstart — append a fixed mode-change
// marker. The registry owns the manual-mode counter bookkeeping.
func (s *Server) markerHandler(marker string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			badRequest(w, "invalid JSON body")
			return
		}

		sess, msgs := s.registry.AppendMarker(req.ChatID, marker)
		writeJSON(w, http.StatusOK, chatHistoryResponse{ChatID: sess.ID(), ChatHistory: msgs})
	}
}

// POST /sendMessagetobot — resolve or create the session without appending.
// The widget uses this to bootstrap a conversation.
func (s *Server) handleSendToBot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	sess := s.registry.GetOrCreate(req.ChatID)
	writeJSON(w, http.StatusOK, chatHistoryResponse{ChatID: sess.ID(), ChatHistory: sess.Messages()})
}

// POST /submitUserData
func (s *Server) handleSubmitUserData(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req submitUserDataRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	if req.ChatID == "" || strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Number) == "" {
		badRequest(w, "chatId, name and number are required")
		return
	}

	if _, err := s.contacts.Submit(req.ChatID, req.Name, req.Number); err != nil {
		if errors.Is(err, contact.ErrAlreadyExists) {
			badRequest(w, "User data already exists for this chatId")
			return
		}
		internalError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "User data saved successfully"})
}

// POST /storeTextareaContent — full replacement of the knowledge base.
func (s *Server) handleStoreTextareaContent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var fields knowledge.Fields
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	s.knowledge.Replace(fields)
	writeJSON(w, http.StatusOK, messageResponse{Message: "Text area content stored successfully"})
}

// GET /welcomeMessage
func (s *Server) handleWelcomeMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"welcomeMessage": s.knowledge.CurrentWelcomeMessage()})
}

// GET /allChatHistory — full snapshot of every session, forcing a flush.
func (s *Server) handleAllChatHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	records := s.registry.SnapshotAll()
	if err := s.registry.FlushHistories(); err != nil {
		// In-memory state stays authoritative; the next flush retries.
		log.Printf("failed to save chat histories: %v", err)
	}
	writeJSON(w, http.StatusOK, map[string][]session.HistoryRecord{"chatHistories": records})
}

// GET /userData/{chatId}
func (s *Server) handleUserData(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	chatID := strings.TrimPrefix(r.URL.Path, "/userData/")
	if chatID == "" {
		badRequest(w, "chatId is required")
		return
	}

	rec, ok := s.contacts.Get(chatID)
	if !ok {
		notFound(w, fmt.Sprintf("User data for chatId %s not found", chatID))
		return
	}
	writeJSON(w, http.StatusOK, map[string]session.UserData{
		"userData": {Name: rec.Name, Number: rec.Number},
	})
}

// GET /viewUserData
func (s *Server) handleViewUserData(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]contact.Record{"userData": s.contacts.ListAll()})
}

// GET /analytics
func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	snap := s.counters.Snapshot(s.registry.Count(), s.contacts.Count())
	writeJSON(w, http.StatusOK, map[string]analyticsResponse{"analytics": {
		NumberOfContacts:                   snap.ContactCount,
		NumberOfMessagesSent:               snap.TotalMessages,
		NumberOfChatIDs:                    snap.SessionCount,
		NumberOfManualMessagesEnabledChats: snap.ManualModeActivations,
	}})
}

// GET /
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		notFound(w, "not found")
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, "Hello, World!")
}

func toGatewayMessages(msgs []session.Message) []llm.Message {
	out := make([]llm.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, llm.Message{Role: m.Role, Content: m.Content})
	}
	return out
}
