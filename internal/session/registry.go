package session

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"chat-assist/internal/analytics"
	"chat-assist/internal/store"
)

var ErrNotFound = errors.New("chat session not found")

// IDRecord is one entry of the chat id index file.
type IDRecord struct {
	ChatID    string `json:"chatId"`
	Timestamp string `json:"timestamp"`
}

// UserData is the contact slice embedded in a history record. Sessions with
// no submitted contact persist empty strings, matching the wire format.
type UserData struct {
	Name   string `json:"name"`
	Number string `json:"number"`
}

// HistoryRecord is one entry of the chat histories file: a full session
// snapshot together with its contact data.
type HistoryRecord struct {
	ChatID    string    `json:"chatId"`
	Timestamp string    `json:"timestamp"`
	Messages  []Message `json:"messages"`
	UserData  UserData  `json:"userData"`
}

// ContactFunc resolves the contact captured for a chat id, if any. The
// registry uses it to attach contact data to persisted history records.
type ContactFunc func(chatID string) (UserData, bool)

// Registry owns every chat session. All message appends funnel through
// Append, so ordering and message-counter bookkeeping cannot be skipped by a
// caller. Appends to different sessions proceed in parallel; appends to the
// same session are serialized by that session's own lock.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	order    []string

	// Guard snapshot+write as one unit per file. Without this, a flush
	// that snapshotted early could land its write after a newer flush and
	// drop an already acknowledged append from the durable file.
	historyFlushMu sync.Mutex
	idFlushMu      sync.Mutex

	ids       *store.FileStore[IDRecord]
	histories *store.FileStore[HistoryRecord]
	counters  *analytics.Counters
	contacts  ContactFunc
	now       func() time.Time
}

// NewRegistry loads previously persisted sessions before serving. A load
// failure is returned to the caller: without the backing files there is no
// durability guarantee, so startup should abort.
func NewRegistry(
	ids *store.FileStore[IDRecord],
	histories *store.FileStore[HistoryRecord],
	counters *analytics.Counters,
	contacts ContactFunc,
) (*Registry, error) {
	r := &Registry{
		sessions:  make(map[string]*Session),
		ids:       ids,
		histories: histories,
		counters:  counters,
		contacts:  contacts,
		now:       time.Now,
	}

	records, err := histories.Load()
	if err != nil {
		return nil, fmt.Errorf("load chat histories: %w", err)
	}
	totalMessages := 0
	manualActivations := 0
	for _, rec := range records {
		if _, ok := r.sessions[rec.ChatID]; ok {
			continue
		}
		msgs := make([]Message, len(rec.Messages))
		copy(msgs, rec.Messages)
		r.sessions[rec.ChatID] = &Session{
			id:        rec.ChatID,
			createdAt: parseTimestamp(rec.Timestamp, r.now),
			messages:  msgs,
		}
		r.order = append(r.order, rec.ChatID)
		totalMessages += len(msgs)
		for _, m := range msgs {
			if m.Role == RoleAssistant && m.Content == ManualModeMarker {
				manualActivations++
			}
		}
	}

	// Ids that were registered but never snapshotted into the history file
	// still come back as empty sessions.
	idRecords, err := ids.Load()
	if err != nil {
		return nil, fmt.Errorf("load chat ids: %w", err)
	}
	for _, rec := range idRecords {
		if _, ok := r.sessions[rec.ChatID]; ok {
			continue
		}
		r.sessions[rec.ChatID] = &Session{
			id:        rec.ChatID,
			createdAt: parseTimestamp(rec.Timestamp, r.now),
		}
		r.order = append(r.order, rec.ChatID)
	}

	counters.Seed(totalMessages, manualActivations)
	return r, nil
}

// GetOrCreate returns the session for chatID, registering a new one when the
// id is unknown. An empty chatID gets a freshly generated unique id. Creating
// a session flushes the id index before returning.
func (r *Registry) GetOrCreate(chatID string) *Session {
	r.mu.Lock()
	if chatID != "" {
		if s, ok := r.sessions[chatID]; ok {
			r.mu.Unlock()
			return s
		}
	} else {
		chatID = r.newIDLocked()
	}
	s := &Session{id: chatID, createdAt: r.now()}
	r.sessions[chatID] = s
	r.order = append(r.order, chatID)
	r.mu.Unlock()

	if err := r.flushIDs(); err != nil {
		log.Printf("failed to flush chat id index: %v", err)
	}
	return s
}

// Append records one message on the session, creating it first if needed, and
// flushes the history file. It returns the session and the message sequence
// as of this append.
func (r *Registry) Append(chatID, role, content string) (*Session, []Message) {
	s := r.GetOrCreate(chatID)
	msgs := s.append(Message{Role: role, Content: content})
	r.counters.AddMessage()
	if err := r.FlushHistories(); err != nil {
		log.Printf("failed to flush chat histories: %v", err)
	}
	return s, msgs
}

// AppendMarker records a mode-change marker message. The manual-mode marker
// bumps its counter here, in lockstep with the append, so no caller can
// record the marker without the bookkeeping — and so the increment mirrors
// how the counter is re-seeded from persisted markers at startup.
func (r *Registry) AppendMarker(chatID, marker string) (*Session, []Message) {
	s, msgs := r.Append(chatID, RoleAssistant, marker)
	if marker == ManualModeMarker {
		r.counters.AddManualActivation()
	}
	return s, msgs
}

func (r *Registry) Get(chatID string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[chatID]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// ListIDs returns all known chat ids in creation order.
func (r *Registry) ListIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// SnapshotAll exports every session, with contact data attached, in creation
// order. This is both the wire shape of /allChatHistory and the persisted
// shape of the history file.
func (r *Registry) SnapshotAll() []HistoryRecord {
	r.mu.RLock()
	ids := make([]string, len(r.order))
	copy(ids, r.order)
	sessions := make([]*Session, 0, len(ids))
	for _, id := range ids {
		sessions = append(sessions, r.sessions[id])
	}
	r.mu.RUnlock()

	records := make([]HistoryRecord, 0, len(sessions))
	for _, s := range sessions {
		rec := HistoryRecord{
			ChatID:    s.ID(),
			Timestamp: s.CreatedAt().Format(time.RFC3339),
			Messages:  s.Messages(),
		}
		if r.contacts != nil {
			if ud, ok := r.contacts(s.ID()); ok {
				rec.UserData = ud
			}
		}
		records = append(records, rec)
	}
	return records
}

// FlushHistories writes the full session snapshot to the history file. The
// flush lock is held across snapshot and write, so a later-started flush
// always persists a later-or-equal snapshot: once an Append's flush returns,
// no concurrent flush can overwrite the file with a state from before it.
func (r *Registry) FlushHistories() error {
	r.historyFlushMu.Lock()
	defer r.historyFlushMu.Unlock()
	return r.histories.ReplaceAll(r.SnapshotAll())
}

func (r *Registry) flushIDs() error {
	r.idFlushMu.Lock()
	defer r.idFlushMu.Unlock()
	r.mu.RLock()
	records := make([]IDRecord, 0, len(r.order))
	for _, id := range r.order {
		records = append(records, IDRecord{
			ChatID:    id,
			Timestamp: r.sessions[id].CreatedAt().Format(time.RFC3339),
		})
	}
	r.mu.RUnlock()
	return r.ids.ReplaceAll(records)
}

// newIDLocked generates a fresh unique id. uuid collisions are negligible,
// but the registry still re-checks against the live map before accepting one.
func (r *Registry) newIDLocked() string {
	for {
		id := uuid.NewString()
		if _, ok := r.sessions[id]; !ok {
			return id
		}
	}
}

func parseTimestamp(ts string, now func() time.Time) time.Time {
	if ts == "" {
		return now()
	}
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return now()
	}
	return t
}
