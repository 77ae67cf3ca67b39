package contact

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"chat-assist/internal/store"
)

var ErrAlreadyExists = errors.New("user data already exists for this chatId")

const timestampLayout = "2006-01-02 15:04:05"

// Record is one captured visitor contact, tied to a chat session. Records are
// append-only and kept in submission order.
type Record struct {
	ChatID      string `json:"chatId"`
	Name        string `json:"name"`
	Number      string `json:"number"`
	SubmittedAt string `json:"timestamp"`
}

// Directory owns contact records. The first submission for a chat id wins;
// later ones are rejected with ErrAlreadyExists. The existence check and the
// write happen under one lock, so two racing submissions for the same id
// cannot both succeed.
type Directory struct {
	mu      sync.Mutex
	byChat  map[string]Record
	ordered []Record
	file    *store.FileStore[Record]
	now     func() time.Time
}

func NewDirectory(file *store.FileStore[Record]) (*Directory, error) {
	d := &Directory{
		byChat: make(map[string]Record),
		file:   file,
		now:    time.Now,
	}
	records, err := file.Load()
	if err != nil {
		return nil, fmt.Errorf("load user data: %w", err)
	}
	for _, rec := range records {
		if _, ok := d.byChat[rec.ChatID]; ok {
			continue
		}
		d.byChat[rec.ChatID] = rec
		d.ordered = append(d.ordered, rec)
	}
	return d, nil
}

// Submit records the contact for chatID unless one exists already. The new
// record is flushed to the backing file before Submit returns; a flush
// failure is logged and the in-memory record stays authoritative.
func (d *Directory) Submit(chatID, name, number string) (Record, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.byChat[chatID]; ok {
		return Record{}, ErrAlreadyExists
	}
	rec := Record{
		ChatID:      chatID,
		Name:        name,
		Number:      number,
		SubmittedAt: d.now().Format(timestampLayout),
	}
	d.byChat[chatID] = rec
	d.ordered = append(d.ordered, rec)

	snapshot := make([]Record, len(d.ordered))
	copy(snapshot, d.ordered)
	if err := d.file.ReplaceAll(snapshot); err != nil {
		log.Printf("failed to flush user data: %v", err)
	}
	return rec, nil
}

func (d *Directory) Get(chatID string) (Record, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	rec, ok := d.byChat[chatID]
	return rec, ok
}

// ListAll returns all records in submission order.
func (d *Directory) ListAll() []Record {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Record, len(d.ordered))
	copy(out, d.ordered)
	return out
}

func (d *Directory) Count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.ordered)
}
