package knowledge

import (
	"fmt"
	"log"
	"strings"
	"sync"

	"chat-assist/internal/store"
)

// Fields is the structured knowledge record behind the system prompt. Every
// replacement supplies the whole record; there are no partial updates.
type Fields struct {
	WelcomeMessage     string `json:"welcomeMessage"`
	Persona            string `json:"persona"`
	JobDescription     string `json:"jobDescription"`
	CompanyDescription string `json:"companyDescription"`
	ProductDescription string `json:"productDescription"`
	ContactDetails     string `json:"contactDetails"`
}

const defaultPrompt = "Assume that you are Darshana Perera who is the marketing manager of ABC company. And your company is a soap company which produces lix, sunlight. Provide simple short answers"

const defaultWelcome = "Hi! How can I help you today?"

// Base holds the single process-wide knowledge record and the prompt
// assembled from it. Replace swaps both atomically, so a concurrent reader
// never sees a half-updated template.
type Base struct {
	mu     sync.RWMutex
	fields Fields
	prompt string
	file   *store.FileStore[Fields]
}

// NewBase restores the last persisted record if one exists; until the first
// Replace it serves the built-in default prompt.
func NewBase(file *store.FileStore[Fields]) (*Base, error) {
	b := &Base{prompt: defaultPrompt, file: file}
	if file == nil {
		return b, nil
	}
	records, err := file.Load()
	if err != nil {
		return nil, fmt.Errorf("load knowledge base: %w", err)
	}
	if len(records) > 0 {
		b.fields = records[0]
		b.prompt = assemble(records[0])
	}
	return b, nil
}

// Replace swaps in a new record, returns the assembled prompt, and flushes
// the record to disk. A flush failure is logged; memory stays authoritative.
func (b *Base) Replace(f Fields) string {
	prompt := assemble(f)

	b.mu.Lock()
	b.fields = f
	b.prompt = prompt
	b.mu.Unlock()

	if b.file != nil {
		if err := b.file.ReplaceAll([]Fields{f}); err != nil {
			log.Printf("failed to flush knowledge base: %v", err)
		}
	}
	return prompt
}

func (b *Base) CurrentPrompt() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.prompt
}

func (b *Base) CurrentWelcomeMessage() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.fields.WelcomeMessage == "" {
		return defaultWelcome
	}
	return b.fields.WelcomeMessage
}

func (b *Base) CurrentFields() Fields {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.fields
}

// assemble flattens the record into one prompt string. Section order is
// fixed: persona, job, company, products, contact details, greeting. Empty
// fields are skipped; an entirely empty record falls back to the default.
func assemble(f Fields) string {
	var parts []string
	add := func(label, value string) {
		if strings.TrimSpace(value) != "" {
			parts = append(parts, label+": "+value)
		}
	}
	add("Persona", f.Persona)
	add("Job description", f.JobDescription)
	add("Company", f.CompanyDescription)
	add("Products and services", f.ProductDescription)
	add("Contact details", f.ContactDetails)
	if strings.TrimSpace(f.WelcomeMessage) != "" {
		parts = append(parts, "When a conversation starts, greet the visitor with: "+f.WelcomeMessage)
	}
	if len(parts) == 0 {
		return defaultPrompt
	}
	return strings.Join(parts, "\n")
}
