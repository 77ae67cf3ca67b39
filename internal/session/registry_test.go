package session

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"chat-assist/internal/analytics"
	"chat-assist/internal/store"
)

func newTestRegistry(t *testing.T, dir string, contacts ContactFunc) (*Registry, *analytics.Counters) {
	t.Helper()
	ids, err := store.NewFileStore[IDRecord](filepath.Join(dir, "chatIds.json"))
	if err != nil {
		t.Fatalf("id store: %v", err)
	}
	histories, err := store.NewFileStore[HistoryRecord](filepath.Join(dir, "allChatHistories.json"))
	if err != nil {
		t.Fatalf("history store: %v", err)
	}
	counters := analytics.New()
	r, err := NewRegistry(ids, histories, counters, contacts)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	return r, counters
}

func TestRegistry_AppendScenario(t *testing.T) {
	r, counters := newTestRegistry(t, t.TempDir(), nil)

	if s := r.GetOrCreate("abc"); s.ID() != "abc" {
		t.Fatalf("unexpected id: %s", s.ID())
	}
	r.Append("abc", RoleUser, "Hi")
	_, msgs := r.Append("abc", RoleAssistant, "Hello")

	if len(msgs) != 2 {
		t.Fatalf("want 2 messages, got %d", len(msgs))
	}
	if msgs[0] != (Message{Role: RoleUser, Content: "Hi"}) {
		t.Fatalf("unexpected msgs[0]: %+v", msgs[0])
	}
	if msgs[1] != (Message{Role: RoleAssistant, Content: "Hello"}) {
		t.Fatalf("unexpected msgs[1]: %+v", msgs[1])
	}
	if snap := counters.Snapshot(r.Count(), 0); snap.TotalMessages != 2 {
		t.Fatalf("totalMessages: want 2, got %d", snap.TotalMessages)
	}
}

func TestRegistry_GetOrCreateIdempotent(t *testing.T) {
	r, _ := newTestRegistry(t, t.TempDir(), nil)

	first := r.GetOrCreate("abc")
	second := r.GetOrCreate("abc")
	if first != second {
		t.Fatalf("same id must return the same session")
	}
	if ids := r.ListIDs(); len(ids) != 1 || ids[0] != "abc" {
		t.Fatalf("duplicate registration: %v", ids)
	}
}

func TestRegistry_GeneratesUniqueIDs(t *testing.T) {
	r, _ := newTestRegistry(t, t.TempDir(), nil)

	a := r.GetOrCreate("")
	b := r.GetOrCreate("")
	if a.ID() == "" || b.ID() == "" {
		t.Fatalf("generated ids must not be empty")
	}
	if a.ID() == b.ID() {
		t.Fatalf("generated ids collided: %s", a.ID())
	}
	if len(r.ListIDs()) != 2 {
		t.Fatalf("want 2 sessions, got %v", r.ListIDs())
	}
}

func TestRegistry_GetUnknown(t *testing.T) {
	r, _ := newTestRegistry(t, t.TempDir(), nil)
	if _, err := r.Get("nope"); err != ErrNotFound {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestRegistry_ConcurrentAppendsNoLoss(t *testing.T) {
	r, counters := newTestRegistry(t, t.TempDir(), nil)

	const goroutines = 8
	const perGoroutine = 25
	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				r.Append("abc", RoleUser, fmt.Sprintf("g%d-%d", g, i))
			}
		}(g)
	}
	wg.Wait()

	s, err := r.Get("abc")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	msgs := s.Messages()
	if len(msgs) != goroutines*perGoroutine {
		t.Fatalf("lost appends: want %d, got %d", goroutines*perGoroutine, len(msgs))
	}
	// Every writer's own messages must appear in its submission order.
	last := make(map[int]int)
	for _, m := range msgs {
		var g, i int
		if _, err := fmt.Sscanf(m.Content, "g%d-%d", &g, &i); err != nil {
			t.Fatalf("unexpected content %q: %v", m.Content, err)
		}
		if prev, ok := last[g]; ok && i != prev+1 {
			t.Fatalf("writer %d out of order: %d after %d", g, i, prev)
		}
		last[g] = i
	}
	if snap := counters.Snapshot(r.Count(), 0); snap.TotalMessages != goroutines*perGoroutine {
		t.Fatalf("counter diverged: %d", snap.TotalMessages)
	}
	if ids := r.ListIDs(); len(ids) != 1 {
		t.Fatalf("concurrent appends created duplicate sessions: %v", ids)
	}
}

func TestRegistry_ConcurrentAppendsAllDurable(t *testing.T) {
	// Every Append flushes synchronously, so once all calls have returned
	// the backing file must hold every acknowledged message — a flush that
	// snapshotted early must never overwrite a newer snapshot.
	const sessions = 8
	const iterations = 40
	for iter := 0; iter < iterations; iter++ {
		dir := t.TempDir()
		r, _ := newTestRegistry(t, dir, nil)

		var wg sync.WaitGroup
		for g := 0; g < sessions; g++ {
			wg.Add(1)
			go func(g int) {
				defer wg.Done()
				r.Append(fmt.Sprintf("chat-%d", g), RoleUser, "Hi")
			}(g)
		}
		wg.Wait()

		histories, err := store.NewFileStore[HistoryRecord](filepath.Join(dir, "allChatHistories.json"))
		if err != nil {
			t.Fatalf("reopen history store: %v", err)
		}
		records, err := histories.Load()
		if err != nil {
			t.Fatalf("load history file: %v", err)
		}
		persisted := 0
		for _, rec := range records {
			if len(rec.Messages) == 1 {
				persisted++
			}
		}
		if persisted != sessions {
			t.Fatalf("iteration %d: durable file missing acknowledged appends: %d/%d persisted", iter, persisted, sessions)
		}
	}
}

func TestRegistry_AppendMarkerOwnsManualCounter(t *testing.T) {
	r, counters := newTestRegistry(t, t.TempDir(), nil)

	_, msgs := r.AppendMarker("abc", ManualModeMarker)
	if len(msgs) != 1 || msgs[0] != (Message{Role: RoleAssistant, Content: ManualModeMarker}) {
		t.Fatalf("unexpected marker append: %+v", msgs)
	}
	r.AppendMarker("abc", AutoModeMarker)

	snap := counters.Snapshot(r.Count(), 0)
	if snap.ManualModeActivations != 1 {
		t.Fatalf("only the manual marker bumps the counter: got %d", snap.ManualModeActivations)
	}
	if snap.TotalMessages != 2 {
		t.Fatalf("marker appends must count as messages: got %d", snap.TotalMessages)
	}
}

func TestRegistry_ReloadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	contacts := func(chatID string) (UserData, bool) {
		if chatID == "abc" {
			return UserData{Name: "Jane", Number: "555-0100"}, true
		}
		return UserData{}, false
	}

	r, _ := newTestRegistry(t, dir, contacts)
	r.Append("abc", RoleUser, "Hi")
	r.Append("abc", RoleAssistant, "Hello")
	r.Append("abc", RoleAssistant, ManualModeMarker)
	r.GetOrCreate("empty-chat")

	before := r.SnapshotAll()
	if err := r.FlushHistories(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	r2, counters2 := newTestRegistry(t, dir, contacts)
	after := r2.SnapshotAll()

	if len(after) != len(before) {
		t.Fatalf("session set changed across reload: %d vs %d", len(after), len(before))
	}
	for i := range before {
		if after[i].ChatID != before[i].ChatID {
			t.Fatalf("order changed: %s vs %s", after[i].ChatID, before[i].ChatID)
		}
		if len(after[i].Messages) != len(before[i].Messages) {
			t.Fatalf("messages changed for %s", before[i].ChatID)
		}
		for j := range before[i].Messages {
			if after[i].Messages[j] != before[i].Messages[j] {
				t.Fatalf("message %d of %s changed", j, before[i].ChatID)
			}
		}
	}

	// Counters are re-seeded from the reloaded history.
	snap := counters2.Snapshot(r2.Count(), 0)
	if snap.TotalMessages != 3 {
		t.Fatalf("reseeded totalMessages: want 3, got %d", snap.TotalMessages)
	}
	if snap.ManualModeActivations != 1 {
		t.Fatalf("reseeded manual activations: want 1, got %d", snap.ManualModeActivations)
	}
	if snap.SessionCount != 2 {
		t.Fatalf("want 2 sessions after reload, got %d", snap.SessionCount)
	}
}

func TestRegistry_MessagesReturnsCopy(t *testing.T) {
	r, _ := newTestRegistry(t, t.TempDir(), nil)
	s, _ := r.Append("abc", RoleUser, "hello")
	msgs := s.Messages()
	msgs[0].Content = "mutated"
	if s.Messages()[0].Content != "hello" {
		t.Fatalf("internal state mutated via returned slice")
	}
}
