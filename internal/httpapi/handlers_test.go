package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sala/chat-api/internal/chat"
	"github.com/sala/chat-api/internal/events"
	"github.com/sala/chat-api/internal/message"
	"github.com/sala/chat-api/internal/presence"
	"github.com/sala/chat-api/internal/store/memstore"
)

type testEnv struct {
	server   *httptest.Server
	presence *presence.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	log := logrus.NewEntry(logger)

	participants := memstore.NewParticipants()
	messages := memstore.NewMessages()
	presenceSvc := presence.NewService(participants, messages, events.Nop{}, log)
	messageSvc := message.NewService(participants, messages, events.Nop{}, log)

	router := NewRouter(presenceSvc, messageSvc, Options{Log: log})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &testEnv{server: srv, presence: presenceSvc}
}

func (e *testEnv) do(t *testing.T, method, path, user string, body interface{}) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, e.server.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != "" {
		req.Header.Set(UserHeader, user)
	}

	resp, err := e.server.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestRegisterEndpoint(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/participants", "", map[string]string{"name": "Ana"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var created struct {
		Name string `json:"name"`
	}
	decode(t, resp, &created)
	if created.Name != "Ana" {
		t.Errorf("expected name Ana, got %q", created.Name)
	}

	// Duplicate name conflicts.
	resp = env.do(t, http.MethodPost, "/participants", "", map[string]string{"name": "Ana"})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("expected 409 for duplicate, got %d", resp.StatusCode)
	}

	// Invalid payload returns the error list.
	resp = env.do(t, http.MethodPost, "/participants", "", map[string]string{"name": "   "})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for empty name, got %d", resp.StatusCode)
	}
	var body struct {
		Message []string `json:"message"`
	}
	decode(t, resp, &body)
	if len(body.Message) == 0 {
		t.Error("expected validation error list in message field")
	}
}

func TestListParticipantsEndpoint(t *testing.T) {
	env := newTestEnv(t)

	env.do(t, http.MethodPost, "/participants", "", map[string]string{"name": "Bob"})
	env.do(t, http.MethodPost, "/participants", "", map[string]string{"name": "Ana"})

	resp := env.do(t, http.MethodGet, "/participants", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var names []map[string]string
	decode(t, resp, &names)
	if len(names) != 2 {
		t.Fatalf("expected 2 participants, got %d", len(names))
	}
	// Only the name field is exposed, never lastStatus.
	for _, entry := range names {
		if _, ok := entry["name"]; !ok || len(entry) != 1 {
			t.Errorf("expected bare {name} entries, got %v", entry)
		}
	}
}

func TestHeartbeatEndpoint(t *testing.T) {
	env := newTestEnv(t)

	env.do(t, http.MethodPost, "/participants", "", map[string]string{"name": "Ana"})

	resp := env.do(t, http.MethodPost, "/status", "Ana", nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 for known caller, got %d", resp.StatusCode)
	}

	resp = env.do(t, http.MethodPost, "/status", "ghost", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for unknown caller, got %d", resp.StatusCode)
	}
}

func TestPostMessageEndpoint(t *testing.T) {
	env := newTestEnv(t)

	env.do(t, http.MethodPost, "/participants", "", map[string]string{"name": "Ana"})

	payload := map[string]string{"to": "Todos", "text": "hi", "type": "message"}
	resp := env.do(t, http.MethodPost, "/messages", "Ana", payload)
	if resp.StatusCode != http.StatusCreated {
		t.Errorf("expected 201, got %d", resp.StatusCode)
	}

	// Unknown sender is rejected with 422, not 401.
	resp = env.do(t, http.MethodPost, "/messages", "ghost", payload)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("expected 422 for unknown sender, got %d", resp.StatusCode)
	}

	// Client-supplied status type is rejected.
	bad := map[string]string{"to": "Todos", "text": "fake", "type": "status"}
	resp = env.do(t, http.MethodPost, "/messages", "Ana", bad)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("expected 422 for status type, got %d", resp.StatusCode)
	}
}

func TestListMessagesEndpoint(t *testing.T) {
	env := newTestEnv(t)

	env.do(t, http.MethodPost, "/participants", "", map[string]string{"name": "Ana"})
	env.do(t, http.MethodPost, "/participants", "", map[string]string{"name": "Bob"})
	env.do(t, http.MethodPost, "/messages", "Ana", map[string]string{"to": "Todos", "text": "one", "type": "message"})
	env.do(t, http.MethodPost, "/messages", "Ana", map[string]string{"to": "Carol", "text": "secret", "type": "private_message"})
	env.do(t, http.MethodPost, "/messages", "Ana", map[string]string{"to": "Todos", "text": "two", "type": "message"})

	resp := env.do(t, http.MethodGet, "/messages", "Bob", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var msgs []chat.Message
	decode(t, resp, &msgs)
	// Two join notices plus the two public messages; the private one is
	// between Ana and Carol.
	if len(msgs) != 4 {
		t.Fatalf("expected 4 visible messages for Bob, got %d", len(msgs))
	}

	// Tail limit keeps the most recent entries in original order.
	resp = env.do(t, http.MethodGet, "/messages?limit=2", "Bob", nil)
	decode(t, resp, &msgs)
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages with limit=2, got %d", len(msgs))
	}
	if msgs[0].Text != "one" || msgs[1].Text != "two" {
		t.Errorf("expected [one two], got [%s %s]", msgs[0].Text, msgs[1].Text)
	}

	// Bogus limit values fall back to the whole set.
	resp = env.do(t, http.MethodGet, "/messages?limit=abc", "Bob", nil)
	decode(t, resp, &msgs)
	if len(msgs) != 4 {
		t.Errorf("expected full set for invalid limit, got %d", len(msgs))
	}

	// Unregistered readers are rejected.
	resp = env.do(t, http.MethodGet, "/messages", "Eve", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 for unknown reader, got %d", resp.StatusCode)
	}
}

// TestRoomLifecycle drives the whole flow: register, post, read, evict.
func TestRoomLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	resp := env.do(t, http.MethodPost, "/participants", "", map[string]string{"name": "Ana"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d", resp.StatusCode)
	}

	resp = env.do(t, http.MethodPost, "/messages", "Ana", map[string]string{"to": "Todos", "text": "hi", "type": "message"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("post: expected 201, got %d", resp.StatusCode)
	}

	// Ana goes silent past the threshold; the sweep runs.
	threshold := 10 * time.Second
	evicted, err := env.presence.EvictStale(ctx, time.Now().Add(threshold), threshold)
	if err != nil {
		t.Fatalf("EvictStale() error: %v", err)
	}
	if evicted != 1 {
		t.Fatalf("expected Ana evicted, got %d", evicted)
	}

	resp = env.do(t, http.MethodGet, "/participants", "", nil)
	var names []map[string]string
	decode(t, resp, &names)
	if len(names) != 0 {
		t.Errorf("expected empty room, got %v", names)
	}

	// Register Bob to read the log: join, hi, and Ana's leave notice.
	env.do(t, http.MethodPost, "/participants", "", map[string]string{"name": "Bob"})
	resp = env.do(t, http.MethodGet, "/messages", "Bob", nil)
	var msgs []chat.Message
	decode(t, resp, &msgs)
	if len(msgs) != 4 {
		t.Fatalf("expected 4 messages (join, hi, leave, Bob's join), got %d", len(msgs))
	}
	leave := msgs[2]
	if leave.From != "Ana" || leave.Type != chat.StatusType {
		t.Errorf("expected Ana's leave notice third, got %+v", leave)
	}
}
