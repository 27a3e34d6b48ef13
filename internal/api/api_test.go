package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/thapargpt/thapargpt/internal/assistant"
	"github.com/thapargpt/thapargpt/internal/lang"
	"github.com/thapargpt/thapargpt/internal/session"
	"github.com/thapargpt/thapargpt/internal/testutil"
)

type fakeAssistant struct {
	answer   assistant.Answer
	err      error
	lastName string
	lastData []byte
	lastText string
}

func (f *fakeAssistant) Chat(_ context.Context, _ uuid.UUID, query string) (assistant.Answer, error) {
	f.lastText = query
	return f.answer, f.err
}

func (f *fakeAssistant) ChatWithFile(_ context.Context, _ uuid.UUID, query, name string, data []byte) (assistant.Answer, error) {
	f.lastText = query
	f.lastName = name
	f.lastData = data
	return f.answer, f.err
}

type fakeSessionQuerier struct {
	sessions map[uuid.UUID]bool
	turns    []session.TurnRow
}

func (f *fakeSessionQuerier) InsertSession(_ context.Context, id uuid.UUID) error {
	f.sessions[id] = true
	return nil
}

func (f *fakeSessionQuerier) SessionExists(_ context.Context, id uuid.UUID) (bool, error) {
	return f.sessions[id], nil
}

func (f *fakeSessionQuerier) InsertTurn(_ context.Context, row session.TurnRow) error {
	f.turns = append(f.turns, row)
	return nil
}

func (f *fakeSessionQuerier) RecentTurns(_ context.Context, sessionID uuid.UUID, limit int32) ([]session.TurnRow, error) {
	var out []session.TurnRow
	for i := len(f.turns) - 1; i >= 0 && len(out) < int(limit); i-- {
		if f.turns[i].SessionID == sessionID {
			out = append(out, f.turns[i])
		}
	}
	return out, nil
}

func newTestServer(a Assistant, q *fakeSessionQuerier) http.Handler {
	if q == nil {
		q = &fakeSessionQuerier{sessions: make(map[uuid.UUID]bool)}
	}
	store := session.New(q, testutil.DiscardLogger())
	return NewServer(a, store, nil, testutil.DiscardLogger()).Handler()
}

func postJSON(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestChatEndpoint(t *testing.T) {
	fake := &fakeAssistant{answer: assistant.Answer{
		Text:     "The deadline is 15 July.",
		Language: lang.English,
	}}
	h := newTestServer(fake, nil)

	rec := postJSON(t, h, "/api/chat", ChatRequest{Message: "hostel fee deadline?"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}

	var resp ChatResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Response != "The deadline is 15 July." || resp.Language != "en" {
		t.Errorf("response = %+v", resp)
	}
	// A session is minted when the client sends none.
	if _, err := uuid.Parse(resp.SessionID); err != nil {
		t.Errorf("session_id %q not a UUID", resp.SessionID)
	}
	if fake.lastText != "hostel fee deadline?" {
		t.Errorf("assistant received %q", fake.lastText)
	}
}

func TestChatEndpointBadJSON(t *testing.T) {
	h := newTestServer(&fakeAssistant{}, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestChatEndpointErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"empty query", assistant.ErrEmptyQuery, http.StatusBadRequest},
		{"transient upstream", errors.New("503 service unavailable"), http.StatusServiceUnavailable},
		{"terminal", errors.New("invalid api key"), http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestServer(&fakeAssistant{err: tt.err}, nil)
			rec := postJSON(t, h, "/api/chat", ChatRequest{Message: "q"})
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestChatEndpointInvalidSessionID(t *testing.T) {
	h := newTestServer(&fakeAssistant{}, nil)
	rec := postJSON(t, h, "/api/chat", ChatRequest{Message: "q", SessionID: "not-a-uuid"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestChatFileEndpoint(t *testing.T) {
	fake := &fakeAssistant{answer: assistant.Answer{Text: "A fee notice.", Language: lang.English}}
	h := newTestServer(fake, nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("message", "what is this")
	fw, err := mw.CreateFormFile("file", "notice.png")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	_, _ = fw.Write([]byte("\x89PNG\r\n\x1a\nfake"))
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/chat/file", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	if fake.lastName != "notice.png" {
		t.Errorf("filename = %q", fake.lastName)
	}
	if len(fake.lastData) == 0 {
		t.Error("upload bytes not forwarded")
	}
	if fake.lastText != "what is this" {
		t.Errorf("message = %q", fake.lastText)
	}
}

func TestChatFileEndpointMissingFile(t *testing.T) {
	h := newTestServer(&fakeAssistant{}, nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("message", "no file attached")
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/chat/file", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHistoryEndpoint(t *testing.T) {
	q := &fakeSessionQuerier{sessions: make(map[uuid.UUID]bool)}
	id := uuid.New()
	q.sessions[id] = true
	q.turns = []session.TurnRow{
		{ID: 1, SessionID: id, UserText: "hostel fees?", AssistantText: "due 15 July", Language: "en"},
		{ID: 2, SessionID: id, UserText: "शुल्क?", AssistantText: "15 जुलाई", Language: "hi"},
	}
	h := newTestServer(&fakeAssistant{}, q)

	req := httptest.NewRequest(http.MethodGet, "/api/sessions/"+id.String()+"/history", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	var resp HistoryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if len(resp.Turns) != 2 {
		t.Fatalf("turns = %d, want 2", len(resp.Turns))
	}
	if resp.Turns[0].User != "hostel fees?" || resp.Turns[1].Language != "hi" {
		t.Errorf("turns out of order: %+v", resp.Turns)
	}
}

func TestHistoryEndpointUnknownSession(t *testing.T) {
	h := newTestServer(&fakeAssistant{}, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/sessions/"+uuid.NewString()+"/history", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestHealthEndpoints(t *testing.T) {
	h := newTestServer(&fakeAssistant{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("/health status = %d", rec.Code)
	}

	// No pool configured: not ready.
	req = httptest.NewRequest(http.MethodGet, "/ready", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("/ready status = %d, want 503", rec.Code)
	}
}

type panicAssistant struct{ fakeAssistant }

func (p *panicAssistant) Chat(context.Context, uuid.UUID, string) (assistant.Answer, error) {
	panic("boom")
}

func TestRecoveryMiddleware(t *testing.T) {
	h := newTestServer(&panicAssistant{}, nil)
	rec := postJSON(t, h, "/api/chat", ChatRequest{Message: "q"})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}
