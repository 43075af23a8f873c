package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/sergiialekseev/mypitch-saas-sub000/pkg/core"
	"github.com/sergiialekseev/mypitch-saas-sub000/pkg/core/types"
)

// memStore is the in-memory Store used by handler tests.
type memStore struct {
	mu       sync.Mutex
	sessions map[string]types.Session
	turns    map[string][]types.TranscriptTurn
	reports  map[string]types.Report
}

func newMemStore() *memStore {
	return &memStore{
		sessions: make(map[string]types.Session),
		turns:    make(map[string][]types.TranscriptTurn),
		reports:  make(map[string]types.Report),
	}
}

func (m *memStore) CreateSession(ctx context.Context, session types.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.ID] = session
	return nil
}

func (m *memStore) GetSession(ctx context.Context, sessionID string) (types.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[sessionID]
	if !ok {
		return types.Session{}, core.NewNotFoundError("interview not found")
	}
	return session, nil
}

func (m *memStore) AppendTranscriptTurn(ctx context.Context, turn types.TranscriptTurn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns[turn.SessionID] = append(m.turns[turn.SessionID], turn)
	return nil
}

func (m *memStore) ListTranscriptTurns(ctx context.Context, sessionID string) ([]types.TranscriptTurn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]types.TranscriptTurn(nil), m.turns[sessionID]...), nil
}

func (m *memStore) UpsertReport(ctx context.Context, report types.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports[report.SessionID] = report
	return nil
}

func (m *memStore) GetReport(ctx context.Context, sessionID string) (types.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	report, ok := m.reports[sessionID]
	if !ok {
		return types.Report{}, core.NewNotFoundError("report not found")
	}
	return report, nil
}

type fakeMinter struct {
	token string
	model string
	err   error
}

func (f *fakeMinter) MintSessionToken(ctx context.Context, model string) (string, error) {
	f.model = model
	return f.token, f.err
}

type fakeScorer struct {
	report types.Report
	turns  []types.TranscriptTurn
	err    error
}

func (f *fakeScorer) Score(ctx context.Context, session types.Session, turns []types.TranscriptTurn) (types.Report, error) {
	f.turns = turns
	if f.err != nil {
		return types.Report{}, f.err
	}
	report := f.report
	report.SessionID = session.ID
	return report, nil
}

type gatewayHarness struct {
	srv    *httptest.Server
	store  *memStore
	minter *fakeMinter
	scorer *fakeScorer
}

func newGatewayHarness(t *testing.T) *gatewayHarness {
	t.Helper()
	h := &gatewayHarness{
		store:  newMemStore(),
		minter: &fakeMinter{token: "ephemeral-tok"},
		scorer: &fakeScorer{report: types.Report{OverallScore: 72, Summary: "Adequate depth."}},
	}
	cfg := DefaultConfig()
	cfg.Database.DSN = "unused"
	server := NewServer(cfg, h.store, h.minter, h.scorer)
	h.srv = httptest.NewServer(server.Handler())
	t.Cleanup(h.srv.Close)
	return h
}

func (h *gatewayHarness) seedSession(t *testing.T) types.Session {
	t.Helper()
	session := types.Session{
		ID:            "11111111-2222-3333-4444-555555555555",
		Topic:         types.Topic{Title: "Backend Engineer", Persona: "interviewer"},
		CandidateName: "Jordan",
	}
	if err := h.store.CreateSession(context.Background(), session); err != nil {
		t.Fatalf("seed session: %v", err)
	}
	return session
}

func (h *gatewayHarness) request(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("encode body: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, h.srv.URL+path, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestCreateAndGetInterview(t *testing.T) {
	h := newGatewayHarness(t)

	resp := h.request(t, "POST", "/v1/interviews", createInterviewRequest{
		Topic:         types.Topic{Title: "Backend Engineer", Persona: "interviewer"},
		CandidateName: "Jordan",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
	created := decodeBody[types.Session](t, resp)
	if created.ID == "" || created.CandidateName != "Jordan" {
		t.Errorf("unexpected session %+v", created)
	}

	resp = h.request(t, "GET", "/v1/interviews/"+created.ID, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
	fetched := decodeBody[types.Session](t, resp)
	if fetched.ID != created.ID {
		t.Errorf("round trip mismatch: %+v", fetched)
	}
}

func TestCreateInterview_Validation(t *testing.T) {
	h := newGatewayHarness(t)

	resp := h.request(t, "POST", "/v1/interviews", createInterviewRequest{
		Topic: types.Topic{Persona: "interviewer"},
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
	body := decodeBody[map[string]*core.Error](t, resp)
	if body["error"].Param != "topic.title" {
		t.Errorf("unexpected error %+v", body["error"])
	}
}

func TestMintToken(t *testing.T) {
	h := newGatewayHarness(t)
	session := h.seedSession(t)

	resp := h.request(t, "POST", "/v1/interviews/"+session.ID+"/token", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
	cred := decodeBody[types.Credential](t, resp)
	if cred.Token != "ephemeral-tok" {
		t.Errorf("unexpected credential %+v", cred)
	}
	if cred.Model == "" || h.minter.model != cred.Model {
		t.Errorf("credential must name the constrained model, got %+v", cred)
	}
}

func TestMintToken_UnknownSession(t *testing.T) {
	h := newGatewayHarness(t)
	resp := h.request(t, "POST", "/v1/interviews/nope/token", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
}

func TestMintToken_MinterFailure(t *testing.T) {
	h := newGatewayHarness(t)
	session := h.seedSession(t)
	h.minter.err = errors.New("upstream down")

	resp := h.request(t, "POST", "/v1/interviews/"+session.ID+"/token", nil)
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
}

func TestAppendTranscript(t *testing.T) {
	h := newGatewayHarness(t)
	session := h.seedSession(t)

	resp := h.request(t, "POST", "/v1/interviews/"+session.ID+"/transcript",
		types.TranscriptTurn{Speaker: types.SpeakerUser, Text: "I led the migration."})
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}

	turns, _ := h.store.ListTranscriptTurns(context.Background(), session.ID)
	if len(turns) != 1 || turns[0].SessionID != session.ID {
		t.Errorf("turn not persisted against the session: %+v", turns)
	}
}

func TestAppendTranscript_Validation(t *testing.T) {
	h := newGatewayHarness(t)
	session := h.seedSession(t)

	resp := h.request(t, "POST", "/v1/interviews/"+session.ID+"/transcript",
		types.TranscriptTurn{Speaker: "narrator", Text: "hi"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unexpected status for bad speaker: %d", resp.StatusCode)
	}

	resp = h.request(t, "POST", "/v1/interviews/"+session.ID+"/transcript",
		types.TranscriptTurn{Speaker: types.SpeakerUser})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unexpected status for empty text: %d", resp.StatusCode)
	}
}

func TestGenerateAndGetReport(t *testing.T) {
	h := newGatewayHarness(t)
	session := h.seedSession(t)
	h.store.AppendTranscriptTurn(context.Background(), types.TranscriptTurn{
		SessionID: session.ID, Speaker: types.SpeakerUser, Text: "answer",
	})

	resp := h.request(t, "POST", "/v1/interviews/"+session.ID+"/report", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
	report := decodeBody[types.Report](t, resp)
	if report.SessionID != session.ID || report.OverallScore != 72 {
		t.Errorf("unexpected report %+v", report)
	}
	if len(h.scorer.turns) != 1 {
		t.Errorf("scorer must receive the stored transcript, got %d turns", len(h.scorer.turns))
	}

	resp = h.request(t, "GET", "/v1/interviews/"+session.ID+"/report", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
	stored := decodeBody[types.Report](t, resp)
	if stored.Summary != "Adequate depth." {
		t.Errorf("report not persisted: %+v", stored)
	}
}

func TestGenerateReport_EmptyTranscript(t *testing.T) {
	h := newGatewayHarness(t)
	session := h.seedSession(t)

	resp := h.request(t, "POST", "/v1/interviews/"+session.ID+"/report", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
}

func TestGenerateReport_ScorerFailure(t *testing.T) {
	h := newGatewayHarness(t)
	session := h.seedSession(t)
	h.store.AppendTranscriptTurn(context.Background(), types.TranscriptTurn{
		SessionID: session.ID, Speaker: types.SpeakerUser, Text: "answer",
	})
	h.scorer.err = errors.New("model timeout")

	resp := h.request(t, "POST", "/v1/interviews/"+session.ID+"/report", nil)
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
	body := decodeBody[map[string]*core.Error](t, resp)
	if body["error"].Message != "report scoring failed" {
		t.Errorf("internal detail must not leak, got %+v", body["error"])
	}
}

func TestRequestIDHeader(t *testing.T) {
	h := newGatewayHarness(t)
	resp := h.request(t, "GET", "/healthz", nil)
	if resp.Header.Get("X-Request-Id") == "" {
		t.Error("every response must carry a request id")
	}
}
