package api

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Covenant-Systems/pactum/pkg/analysis"
	"github.com/Covenant-Systems/pactum/pkg/contracts"
	"github.com/Covenant-Systems/pactum/pkg/eventbus"
	"github.com/Covenant-Systems/pactum/pkg/lifecycle"
	"github.com/Covenant-Systems/pactum/pkg/routing"
	"github.com/Covenant-Systems/pactum/pkg/session"
	"github.com/Covenant-Systems/pactum/pkg/templates"
)

const lowRiskBody = `This services agreement covers routine website maintenance.
The provider will perform monthly updates for a total fee of $9,500.
Either party may terminate with sixty days written notice to the other party.`

const mediumRiskBody = `This subscription agreement covers software support services.
The fee is $1,200 per year payable in advance. This agreement shall
automatically renew for successive one year terms unless cancelled.`

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()

	store := session.NewMemoryStore()
	bus := eventbus.NewBus().WithBackfill(store)
	library := templates.NewLibrary()
	pipeline := analysis.NewPipeline(library)
	router, err := routing.NewRouter(nil)
	if err != nil {
		t.Fatalf("new router: %v", err)
	}

	orc := lifecycle.New(store, bus, pipeline, router).WithSyncAnalysis()
	t.Cleanup(orc.Close)

	srv := NewServer(orc, library)
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)
	return srv, ts
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func submitContract(t *testing.T, ts *httptest.Server, text string) contracts.LifecycleSession {
	t.Helper()
	body, _ := json.Marshal(map[string]any{"text": text})
	resp := postJSON(t, ts.URL+"/api/v1/contracts", string(body))
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("submit status = %d, want 202", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); !strings.HasPrefix(loc, "/api/v1/contracts/") {
		t.Fatalf("Location = %q", loc)
	}
	return decode[contracts.LifecycleSession](t, resp)
}

func TestSubmitAndGet(t *testing.T) {
	_, ts := newTestServer(t)

	created := submitContract(t, ts, lowRiskBody)
	if created.ID == "" {
		t.Fatal("submit returned no session id")
	}
	// Low risk auto-approves straight into APPROVAL.
	if created.Stage != contracts.StageApproval {
		t.Fatalf("stage = %s, want APPROVAL", created.Stage)
	}
	if created.RiskLevel != contracts.RiskLow {
		t.Fatalf("risk level = %s, want LOW", created.RiskLevel)
	}

	resp, err := http.Get(ts.URL + "/api/v1/contracts/" + created.ID)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d", resp.StatusCode)
	}
	got := decode[contracts.LifecycleSession](t, resp)
	if got.ID != created.ID {
		t.Fatalf("got session %s, want %s", got.ID, created.ID)
	}
}

func TestSubmitValidationProblems(t *testing.T) {
	_, ts := newTestServer(t)

	cases := []struct {
		name string
		body string
		want int
	}{
		{"missing text", `{"title": "no text"}`, http.StatusBadRequest},
		{"malformed json", `{"text": `, http.StatusBadRequest},
		{"unknown field", `{"text": "a perfectly ordinary services agreement body of fair length", "surprise": true}`, http.StatusBadRequest},
		{"negative value", `{"text": "x", "value_cents": -5}`, http.StatusBadRequest},
		{"too short", `{"text": "tiny"}`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := postJSON(t, ts.URL+"/api/v1/contracts", tc.body)
			defer resp.Body.Close()
			if resp.StatusCode != tc.want {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tc.want)
			}
			if ct := resp.Header.Get("Content-Type"); ct != "application/problem+json" {
				t.Fatalf("Content-Type = %q", ct)
			}
			problem := decode[ProblemDetail](t, resp)
			if problem.Status != tc.want || problem.Instance == "" {
				t.Fatalf("problem = %+v", problem)
			}
		})
	}
}

func TestUnknownSessionIs404(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/v1/contracts/ses_missing")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestApprovalFlowOverHTTP(t *testing.T) {
	_, ts := newTestServer(t)

	created := submitContract(t, ts, mediumRiskBody)
	if created.RiskLevel != contracts.RiskMedium {
		t.Fatalf("risk level = %s, want MEDIUM", created.RiskLevel)
	}

	// Executing before the chain completes is a state conflict.
	resp := postJSON(t, ts.URL+"/api/v1/contracts/"+created.ID+"/execute", `{}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("premature execute status = %d, want 409", resp.StatusCode)
	}

	resp = postJSON(t, ts.URL+"/api/v1/contracts/"+created.ID+"/approve",
		`{"approver_id": "mgr-1", "role": "MANAGER", "comments": "terms acceptable"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("approve status = %d", resp.StatusCode)
	}
	approved := decode[contracts.LifecycleSession](t, resp)
	if !approved.ReadyToExecute() {
		t.Fatal("session should be ready to execute after MANAGER approval")
	}

	resp = postJSON(t, ts.URL+"/api/v1/contracts/"+created.ID+"/execute", `{}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("execute status = %d", resp.StatusCode)
	}
	executed := decode[contracts.LifecycleSession](t, resp)
	if executed.Stage != contracts.StageExecuted {
		t.Fatalf("stage = %s, want EXECUTED", executed.Stage)
	}

	// Post-terminal commands conflict.
	resp = postJSON(t, ts.URL+"/api/v1/contracts/"+created.ID+"/reject", `{"reason": "too late"}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("post-terminal reject status = %d, want 409", resp.StatusCode)
	}
}

func TestRejectOverHTTP(t *testing.T) {
	_, ts := newTestServer(t)
	created := submitContract(t, ts, mediumRiskBody)

	resp := postJSON(t, ts.URL+"/api/v1/contracts/"+created.ID+"/reject", `{"reason": ""}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("blank reason status = %d, want 400", resp.StatusCode)
	}

	resp = postJSON(t, ts.URL+"/api/v1/contracts/"+created.ID+"/reject",
		`{"approver_id": "mgr-1", "reason": "unacceptable pricing"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("reject status = %d", resp.StatusCode)
	}
	rejected := decode[contracts.LifecycleSession](t, resp)
	if rejected.Stage != contracts.StageRejected {
		t.Fatalf("stage = %s, want REJECTED", rejected.Stage)
	}
}

func TestEventsEndpointReplays(t *testing.T) {
	_, ts := newTestServer(t)
	created := submitContract(t, ts, lowRiskBody)

	resp, err := http.Get(ts.URL + "/api/v1/contracts/" + created.ID + "/events")
	if err != nil {
		t.Fatal(err)
	}
	full := decode[struct {
		Events []contracts.Event `json:"events"`
		Count  int               `json:"count"`
	}](t, resp)
	if full.Count < 3 {
		t.Fatalf("event count = %d, want at least submit, stage, and assessment events", full.Count)
	}
	for i, ev := range full.Events {
		if ev.Sequence != int64(i+1) {
			t.Fatalf("event %d has sequence %d", i, ev.Sequence)
		}
	}

	resp, err = http.Get(ts.URL + "/api/v1/contracts/" + created.ID + "/events?after=2")
	if err != nil {
		t.Fatal(err)
	}
	partial := decode[struct {
		Events []contracts.Event `json:"events"`
	}](t, resp)
	if len(partial.Events) != full.Count-2 {
		t.Fatalf("after=2 returned %d events, want %d", len(partial.Events), full.Count-2)
	}
	if partial.Events[0].Sequence != 3 {
		t.Fatalf("first replayed sequence = %d, want 3", partial.Events[0].Sequence)
	}

	resp, err = http.Get(ts.URL + "/api/v1/contracts/" + created.ID + "/events?after=-1")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("negative after status = %d, want 400", resp.StatusCode)
	}
}

func TestStreamReplaysTerminalSession(t *testing.T) {
	_, ts := newTestServer(t)
	created := submitContract(t, ts, lowRiskBody)

	resp := postJSON(t, ts.URL+"/api/v1/contracts/"+created.ID+"/execute", `{}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("execute status = %d", resp.StatusCode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/v1/contracts/"+created.ID+"/stream", nil)
	req.Header.Set("Last-Event-ID", "1")

	streamResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer streamResp.Body.Close()
	if ct := streamResp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q", ct)
	}

	var ids []string
	var sawClose bool
	scanner := bufio.NewScanner(streamResp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if v, ok := strings.CutPrefix(line, "id: "); ok {
			ids = append(ids, v)
		}
		if line == "event: stream_closed" {
			sawClose = true
		}
	}
	if !sawClose {
		t.Fatal("stream never announced completion")
	}
	if len(ids) == 0 || ids[0] != "2" {
		t.Fatalf("replay after checkpoint 1 started at %v", ids)
	}
}

func TestTemplatesAndPrecedents(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/v1/templates")
	if err != nil {
		t.Fatal(err)
	}
	tpl := decode[struct {
		ClauseTypes []string          `json:"clause_types"`
		SafeClauses map[string]string `json:"safe_clauses"`
	}](t, resp)
	if len(tpl.ClauseTypes) == 0 || len(tpl.SafeClauses) == 0 {
		t.Fatalf("templates response empty: %+v", tpl)
	}

	resp, err = http.Get(ts.URL + "/api/v1/precedents?clause=liability")
	if err != nil {
		t.Fatal(err)
	}
	prec := decode[struct {
		Count int `json:"count"`
	}](t, resp)
	if prec.Count == 0 {
		t.Fatal("no liability precedents returned")
	}

	resp, err = http.Get(ts.URL + "/api/v1/precedents?id=does-not-exist")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown precedent status = %d, want 404", resp.StatusCode)
	}
}

func TestHealthAndReadiness(t *testing.T) {
	_, ts := newTestServer(t)

	for _, path := range []string{"/health", "/readiness"} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s status = %d", path, resp.StatusCode)
		}
	}
}

func TestIdempotencyReplay(t *testing.T) {
	srv, _ := newTestServer(t)

	store := NewIdempotencyStore(time.Minute)
	handler := IdempotencyMiddleware(store)(srv.Routes())
	ts := httptest.NewServer(handler)
	defer ts.Close()

	body, _ := json.Marshal(map[string]any{"text": lowRiskBody})
	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/api/v1/contracts", strings.NewReader(string(body)))
	req.Header.Set("Idempotency-Key", "submit-once")
	first, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	created := decode[contracts.LifecycleSession](t, first)

	req, _ = http.NewRequest(http.MethodPost, ts.URL+"/api/v1/contracts", strings.NewReader(string(body)))
	req.Header.Set("Idempotency-Key", "submit-once")
	second, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	if second.Header.Get("Idempotency-Replay") != "true" {
		t.Fatal("duplicate request was not served from cache")
	}
	replayed := decode[contracts.LifecycleSession](t, second)
	if replayed.ID != created.ID {
		t.Fatalf("replay created a second session: %s vs %s", replayed.ID, created.ID)
	}

	// A distinct key creates a distinct session.
	req, _ = http.NewRequest(http.MethodPost, ts.URL+"/api/v1/contracts", strings.NewReader(string(body)))
	req.Header.Set("Idempotency-Key", "submit-twice")
	third, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	other := decode[contracts.LifecycleSession](t, third)
	if other.ID == created.ID {
		t.Fatal("distinct idempotency key replayed the cached session")
	}
}

func TestIdempotencyDoesNotReplayProblems(t *testing.T) {
	srv, _ := newTestServer(t)

	store := NewIdempotencyStore(time.Minute)
	handler := IdempotencyMiddleware(store)(srv.Routes())
	ts := httptest.NewServer(handler)
	defer ts.Close()

	// An invalid submission under a key must not pin the failure.
	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/api/v1/contracts", strings.NewReader(`{"text": "too short"}`))
	req.Header.Set("Idempotency-Key", "retry-me")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("invalid submit status = %d, want 400", resp.StatusCode)
	}

	// The corrected retry under the same key re-executes.
	body, _ := json.Marshal(map[string]any{"text": lowRiskBody})
	req, _ = http.NewRequest(http.MethodPost, ts.URL+"/api/v1/contracts", strings.NewReader(string(body)))
	req.Header.Set("Idempotency-Key", "retry-me")
	retry, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	if retry.Header.Get("Idempotency-Replay") == "true" {
		t.Fatal("problem response was replayed")
	}
	created := decode[contracts.LifecycleSession](t, retry)
	if created.ID == "" {
		t.Fatal("corrected retry did not create a session")
	}
}

func TestReportEndpoint(t *testing.T) {
	_, ts := newTestServer(t)
	created := submitContract(t, ts, mediumRiskBody)

	resp, err := http.Get(ts.URL + "/api/v1/contracts/" + created.ID + "/report")
	if err != nil {
		t.Fatal(err)
	}
	report := decode[lifecycle.Report](t, resp)
	if report.SessionID != created.ID {
		t.Fatalf("report session = %s", report.SessionID)
	}
	if report.RiskLevel != contracts.RiskMedium || len(report.Timeline) == 0 {
		t.Fatalf("report = %+v", report)
	}
}
