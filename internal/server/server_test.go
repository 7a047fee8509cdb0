package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"esgtrack/internal/config"
	"esgtrack/internal/db"
	"esgtrack/internal/domain"
	"esgtrack/internal/engine"
	"esgtrack/internal/migrate"
	"esgtrack/internal/questionbank"
)

const testSecret = "test-secret"

type testServer struct {
	URL    string
	Engine engine.Engine
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	ctx := context.Background()
	if err := migrate.Migrate(ctx, conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	bank, err := questionbank.Default(zap.NewNop())
	if err != nil {
		t.Fatalf("load bank: %v", err)
	}
	cfg := config.Default()
	e := engine.New(conn, cfg, bank, zap.NewNop())
	if err := e.ImportRulebook(ctx, cfg, "tester"); err != nil {
		t.Fatalf("seed rulebook: %v", err)
	}
	handler, err := New(Config{
		Engine:   e,
		BasePath: "/v0",
		Logger:   zap.NewNop(),
		Auth: AuthConfig{
			JWTSecret:              testSecret,
			AllowLegacyActorHeader: true,
		},
	})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		Engine: e,
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

var actor = map[string]string{"X-Actor-Id": "tester"}

func decode(t *testing.T, data []byte, v any) {
	t.Helper()
	if err := json.Unmarshal(data, v); err != nil {
		t.Fatalf("decode %s: %v", string(data), err)
	}
}

func errorCode(t *testing.T, data []byte) string {
	t.Helper()
	var env struct {
		Error apiErrorBody `json:"error"`
	}
	decode(t, data, &env)
	return env.Error.Code
}

func createCompany(t *testing.T, srv *testServer, body map[string]any) domain.Company {
	t.Helper()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/companies", body, actor)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create company: %d %s", res.StatusCode, string(data))
	}
	var c domain.Company
	decode(t, data, &c)
	return c
}

func signToken(t *testing.T, claims jwtClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func TestCompanyGenerateAndEvidenceFlow(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	c := createCompany(t, srv, map[string]any{
		"name":    "Palm Hotel",
		"sector":  "Hospitality",
		"emirate": "Dubai",
	})
	if c.Sector != "hospitality" {
		t.Fatalf("expected normalized sector, got %s", c.Sector)
	}

	res, data := doJSON(t, client, http.MethodPut, srv.URL+"/v0/companies/"+c.ID+"/answers", map[string]any{
		"answers": map[string]any{"hosp_energy_1": "no"},
	}, actor)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("answers: %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/companies/"+c.ID+"/generate?dry_run=true", nil, actor)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("dry run: %d %s", res.StatusCode, string(data))
	}
	var dry engine.GenerationResult
	decode(t, data, &dry)
	if !dry.DryRun || len(dry.Tasks) != 8 || dry.Applied != nil {
		t.Fatalf("unexpected dry run: %+v", dry)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/companies/"+c.ID+"/generate", nil, actor)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("generate: %d %s", res.StatusCode, string(data))
	}
	var gen engine.GenerationResult
	decode(t, data, &gen)
	if gen.Applied == nil || gen.Applied.Created != 8 {
		t.Fatalf("expected 8 created tasks, got %+v", gen.Applied)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/companies/"+c.ID+"/tasks?source=question", nil, actor)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list tasks: %d %s", res.StatusCode, string(data))
	}
	var list TaskList
	decode(t, data, &list)
	var task domain.Task
	for _, item := range list.Items {
		if item.SourceKey == "hosp_energy_1" {
			task = item
		}
		if item.Source != domain.SourceQuestion {
			t.Fatalf("source filter leaked %s", item.Source)
		}
	}
	if task.ID == "" {
		t.Fatalf("hosp_energy_1 task missing from %d tasks", len(list.Items))
	}

	taskURL := srv.URL + "/v0/companies/" + c.ID + "/tasks/" + task.ID
	res, data = doJSON(t, client, http.MethodPost, taskURL+"/evidence", map[string]any{
		"kind": "data", "value": 1200, "unit": "kWh",
	}, actor)
	if res.StatusCode != http.StatusUnprocessableEntity || errorCode(t, data) != "evidence_rejected" {
		t.Fatalf("expected evidence_rejected, got %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, taskURL+"/evidence", map[string]any{
		"kind": "file", "filename": "jan.pdf", "mime_type": "application/pdf",
	}, actor)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("add evidence: %d %s", res.StatusCode, string(data))
	}
	var added engine.EvidenceResult
	decode(t, data, &added)
	if added.Task.Status != domain.StatusInProgress || added.Evidence.CreatedBy != "tester" {
		t.Fatalf("unexpected evidence result: %+v", added)
	}

	res, data = doJSON(t, client, http.MethodPost, taskURL+"/complete", map[string]any{}, actor)
	if res.StatusCode != http.StatusUnprocessableEntity || errorCode(t, data) != "evidence_incomplete" {
		t.Fatalf("expected evidence_incomplete, got %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, taskURL+"/complete", map[string]any{"force": true}, actor)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("force complete: %d %s", res.StatusCode, string(data))
	}
	var done domain.Task
	decode(t, data, &done)
	if done.Status != domain.StatusCompleted {
		t.Fatalf("expected completed, got %s", done.Status)
	}

	res, data = doJSON(t, client, http.MethodGet, taskURL+"/evidence", nil, actor)
	var evidence EvidenceList
	decode(t, data, &evidence)
	if res.StatusCode != http.StatusOK || len(evidence.Items) != 1 {
		t.Fatalf("expected 1 evidence item, got %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/companies/"+c.ID+"/stats", nil, actor)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("stats: %d %s", res.StatusCode, string(data))
	}
	var stats engine.Stats
	decode(t, data, &stats)
	if stats.Total != 8 || stats.ByStatus[domain.StatusCompleted] != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/companies/"+c.ID+"/next-steps", nil, actor)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("next steps: %d %s", res.StatusCode, string(data))
	}
	var steps NextStepList
	decode(t, data, &steps)
	if len(steps.Items) == 0 || len(steps.Items) > 5 {
		t.Fatalf("expected 1-5 next steps, got %d", len(steps.Items))
	}
	for _, s := range steps.Items {
		if s.TaskID == task.ID {
			t.Fatalf("completed task suggested as next step")
		}
	}
}

func TestTaskTransitionConflict(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	c := createCompany(t, srv, map[string]any{"name": "Corner Shop", "sector": "retail"})
	doJSON(t, client, http.MethodPost, srv.URL+"/v0/companies/"+c.ID+"/generate", nil, actor)
	_, data := doJSON(t, client, http.MethodGet, srv.URL+"/v0/companies/"+c.ID+"/tasks?limit=1", nil, actor)
	var list TaskList
	decode(t, data, &list)
	if len(list.Items) != 1 {
		t.Fatalf("expected one task with limit=1, got %d", len(list.Items))
	}
	taskURL := srv.URL + "/v0/companies/" + c.ID + "/tasks/" + list.Items[0].ID

	res, data := doJSON(t, client, http.MethodPatch, taskURL, map[string]any{"status": "pending_review"}, actor)
	if res.StatusCode != http.StatusConflict || errorCode(t, data) != "invalid_transition" {
		t.Fatalf("expected invalid_transition, got %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPatch, taskURL, map[string]any{"status": "in_progress", "priority": "low"}, actor)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("update task: %d %s", res.StatusCode, string(data))
	}
	var updated domain.Task
	decode(t, data, &updated)
	if updated.Status != domain.StatusInProgress || updated.Priority != domain.PriorityLow {
		t.Fatalf("unexpected task after update: %s %s", updated.Status, updated.Priority)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/companies/"+c.ID+"/tasks/task_missing", nil, actor)
	if res.StatusCode != http.StatusNotFound || errorCode(t, data) != "not_found" {
		t.Fatalf("expected not_found, got %d %s", res.StatusCode, string(data))
	}
}

func TestValidationErrors(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/companies", map[string]any{"name": "  ", "sector": "retail"}, actor)
	if res.StatusCode != http.StatusBadRequest || errorCode(t, data) != "bad_request" {
		t.Fatalf("expected bad_request for blank name, got %d %s", res.StatusCode, string(data))
	}

	c := createCompany(t, srv, map[string]any{"id": "company_dup", "name": "Dup", "sector": "retail"})
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/companies", map[string]any{"id": c.ID, "name": "Dup", "sector": "retail"}, actor)
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("expected conflict for duplicate id, got %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPut, srv.URL+"/v0/companies/"+c.ID+"/answers", map[string]any{
		"answers": map[string]any{"hosp_energy_1": "no"},
	}, actor)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected foreign question rejected, got %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/companies/"+c.ID+"/meters", map[string]any{"number": "G1", "type": "gas"}, actor)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected bad meter type rejected, got %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/companies/company_missing/stats", nil, actor)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected not found, got %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/companies/"+c.ID+"/events?cursor=abc", nil, actor)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected bad cursor rejected, got %d %s", res.StatusCode, string(data))
	}
}

func TestSectorsAndClassifier(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v0/sectors", nil, actor)
	var sectors []SectorSummary
	decode(t, data, &sectors)
	if res.StatusCode != http.StatusOK || len(sectors) != 8 {
		t.Fatalf("expected 8 sectors, got %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/sectors/Hospitality/questions", nil, actor)
	var questions []domain.Question
	decode(t, data, &questions)
	if res.StatusCode != http.StatusOK || len(questions) == 0 {
		t.Fatalf("expected hospitality questions, got %d %s", res.StatusCode, string(data))
	}

	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/v0/sectors/mining/questions", nil, actor)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected unknown sector 404, got %d", res.StatusCode)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/classify-evidence", map[string]any{
		"action_required": "Upload 3 months of DEWA electricity bills",
	}, actor)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("classify: %d %s", res.StatusCode, string(data))
	}
	var req struct {
		Type          string `json:"type"`
		ExpectedCount int    `json:"expected_count"`
	}
	decode(t, data, &req)
	if req.Type != string(domain.EvidenceFile) || req.ExpectedCount != 3 {
		t.Fatalf("unexpected classification: %s", string(data))
	}
}

func TestAuthentication(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, _ := doJSON(t, client, http.MethodGet, srv.URL+"/v0/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health should not need auth, got %d", res.StatusCode)
	}
	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v0/companies", nil, nil)
	if res.StatusCode != http.StatusUnauthorized || errorCode(t, data) != "unauthorized" {
		t.Fatalf("expected unauthorized, got %d %s", res.StatusCode, string(data))
	}
	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/v0/companies", nil, map[string]string{"Authorization": "Bearer nope"})
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected bad token rejected, got %d", res.StatusCode)
	}

	own := createCompany(t, srv, map[string]any{"name": "Own", "sector": "retail"})
	other := createCompany(t, srv, map[string]any{"name": "Other", "sector": "retail"})

	token := signToken(t, jwtClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "owner@example.com",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		CompanyID: own.ID,
	})
	bearer := map[string]string{"Authorization": "Bearer " + token, "X-Actor-Id": "spoofed"}

	res, data = doJSON(t, client, http.MethodPatch, srv.URL+"/v0/companies/"+own.ID, map[string]any{"emirate": "Sharjah"}, bearer)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("jwt update: %d %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/companies/"+own.ID+"/events?type=company.updated", nil, bearer)
	var events EventList
	decode(t, data, &events)
	if res.StatusCode != http.StatusOK || len(events.Items) != 1 || events.Items[0].ActorID != "owner@example.com" {
		t.Fatalf("expected event by jwt subject, got %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/companies/"+other.ID, nil, bearer)
	if res.StatusCode != http.StatusForbidden || errorCode(t, data) != "forbidden" {
		t.Fatalf("expected forbidden for other company, got %d %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/companies", nil, bearer)
	var companies CompanyList
	decode(t, data, &companies)
	if len(companies.Items) != 1 || companies.Items[0].ID != own.ID {
		t.Fatalf("expected scoped company list, got %s", string(data))
	}
	// own is older than other, so an unscoped first page of one would miss it
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/companies?limit=1", nil, bearer)
	companies = CompanyList{}
	decode(t, data, &companies)
	if res.StatusCode != http.StatusOK || len(companies.Items) != 1 || companies.Items[0].ID != own.ID {
		t.Fatalf("expected scoped company on a one item page, got %d %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/companies/"+other.ID+"/compliance/dst", nil, bearer)
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("expected forbidden compliance for other company, got %d %s", res.StatusCode, string(data))
	}

	expired := signToken(t, jwtClaims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "owner@example.com",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}})
	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/v0/companies", nil, map[string]string{"Authorization": "Bearer " + expired})
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected expired token rejected, got %d", res.StatusCode)
	}
}

func TestEventsPagination(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	c := createCompany(t, srv, map[string]any{"name": "Clinic", "sector": "health"})
	doJSON(t, client, http.MethodPost, srv.URL+"/v0/companies/"+c.ID+"/generate", nil, actor)

	seen := map[int64]bool{}
	url := srv.URL + "/v0/companies/" + c.ID + "/events?limit=3"
	var lastID int64
	for page := 0; page < 50; page++ {
		res, data := doJSON(t, client, http.MethodGet, url, nil, actor)
		if res.StatusCode != http.StatusOK {
			t.Fatalf("events page: %d %s", res.StatusCode, string(data))
		}
		var list EventList
		decode(t, data, &list)
		for _, evt := range list.Items {
			if seen[evt.ID] {
				t.Fatalf("event %d repeated across pages", evt.ID)
			}
			if lastID != 0 && evt.ID >= lastID {
				t.Fatalf("events not newest first: %d after %d", evt.ID, lastID)
			}
			seen[evt.ID] = true
			lastID = evt.ID
			if evt.CompanyID != c.ID {
				t.Fatalf("event from another company: %+v", evt)
			}
		}
		if list.NextCursor == "" {
			break
		}
		url = srv.URL + "/v0/companies/" + c.ID + "/events?limit=3&cursor=" + list.NextCursor
	}
	if len(seen) < 4 {
		t.Fatalf("expected several events, saw %d", len(seen))
	}
}

func TestOpenAPIAndMetrics(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v0/openapi.json", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("openapi: %d", res.StatusCode)
	}
	var spec map[string]any
	decode(t, data, &spec)
	paths, _ := spec["paths"].(map[string]any)
	if _, ok := paths["/v0/companies/{company_id}/generate"]; !ok {
		t.Fatalf("generate route missing from openapi paths")
	}

	doJSON(t, client, http.MethodGet, srv.URL+"/v0/sectors", nil, actor)
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/metrics", nil, nil)
	if res.StatusCode != http.StatusOK || !strings.Contains(string(data), "esg_http_request_duration_seconds") {
		t.Fatalf("expected http metrics, got %d", res.StatusCode)
	}
}

func TestWebhookDispatcher(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	var (
		mu      sync.Mutex
		batches []webhookBatch
		sigs    []string
	)
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var b webhookBatch
		if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		mu.Lock()
		batches = append(batches, b)
		sigs = append(sigs, r.Header.Get("X-Esgtrack-Signature"))
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer hook.Close()

	e := srv.Engine
	cfg := *e.Config
	cfg.Webhooks = []config.WebhookConfig{{ID: "backend", URL: hook.URL, Secret: "s3cret", Events: []string{"company.created"}}}
	e.Config = &cfg
	d := NewWebhookDispatcher(e, zap.NewNop())
	ctx := context.Background()

	// the first round pins the cursor, so earlier events are not replayed
	d.DispatchAll(ctx)
	c := createCompany(t, srv, map[string]any{"name": "Hooked", "sector": "retail"})
	doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/companies/"+c.ID+"/generate", nil, actor)
	d.DispatchAll(ctx)
	d.DispatchAll(ctx)

	mu.Lock()
	defer mu.Unlock()
	if len(batches) != 1 {
		t.Fatalf("expected one batch, got %d", len(batches))
	}
	if len(batches[0].Events) != 1 || batches[0].Events[0].Type != "company.created" || batches[0].Events[0].CompanyID != c.ID {
		t.Fatalf("unexpected batch: %+v", batches[0])
	}
	if !strings.HasPrefix(sigs[0], "sha256=") {
		t.Fatalf("expected signature header, got %q", sigs[0])
	}
}

func TestWebhookDispatcherRetriesFailedBatch(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	var mu sync.Mutex
	calls := 0
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer hook.Close()

	e := srv.Engine
	cfg := *e.Config
	cfg.Webhooks = []config.WebhookConfig{{URL: hook.URL}}
	e.Config = &cfg
	d := NewWebhookDispatcher(e, zap.NewNop())
	ctx := context.Background()

	d.DispatchAll(ctx)
	createCompany(t, srv, map[string]any{"name": "Retry", "sector": "retail"})
	d.DispatchAll(ctx)
	d.DispatchAll(ctx)
	d.DispatchAll(ctx)

	mu.Lock()
	defer mu.Unlock()
	if calls != 2 {
		t.Fatalf("expected failed batch retried once, got %d calls", calls)
	}
}

func TestWebhookDispatcherResumesAfterRestart(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	var (
		mu     sync.Mutex
		events []webhookEvent
	)
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var b webhookBatch
		if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		mu.Lock()
		events = append(events, b.Events...)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer hook.Close()

	e := srv.Engine
	cfg := *e.Config
	cfg.Webhooks = []config.WebhookConfig{{ID: "backend", URL: hook.URL, Events: []string{"company.created"}}}
	e.Config = &cfg
	ctx := context.Background()

	NewWebhookDispatcher(e, zap.NewNop()).DispatchAll(ctx)
	c := createCompany(t, srv, map[string]any{"name": "Offline", "sector": "retail"})

	restarted := NewWebhookDispatcher(e, zap.NewNop())
	restarted.DispatchAll(ctx)
	restarted.DispatchAll(ctx)

	mu.Lock()
	defer mu.Unlock()
	if len(events) != 1 || events[0].CompanyID != c.ID {
		t.Fatalf("expected the offline event once, got %+v", events)
	}
	latest, err := e.Repo.LatestEventID(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	cursor, err := e.Repo.WebhookCursor(ctx, "backend")
	if err != nil || cursor != latest {
		t.Fatalf("expected persisted cursor %d, got %d (%v)", latest, cursor, err)
	}
}

func TestFrameworkComplianceRoute(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	c := createCompany(t, srv, map[string]any{
		"name":    "Creek Hotel",
		"sector":  "hospitality",
		"answers": map[string]any{"hosp_energy_1": "no"},
	})
	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/companies/"+c.ID+"/generate", nil, actor)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("generate: %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/companies/"+c.ID+"/compliance/dst", nil, actor)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("compliance: %d %s", res.StatusCode, string(data))
	}
	var fc engine.FrameworkCompliance
	decode(t, data, &fc)
	if fc.Framework != "Dubai Sustainable Tourism" || fc.RequiredQuestions != 4 || fc.AnsweredQuestions != 1 || fc.Tasks != 3 {
		t.Fatalf("unexpected compliance %+v", fc)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/companies/"+c.ID+"/compliance/UAE%20Climate%20Law", nil, actor)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("escaped framework: %d %s", res.StatusCode, string(data))
	}
	fc = engine.FrameworkCompliance{}
	decode(t, data, &fc)
	if fc.Framework != "UAE Climate Law" || fc.Status != engine.ComplianceNonCompliant {
		t.Fatalf("unexpected climate compliance %+v", fc)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/companies/"+c.ID+"/compliance/estidama", nil, actor)
	if res.StatusCode != http.StatusNotFound || errorCode(t, data) != "not_found" {
		t.Fatalf("expected unknown framework not found, got %d %s", res.StatusCode, string(data))
	}
}

func TestHandleErrorGenerationFailed(t *testing.T) {
	err := handleError(fmt.Errorf("%w for company c1", engine.ErrGenerationFailed))
	apiErr, ok := err.(*apiError)
	if !ok {
		t.Fatalf("expected api error, got %T", err)
	}
	if apiErr.GetStatus() != http.StatusInternalServerError || apiErr.Body.Code != "generation_failed" {
		t.Fatalf("unexpected mapping %d %s", apiErr.GetStatus(), apiErr.Body.Code)
	}
}
