package esgtracksdk

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientSendsAuthAndDecodes(t *testing.T) {
	var gotAuth, gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		json.NewEncoder(w).Encode(map[string]any{
			"company_id": "c1",
			"dry_run":    true,
			"tasks":      []map[string]any{{"id": "t1", "title": "Track energy", "priority": "high"}},
		})
	}))
	defer srv.Close()

	c := New(srv.URL + "/")
	c.BearerToken = "tok"
	gen, err := c.Generate(context.Background(), "c1", true)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if gotAuth != "Bearer tok" || gotPath != "/v0/companies/c1/generate" || gotQuery != "dry_run=true" {
		t.Fatalf("unexpected request: auth=%q path=%q query=%q", gotAuth, gotPath, gotQuery)
	}
	if !gen.DryRun || len(gen.Tasks) != 1 || gen.Tasks[0].Priority != "high" {
		t.Fatalf("unexpected generation: %+v", gen)
	}
}

func TestClientLegacyActorHeader(t *testing.T) {
	var gotActor string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotActor = r.Header.Get("X-Actor-Id")
		json.NewEncoder(w).Encode(map[string]any{"items": []any{}, "next_cursor": "7"})
	}))
	defer srv.Close()

	c := New(srv.URL)
	c.ActorID = "dev"
	page, err := c.EventsPage(context.Background(), "c1", 10, "12")
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if gotActor != "dev" || page.NextCursor != "7" {
		t.Fatalf("unexpected: actor=%q cursor=%q", gotActor, page.NextCursor)
	}
}

func TestClientAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"error":{"code":"evidence_incomplete","message":"task needs 3 evidence items"}}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL).CompleteTask(context.Background(), "c1", "t1", false)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusUnprocessableEntity || apiErr.Code != "evidence_incomplete" {
		t.Fatalf("unexpected api error: %+v", apiErr)
	}
}

func TestClientComplianceEscapesFramework(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		json.NewEncoder(w).Encode(map[string]any{"framework": "UAE Climate Law", "status": "partial", "tasks": 2})
	}))
	defer srv.Close()

	fc, err := New(srv.URL).Compliance(context.Background(), "c1", "UAE Climate Law")
	if err != nil {
		t.Fatalf("compliance: %v", err)
	}
	if gotPath != "/v0/companies/c1/compliance/UAE%20Climate%20Law" || fc.Status != "partial" || fc.Tasks != 2 {
		t.Fatalf("unexpected: path=%q %+v", gotPath, fc)
	}
}
