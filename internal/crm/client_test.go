package crm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MikeSquared-Agency/dealwatch/internal/apperr"
	"github.com/MikeSquared-Agency/dealwatch/internal/rules"
)

func TestFindRecordByEmail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("expected bearer auth, got %q", r.Header.Get("Authorization"))
		}
		if r.URL.Path != "/records" || r.URL.Query().Get("email") != "ann@example.com" {
			t.Errorf("unexpected request %s", r.URL)
		}
		json.NewEncoder(w).Encode([]Record{{ID: "rec-1", Email: "ann@example.com", Stage: rules.StageWorking}})
	}))
	defer server.Close()

	c := NewClient(server.URL+"/", "test-key")
	rec, err := c.FindRecordByEmail(context.Background(), "ann@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.ID != "rec-1" || rec.Stage != rules.StageWorking {
		t.Errorf("unexpected record %+v", rec)
	}
}

func TestFindRecordByEmail_NoMatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("[]"))
	}))
	defer server.Close()

	_, err := NewClient(server.URL, "").FindRecordByEmail(context.Background(), "x@example.com")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateRecord(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch || r.URL.Path != "/records/rec-1" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		var u Update
		if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if u.Stage != rules.StageClosedLost || u.Disposition != rules.DispositionNotInterested {
			t.Errorf("unexpected update %+v", u)
		}
		json.NewEncoder(w).Encode(UpdateResult{Success: true, PreviousStage: rules.StageWorking})
	}))
	defer server.Close()

	res, err := NewClient(server.URL, "k").UpdateRecord(context.Background(), "rec-1", Update{
		Stage:       rules.StageClosedLost,
		Disposition: rules.DispositionNotInterested,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Success || res.PreviousStage != rules.StageWorking {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestUpdateRecord_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"server error", http.StatusBadGateway, `{"error":"upstream"}`, apperr.ErrDownstreamUnavailable},
		{"not found", http.StatusNotFound, ``, apperr.ErrNotFound},
		{"rejected", http.StatusOK, `{"success":false,"error":"stage locked"}`, nil},
		{"bad request", http.StatusBadRequest, `{"error":"bad stage"}`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := NewClient(server.URL, "k").UpdateRecord(context.Background(), "rec-1", Update{Stage: rules.StageWorking})
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := NewClient(url, "k").UpdateRecord(context.Background(), "rec-1", Update{Stage: rules.StageWorking})
	if !errors.Is(err, apperr.ErrDownstreamUnavailable) {
		t.Errorf("expected ErrDownstreamUnavailable, got %v", err)
	}
}

func TestGetDeal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/deals/deal-9" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"name":"12 Elm St","rep_id":"rep-1","manager_id":"mgr-1"}`))
	}))
	defer server.Close()

	d, err := NewClient(server.URL, "").GetDeal(context.Background(), "deal-9")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.ID != "deal-9" || d.RepID != "rep-1" || d.ManagerID != "mgr-1" {
		t.Errorf("unexpected deal %+v", d)
	}
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	s.PutRecord(Record{ID: "rec-1", Email: "Ann@Example.com", Stage: rules.StageNew})
	ctx := context.Background()

	rec, err := s.FindRecordByEmail(ctx, "ann@example.com")
	if err != nil {
		t.Fatalf("FindRecordByEmail: %v", err)
	}
	rec.Stage = rules.StageClosedWon
	if stored, _ := s.Record("rec-1"); stored.Stage != rules.StageNew {
		t.Error("returned record aliases the stored one")
	}

	res, err := s.UpdateRecord(ctx, "rec-1", Update{Stage: rules.StageWorking, Tasks: []string{"Schedule callback"}})
	if err != nil || !res.Success || res.PreviousStage != rules.StageNew {
		t.Fatalf("UpdateRecord = %+v, %v", res, err)
	}
	if stored, _ := s.Record("rec-1"); stored.Stage != rules.StageWorking {
		t.Errorf("stage = %s", stored.Stage)
	}
	if tasks := s.Tasks("rec-1"); len(tasks) != 1 {
		t.Errorf("tasks = %v", tasks)
	}
	if _, err := s.UpdateRecord(ctx, "missing", Update{}); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
