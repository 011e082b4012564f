package daemon

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"cardsorter/internal/api"
	"cardsorter/internal/logging"
	"cardsorter/internal/services"
	"cardsorter/internal/testsupport"
)

func newTestAPI(t *testing.T, token string) (*Daemon, http.Handler) {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithDemo())
	cfg.Paths.APIBind = ""
	d, err := New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	srv := &apiServer{daemon: d, logger: logging.NewNop()}
	return d, srv.routes(token)
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return out
}

func TestAPIPreviewIsBackendAndIdempotent(t *testing.T) {
	d, h := newTestAPI(t, "")
	for range 2 {
		w := do(t, h, http.MethodPost, "/api/assign/preview", `{"name":"Island","confidence":"oops"}`)
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
		}
		got := decode[api.AssignmentResult](t, w)
		if got.Cell != "C3" || got.Reason != "alpha_exact:I" || got.Provenance != "backend" {
			t.Fatalf("unexpected preview %+v", got)
		}
	}
	if d.Occupancy().Total != 0 {
		t.Fatal("preview changed occupancy")
	}
}

func TestAPICommitAndReset(t *testing.T) {
	_, h := newTestAPI(t, "")

	w := do(t, h, http.MethodPost, "/api/assign", `{"name":"Zombie","confidence":0.5}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	commit := decode[api.CommitResponse](t, w)
	if commit.Cell != "K3" || commit.Reason != "divert:low_confidence" {
		t.Fatalf("unexpected commit %+v", commit)
	}
	if commit.OccupancySnapshot.ErrorCount != 1 || commit.OccupancySnapshot.Total != 1 {
		t.Fatalf("unexpected occupancy %+v", commit.OccupancySnapshot)
	}

	w = do(t, h, http.MethodPost, "/api/counts/reset", "")
	reset := decode[api.ResetResponse](t, w)
	if !reset.OK || reset.Occupancy.Total != 0 {
		t.Fatalf("unexpected reset %+v", reset)
	}
}

func TestAPIRejectsUnsupportedSortingMode(t *testing.T) {
	_, h := newTestAPI(t, "")
	w := do(t, h, http.MethodPost, "/api/assign/preview", `{"name":"Island","sortingMode":"by_color"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if got := decode[api.ErrorResponse](t, w); got.Kind != services.KindValidation {
		t.Fatalf("unexpected error kind %+v", got)
	}
}

func TestAPIRunTransitions(t *testing.T) {
	_, h := newTestAPI(t, "")

	tests := []struct {
		path  string
		body  string
		code  int
		state string
	}{
		{path: "/api/run/pause", code: http.StatusConflict},
		{path: "/api/run/start", body: `{"total":1000}`, code: http.StatusOK, state: "running"},
		{path: "/api/run/start", code: http.StatusConflict},
		{path: "/api/run/pause", code: http.StatusOK, state: "paused"},
		{path: "/api/run/resume", code: http.StatusOK, state: "running"},
		{path: "/api/run/end", code: http.StatusOK, state: "ended"},
		{path: "/api/run/resume", code: http.StatusConflict},
		{path: "/api/run/bogus", code: http.StatusNotFound},
	}
	for _, tt := range tests {
		w := do(t, h, http.MethodPost, tt.path, tt.body)
		if w.Code != tt.code {
			t.Fatalf("%s: expected %d, got %d: %s", tt.path, tt.code, w.Code, w.Body.String())
		}
		if tt.state == "" {
			continue
		}
		if got := decode[api.RunStatus](t, w); got.State != tt.state {
			t.Fatalf("%s: expected state %s, got %s", tt.path, tt.state, got.State)
		}
	}

	w := do(t, h, http.MethodGet, "/api/run", "")
	if got := decode[api.RunStatus](t, w); got.State != "ended" || got.EndedAt == "" {
		t.Fatalf("unexpected run status %+v", got)
	}
}

func TestAPIStepWithEmptyPipeline(t *testing.T) {
	_, h := newTestAPI(t, "")
	w := do(t, h, http.MethodPost, "/api/run/step", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for empty pipeline, got %d", w.Code)
	}

	w = do(t, h, http.MethodPost, "/api/items", `[{"name":"Island"}]`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", w.Code)
	}
	w = do(t, h, http.MethodPost, "/api/run/step", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	step := decode[api.StepResponse](t, w)
	if step.Assignment.Cell != "C3" || step.Pending != 0 || float64(step.Item.Confidence) != 1 {
		t.Fatalf("unexpected step %+v", step)
	}
}

func TestAPIGridAndAlphabetMap(t *testing.T) {
	_, h := newTestAPI(t, "")
	w := do(t, h, http.MethodGet, "/api/grid", "")
	g := decode[api.GridResponse](t, w)
	if g.ErrorSlot != "K3" || len(g.Slots) != 33 || g.Rows != 3 {
		t.Fatalf("unexpected grid %+v", g)
	}
	w = do(t, h, http.MethodGet, "/api/alpha_map", "")
	m := decode[api.AlphabetMapResponse](t, w)
	if m.Letters["A"] != "A1" || m.Letters["I"] != "C3" || m.ErrorSlot != "K3" {
		t.Fatalf("unexpected alphabet map %+v", m)
	}
	if w := do(t, h, http.MethodPost, "/api/grid", ""); w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", w.Code)
	}
}

func TestAPIBatchEvaluate(t *testing.T) {
	_, h := newTestAPI(t, "")
	body := `{"fillAssignments":true,"records":[
		{"filename":"1.jpg","expectedName":"Island","expectedCell":"C3","identifiedName":"island","score":0.9},
		{"filename":"2.jpg","expectedName":"Forest","expectedCell":"B3","identifiedName":"Forrest","score":0.5}
	]}`
	w := do(t, h, http.MethodPost, "/api/batch/evaluate", body)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := decode[api.BatchEvaluateResponse](t, w)
	if len(resp.Rows) != 2 || resp.Summary.BothMatches != 1 {
		t.Fatalf("unexpected report %+v", resp)
	}
	if resp.Rows[1].AssignedSlot != "K3" {
		t.Fatalf("expected low score to be diverted, got %+v", resp.Rows[1])
	}
}

func TestAPIIdentifyWithoutCatalog(t *testing.T) {
	_, h := newTestAPI(t, "")
	w := do(t, h, http.MethodPost, "/api/identify", `{"name":"Island"}`)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
}

func TestAPIAuthRequiresBearerToken(t *testing.T) {
	_, h := newTestAPI(t, "s3cret")

	if w := do(t, h, http.MethodGet, "/api/status", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", w.Code)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Fatal("expected request id header")
	}
	status := decode[api.DaemonStatus](t, w)
	if !status.Running || status.Occupancy.ErrorSlot != "K3" || status.Threshold != 0.8 {
		t.Fatalf("unexpected status %+v", status)
	}
}

func TestAPILogsTail(t *testing.T) {
	hub := logging.NewStreamHub(16)
	hub.Publish(logging.LogEvent{Level: "info", Message: "one", Component: "run"})
	hub.Publish(logging.LogEvent{Level: "info", Message: "two", Component: "pipeline"})

	cfg := testsupport.NewConfig(t)
	cfg.Paths.APIBind = ""
	d, err := New(cfg, logging.NewNop(), WithLogStream("", hub))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	srv := &apiServer{daemon: d, logger: logging.NewNop()}
	h := srv.routes("")

	w := do(t, h, http.MethodGet, "/api/logs?tail=1&component=pipeline", "")
	resp := decode[api.LogStreamResponse](t, w)
	if len(resp.Events) != 1 || resp.Events[0].Message != "two" || resp.Next != 2 {
		t.Fatalf("unexpected log response %+v", resp)
	}
}
