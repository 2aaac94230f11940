package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"

	"github.com/google/uuid"

	"pulseboard/internal/config"
	"pulseboard/internal/db"
	"pulseboard/internal/domain"
	"pulseboard/internal/engine"
	"pulseboard/internal/generate"
	"pulseboard/internal/migrate"
	"pulseboard/internal/repo"
)

const testSecret = "test-secret"

type stubGenerator struct {
	response string
	err      error
}

func (s stubGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return s.response, s.err
}

const stubResponse = `{
	"projectName": "Apollo",
	"summary": "Making progress.",
	"overallStatus": "At Risk",
	"deliverySentiment": 72,
	"health": {"schedule": "At Risk", "scope": "On Track", "quality": "On Track", "resource": "On Track"},
	"highlights": ["Shipped beta"],
	"upcomingWork": ["Load testing"],
	"risks": [{"description": "Vendor delay", "severity": "High", "mitigation": "Escalate"}],
	"actionItems": [{"task": "Fix build", "owner": "Kim", "dueDate": "2026-09-01", "status": "Open"}],
	"workload": [{"owner": "Kim", "loadPercentage": 85, "taskCount": 7}],
	"dependencies": [{"dependency": "Auth service", "impact": "Blocks login", "status": "Waiting"}]
}`

type testServer struct {
	URL    string
	Engine engine.Engine
	client *http.Client
	close  func()
}

func (s *testServer) Close() { s.close() }

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newTestServerWith(t, stubGenerator{response: stubResponse})
}

func newTestServerWith(t *testing.T, gen generate.Generator) *testServer {
	t.Helper()
	workspace := t.TempDir()
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		t.Fatalf("ensure workspace: %v", err)
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e, err := engine.New(context.Background(), conn, config.Default(), gen)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	handler, err := New(Config{Engine: e, BasePath: "/v0", Auth: AuthConfig{JWTSecret: testSecret}})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	ts := &testServer{
		URL:    "http://" + ln.Addr().String(),
		Engine: e,
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	t.Cleanup(ts.Close)
	return ts
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

func login(t *testing.T, ts *testServer) map[string]string {
	t.Helper()
	res, body := doJSON(t, ts.client, http.MethodPost, ts.URL+"/v0/auth/login",
		map[string]string{"email": "pm@example.com", "name": "Pat"}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("login: status %d body %s", res.StatusCode, body)
	}
	var out LoginResponse
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	if out.Token == "" {
		t.Fatal("empty token")
	}
	return map[string]string{"Authorization": "Bearer " + out.Token}
}

func TestHealthIsOpen(t *testing.T) {
	ts := newTestServer(t)
	res, _ := doJSON(t, ts.client, http.MethodGet, ts.URL+"/v0/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status %d", res.StatusCode)
	}
}

func TestRequestsWithoutAuthRejected(t *testing.T) {
	ts := newTestServer(t)
	res, body := doJSON(t, ts.client, http.MethodGet, ts.URL+"/v0/reports", nil, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status %d body %s", res.StatusCode, body)
	}
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		t.Fatalf("decode error envelope: %v", err)
	}
	if envelope.Error.Code != "unauthorized" {
		t.Fatalf("code = %q", envelope.Error.Code)
	}

	res, _ = doJSON(t, ts.client, http.MethodGet, ts.URL+"/v0/reports", nil,
		map[string]string{"Authorization": "Bearer not-a-token"})
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad token: status %d", res.StatusCode)
	}
}

func TestIngestSaveListDelete(t *testing.T) {
	ts := newTestServer(t)
	auth := login(t, ts)

	res, body := doJSON(t, ts.client, http.MethodPost, ts.URL+"/v0/reports/ingest",
		map[string]string{"content": "id\ttitle\n1\tETL"}, auth)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("ingest: status %d body %s", res.StatusCode, body)
	}
	var report domain.Report
	if err := json.Unmarshal(body, &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.Title != "Report: Apollo" || report.ID == "" {
		t.Fatalf("report = %+v", report)
	}

	// ingest does not save
	res, body = doJSON(t, ts.client, http.MethodGet, ts.URL+"/v0/reports", nil, auth)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list: status %d", res.StatusCode)
	}
	var listing reportList
	if err := json.Unmarshal(body, &listing); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(listing.Items) != 0 {
		t.Fatalf("saved without save: %+v", listing.Items)
	}

	res, _ = doJSON(t, ts.client, http.MethodPut, ts.URL+"/v0/reports/"+report.ID, report, auth)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("save: status %d", res.StatusCode)
	}
	res, body = doJSON(t, ts.client, http.MethodGet, ts.URL+"/v0/reports/"+report.ID, nil, auth)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("get: status %d body %s", res.StatusCode, body)
	}

	res, _ = doJSON(t, ts.client, http.MethodDelete, ts.URL+"/v0/reports/"+report.ID, nil, auth)
	if res.StatusCode != http.StatusNoContent {
		t.Fatalf("delete: status %d", res.StatusCode)
	}
	res, _ = doJSON(t, ts.client, http.MethodGet, ts.URL+"/v0/reports/"+report.ID, nil, auth)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("get after delete: status %d", res.StatusCode)
	}
}

func TestEditEndpoint(t *testing.T) {
	ts := newTestServer(t)
	auth := login(t, ts)

	_, body := doJSON(t, ts.client, http.MethodPost, ts.URL+"/v0/reports/ingest",
		map[string]string{"content": "raw"}, auth)
	var report domain.Report
	if err := json.Unmarshal(body, &report); err != nil {
		t.Fatal(err)
	}
	doJSON(t, ts.client, http.MethodPut, ts.URL+"/v0/reports/"+report.ID, report, auth)

	res, body := doJSON(t, ts.client, http.MethodPost, ts.URL+"/v0/reports/"+report.ID+"/edits",
		EditRequest{Op: "set_title", Value: "Report: Apollo (week 35)", Save: true}, auth)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("edit: status %d body %s", res.StatusCode, body)
	}
	var edited domain.Report
	if err := json.Unmarshal(body, &edited); err != nil {
		t.Fatal(err)
	}
	if edited.Title != "Report: Apollo (week 35)" {
		t.Fatalf("title = %q", edited.Title)
	}

	// saved because the edit carried save=true
	res, body = doJSON(t, ts.client, http.MethodGet, ts.URL+"/v0/reports/"+report.ID, nil, auth)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("get: status %d", res.StatusCode)
	}
	var persisted domain.Report
	if err := json.Unmarshal(body, &persisted); err != nil {
		t.Fatal(err)
	}
	if persisted.Title != "Report: Apollo (week 35)" {
		t.Fatalf("persisted title = %q", persisted.Title)
	}

	// out-of-range index maps to a client error
	idx := 9
	res, _ = doJSON(t, ts.client, http.MethodPost, ts.URL+"/v0/reports/"+report.ID+"/edits",
		EditRequest{Op: "edit_highlight", Index: &idx, Value: "x"}, auth)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("out of range: status %d", res.StatusCode)
	}
}

func TestSetHealthEdit(t *testing.T) {
	ts := newTestServer(t)
	auth := login(t, ts)

	_, body := doJSON(t, ts.client, http.MethodPost, ts.URL+"/v0/reports/ingest",
		map[string]string{"content": "raw"}, auth)
	var report domain.Report
	if err := json.Unmarshal(body, &report); err != nil {
		t.Fatal(err)
	}
	doJSON(t, ts.client, http.MethodPut, ts.URL+"/v0/reports/"+report.ID, report, auth)

	res, body := doJSON(t, ts.client, http.MethodPost, ts.URL+"/v0/reports/"+report.ID+"/edits",
		EditRequest{Op: "set_health", Dimension: "quality", Value: "Off Track"}, auth)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("set_health: status %d body %s", res.StatusCode, body)
	}
	var edited domain.Report
	if err := json.Unmarshal(body, &edited); err != nil {
		t.Fatal(err)
	}
	if edited.Health.Quality != domain.StatusOffTrack {
		t.Fatalf("quality = %q", edited.Health.Quality)
	}

	// omitting the dimension is rejected up front
	res, body = doJSON(t, ts.client, http.MethodPost, ts.URL+"/v0/reports/"+report.ID+"/edits",
		map[string]string{"op": "set_health", "value": "Off Track"}, auth)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing dimension: status %d body %s", res.StatusCode, body)
	}
	if !bytes.Contains(body, []byte("dimension")) {
		t.Fatalf("error does not name the dimension field: %s", body)
	}

	// an unknown dimension value fails schema validation
	res, _ = doJSON(t, ts.client, http.MethodPost, ts.URL+"/v0/reports/"+report.ID+"/edits",
		map[string]string{"op": "set_health", "dimension": "morale", "value": "Off Track"}, auth)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown dimension: status %d", res.StatusCode)
	}
}

func TestExportEndpoint(t *testing.T) {
	ts := newTestServer(t)
	auth := login(t, ts)

	_, body := doJSON(t, ts.client, http.MethodPost, ts.URL+"/v0/reports/ingest",
		map[string]string{"content": "raw"}, auth)
	var report domain.Report
	if err := json.Unmarshal(body, &report); err != nil {
		t.Fatal(err)
	}
	doJSON(t, ts.client, http.MethodPut, ts.URL+"/v0/reports/"+report.ID, report, auth)

	res, body := doJSON(t, ts.client, http.MethodGet, ts.URL+"/v0/reports/"+report.ID+"/export", nil, auth)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("export: status %d body %s", res.StatusCode, body)
	}
	var out exportResponse
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains([]byte(out.Text), []byte("PROJECT STATUS REPORT: Apollo")) {
		t.Fatalf("export text:\n%s", out.Text)
	}
}

func TestGenerationFailureMapsToBadGateway(t *testing.T) {
	ts := newTestServerWith(t, stubGenerator{err: &generate.Error{Message: "generation returned an empty response"}})
	auth := login(t, ts)
	res, body := doJSON(t, ts.client, http.MethodPost, ts.URL+"/v0/reports/ingest",
		map[string]string{"content": "raw"}, auth)
	if res.StatusCode != http.StatusBadGateway {
		t.Fatalf("status %d body %s", res.StatusCode, body)
	}
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		t.Fatal(err)
	}
	if envelope.Error.Code != "generation_failed" {
		t.Fatalf("code = %q", envelope.Error.Code)
	}
}

func TestUnparseableResponseMapsToUnprocessable(t *testing.T) {
	ts := newTestServerWith(t, stubGenerator{response: "sorry, no JSON"})
	auth := login(t, ts)
	res, body := doJSON(t, ts.client, http.MethodPost, ts.URL+"/v0/reports/ingest",
		map[string]string{"content": "raw"}, auth)
	if res.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status %d body %s", res.StatusCode, body)
	}
}

func TestAPIKeyAuth(t *testing.T) {
	ts := newTestServer(t)

	secret := uuid.NewString()
	key := domain.APIKey{ID: uuid.NewString(), Name: "ci", KeyHash: repo.HashAPIKey(secret)}
	if err := ts.Engine.Repo.InsertAPIKey(context.Background(), key); err != nil {
		t.Fatalf("insert key: %v", err)
	}

	res, body := doJSON(t, ts.client, http.MethodGet, ts.URL+"/v0/reports", nil,
		map[string]string{"X-Api-Key": secret})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status %d body %s", res.StatusCode, body)
	}

	res, _ = doJSON(t, ts.client, http.MethodGet, ts.URL+"/v0/reports", nil,
		map[string]string{"X-Api-Key": "wrong"})
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("wrong key: status %d", res.StatusCode)
	}
}
