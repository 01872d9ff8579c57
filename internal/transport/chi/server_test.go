package chi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/defectscope/defectscope/internal/domain"
	"github.com/defectscope/defectscope/internal/domain/analysis"
	"github.com/defectscope/defectscope/internal/domain/complaint"
	"github.com/defectscope/defectscope/internal/domain/index"
	"github.com/defectscope/defectscope/internal/domain/recall"
	domsession "github.com/defectscope/defectscope/internal/domain/session"
	"github.com/defectscope/defectscope/internal/domain/vehicle"
	"github.com/defectscope/defectscope/internal/metrics"
	analysisuc "github.com/defectscope/defectscope/internal/usecase/analysis"
	healthuc "github.com/defectscope/defectscope/internal/usecase/health"
	sessionuc "github.com/defectscope/defectscope/internal/usecase/session"
)

func TestMain(m *testing.M) {
	metrics.RegisterAnalysisMetrics()
	os.Exit(m.Run())
}

// --- Mocks ---

type mockSessions struct {
	openFn       func(ctx context.Context, req sessionuc.OpenRequest) (*domsession.Session, error)
	getFn        func(ctx context.Context, id string) (*domsession.Session, error)
	closeFn      func(ctx context.Context, id string) error
	complaintsFn func(ctx context.Context, id, component string) ([]complaint.Record, error)
	searchFn     func(ctx context.Context, id, query string, k int) ([]index.Hit, error)
}

func (m *mockSessions) Open(ctx context.Context, req sessionuc.OpenRequest) (*domsession.Session, error) {
	return m.openFn(ctx, req)
}

func (m *mockSessions) Get(ctx context.Context, id string) (*domsession.Session, error) {
	return m.getFn(ctx, id)
}

func (m *mockSessions) Close(ctx context.Context, id string) error {
	if m.closeFn != nil {
		return m.closeFn(ctx, id)
	}
	return nil
}

func (m *mockSessions) Complaints(ctx context.Context, id, component string) ([]complaint.Record, error) {
	return m.complaintsFn(ctx, id, component)
}

func (m *mockSessions) Search(ctx context.Context, id, query string, k int) ([]index.Hit, error) {
	return m.searchFn(ctx, id, query, k)
}

func (m *mockSessions) Analyze(raws []complaint.Raw) analysis.Result {
	return analysisuc.Analyze(complaint.NormalizeAll(raws))
}

type mockVehicles struct {
	decodeFn  func(ctx context.Context, vin string) (vehicle.Vehicle, error)
	recallsFn func(ctx context.Context, v vehicle.Vehicle) ([]recall.Recall, error)
}

func (m *mockVehicles) DecodeVIN(ctx context.Context, vin string) (vehicle.Vehicle, error) {
	return m.decodeFn(ctx, vin)
}

func (m *mockVehicles) Recalls(ctx context.Context, v vehicle.Vehicle) ([]recall.Recall, error) {
	return m.recallsFn(ctx, v)
}

type mockHealth struct {
	report healthuc.Report
}

func (m *mockHealth) Check(_ context.Context) healthuc.Report { return m.report }

// --- Helpers ---

func newTestRouter(sessions *mockSessions, vehicles *mockVehicles, health *mockHealth) http.Handler {
	if sessions == nil {
		sessions = &mockSessions{}
	}
	if vehicles == nil {
		vehicles = &mockVehicles{}
	}
	if health == nil {
		health = &mockHealth{report: healthuc.Report{Status: healthuc.Healthy, Checks: map[string]healthuc.CheckResult{}}}
	}
	srv := NewServer(sessions, vehicles, health, Options{MaxK: 50}, zap.NewNop())
	return NewRouter(srv, nil, zap.NewNop())
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, http.NoBody)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var e errorResponse
	if err := json.NewDecoder(rr.Body).Decode(&e); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	return e
}

func testSession() *domsession.Session {
	records := []complaint.Record{
		{ComplaintID: "1", Date: time.Date(2021, 3, 4, 0, 0, 0, 0, time.UTC), Component: "BRAKES", Summary: "brakes failed", State: "CA", Crash: 1},
		{ComplaintID: "2", Component: "ENGINE", Summary: "stalled", State: "TX"},
	}
	return &domsession.Session{
		ID:         "sess-1",
		Vehicle:    vehicle.New("HONDA", "ACCORD", "2003"),
		Complaints: records,
		Recalls:    []recall.Recall{},
		Analysis:   analysisuc.Analyze(records),
		Index:      index.New([]index.Entry{{Position: 0, Record: records[0], Vector: []float32{1}}}),
		Embeddings: domsession.EmbeddingSummary{Indexed: 1, Skipped: 1, Failures: []domsession.Failure{}},
		CreatedAt:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// --- Tests ---

func TestAnalyze(t *testing.T) {
	h := newTestRouter(nil, nil, nil)
	body := `{"records":[
		{"component":"BRAKES","crash":"Y","injury":"2","state":"CA","date":"20200115"},
		{"component":"BRAKES","fire":1,"death":"0","state":"TX"},
		{"component":"AIRBAG","injury":"N/A","state":"CA","date":"2021-06-01"}
	]}`

	rr := do(t, h, http.MethodPost, "/v1/analyze", body)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}

	var res analysis.Result
	if err := json.NewDecoder(rr.Body).Decode(&res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Severity.TotalComplaints != 3 || res.Severity.Injuries != 2 || res.Severity.Crashes != 1 {
		t.Errorf("unexpected severity: %+v", res.Severity)
	}
	if res.ComponentCounts[0] != (analysis.Count{Label: "BRAKES", Count: 2}) {
		t.Errorf("unexpected component counts: %+v", res.ComponentCounts)
	}
	if len(res.YearlyTrend) != 2 || res.YearlyTrend[0].Year != 2020 {
		t.Errorf("unexpected trend: %+v", res.YearlyTrend)
	}
}

func TestAnalyze_EmptyBatchHasArrays(t *testing.T) {
	rr := do(t, newTestRouter(nil, nil, nil), http.MethodPost, "/v1/analyze", `{"records":[]}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if !bytes.Contains(rr.Body.Bytes(), []byte(`"component_counts":[]`)) {
		t.Errorf("expected empty arrays, got %s", rr.Body.String())
	}
}

func TestAnalyze_InvalidBody(t *testing.T) {
	rr := do(t, newTestRouter(nil, nil, nil), http.MethodPost, "/v1/analyze", `{"records":`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
	if e := decodeError(t, rr); e.Code != CodeBadRequest {
		t.Errorf("code = %s", e.Code)
	}
}

func TestOpenSession(t *testing.T) {
	var got sessionuc.OpenRequest
	sessions := &mockSessions{openFn: func(ctx context.Context, req sessionuc.OpenRequest) (*domsession.Session, error) {
		got = req
		domain.UsageFromContext(ctx).AddTokens(42)
		return testSession(), nil
	}}

	rr := do(t, newTestRouter(sessions, nil, nil), http.MethodPost, "/v1/sessions",
		`{"make":"honda","model":"accord","year":"2003"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	if got.Make != "honda" || got.Year != "2003" {
		t.Errorf("request not forwarded: %+v", got)
	}
	if rr.Header().Get("X-Embedding-Tokens") != "42" {
		t.Errorf("X-Embedding-Tokens = %q", rr.Header().Get("X-Embedding-Tokens"))
	}
	if rr.Header().Get("Location") != "/v1/sessions/sess-1" {
		t.Errorf("Location = %q", rr.Header().Get("Location"))
	}

	var resp sessionResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ID != "sess-1" || resp.Complaints != 2 || !resp.Searchable || resp.Embeddings.Skipped != 1 {
		t.Errorf("unexpected response: %+v", resp)
	}
	if len(resp.TopComponents) != 2 {
		t.Errorf("top components = %+v", resp.TopComponents)
	}
}

func TestOpenSession_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   ErrorCode
	}{
		{"invalid vehicle", domain.ErrInvalidVehicle, http.StatusBadRequest, CodeValidationFailed},
		{"vin not found", domain.ErrVINNotFound, http.StatusNotFound, CodeVINNotFound},
		{"upstream", domain.NewUpstreamError("vpic", 503), http.StatusBadGateway, CodeUpstreamError},
		{"rate limited", domain.ErrRateLimited, http.StatusTooManyRequests, CodeRateLimited},
		{"unexpected", errors.New("disk on fire at /var/lib/x"), http.StatusInternalServerError, CodeInternalError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sessions := &mockSessions{openFn: func(context.Context, sessionuc.OpenRequest) (*domsession.Session, error) {
				return nil, tt.err
			}}
			rr := do(t, newTestRouter(sessions, nil, nil), http.MethodPost, "/v1/sessions", `{"vin":"1HGCM82633A004352"}`)
			if rr.Code != tt.status {
				t.Fatalf("status = %d, want %d", rr.Code, tt.status)
			}
			e := decodeError(t, rr)
			if e.Code != tt.code {
				t.Errorf("code = %s, want %s", e.Code, tt.code)
			}
			if strings.Contains(e.Message, "/var/lib") || strings.Contains(e.Message, "503") {
				t.Errorf("message leaks internals: %q", e.Message)
			}
		})
	}
}

func TestGetSession_NotFound(t *testing.T) {
	sessions := &mockSessions{getFn: func(context.Context, string) (*domsession.Session, error) {
		return nil, domain.ErrSessionNotFound
	}}
	rr := do(t, newTestRouter(sessions, nil, nil), http.MethodGet, "/v1/sessions/missing", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rr.Code)
	}
	if e := decodeError(t, rr); e.Code != CodeSessionNotFound {
		t.Errorf("code = %s", e.Code)
	}
}

func TestGetSession(t *testing.T) {
	var gotID string
	sessions := &mockSessions{getFn: func(_ context.Context, id string) (*domsession.Session, error) {
		gotID = id
		return testSession(), nil
	}}
	rr := do(t, newTestRouter(sessions, nil, nil), http.MethodGet, "/v1/sessions/sess-1", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if gotID != "sess-1" {
		t.Errorf("id = %q", gotID)
	}
}

func TestCloseSession(t *testing.T) {
	var closed string
	sessions := &mockSessions{closeFn: func(_ context.Context, id string) error {
		closed = id
		return nil
	}}
	rr := do(t, newTestRouter(sessions, nil, nil), http.MethodDelete, "/v1/sessions/sess-1", "")
	if rr.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rr.Code)
	}
	if closed != "sess-1" {
		t.Errorf("closed = %q", closed)
	}
}

func TestListComplaints(t *testing.T) {
	var gotComponent string
	sessions := &mockSessions{complaintsFn: func(_ context.Context, _, component string) ([]complaint.Record, error) {
		gotComponent = component
		return testSession().Complaints, nil
	}}
	rr := do(t, newTestRouter(sessions, nil, nil), http.MethodGet, "/v1/sessions/sess-1/complaints?component=BRAKES", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if gotComponent != "BRAKES" {
		t.Errorf("component = %q", gotComponent)
	}

	var resp complaintListResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Total != 2 {
		t.Fatalf("total = %d", resp.Total)
	}
	if resp.Items[0].Date == nil || *resp.Items[0].Date != "2021-03-04" {
		t.Errorf("date = %v", resp.Items[0].Date)
	}
	if resp.Items[1].Date != nil {
		t.Errorf("unknown date should be null, got %v", *resp.Items[1].Date)
	}
}

func TestSearch(t *testing.T) {
	var gotK int
	sessions := &mockSessions{searchFn: func(ctx context.Context, _, query string, k int) ([]index.Hit, error) {
		gotK = k
		domain.UsageFromContext(ctx).AddTokens(3)
		rec := testSession().Complaints[0]
		return []index.Hit{{Position: 0, Record: rec, Score: 0.912}}, nil
	}}
	h := newTestRouter(sessions, nil, nil)

	rr := do(t, h, http.MethodPost, "/v1/sessions/sess-1/search", `{"query":"brake pedal went to the floor"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	if gotK != 0 {
		t.Errorf("omitted k should reach the service as 0, got %d", gotK)
	}
	if rr.Header().Get("X-Embedding-Tokens") != "3" {
		t.Errorf("X-Embedding-Tokens = %q", rr.Header().Get("X-Embedding-Tokens"))
	}

	var resp searchResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Total != 1 || resp.Items[0].Score != 0.912 || resp.Items[0].Complaint.ComplaintID != "1" {
		t.Errorf("unexpected response: %+v", resp)
	}

	rr = do(t, h, http.MethodPost, "/v1/sessions/sess-1/search", `{"query":"x","k":3}`)
	if rr.Code != http.StatusOK || gotK != 3 {
		t.Errorf("k=3: status %d, got k %d", rr.Code, gotK)
	}
}

func TestSearch_Validation(t *testing.T) {
	sessions := &mockSessions{searchFn: func(_ context.Context, _, query string, _ int) ([]index.Hit, error) {
		if strings.TrimSpace(query) == "" {
			return nil, domain.ErrEmptyQuery
		}
		return nil, domain.ErrNoEmbeddings
	}}
	h := newTestRouter(sessions, nil, nil)

	tests := []struct {
		name   string
		body   string
		status int
		code   ErrorCode
	}{
		{"zero k", `{"query":"x","k":0}`, http.StatusBadRequest, CodeValidationFailed},
		{"k above max", `{"query":"x","k":51}`, http.StatusBadRequest, CodeValidationFailed},
		{"blank query", `{"query":"   "}`, http.StatusBadRequest, CodeValidationFailed},
		{"no embeddings", `{"query":"brakes"}`, http.StatusUnprocessableEntity, CodeNoData},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, h, http.MethodPost, "/v1/sessions/sess-1/search", tt.body)
			if rr.Code != tt.status {
				t.Fatalf("status = %d, want %d", rr.Code, tt.status)
			}
			if e := decodeError(t, rr); e.Code != tt.code {
				t.Errorf("code = %s, want %s", e.Code, tt.code)
			}
		})
	}
}

func TestDecodeVIN(t *testing.T) {
	vehicles := &mockVehicles{decodeFn: func(_ context.Context, vin string) (vehicle.Vehicle, error) {
		if vin != "1HGCM82633A004352" {
			return vehicle.Vehicle{}, domain.ErrVINNotFound
		}
		return vehicle.New("HONDA", "ACCORD", "2003"), nil
	}}
	h := newTestRouter(nil, vehicles, nil)

	rr := do(t, h, http.MethodGet, "/v1/vehicles/vin/1HGCM82633A004352", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var v vehicle.Vehicle
	_ = json.NewDecoder(rr.Body).Decode(&v)
	if v.Model != "ACCORD" {
		t.Errorf("vehicle = %+v", v)
	}

	rr = do(t, h, http.MethodGet, "/v1/vehicles/vin/UNKNOWNVIN12", "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rr.Code)
	}
}

func TestListRecalls(t *testing.T) {
	var got vehicle.Vehicle
	vehicles := &mockVehicles{recallsFn: func(_ context.Context, v vehicle.Vehicle) ([]recall.Recall, error) {
		got = v
		return []recall.Recall{{CampaignNumber: "03V000", Component: "BRAKES"}}, nil
	}}
	h := newTestRouter(nil, vehicles, nil)

	rr := do(t, h, http.MethodGet, "/v1/recalls?make=honda&model=accord&year=2003", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if got != (vehicle.Vehicle{Make: "HONDA", Model: "ACCORD", Year: "2003"}) {
		t.Errorf("vehicle = %+v", got)
	}

	rr = do(t, h, http.MethodGet, "/v1/recalls?make=honda&year=2003", "")
	if rr.Code != http.StatusBadRequest {
		t.Errorf("missing model: status = %d, want 400", rr.Code)
	}
}

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		status healthuc.Status
		code   int
	}{
		{healthuc.Healthy, http.StatusOK},
		{healthuc.Degraded, http.StatusOK},
		{healthuc.Unhealthy, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		health := &mockHealth{report: healthuc.Report{
			Status: tt.status,
			Checks: map[string]healthuc.CheckResult{"dataset": healthuc.CheckOK},
		}}
		rr := do(t, newTestRouter(nil, nil, health), http.MethodGet, "/health", "")
		if rr.Code != tt.code {
			t.Errorf("%s: status = %d, want %d", tt.status, rr.Code, tt.code)
		}
	}
}

func TestRecoverer(t *testing.T) {
	sessions := &mockSessions{getFn: func(context.Context, string) (*domsession.Session, error) {
		panic("boom")
	}}
	rr := do(t, newTestRouter(sessions, nil, nil), http.MethodGet, "/v1/sessions/x", "")
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rr.Code)
	}
	if e := decodeError(t, rr); e.Code != CodeInternalError {
		t.Errorf("code = %s", e.Code)
	}
}

func TestRequestIDHeader(t *testing.T) {
	rr := do(t, newTestRouter(nil, nil, nil), http.MethodGet, "/health", "")
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}
}

func TestNotFoundRoute(t *testing.T) {
	rr := do(t, newTestRouter(nil, nil, nil), http.MethodGet, "/v2/unknown", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rr.Code)
	}
}
