package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pacing-engine/internal/errors"
	"github.com/pacing-engine/internal/pacing"
	"github.com/pacing-engine/internal/service"
	"github.com/pacing-engine/internal/storage"
	"github.com/pacing-engine/internal/types"
)

type stubPacingService struct {
	result *service.ReportResult
	err    error
	got    *service.ReportInput
}

func (s *stubPacingService) Report(ctx context.Context, input *service.ReportInput) (*service.ReportResult, error) {
	s.got = input
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

type stubPortfolioService struct {
	snapshot *types.PortfolioSnapshot
	err      error
}

func (s *stubPortfolioService) GetSnapshot(ctx context.Context) (*types.PortfolioSnapshot, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.snapshot, nil
}

type stubDeliveryFetcher struct {
	result *storage.FetchResult
	err    error
	gotIDs []string
}

func (s *stubDeliveryFetcher) Fetch(ctx context.Context, lineItemIDs []string, window pacing.DateWindow) (*storage.FetchResult, error) {
	s.gotIDs = lineItemIDs
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

type stubRefresher struct {
	triggered []string
}

func (s *stubRefresher) Trigger(campaignID string) {
	s.triggered = append(s.triggered, campaignID)
}

type testServer struct {
	server    *Server
	pacing    *stubPacingService
	portfolio *stubPortfolioService
	delivery  *stubDeliveryFetcher
	refresher *stubRefresher
}

func newTestServer() *testServer {
	ts := &testServer{
		pacing:    &stubPacingService{},
		portfolio: &stubPortfolioService{},
		delivery:  &stubDeliveryFetcher{},
		refresher: &stubRefresher{},
	}

	config := &ServerConfig{
		Host:              "localhost",
		Port:              "0",
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      5 * time.Second,
		IdleTimeout:       5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		RequestsPerSecond: 1000,
		Burst:             1000,
	}

	ts.server = NewServer(config, ts.pacing, ts.portfolio, ts.delivery, ts.refresher)
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	ts.server.Router().ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer()

	rec := ts.do(t, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}

func TestPacingReport_Success(t *testing.T) {
	ts := newTestServer()
	ts.pacing.result = &service.ReportResult{
		CampaignID: "cmp-001",
		Results: []types.PacingResult{
			{LineItemID: "ab1", SpendPaceStatus: types.PaceOn},
		},
	}

	rec := ts.do(t, http.MethodPost, "/api/pacing/report", map[string]interface{}{
		"campaignId":  "cmp-001",
		"lineItemIds": []string{"ab1"},
		"startDate":   "2024-01-01",
		"endDate":     "2024-01-31",
	})

	require.Equal(t, http.StatusOK, rec.Code)

	var result service.ReportResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "cmp-001", result.CampaignID)
	require.Len(t, result.Results, 1)
	assert.Equal(t, types.PaceOn, result.Results[0].SpendPaceStatus)

	require.NotNil(t, ts.pacing.got)
	require.NotNil(t, ts.pacing.got.StartDate)
	assert.Equal(t, "2024-01-01", ts.pacing.got.StartDate.Format("2006-01-02"))
}

func TestPacingReport_PresetIsUppercased(t *testing.T) {
	ts := newTestServer()
	ts.pacing.result = &service.ReportResult{CampaignID: "cmp-001"}

	rec := ts.do(t, http.MethodPost, "/api/pacing/report", map[string]interface{}{
		"campaignId":  "cmp-001",
		"lineItemIds": []string{"ab1"},
		"preset":      "last_30",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, pacing.PresetLast30, ts.pacing.got.Preset)
}

func TestPacingReport_MalformedBody(t *testing.T) {
	ts := newTestServer()

	req := httptest.NewRequest(http.MethodPost, "/api/pacing/report", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	ts.server.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "VALIDATION_ERROR")
}

func TestPacingReport_BadDates(t *testing.T) {
	ts := newTestServer()

	tests := []struct {
		name string
		body map[string]interface{}
	}{
		{
			name: "bad start date",
			body: map[string]interface{}{
				"campaignId": "cmp-001", "lineItemIds": []string{"ab1"}, "startDate": "Jan 1 2024",
			},
		},
		{
			name: "bad end date",
			body: map[string]interface{}{
				"campaignId": "cmp-001", "lineItemIds": []string{"ab1"}, "endDate": "31/01/2024",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodPost, "/api/pacing/report", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), "VALIDATION_ERROR")
		})
	}
}

func TestPacingReport_ServiceErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "validation error",
			err:        errors.NewValidationError("lineItemIds", "must not be empty"),
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_ERROR",
		},
		{
			name:       "timeout maps to gateway timeout",
			err:        errors.NewTimeoutError("delivery fetch", context.DeadlineExceeded),
			wantStatus: http.StatusGatewayTimeout,
			wantCode:   "QUERY_TIMEOUT",
		},
		{
			name:       "query failure maps to bad gateway",
			err:        errors.NewQueryError("delivery fetch", assert.AnError),
			wantStatus: http.StatusBadGateway,
			wantCode:   "QUERY_ERROR",
		},
		{
			name:       "unknown campaign maps to not found",
			err:        errors.NewNotFoundError("campaign", "cmp-404"),
			wantStatus: http.StatusNotFound,
			wantCode:   "NOT_FOUND",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer()
			ts.pacing.err = tt.err

			rec := ts.do(t, http.MethodPost, "/api/pacing/report", map[string]interface{}{
				"campaignId":  "cmp-001",
				"lineItemIds": []string{"ab1"},
			})

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantCode)
		})
	}
}

func TestPortfolioEndpoint(t *testing.T) {
	ts := newTestServer()
	ts.portfolio.snapshot = &types.PortfolioSnapshot{
		PlannedTotal: 10000,
		SpentToDate:  4900,
		OnCount:      2,
	}

	rec := ts.do(t, http.MethodGet, "/api/pacing/portfolio", nil)

	require.Equal(t, http.StatusOK, rec.Code)

	var snapshot types.PortfolioSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snapshot))
	assert.Equal(t, 10000.0, snapshot.PlannedTotal)
	assert.Equal(t, 2, snapshot.OnCount)
}

func TestDeliveryEndpoint(t *testing.T) {
	ts := newTestServer()
	ts.delivery.result = &storage.FetchResult{
		Rows: []types.DeliveryRow{
			{LineItemID: "ab1", Channel: types.ChannelSocial, AmountSpent: 100},
		},
		Count: 1,
	}

	rec := ts.do(t, http.MethodGet, "/api/delivery?lineItemIds=ab1,cd2&startDate=2024-01-01&endDate=2024-01-31", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"ab1", "cd2"}, ts.delivery.gotIDs)

	var result storage.FetchResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 1, result.Count)
}

func TestDeliveryEndpoint_RequiresLineItems(t *testing.T) {
	ts := newTestServer()

	rec := ts.do(t, http.MethodGet, "/api/delivery", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "lineItemIds")
}

func TestRefreshEndpoint(t *testing.T) {
	ts := newTestServer()

	rec := ts.do(t, http.MethodPost, "/api/pacing/refresh/cmp-001", nil)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Contains(t, rec.Body.String(), "queued")
	assert.Equal(t, []string{"cmp-001"}, ts.refresher.triggered)
}

func TestRequestIDHeaderIsSet(t *testing.T) {
	ts := newTestServer()

	rec := ts.do(t, http.MethodGet, "/health", nil)

	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}
