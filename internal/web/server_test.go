package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/jango-blockchained/cryptofolio/internal/entity"
)

type fakePortfolio struct {
	snapshotFiat string
	report       *entity.SyncReport
	refreshErr   error
}

func (f *fakePortfolio) Snapshot(fiat string) entity.Valuation {
	f.snapshotFiat = fiat
	if fiat == "" {
		fiat = "USD"
	}
	return entity.Valuation{User: "default", Fiat: fiat, TotalFiat: "0"}
}

func (f *fakePortfolio) SyncExchangeBalances(ctx context.Context) *entity.SyncReport {
	return f.report
}

func (f *fakePortfolio) RefreshAddressBalances(ctx context.Context) error {
	return f.refreshErr
}

type fakeRates struct {
	rows []entity.Rate
}

func (f *fakeRates) Put(rate entity.Rate) {
	f.rows = append(f.rows, rate)
}

type fakeInputs struct {
	manual    int
	addresses int
}

func (f *fakeInputs) AddManual(user, currency string, amount *float64) error {
	f.manual++
	return nil
}

func (f *fakeInputs) AddAddress(user, currency, address string) error {
	f.addresses++
	return nil
}

func newTestServer(portfolio *fakePortfolio) (*Server, *fakeRates, *fakeInputs) {
	rates := &fakeRates{}
	inputs := &fakeInputs{}
	return NewServer(":0", "default", portfolio, nil, rates, inputs), rates, inputs
}

func TestHandlePortfolioPassesFiat(t *testing.T) {
	portfolio := &fakePortfolio{}
	server, _, _ := newTestServer(portfolio)

	rec := httptest.NewRecorder()
	server.handlePortfolio(rec, httptest.NewRequest(http.MethodGet, "/portfolio?fiat=EUR", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "EUR", portfolio.snapshotFiat)

	var v entity.Valuation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	require.Equal(t, "EUR", v.Fiat)
}

func TestHandleSyncStatus(t *testing.T) {
	testCases := []struct {
		name       string
		report     *entity.SyncReport
		wantStatus int
	}{
		{
			name:       "clean run",
			report:     &entity.SyncReport{RunID: "r1"},
			wantStatus: http.StatusOK,
		},
		{
			name: "partial failure",
			report: &entity.SyncReport{
				RunID:     "r2",
				HasErrors: true,
				Errors:    []entity.SyncError{{AccountID: "acc-1", Err: "down"}},
			},
			wantStatus: http.StatusMultiStatus,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			server, _, _ := newTestServer(&fakePortfolio{report: tc.report})

			rec := httptest.NewRecorder()
			server.handleSync(rec, httptest.NewRequest(http.MethodPost, "/sync", nil))

			require.Equal(t, tc.wantStatus, rec.Code)

			var report entity.SyncReport
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
			require.Equal(t, tc.report.RunID, report.RunID)
		})
	}
}

func TestHandleSyncRejectsGet(t *testing.T) {
	server, _, _ := newTestServer(&fakePortfolio{report: &entity.SyncReport{}})

	rec := httptest.NewRecorder()
	server.handleSync(rec, httptest.NewRequest(http.MethodGet, "/sync", nil))
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleRefreshFailure(t *testing.T) {
	server, _, _ := newTestServer(&fakePortfolio{refreshErr: errors.New("rpc down")})

	rec := httptest.NewRecorder()
	server.handleRefresh(rec, httptest.NewRequest(http.MethodPost, "/refresh", nil))
	require.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestHandleRatesIngestion(t *testing.T) {
	server, rates, _ := newTestServer(&fakePortfolio{})

	body := `[{"currency":"BTC","fiat":"USD","rate":50000},{"currency":"ETH","fiat":"USD","rate":2000}]`
	rec := httptest.NewRecorder()
	server.handleRates(rec, httptest.NewRequest(http.MethodPost, "/rates", strings.NewReader(body)))

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Len(t, rates.rows, 2)
}

func TestHandleRatesRejectsIncompleteRow(t *testing.T) {
	server, rates, _ := newTestServer(&fakePortfolio{})

	rec := httptest.NewRecorder()
	server.handleRates(rec, httptest.NewRequest(http.MethodPost, "/rates", strings.NewReader(`[{"currency":"BTC"}]`)))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Empty(t, rates.rows)
}

func TestHandleManualInput(t *testing.T) {
	server, _, inputs := newTestServer(&fakePortfolio{})

	rec := httptest.NewRecorder()
	server.handleManualInput(rec, httptest.NewRequest(http.MethodPost, "/inputs/manual", strings.NewReader(`{"currency":"BTC","amount":1.5}`)))

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, 1, inputs.manual)
}

type fakeSnapshots struct {
	records []entity.ValuationRecord
	err     error
}

func (f *fakeSnapshots) SnapshotsAfter(index uint64) ([]entity.ValuationRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []entity.ValuationRecord
	for _, record := range f.records {
		if record.Index > index {
			out = append(out, record)
		}
	}
	return out, nil
}

func TestHandleStreamInitialLoadFailure(t *testing.T) {
	server, _, _ := newTestServer(&fakePortfolio{})
	server.Store = &fakeSnapshots{err: errors.New("wal corrupted")}

	rec := httptest.NewRecorder()
	server.handlePortfolioStream(rec, httptest.NewRequest(http.MethodGet, "/portfolio/stream", nil))

	// a failed backlog load must come back as a plain error response,
	// not a half-committed event stream
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.NotEqual(t, "text/event-stream", rec.Header().Get("Content-Type"))
}

func TestHandleStreamEmitsBacklog(t *testing.T) {
	server, _, _ := newTestServer(&fakePortfolio{})
	server.Store = &fakeSnapshots{records: []entity.ValuationRecord{
		{Index: 1, Snapshot: entity.Valuation{User: "default", Fiat: "USD", TotalFiat: "42"}},
	}}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/portfolio/stream", nil).WithContext(ctx)
	server.handlePortfolioStream(rec, req)

	require.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	require.Contains(t, body, "event: valuation")
	require.Contains(t, body, `"total_fiat":"42"`)
}

func TestHandleAddressInputValidation(t *testing.T) {
	server, _, inputs := newTestServer(&fakePortfolio{})

	rec := httptest.NewRecorder()
	server.handleAddressInput(rec, httptest.NewRequest(http.MethodPost, "/inputs/address", strings.NewReader(`{"currency":"ETH"}`)))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Zero(t, inputs.addresses)
}
