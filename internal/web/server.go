package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/jango-blockchained/cryptofolio/internal/entity"
)

const snapshotPollInterval = 2 * time.Second

type portfolioService interface {
	Snapshot(fiat string) entity.Valuation
	SyncExchangeBalances(ctx context.Context) *entity.SyncReport
	RefreshAddressBalances(ctx context.Context) error
}

type snapshotReader interface {
	SnapshotsAfter(index uint64) ([]entity.ValuationRecord, error)
}

type rateSink interface {
	Put(rate entity.Rate)
}

type inputsWriter interface {
	AddManual(user, currency string, amount *float64) error
	AddAddress(user, currency, address string) error
}

// Server exposes HTTP endpoints serving the portfolio JSON, mutation glue
// and an SSE stream of valuation snapshots.
type Server struct {
	Addr      string
	User      string
	Portfolio portfolioService
	Store     snapshotReader
	Rates     rateSink
	Inputs    inputsWriter
}

// NewServer creates a new web server instance.
func NewServer(addr, user string, portfolio portfolioService, store snapshotReader, rates rateSink, inputs inputsWriter) *Server {
	return &Server{Addr: addr, User: user, Portfolio: portfolio, Store: store, Rates: rates, Inputs: inputs}
}

// Start runs the HTTP server (blocking) and shuts it down when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/portfolio", s.handlePortfolio)
	mux.HandleFunc("/portfolio/stream", s.handlePortfolioStream)
	mux.HandleFunc("/sync", s.handleSync)
	mux.HandleFunc("/refresh", s.handleRefresh)
	mux.HandleFunc("/rates", s.handleRates)
	mux.HandleFunc("/inputs/manual", s.handleManualInput)
	mux.HandleFunc("/inputs/address", s.handleAddressInput)

	server := &http.Server{
		Addr:              s.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, indexHTML)
}

func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	snapshot := s.Portfolio.Snapshot(r.URL.Query().Get("fiat"))
	writeJSON(w, http.StatusOK, snapshot)
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	report := s.Portfolio.SyncExchangeBalances(r.Context())
	status := http.StatusOK
	if report.HasErrors {
		status = http.StatusMultiStatus
	}
	writeJSON(w, status, report)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := s.Portfolio.RefreshAddressBalances(r.Context()); err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleRates is the ingestion surface for the external rate collaborator.
func (s *Server) handleRates(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var rates []entity.Rate
	if err := json.NewDecoder(r.Body).Decode(&rates); err != nil {
		http.Error(w, "invalid payload: "+err.Error(), http.StatusBadRequest)
		return
	}
	for _, rate := range rates {
		if rate.Currency == "" || rate.Fiat == "" {
			http.Error(w, "rate rows need currency and fiat", http.StatusBadRequest)
			return
		}
		s.Rates.Put(rate)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleManualInput(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Currency string   `json:"currency"`
		Amount   *float64 `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Currency == "" {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	if err := s.Inputs.AddManual(s.User, req.Currency, req.Amount); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) handleAddressInput(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Currency string `json:"currency"`
		Address  string `json:"address"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Currency == "" || req.Address == "" {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	if err := s.Inputs.AddAddress(s.User, req.Currency, req.Address); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) handlePortfolioStream(w http.ResponseWriter, r *http.Request) {
	if s.Store == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, "snapshot store not available")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	lastIndex := uint64(0)
	emit := func(records []entity.ValuationRecord) error {
		for _, record := range records {
			payload, err := json.Marshal(record.Snapshot)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "event: valuation\n")
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
			lastIndex = record.Index
		}
		return nil
	}

	// load the backlog before committing to the stream so a failure can
	// still produce a plain error response
	initial, err := s.Store.SnapshotsAfter(lastIndex)
	if err != nil {
		log.Printf("portfolio stream initial load: %v", err)
		http.Error(w, "failed to load snapshots", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// send a comment heartbeat every 30s so proxies keep connection
	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	pollTicker := time.NewTicker(snapshotPollInterval)
	defer pollTicker.Stop()

	sendSnapshots := func() error {
		records, err := s.Store.SnapshotsAfter(lastIndex)
		if err != nil {
			return err
		}
		return emit(records)
	}

	if err := emit(initial); err != nil {
		log.Printf("portfolio stream initial emit: %v", err)
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprintf(w, ": ping\n\n")
			flusher.Flush()
		case <-pollTicker.C:
			if err := sendSnapshots(); err != nil {
				log.Printf("portfolio stream poll err: %v", err)
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write json response: %v", err)
	}
}

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>cryptofolio</title>
<style>
body { font-family: monospace; background: #101418; color: #d8dee9; margin: 2rem; }
h1 { color: #88c0d0; }
table { border-collapse: collapse; margin-top: 1rem; }
td, th { padding: 4px 12px; border-bottom: 1px solid #2e3440; text-align: right; }
th { color: #81a1c1; }
td:first-child, th:first-child { text-align: left; }
.total { margin-top: 1rem; font-size: 1.2rem; color: #a3be8c; }
.muted { color: #4c566a; }
</style>
</head>
<body>
<h1>cryptofolio</h1>
<div id="total" class="total"></div>
<table id="priced"><thead><tr><th>currency</th><th>amount</th><th>fiat</th></tr></thead><tbody></tbody></table>
<table id="unpriced"><thead><tr><th class="muted">unpriced</th><th class="muted">amount</th></tr></thead><tbody></tbody></table>
<script>
function render(v) {
  document.getElementById('total').textContent = 'total: ' + v.total_fiat + ' ' + v.fiat;
  const pb = document.querySelector('#priced tbody');
  pb.innerHTML = '';
  (v.balances || []).forEach(b => {
    pb.innerHTML += '<tr><td>' + b.currency + '</td><td>' + b.amount + '</td><td>' + b.amount_fiat.toFixed(2) + '</td></tr>';
  });
  const ub = document.querySelector('#unpriced tbody');
  ub.innerHTML = '';
  (v.other_balances || []).forEach(b => {
    ub.innerHTML += '<tr><td class="muted">' + b.currency + '</td><td class="muted">' + b.amount + '</td></tr>';
  });
}
fetch('/portfolio').then(r => r.json()).then(render);
const es = new EventSource('/portfolio/stream');
es.addEventListener('valuation', e => render(JSON.parse(e.data)));
</script>
</body>
</html>
`
