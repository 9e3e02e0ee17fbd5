// Package providertest provides a fake KIS REST server for testing.
// It serves the token, current price and daily price endpoints and lets tests inject
// failures, garbage payloads and latency.
package providertest

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/rxtech-lab/argo-papertrade/internal/types"
)

// Endpoint names a fake server route.
type Endpoint string

const (
	EndpointToken Endpoint = "token"
	EndpointQuote Endpoint = "quote"
	EndpointDaily Endpoint = "daily"
)

// Failure describes how an endpoint misbehaves.
type Failure struct {
	// StatusCode is returned instead of 200 when non-zero
	StatusCode int
	// Garbled returns a body that is valid JSON but not a valid payload
	Garbled bool
	// ResultCode overrides the rt_cd field of a 200 response
	ResultCode string
}

// Server is a fake KIS server.
type Server struct {
	mu sync.RWMutex

	httpServer *http.Server
	listener   net.Listener

	appKey    string
	appSecret string
	token     string
	expiresIn int64

	quotes   map[string]types.Quote
	candles  map[string][]types.Candle
	failures map[Endpoint]Failure
	delay    time.Duration

	calls map[Endpoint][]time.Time
}

// Config holds the credentials the server accepts.
type Config struct {
	AppKey    string
	AppSecret string
	// ExpiresIn is reported with every token, in seconds
	ExpiresIn int64
}

func NewServer(config Config) *Server {
	if config.ExpiresIn == 0 {
		config.ExpiresIn = 86400
	}

	return &Server{
		appKey:    config.AppKey,
		appSecret: config.AppSecret,
		expiresIn: config.ExpiresIn,
		quotes:    make(map[string]types.Quote),
		candles:   make(map[string][]types.Candle),
		failures:  make(map[Endpoint]Failure),
		calls:     make(map[Endpoint][]time.Time),
	}
}

// Start starts the server on the given address.
// If address is empty or ":0", a random available port is used.
func (s *Server) Start(address string) error {
	if address == "" {
		address = "127.0.0.1:0"
	}

	listener, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}
	s.listener = listener

	router := mux.NewRouter()
	router.HandleFunc("/oauth2/tokenP", s.handleToken).Methods(http.MethodPost)
	router.HandleFunc("/uapi/domestic-stock/v1/quotations/inquire-price", s.handleQuote).Methods(http.MethodGet)
	router.HandleFunc("/uapi/domestic-stock/v1/quotations/inquire-daily-price", s.handleDaily).Methods(http.MethodGet)

	s.httpServer = &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			fmt.Printf("fake provider server error: %v\n", err)
		}
	}()

	return nil
}

// Stop stops the server.
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return s.httpServer.Shutdown(ctx)
}

// BaseURL returns the base URL for the server.
func (s *Server) BaseURL() string {
	return "http://" + s.listener.Addr().String()
}

// SetQuote sets the current price snapshot for a symbol.
func (s *Server) SetQuote(quote types.Quote) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quotes[quote.Symbol] = quote
}

// SetCandles sets the daily bars for a symbol. They are served newest first.
func (s *Server) SetCandles(symbol string, candles []types.Candle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.candles[symbol] = append([]types.Candle(nil), candles...)
}

// Fail makes endpoint misbehave until Recover is called.
func (s *Server) Fail(endpoint Endpoint, failure Failure) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[endpoint] = failure
}

// Recover clears all injected failures.
func (s *Server) Recover() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = make(map[Endpoint]Failure)
}

// SetDelay delays every response.
func (s *Server) SetDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = d
}

// Calls returns how many requests reached endpoint.
func (s *Server) Calls(endpoint Endpoint) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.calls[endpoint])
}

// CallTimes returns the arrival time of every request, across all endpoints, in order.
func (s *Server) CallTimes() []time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var all []time.Time
	for _, times := range s.calls {
		all = append(all, times...)
	}

	sort.Slice(all, func(i, j int) bool { return all[i].Before(all[j]) })

	return all
}

// begin records the call and returns the failure configured for endpoint.
func (s *Server) begin(endpoint Endpoint) (Failure, bool) {
	s.mu.Lock()
	s.calls[endpoint] = append(s.calls[endpoint], time.Now())
	failure, failing := s.failures[endpoint]
	delay := s.delay
	s.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	return failure, failing
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func (s *Server) authorized(r *http.Request) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return r.Header.Get("authorization") == "Bearer "+s.token &&
		r.Header.Get("appkey") == s.appKey &&
		r.Header.Get("appsecret") == s.appSecret
}

// handleToken handles POST /oauth2/tokenP
func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	failure, failing := s.begin(EndpointToken)
	if failing && failure.StatusCode != 0 {
		writeJSON(w, failure.StatusCode, map[string]string{"error_description": "token issuance failed"})

		return
	}

	var req struct {
		GrantType string `json:"grant_type"`
		AppKey    string `json:"appkey"`
		AppSecret string `json:"appsecret"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error_description": "invalid body"})

		return
	}

	if req.GrantType != "client_credentials" || req.AppKey != s.appKey || req.AppSecret != s.appSecret {
		writeJSON(w, http.StatusForbidden, map[string]string{"error_description": "invalid credentials"})

		return
	}

	if failing && failure.Garbled {
		writeJSON(w, http.StatusOK, map[string]string{"token_type": "Bearer"})

		return
	}

	s.mu.Lock()
	s.token = fmt.Sprintf("token-%d", len(s.calls[EndpointToken]))
	token := s.token
	expiresIn := s.expiresIn
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"access_token": token,
		"token_type":   "Bearer",
		"expires_in":   expiresIn,
	})
}

func resultCode(failure Failure, failing bool) string {
	if failing && failure.ResultCode != "" {
		return failure.ResultCode
	}

	return "0"
}

// handleQuote handles GET /uapi/domestic-stock/v1/quotations/inquire-price
func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	failure, failing := s.begin(EndpointQuote)
	if failing && failure.StatusCode != 0 {
		writeJSON(w, failure.StatusCode, map[string]string{"rt_cd": "1", "msg1": "server error"})

		return
	}

	if !s.authorized(r) || r.Header.Get("tr_id") != "FHKST01010100" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"rt_cd": "1", "msg1": "unauthorized"})

		return
	}

	if failing && failure.Garbled {
		writeJSON(w, http.StatusOK, map[string]any{"rt_cd": "0", "output": map[string]string{"stck_prpr": "n/a"}})

		return
	}

	symbol := r.URL.Query().Get("FID_INPUT_ISCD")

	s.mu.RLock()
	quote, ok := s.quotes[symbol]
	s.mu.RUnlock()

	if !ok {
		writeJSON(w, http.StatusOK, map[string]string{"rt_cd": "1", "msg_cd": "EGW00001", "msg1": "unknown symbol"})

		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"rt_cd":  resultCode(failure, failing),
		"msg_cd": "MCA00000",
		"msg1":   "ok",
		"output": map[string]string{
			"hts_kor_isnm": quote.Name,
			"stck_prpr":    quote.Price.Text(),
			"prdy_vrss":    quote.ChangeAbs.Text(),
			"prdy_ctrt":    strconv.FormatFloat(quote.ChangePct, 'f', 2, 64),
			"stck_hgpr":    quote.High.Text(),
			"stck_lwpr":    quote.Low.Text(),
			"stck_oprc":    quote.Open.Text(),
			"acml_vol":     strconv.FormatInt(quote.Volume, 10),
		},
	})
}

// handleDaily handles GET /uapi/domestic-stock/v1/quotations/inquire-daily-price
func (s *Server) handleDaily(w http.ResponseWriter, r *http.Request) {
	failure, failing := s.begin(EndpointDaily)
	if failing && failure.StatusCode != 0 {
		writeJSON(w, failure.StatusCode, map[string]string{"rt_cd": "1", "msg1": "server error"})

		return
	}

	query := r.URL.Query()
	if !s.authorized(r) || r.Header.Get("tr_id") != "FHKST01010400" ||
		query.Get("FID_PERIOD_DIV_CODE") != "D" || query.Get("FID_ORG_ADJ_PRC") != "0" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"rt_cd": "1", "msg1": "unauthorized"})

		return
	}

	if failing && failure.Garbled {
		writeJSON(w, http.StatusOK, map[string]any{"rt_cd": "0", "output": []map[string]string{{"stck_bsop_date": "yesterday"}}})

		return
	}

	s.mu.RLock()
	candles := s.candles[query.Get("FID_INPUT_ISCD")]
	s.mu.RUnlock()

	rows := make([]map[string]string, 0, len(candles))
	for i := len(candles) - 1; i >= 0; i-- {
		c := candles[i]
		rows = append(rows, map[string]string{
			"stck_bsop_date": c.DateString(),
			"stck_oprc":      c.Open.Text(),
			"stck_hgpr":      c.High.Text(),
			"stck_lwpr":      c.Low.Text(),
			"stck_clpr":      c.Close.Text(),
			"acml_vol":       strconv.FormatInt(c.Volume, 10),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"rt_cd":  resultCode(failure, failing),
		"msg1":   "ok",
		"output": rows,
	})
}
