// Package payconiqtest runs an in-process fake of the Payconiq v3 payments API.
//
// The fake keeps payments in memory, enforces the bearer key, paginates
// searches and records every request it sees so tests can assert on the exact
// wire traffic.
package payconiqtest

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// BasePath is the versioned prefix every route is mounted under.
const BasePath = "/v3"

// Request is a recorded inbound request.
type Request struct {
	Method   string
	Path     string
	RawQuery string
	Header   http.Header
	Body     map[string]any
}

// Payment is the fake's stored representation of a payment.
type Payment struct {
	PaymentID   string `json:"paymentId"`
	Status      string `json:"status"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	Description string `json:"description"`
	Reference   string `json:"reference"`
	CallbackURL string `json:"callbackUrl,omitempty"`
	ReturnURL   string `json:"returnUrl,omitempty"`
	CreatedAt   string `json:"createdAt"`
	RefundIBAN  string `json:"-"`
	Refunded    int64  `json:"refundedAmount,omitempty"`
}

// Server is a running fake.
type Server struct {
	*httptest.Server

	APIKey string

	mu       sync.Mutex
	payments map[string]*Payment
	order    []string
	requests []Request
	now      func() time.Time
}

// NewServer starts a fake that accepts apiKey as its bearer credential.
// Close it when done.
func NewServer(apiKey string) *Server {
	s := &Server{
		APIKey:   apiKey,
		payments: make(map[string]*Payment),
		now:      time.Now,
	}
	s.Server = httptest.NewServer(s.routes())
	return s
}

// Endpoint is the base URL to hand to a client.
func (s *Server) Endpoint() string {
	return s.URL + BasePath
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.record)
	r.Route(BasePath, func(r chi.Router) {
		r.Use(s.authorize)
		r.Post("/payments", s.handleCreate)
		r.Post("/payments/search", s.handleSearch)
		r.Get("/payments/{paymentID}", s.handleGet)
		r.Post("/payments/{paymentID}", s.handleRefund)
		r.Get("/payments/{paymentID}/debtor/refundIban", s.handleRefundIban)
	})
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "resource not found")
	})
	return r
}

// Seed stores payments as if they had been created earlier.
func (s *Server) Seed(payments ...Payment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range payments {
		p := payments[i]
		if p.PaymentID == "" {
			p.PaymentID = newPaymentID()
		}
		if p.CreatedAt == "" {
			p.CreatedAt = s.now().UTC().Format(time.RFC3339)
		}
		if _, exists := s.payments[p.PaymentID]; !exists {
			s.order = append(s.order, p.PaymentID)
		}
		s.payments[p.PaymentID] = &p
	}
}

// Payment returns a copy of a stored payment.
func (s *Server) Payment(id string) (Payment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[id]
	if !ok {
		return Payment{}, false
	}
	return *p, true
}

// Requests returns the requests received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		_ = r.Body.Close()
		var body map[string]any
		if len(raw) > 0 {
			_ = json.Unmarshal(raw, &body)
		}
		s.mu.Lock()
		s.requests = append(s.requests, Request{
			Method:   r.Method,
			Path:     r.URL.Path,
			RawQuery: r.URL.RawQuery,
			Header:   r.Header.Clone(),
			Body:     body,
		})
		s.mu.Unlock()
		r.Body = io.NopCloser(bytes.NewReader(raw))
		next.ServeHTTP(w, r)
	})
}

func (s *Server) authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+s.APIKey {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid api key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type createRequest struct {
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	Description string `json:"description"`
	Reference   string `json:"reference"`
	CallbackURL string `json:"callbackUrl"`
	ReturnURL   string `json:"returnUrl"`
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "malformed body")
		return
	}
	if req.Currency != "EUR" {
		writeError(w, http.StatusBadRequest, "INVALID_CURRENCY", "invalid currency")
		return
	}
	if req.Amount <= 0 {
		writeError(w, http.StatusBadRequest, "INVALID_AMOUNT", "amount must be positive")
		return
	}
	p := Payment{
		PaymentID:   newPaymentID(),
		Status:      "PENDING",
		Amount:      req.Amount,
		Currency:    req.Currency,
		Description: req.Description,
		Reference:   req.Reference,
		CallbackURL: req.CallbackURL,
		ReturnURL:   req.ReturnURL,
	}
	s.Seed(p)
	stored, _ := s.Payment(p.PaymentID)
	writeJSON(w, http.StatusCreated, stored)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	p, ok := s.Payment(chi.URLParam(r, "paymentID"))
	if !ok {
		writeError(w, http.StatusNotFound, "PAYMENT_NOT_FOUND", "payment not found")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type refundRequest struct {
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	Description string `json:"description"`
}

func (s *Server) handleRefund(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "paymentID")
	var req refundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "malformed body")
		return
	}

	s.mu.Lock()
	p, ok := s.payments[id]
	if !ok {
		s.mu.Unlock()
		writeError(w, http.StatusNotFound, "PAYMENT_NOT_FOUND", "payment not found")
		return
	}
	if p.Status != "SUCCEEDED" {
		s.mu.Unlock()
		writeError(w, http.StatusUnprocessableEntity, "PAYMENT_NOT_REFUNDABLE", "payment is not refundable")
		return
	}
	if req.Amount <= 0 || p.Refunded+req.Amount > p.Amount {
		s.mu.Unlock()
		writeError(w, http.StatusUnprocessableEntity, "INVALID_REFUND_AMOUNT", "refund amount exceeds payment amount")
		return
	}
	p.Refunded += req.Amount
	out := *p
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleRefundIban(w http.ResponseWriter, r *http.Request) {
	p, ok := s.Payment(chi.URLParam(r, "paymentID"))
	if !ok {
		writeError(w, http.StatusNotFound, "PAYMENT_NOT_FOUND", "payment not found")
		return
	}
	if p.RefundIBAN == "" {
		writeError(w, http.StatusNotFound, "REFUND_IBAN_NOT_FOUND", "no refund iban for payment")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"iban": p.RefundIBAN})
}

type searchRequest struct {
	Reference       string   `json:"reference"`
	PaymentStatuses []string `json:"paymentStatuses"`
	From            string   `json:"from"`
	To              string   `json:"to"`
}

type searchResponse struct {
	Size          int       `json:"size"`
	TotalPages    int       `json:"totalPages"`
	TotalElements int       `json:"totalElements"`
	Number        int       `json:"number"`
	Details       []Payment `json:"details"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "malformed body")
		return
	}
	page, err := queryInt(r, "page", 0)
	if err != nil || page < 0 {
		writeError(w, http.StatusBadRequest, "INVALID_PAGE", "invalid page")
		return
	}
	size, err := queryInt(r, "size", 50)
	if err != nil || size <= 0 {
		writeError(w, http.StatusBadRequest, "INVALID_SIZE", "invalid size")
		return
	}

	matches := s.match(req)
	totalPages := (len(matches) + size - 1) / size
	start := page * size
	end := start + size
	if start > len(matches) {
		start = len(matches)
	}
	if end > len(matches) {
		end = len(matches)
	}
	details := matches[start:end]
	writeJSON(w, http.StatusOK, searchResponse{
		Size:          len(details),
		TotalPages:    totalPages,
		TotalElements: len(matches),
		Number:        page,
		Details:       details,
	})
}

func (s *Server) match(req searchRequest) []Payment {
	statuses := make(map[string]bool, len(req.PaymentStatuses))
	for _, st := range req.PaymentStatuses {
		statuses[st] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Payment
	for _, id := range s.order {
		p := s.payments[id]
		if req.Reference != "" && p.Reference != req.Reference {
			continue
		}
		if len(statuses) > 0 && !statuses[p.Status] {
			continue
		}
		if req.From != "" && p.CreatedAt < req.From {
			continue
		}
		if req.To != "" && p.CreatedAt > req.To {
			continue
		}
		out = append(out, *p)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt < out[j].CreatedAt })
	return out
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"code": code, "message": message})
}

func newPaymentID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:24]
}
