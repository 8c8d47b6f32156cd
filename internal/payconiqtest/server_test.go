package payconiqtest

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func do(t *testing.T, s *Server, method, path, key string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, s.Endpoint()+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+key)
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func TestServer_RejectsWrongKey(t *testing.T) {
	s := NewServer("k")
	defer s.Close()

	resp, body := do(t, s, http.MethodGet, "/payments/x", "nope", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "UNAUTHORIZED", body["code"])
}

func TestServer_CreateValidatesCurrency(t *testing.T) {
	s := NewServer("k")
	defer s.Close()

	resp, body := do(t, s, http.MethodPost, "/payments", "k", map[string]any{"amount": 500, "currency": "USD"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid currency", body["message"])

	resp, body = do(t, s, http.MethodPost, "/payments", "k", map[string]any{"amount": 500, "currency": "EUR", "reference": "r"})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	id, _ := body["paymentId"].(string)
	require.NotEmpty(t, id)

	stored, ok := s.Payment(id)
	require.True(t, ok)
	assert.Equal(t, "r", stored.Reference)
	assert.Equal(t, "PENDING", stored.Status)
}

func TestServer_RefundRules(t *testing.T) {
	s := NewServer("k")
	defer s.Close()
	s.Seed(
		Payment{PaymentID: "pending", Status: "PENDING", Amount: 100, Currency: "EUR"},
		Payment{PaymentID: "done", Status: "SUCCEEDED", Amount: 100, Currency: "EUR"},
	)

	resp, _ := do(t, s, http.MethodPost, "/payments/pending", "k", map[string]any{"amount": 10})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp, body := do(t, s, http.MethodPost, "/payments/done", "k", map[string]any{"amount": 60})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(60), body["refundedAmount"])

	resp, body = do(t, s, http.MethodPost, "/payments/done", "k", map[string]any{"amount": 60})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "INVALID_REFUND_AMOUNT", body["code"])
}

func TestServer_SearchPaginates(t *testing.T) {
	s := NewServer("k")
	defer s.Close()
	s.Seed(
		Payment{PaymentID: "a", Status: "SUCCEEDED", Reference: "r1", CreatedAt: "2026-10-01T00:00:00Z"},
		Payment{PaymentID: "b", Status: "SUCCEEDED", Reference: "r1", CreatedAt: "2026-10-02T00:00:00Z"},
		Payment{PaymentID: "c", Status: "SUCCEEDED", Reference: "r2", CreatedAt: "2026-10-03T00:00:00Z"},
	)

	_, body := do(t, s, http.MethodPost, "/payments/search?page=1&size=2", "k", map[string]any{"paymentStatuses": []string{"SUCCEEDED"}})
	assert.Equal(t, float64(1), body["size"])
	assert.Equal(t, float64(2), body["totalPages"])
	assert.Equal(t, float64(1), body["number"])
	details := body["details"].([]any)
	require.Len(t, details, 1)
	assert.Equal(t, "c", details[0].(map[string]any)["paymentId"])

	_, body = do(t, s, http.MethodPost, "/payments/search", "k", map[string]any{"reference": "r1"})
	assert.Equal(t, float64(2), body["size"])

	_, body = do(t, s, http.MethodPost, "/payments/search", "k", map[string]any{
		"paymentStatuses": []string{"SUCCEEDED"},
		"from":            "2026-10-02T00:00:00Z",
		"to":              "2026-10-02T23:59:59Z",
	})
	assert.Equal(t, float64(1), body["size"])
}

func TestServer_RecordsRequests(t *testing.T) {
	s := NewServer("k")
	defer s.Close()

	do(t, s, http.MethodPost, "/payments/search?page=0&size=5", "k", map[string]any{"reference": "r"})

	reqs := s.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "/v3/payments/search", reqs[0].Path)
	assert.Equal(t, "page=0&size=5", reqs[0].RawQuery)
	assert.Equal(t, "r", reqs[0].Body["reference"])
	assert.Equal(t, "Bearer k", reqs[0].Header.Get("Authorization"))
}
