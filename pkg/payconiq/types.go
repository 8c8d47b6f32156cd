package payconiq

import (
	"encoding/json"
	"fmt"
)

// PaymentRequest describes a payment to create. Amount is in the smallest
// currency unit (cents for EUR).
type PaymentRequest struct {
	Amount      int64
	Currency    string
	Description string
	Reference   string
	CallbackURL string
	// ReturnURL is left out of the payload entirely when empty.
	ReturnURL string
}

type createPaymentBody struct {
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	Description string `json:"description"`
	Reference   string `json:"reference"`
	CallbackURL string `json:"callbackUrl"`
	ReturnURL   string `json:"returnUrl,omitempty"`
}

func (r PaymentRequest) body() createPaymentBody {
	return createPaymentBody{
		Amount:      r.Amount,
		Currency:    currencyOrDefault(r.Currency),
		Description: r.Description,
		Reference:   r.Reference,
		CallbackURL: r.CallbackURL,
		ReturnURL:   r.ReturnURL,
	}
}

// RefundRequest describes a refund of an existing payment.
type RefundRequest struct {
	Amount      int64
	Currency    string
	Description string
}

type refundBody struct {
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	Description string `json:"description"`
}

func (r RefundRequest) body() refundBody {
	return refundBody{
		Amount:      r.Amount,
		Currency:    currencyOrDefault(r.Currency),
		Description: r.Description,
	}
}

func currencyOrDefault(currency string) string {
	if currency == "" {
		return DefaultCurrency
	}
	return currency
}

// Payment is a payment object as returned by the API. The typed fields cover
// what callers usually need; the complete object is kept and re-encoded
// unmodified by MarshalJSON.
type Payment struct {
	PaymentID   string `json:"paymentId"`
	Status      string `json:"status,omitempty"`
	Amount      int64  `json:"amount,omitempty"`
	Currency    string `json:"currency,omitempty"`
	Description string `json:"description,omitempty"`
	Reference   string `json:"reference,omitempty"`
	CreatedAt   string `json:"createdAt,omitempty"`
	ExpiresAt   string `json:"expiresAt,omitempty"`
	SucceededAt string `json:"succeededAt,omitempty"`

	// Code and Message are set on failure responses.
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`

	raw json.RawMessage
}

type paymentFields Payment

// UnmarshalJSON accepts any object. Only paymentId, code and message must
// be strings; the other typed fields are filled when their JSON type fits and
// left empty otherwise.
func (p *Payment) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	var out Payment
	for key, dst := range map[string]*string{
		"paymentId": &out.PaymentID,
		"code":      &out.Code,
		"message":   &out.Message,
	} {
		if v, ok := fields[key]; ok {
			if err := json.Unmarshal(v, dst); err != nil {
				return fmt.Errorf("payconiq: payment field %s: %w", key, err)
			}
		}
	}

	bestEffort(fields, "status", &out.Status)
	bestEffort(fields, "amount", &out.Amount)
	bestEffort(fields, "currency", &out.Currency)
	bestEffort(fields, "description", &out.Description)
	bestEffort(fields, "reference", &out.Reference)
	bestEffort(fields, "createdAt", &out.CreatedAt)
	bestEffort(fields, "expiresAt", &out.ExpiresAt)
	bestEffort(fields, "succeededAt", &out.SucceededAt)

	out.raw = append(json.RawMessage(nil), data...)
	*p = out
	return nil
}

func bestEffort(fields map[string]json.RawMessage, key string, dst any) {
	if v, ok := fields[key]; ok {
		_ = json.Unmarshal(v, dst)
	}
}

func (p Payment) MarshalJSON() ([]byte, error) {
	if len(p.raw) > 0 {
		return p.raw, nil
	}
	return json.Marshal(paymentFields(p))
}

// Raw returns the object exactly as received, or nil for a Payment that was
// not decoded from a response.
func (p *Payment) Raw() json.RawMessage {
	return p.raw
}

// Field returns a top-level field of the received object.
func (p *Payment) Field(name string) (json.RawMessage, bool) {
	if len(p.raw) == 0 {
		return nil, false
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(p.raw, &fields); err != nil {
		return nil, false
	}
	v, ok := fields[name]
	return v, ok
}

// SearchResult is one page of a payment search.
type SearchResult struct {
	Size          int       `json:"size"`
	TotalPages    int       `json:"totalPages"`
	TotalElements int       `json:"totalElements"`
	Number        int       `json:"number"`
	Details       []Payment `json:"details"`

	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

type referenceFilter struct {
	Reference string `json:"reference"`
}

// StatusSucceeded is the only status requested by date range searches.
const StatusSucceeded = "SUCCEEDED"

type dateRangeFilter struct {
	PaymentStatuses []string `json:"paymentStatuses"`
	From            string   `json:"from,omitempty"`
	To              string   `json:"to,omitempty"`
}

type pageQuery struct {
	Page int `url:"page"`
	Size int `url:"size"`
}

type refundIban struct {
	IBAN    string `json:"iban"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}
