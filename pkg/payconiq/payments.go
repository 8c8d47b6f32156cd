package payconiq

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/go-querystring/query"
	"go.opentelemetry.io/otel/attribute"
)

const msgPaymentIDRequired = "payment id is required"

// CreatePayment creates a new payment. The payment is returned when the
// response carries a paymentId, whatever the HTTP status; otherwise the error
// matches ErrCreatePaymentFailed and carries the response message.
func (c *Client) CreatePayment(ctx context.Context, req PaymentRequest) (*Payment, error) {
	ctx, span := c.startSpan(ctx, OpCreatePayment,
		attribute.String("payconiq.reference", req.Reference),
		attribute.Int64("payconiq.amount", req.Amount),
	)
	defer span.End()

	var payment Payment
	status, err := c.call(ctx, OpCreatePayment, http.MethodPost, "/payments", nil, req.body(), &payment)
	if err != nil {
		return nil, c.fail(span, &Error{Op: OpCreatePayment, StatusCode: status, Err: err})
	}
	if payment.PaymentID == "" {
		return nil, c.fail(span, &Error{Op: OpCreatePayment, Message: payment.Message, Code: payment.Code, StatusCode: status})
	}

	span.SetAttributes(attribute.String("payconiq.payment_id", payment.PaymentID))
	c.succeed(span, OpCreatePayment)
	return &payment, nil
}

// RetrievePayment fetches an existing payment by its Payconiq identifier.
func (c *Client) RetrievePayment(ctx context.Context, paymentID string) (*Payment, error) {
	ctx, span := c.startSpan(ctx, OpRetrievePayment, attribute.String("payconiq.payment_id", paymentID))
	defer span.End()

	if strings.TrimSpace(paymentID) == "" {
		return nil, c.fail(span, &Error{Op: OpRetrievePayment, Message: msgPaymentIDRequired})
	}

	var payment Payment
	status, err := c.call(ctx, OpRetrievePayment, http.MethodGet, paymentPath(paymentID), nil, nil, &payment)
	if err != nil {
		return nil, c.fail(span, &Error{Op: OpRetrievePayment, StatusCode: status, Err: err})
	}
	if payment.PaymentID == "" {
		return nil, c.fail(span, &Error{Op: OpRetrievePayment, Message: payment.Message, Code: payment.Code, StatusCode: status})
	}

	c.succeed(span, OpRetrievePayment)
	return &payment, nil
}

// GetPaymentsListByReference returns the payments carrying a merchant
// reference. An empty result (size 0) is reported as ErrGetPaymentsListFailed.
func (c *Client) GetPaymentsListByReference(ctx context.Context, reference string) ([]Payment, error) {
	ctx, span := c.startSpan(ctx, OpGetPaymentsList, attribute.String("payconiq.reference", reference))
	defer span.End()

	var result SearchResult
	status, err := c.call(ctx, OpGetPaymentsList, http.MethodPost, "/payments/search", nil, referenceFilter{Reference: reference}, &result)
	if err != nil {
		return nil, c.fail(span, &Error{Op: OpGetPaymentsList, StatusCode: status, Err: err})
	}
	if result.Size == 0 {
		return nil, c.fail(span, &Error{Op: OpGetPaymentsList, Message: result.Message, Code: result.Code, StatusCode: status})
	}

	c.metrics.ObserveSearchPage()
	c.succeed(span, OpGetPaymentsList)
	return result.Details, nil
}

// GetPaymentsListByDateRange returns the succeeded payments between from and
// to, both optional and formatted as YYYY-MM-ddTHH:mm:ss.SSSZ. Pages of size
// results are fetched one after the other, each following the page number
// reported by the previous response, and their details are concatenated in
// fetch order. Only the first page is checked for a non-zero size.
func (c *Client) GetPaymentsListByDateRange(ctx context.Context, from, to string, size int) ([]Payment, error) {
	if size <= 0 {
		size = DefaultSearchPageSize
	}
	ctx, span := c.startSpan(ctx, OpGetPaymentsList,
		attribute.String("payconiq.from", from),
		attribute.String("payconiq.to", to),
		attribute.Int("payconiq.page_size", size),
	)
	defer span.End()

	filter := dateRangeFilter{
		PaymentStatuses: []string{StatusSucceeded},
		From:            from,
		To:              to,
	}

	page := 0
	result, status, err := c.searchPage(ctx, page, size, filter)
	if err != nil {
		return nil, c.fail(span, &Error{Op: OpGetPaymentsList, StatusCode: status, Err: err})
	}
	if result.Size == 0 {
		return nil, c.fail(span, &Error{Op: OpGetPaymentsList, Message: result.Message, Code: result.Code, StatusCode: status})
	}

	details := result.Details
	for page < result.TotalPages-1 {
		next := result.Number + 1
		if next <= page {
			return nil, c.fail(span, &Error{
				Op:         OpGetPaymentsList,
				Message:    fmt.Sprintf("page number did not advance after page %d", page),
				StatusCode: status,
			})
		}
		page = next
		result, status, err = c.searchPage(ctx, page, size, filter)
		if err != nil {
			return nil, c.fail(span, &Error{Op: OpGetPaymentsList, StatusCode: status, Err: err})
		}
		details = append(details, result.Details...)
	}

	span.SetAttributes(
		attribute.Int("payconiq.pages", page+1),
		attribute.Int("payconiq.results", len(details)),
	)
	c.succeed(span, OpGetPaymentsList)
	return details, nil
}

func (c *Client) searchPage(ctx context.Context, page, size int, filter dateRangeFilter) (*SearchResult, int, error) {
	q, err := query.Values(pageQuery{Page: page, Size: size})
	if err != nil {
		return nil, 0, fmt.Errorf("payconiq: encode search page: %w", err)
	}
	var result SearchResult
	status, err := c.call(ctx, OpGetPaymentsList, http.MethodPost, "/payments/search", q, filter, &result)
	if err != nil {
		return nil, status, err
	}
	c.metrics.ObserveSearchPage()
	return &result, status, nil
}

// RefundPayment refunds an existing payment.
//
// The request goes to /payments/{id}, the same path as RetrievePayment. That
// is how the upstream integration this client mirrors behaves; the documented
// refund resource may differ, so verify against the API before relying on it.
func (c *Client) RefundPayment(ctx context.Context, paymentID string, req RefundRequest) (*Payment, error) {
	ctx, span := c.startSpan(ctx, OpRefundPayment,
		attribute.String("payconiq.payment_id", paymentID),
		attribute.Int64("payconiq.amount", req.Amount),
	)
	defer span.End()

	if strings.TrimSpace(paymentID) == "" {
		return nil, c.fail(span, &Error{Op: OpRefundPayment, Message: msgPaymentIDRequired})
	}

	var payment Payment
	status, err := c.call(ctx, OpRefundPayment, http.MethodPost, paymentPath(paymentID), nil, req.body(), &payment)
	if err != nil {
		return nil, c.fail(span, &Error{Op: OpRefundPayment, StatusCode: status, Err: err})
	}
	if payment.PaymentID == "" {
		return nil, c.fail(span, &Error{Op: OpRefundPayment, Message: payment.Message, Code: payment.Code, StatusCode: status})
	}

	c.succeed(span, OpRefundPayment)
	return &payment, nil
}

// GetRefundIban returns the IBAN a refund of the payment would be sent to.
func (c *Client) GetRefundIban(ctx context.Context, paymentID string) (string, error) {
	ctx, span := c.startSpan(ctx, OpGetRefundIban, attribute.String("payconiq.payment_id", paymentID))
	defer span.End()

	if strings.TrimSpace(paymentID) == "" {
		return "", c.fail(span, &Error{Op: OpGetRefundIban, Message: msgPaymentIDRequired})
	}

	var parsed refundIban
	status, err := c.call(ctx, OpGetRefundIban, http.MethodGet, paymentPath(paymentID, "debtor", "refundIban"), nil, nil, &parsed)
	if err != nil {
		return "", c.fail(span, &Error{Op: OpGetRefundIban, StatusCode: status, Err: err})
	}
	if parsed.IBAN == "" {
		return "", c.fail(span, &Error{Op: OpGetRefundIban, Message: parsed.Message, Code: parsed.Code, StatusCode: status})
	}

	c.succeed(span, OpGetRefundIban)
	return parsed.IBAN, nil
}
