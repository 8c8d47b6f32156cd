package payconiq

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/payconiq-go/internal/payconiqtest"
	"github.com/wolfman30/payconiq-go/pkg/logging"
)

func newFakeClient(t *testing.T) (*Client, *payconiqtest.Server) {
	t.Helper()
	fake := payconiqtest.NewServer("fake-key")
	t.Cleanup(fake.Close)
	client := New("fake-key", EnvironmentExt).
		SetEndpoint(fake.Endpoint()).
		WithHTTPClient(fake.Client()).
		WithLogger(logging.Discard())
	return client, fake
}

func TestFakeServer_PaymentLifecycle(t *testing.T) {
	ctx := context.Background()
	client, fake := newFakeClient(t)

	created, err := client.CreatePayment(ctx, PaymentRequest{
		Amount:      1250,
		Description: "order 42",
		Reference:   "order-42",
		CallbackURL: "https://shop.example/callback",
	})
	require.NoError(t, err)
	require.NotEmpty(t, created.PaymentID)
	assert.Equal(t, "PENDING", created.Status)

	fetched, err := client.RetrievePayment(ctx, created.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, created.PaymentID, fetched.PaymentID)
	assert.Equal(t, "order-42", fetched.Reference)

	byRef, err := client.GetPaymentsListByReference(ctx, "order-42")
	require.NoError(t, err)
	require.Len(t, byRef, 1)
	assert.Equal(t, created.PaymentID, byRef[0].PaymentID)

	// the payer completes the payment out of band
	stored, ok := fake.Payment(created.PaymentID)
	require.True(t, ok)
	stored.Status = "SUCCEEDED"
	stored.RefundIBAN = "BE68539007547034"
	fake.Seed(stored)

	refunded, err := client.RefundPayment(ctx, created.PaymentID, RefundRequest{Amount: 250, Description: "broken cup"})
	require.NoError(t, err)
	assert.Equal(t, created.PaymentID, refunded.PaymentID)

	iban, err := client.GetRefundIban(ctx, created.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, "BE68539007547034", iban)
}

func TestFakeServer_DateRangePagination(t *testing.T) {
	client, fake := newFakeClient(t)
	for i := 0; i < 7; i++ {
		fake.Seed(payconiqtest.Payment{
			Status:    "SUCCEEDED",
			Amount:    int64(100 * (i + 1)),
			Currency:  "EUR",
			CreatedAt: fmt.Sprintf("2026-10-%02dT10:00:00Z", i+1),
		})
	}
	fake.Seed(payconiqtest.Payment{Status: "PENDING", Amount: 1, Currency: "EUR", CreatedAt: "2026-10-05T10:00:00Z"})

	payments, err := client.GetPaymentsListByDateRange(context.Background(), "", "", 3)
	require.NoError(t, err)
	require.Len(t, payments, 7)
	for i, p := range payments {
		assert.Equal(t, int64(100*(i+1)), p.Amount)
	}

	var searches []string
	for _, req := range fake.Requests() {
		if req.Path == "/v3/payments/search" {
			searches = append(searches, req.RawQuery)
		}
	}
	assert.Equal(t, []string{"page=0&size=3", "page=1&size=3", "page=2&size=3"}, searches)
}

func TestFakeServer_WrongAPIKey(t *testing.T) {
	client, _ := newFakeClient(t)
	client.SetAPIKey("wrong")

	_, err := client.RetrievePayment(context.Background(), "anything")
	require.ErrorIs(t, err, ErrRetrievePaymentFailed)
	assert.Contains(t, err.Error(), "invalid api key")
}

func TestFakeServer_RefundIbanUnknown(t *testing.T) {
	client, fake := newFakeClient(t)
	fake.Seed(payconiqtest.Payment{PaymentID: "p-no-iban", Status: "SUCCEEDED", Amount: 100, Currency: "EUR"})

	_, err := client.GetRefundIban(context.Background(), "p-no-iban")
	require.ErrorIs(t, err, ErrGetRefundIbanFailed)
	assert.Contains(t, err.Error(), "no refund iban")
}
