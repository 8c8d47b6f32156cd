package ledger

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/payconiq-go/pkg/payconiq"
)

func newTestLedger(t *testing.T, ttl time.Duration) (*RedisLedger, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisLedger(client, ttl), mr
}

func TestRecordAndGet(t *testing.T) {
	l, mr := newTestLedger(t, time.Hour)
	ctx := context.Background()
	recordedAt := time.Date(2026, 10, 1, 9, 30, 0, 0, time.UTC)

	err := l.Record(ctx, Entry{
		PaymentID:  "abc123",
		Reference:  "order-1",
		Amount:     1250,
		Currency:   "EUR",
		Status:     "PENDING",
		RecordedAt: recordedAt,
	})
	require.NoError(t, err)

	got, err := l.Get(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, "order-1", got.Reference)
	assert.Equal(t, int64(1250), got.Amount)
	assert.True(t, recordedAt.Equal(got.RecordedAt))

	assert.True(t, mr.Exists("payconiq:payment:abc123"))
	assert.Equal(t, time.Hour, mr.TTL("payconiq:payment:abc123"))
	assert.Equal(t, time.Hour, mr.TTL("payconiq:reference:order-1"))

	members, err := mr.SMembers("payconiq:reference:order-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"abc123"}, members)
}

func TestRecordWithoutTTL(t *testing.T) {
	l, mr := newTestLedger(t, 0)
	require.NoError(t, l.Record(context.Background(), Entry{PaymentID: "p1", Reference: "r"}))
	assert.Equal(t, time.Duration(0), mr.TTL("payconiq:payment:p1"))
	assert.Equal(t, time.Duration(0), mr.TTL("payconiq:reference:r"))
}

func TestRecordRequiresPaymentID(t *testing.T) {
	l, _ := newTestLedger(t, time.Hour)
	err := l.Record(context.Background(), Entry{Reference: "r"})
	assert.EqualError(t, err, "ledger: payment id required")
}

func TestRecordFillsRecordedAt(t *testing.T) {
	l, _ := newTestLedger(t, time.Hour)
	ctx := context.Background()
	require.NoError(t, l.Record(ctx, Entry{PaymentID: "p1"}))

	got, err := l.Get(ctx, "p1")
	require.NoError(t, err)
	assert.False(t, got.RecordedAt.IsZero())
}

func TestGetNotFound(t *testing.T) {
	l, _ := newTestLedger(t, time.Hour)
	_, err := l.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetCorruptEntry(t *testing.T) {
	l, mr := newTestLedger(t, time.Hour)
	require.NoError(t, mr.Set("payconiq:payment:bad", "{not json"))
	_, err := l.Get(context.Background(), "bad")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestMarkRefunded(t *testing.T) {
	l, _ := newTestLedger(t, time.Hour)
	ctx := context.Background()
	require.NoError(t, l.Record(ctx, Entry{PaymentID: "p1", Amount: 1000, Status: "SUCCEEDED"}))

	_, err := l.MarkRefunded(ctx, "p1", 300)
	require.NoError(t, err)
	entry, err := l.MarkRefunded(ctx, "p1", 200)
	require.NoError(t, err)
	assert.Equal(t, int64(500), entry.RefundedAmount)

	stored, err := l.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(500), stored.RefundedAmount)

	_, err = l.MarkRefunded(ctx, "unknown", 100)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMarkRefundedConcurrent(t *testing.T) {
	l, _ := newTestLedger(t, time.Hour)
	ctx := context.Background()
	require.NoError(t, l.Record(ctx, Entry{PaymentID: "p1", Amount: 10000, Status: "SUCCEEDED"}))

	const workers = 20
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.MarkRefunded(ctx, "p1", 5)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	entry, err := l.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(workers*5), entry.RefundedAmount)
}

func TestListByReference(t *testing.T) {
	l, mr := newTestLedger(t, time.Hour)
	ctx := context.Background()
	base := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, l.Record(ctx, Entry{PaymentID: "late", Reference: "order-1", RecordedAt: base.Add(2 * time.Hour)}))
	require.NoError(t, l.Record(ctx, Entry{PaymentID: "early", Reference: "order-1", RecordedAt: base}))
	require.NoError(t, l.Record(ctx, Entry{PaymentID: "other", Reference: "order-2", RecordedAt: base}))
	require.NoError(t, l.Record(ctx, Entry{PaymentID: "gone", Reference: "order-1", RecordedAt: base.Add(time.Hour)}))
	mr.Del("payconiq:payment:gone")

	entries, err := l.ListByReference(ctx, "order-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "early", entries[0].PaymentID)
	assert.Equal(t, "late", entries[1].PaymentID)

	entries, err = l.ListByReference(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestEntriesExpire(t *testing.T) {
	l, mr := newTestLedger(t, time.Minute)
	ctx := context.Background()
	require.NoError(t, l.Record(ctx, Entry{PaymentID: "p1", Reference: "r"}))

	mr.FastForward(2 * time.Minute)

	_, err := l.Get(ctx, "p1")
	assert.ErrorIs(t, err, ErrNotFound)
	entries, err := l.ListByReference(ctx, "r")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestEntryFromPayment(t *testing.T) {
	var p payconiq.Payment
	require.NoError(t, json.Unmarshal([]byte(`{"paymentId":"abc123","status":"PENDING","amount":500,"currency":"EUR","reference":"order-9"}`), &p))

	at := time.Date(2026, 10, 2, 12, 0, 0, 0, time.FixedZone("CET", 3600))
	entry := EntryFromPayment(&p, at)
	assert.Equal(t, Entry{
		PaymentID:  "abc123",
		Reference:  "order-9",
		Amount:     500,
		Currency:   "EUR",
		Status:     "PENDING",
		RecordedAt: at.UTC(),
	}, entry)
}

func TestReconcile(t *testing.T) {
	local := []Entry{
		{PaymentID: "both", Status: "SUCCEEDED"},
		{PaymentID: "drifted", Status: "PENDING"},
		{PaymentID: "local-only", Status: "PENDING"},
	}
	remote := []payconiq.Payment{
		{PaymentID: "drifted", Status: "SUCCEEDED"},
		{PaymentID: "remote-only", Status: "SUCCEEDED"},
		{PaymentID: "both", Status: "SUCCEEDED"},
	}

	report := Reconcile(local, remote)
	assert.Equal(t, []string{"both", "drifted"}, report.Matched)
	assert.Equal(t, []string{"local-only"}, report.MissingRemote)
	assert.Equal(t, []string{"remote-only"}, report.UnknownLocal)
	assert.Equal(t, []StatusDrift{{PaymentID: "drifted", LocalStatus: "PENDING", RemoteStatus: "SUCCEEDED"}}, report.Drift)
	assert.False(t, report.Clean())
}

func TestReconcileClean(t *testing.T) {
	report := Reconcile(
		[]Entry{{PaymentID: "p1", Status: "SUCCEEDED"}},
		[]payconiq.Payment{{PaymentID: "p1", Status: "SUCCEEDED"}, {PaymentID: "p1", Status: "SUCCEEDED"}},
	)
	assert.True(t, report.Clean())
	assert.Equal(t, []string{"p1"}, report.Matched)

	empty := Reconcile(nil, nil)
	assert.True(t, empty.Clean())
	assert.NotNil(t, empty.Matched)
}
