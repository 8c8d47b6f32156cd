// Package ledger keeps a local record of the payments a merchant created or
// refunded through this tool, so they can be reconciled against Payconiq's
// own search results later.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/payconiq-go/pkg/payconiq"
)

// ErrNotFound is returned when no entry exists for a payment id.
var ErrNotFound = errors.New("ledger: payment not found")

// Entry is what the ledger remembers about one payment.
type Entry struct {
	PaymentID      string    `json:"paymentId"`
	Reference      string    `json:"reference"`
	Amount         int64     `json:"amount"`
	Currency       string    `json:"currency"`
	Status         string    `json:"status"`
	RefundedAmount int64     `json:"refundedAmount,omitempty"`
	RecordedAt     time.Time `json:"recordedAt"`
}

// EntryFromPayment builds an entry out of an API response.
func EntryFromPayment(p *payconiq.Payment, recordedAt time.Time) Entry {
	return Entry{
		PaymentID:  p.PaymentID,
		Reference:  p.Reference,
		Amount:     p.Amount,
		Currency:   p.Currency,
		Status:     p.Status,
		RecordedAt: recordedAt.UTC(),
	}
}

// RedisLedger stores entries in Redis.
//
// payconiq:payment:{id} holds the JSON entry, payconiq:reference:{ref} the set
// of payment ids recorded under a merchant reference. Both expire after ttl.
type RedisLedger struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewRedisLedger creates a ledger. A ttl <= 0 keeps entries forever.
func NewRedisLedger(redisClient *redis.Client, ttl time.Duration) *RedisLedger {
	if ttl < 0 {
		ttl = 0
	}
	return &RedisLedger{redis: redisClient, ttl: ttl}
}

func paymentKey(id string) string {
	return fmt.Sprintf("payconiq:payment:%s", id)
}

func referenceKey(ref string) string {
	return fmt.Sprintf("payconiq:reference:%s", ref)
}

// Record stores or replaces an entry.
func (l *RedisLedger) Record(ctx context.Context, entry Entry) error {
	if entry.PaymentID == "" {
		return errors.New("ledger: payment id required")
	}
	if entry.RecordedAt.IsZero() {
		entry.RecordedAt = time.Now().UTC()
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("ledger: marshal entry: %w", err)
	}

	pipe := l.redis.TxPipeline()
	pipe.Set(ctx, paymentKey(entry.PaymentID), data, l.ttl)
	if entry.Reference != "" {
		refKey := referenceKey(entry.Reference)
		pipe.SAdd(ctx, refKey, entry.PaymentID)
		if l.ttl > 0 {
			pipe.Expire(ctx, refKey, l.ttl)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("ledger: record %s: %w", entry.PaymentID, err)
	}
	return nil
}

// Get returns the entry for a payment id.
func (l *RedisLedger) Get(ctx context.Context, paymentID string) (*Entry, error) {
	data, err := l.redis.Get(ctx, paymentKey(paymentID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ledger: get %s: %w", paymentID, err)
	}
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("ledger: unmarshal %s: %w", paymentID, err)
	}
	return &entry, nil
}

// maxRefundRetries bounds optimistic retries when another writer changes an
// entry between WATCH and EXEC.
const maxRefundRetries = 100

// MarkRefunded adds amount to an entry's refunded total. The read and write
// run under WATCH so concurrent refunds of one payment all count.
func (l *RedisLedger) MarkRefunded(ctx context.Context, paymentID string, amount int64) (*Entry, error) {
	key := paymentKey(paymentID)
	var updated Entry

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("ledger: get %s: %w", paymentID, err)
		}
		var entry Entry
		if err := json.Unmarshal(data, &entry); err != nil {
			return fmt.Errorf("ledger: unmarshal %s: %w", paymentID, err)
		}
		entry.RefundedAmount += amount
		out, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("ledger: marshal entry: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, out, l.ttl)
			return nil
		})
		if err != nil {
			return err
		}
		updated = entry
		return nil
	}

	for i := 0; i < maxRefundRetries; i++ {
		err := l.redis.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, err
			}
			return nil, fmt.Errorf("ledger: refund %s: %w", paymentID, err)
		}
		return &updated, nil
	}
	return nil, fmt.Errorf("ledger: refund %s: gave up after %d conflicting updates", paymentID, maxRefundRetries)
}

// ListByReference returns the entries recorded under a merchant reference,
// oldest first. Ids whose entry has expired are skipped.
func (l *RedisLedger) ListByReference(ctx context.Context, reference string) ([]Entry, error) {
	ids, err := l.redis.SMembers(ctx, referenceKey(reference)).Result()
	if err != nil {
		return nil, fmt.Errorf("ledger: list reference %s: %w", reference, err)
	}
	entries := make([]Entry, 0, len(ids))
	for _, id := range ids {
		entry, err := l.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].RecordedAt.Equal(entries[j].RecordedAt) {
			return entries[i].PaymentID < entries[j].PaymentID
		}
		return entries[i].RecordedAt.Before(entries[j].RecordedAt)
	})
	return entries, nil
}
