package inventory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"stockservice/internal/ledger"
	"stockservice/internal/platform/observability"

	"go.uber.org/zap"
)

// DedupKey identifies an event for idempotency. The event id and the
// delivery coordinates live in separate namespaces so they can never collide.
type DedupKey struct {
	value string
}

func EventKey(eventID string) DedupKey {
	return DedupKey{value: "event:" + eventID}
}

func DeliveryKey(topic string, partition int, offset int64) DedupKey {
	return DedupKey{value: fmt.Sprintf("offset:%s/%d/%d", topic, partition, offset)}
}

func (k DedupKey) String() string { return k.value }

// IsZero reports that the event cannot be deduplicated.
func (k DedupKey) IsZero() bool { return k.value == "" }

// ResolveDedupKey prefers the event's own id and falls back to where the
// event was delivered. The zero key means neither is available.
func ResolveDedupKey(eventID string, d Delivery) DedupKey {
	if id := strings.TrimSpace(eventID); id != "" {
		return EventKey(id)
	}
	if d.Positioned && d.Topic != "" && d.Offset >= 0 {
		return DeliveryKey(d.Topic, d.Partition, d.Offset)
	}
	return DedupKey{}
}

type ClaimResult int

const (
	FirstClaim ClaimResult = iota
	AlreadyClaimed
)

func (r ClaimResult) String() string {
	if r == AlreadyClaimed {
		return "already_claimed"
	}
	return "first_claim"
}

// Gate claims dedup keys inside the caller's unit of work.
type Gate struct {
	logger observability.Logger
	now    func() time.Time
}

func NewGate(logger observability.Logger) *Gate {
	return &Gate{logger: logger, now: time.Now}
}

// Claim records key as processed. Losing a race for the same key reports
// AlreadyClaimed rather than an error. A zero key is always a FirstClaim and
// writes nothing.
func (g *Gate) Claim(ctx context.Context, claims ledger.IdempotencyLedger, key DedupKey) (ClaimResult, error) {
	if key.IsZero() {
		g.logger.Warn("⚠️ Event has neither id nor delivery position, processing without dedup")
		return FirstClaim, nil
	}

	inserted, err := claims.Claim(ctx, key.String(), g.now().UTC())
	if err != nil {
		return FirstClaim, fmt.Errorf("claim %s: %w", key, err)
	}
	if !inserted {
		g.logger.Debug("Dedup key already claimed", zap.String("dedup_key", key.String()))
		return AlreadyClaimed, nil
	}
	return FirstClaim, nil
}
