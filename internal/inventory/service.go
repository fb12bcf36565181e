package inventory

import (
	"context"
	"fmt"
	"time"

	"stockservice/internal/ledger"
	"stockservice/internal/platform/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// Outcome is the terminal state of one handled event.
type Outcome string

const (
	// OutcomeCommitted covers applied, blocked and intentionally empty units.
	OutcomeCommitted Outcome = "committed"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeRejected  Outcome = "rejected"
	// OutcomeUnclaimed means identity fields were missing; nothing was written.
	OutcomeUnclaimed Outcome = "unclaimed"
	// OutcomeFailed means the unit did not commit and the event must be redelivered.
	OutcomeFailed Outcome = "failed"
)

// Result describes what handling an event did.
type Result struct {
	Kind      Kind
	DedupKey  DedupKey
	Outcome   Outcome
	Reason    RejectReason
	Missing   string
	Mutations []Mutation
	Skipped   []SkippedItem
}

// Service applies canonical events to the stock ledger.
type Service interface {
	Handle(ctx context.Context, env Envelope) (Result, error)
}

// Options tunes the Orchestrator.
type Options struct {
	AllowNegativeStock bool
	Notifier           Notifier
}

// Orchestrator runs every event through dedup, validation and mutation in a
// single ledger unit, so the claim commits together with its effects.
type Orchestrator struct {
	store     ledger.Store
	gate      *Gate
	validator *Validator
	mutator   *Mutator
	notifier  Notifier
	logger    observability.Logger
	tracer    observability.Tracer
	now       func() time.Time
}

var _ Service = (*Orchestrator)(nil)

// NewOrchestrator creates the event pipeline with explicit dependencies
func NewOrchestrator(store ledger.Store, catalog CatalogOracle, logger observability.Logger, tracer observability.Tracer, opts Options) *Orchestrator {
	notifier := opts.Notifier
	if notifier == nil {
		notifier = NopNotifier()
	}
	return &Orchestrator{
		store:     store,
		gate:      NewGate(logger),
		validator: NewValidator(catalog, logger),
		mutator:   NewMutator(opts.AllowNegativeStock),
		notifier:  notifier,
		logger:    logger,
		tracer:    tracer,
		now:       time.Now,
	}
}

// Handle processes one event. A nil error means the event reached a terminal
// state and its delivery may be acknowledged; an error means nothing was
// committed and the event should be redelivered.
func (o *Orchestrator) Handle(ctx context.Context, env Envelope) (Result, error) {
	start := o.now()

	ctx, span := o.tracer.Start(ctx, "stock_event.handle")
	defer span.End()

	span.SetAttributes(
		attribute.String("stock.event.kind", string(env.Kind)),
		attribute.String("stock.event.id", env.EventID),
		attribute.String("messaging.destination.name", env.Delivery.Topic),
		attribute.Int("messaging.kafka.partition", env.Delivery.Partition),
		attribute.Int64("messaging.kafka.offset", env.Delivery.Offset),
	)

	res := Result{Kind: env.Kind}

	if missing := env.MissingIdentity(); missing != "" {
		res.Outcome = OutcomeUnclaimed
		res.Missing = missing
		o.logger.Warn("⚠️ Event missing identity field, leaving it unclaimed",
			zap.String("kind", string(env.Kind)),
			zap.String("missing", missing),
			zap.String("event_id", env.EventID),
			zap.String("topic", env.Delivery.Topic),
			zap.Int("partition", env.Delivery.Partition),
			zap.Int64("offset", env.Delivery.Offset),
		)
		span.SetAttributes(attribute.String("stock.event.outcome", string(res.Outcome)))
		recordEvent(ctx, env.Kind, res.Outcome, o.now().Sub(start))
		return res, nil
	}

	key := ResolveDedupKey(env.EventID, env.Delivery)
	span.SetAttributes(attribute.String("stock.dedup_key", key.String()))

	err := o.store.WithinUnit(ctx, func(ctx context.Context, tx ledger.Tx) error {
		// the unit may run more than once
		res = Result{Kind: env.Kind, DedupKey: key}

		claim, err := o.gate.Claim(ctx, tx, key)
		if err != nil {
			return err
		}
		if claim == AlreadyClaimed {
			res.Outcome = OutcomeDuplicate
			return nil
		}
		return o.apply(ctx, tx, env, &res)
	})
	if err != nil {
		res.Outcome = OutcomeFailed
		span.RecordError(err)
		span.SetStatus(codes.Error, "stock event unit failed")
		o.logger.Error("❌ Failed to apply stock event",
			zap.Error(err),
			zap.String("kind", string(env.Kind)),
			zap.String("dedup_key", key.String()),
		)
		recordEvent(ctx, env.Kind, res.Outcome, o.now().Sub(start))
		return res, err
	}

	o.logResult(env, res)
	o.notifier.StockChanged(ctx, stockChanges(env, res, o.now().UTC()))

	span.SetAttributes(
		attribute.String("stock.event.outcome", string(res.Outcome)),
		attribute.Int("stock.mutations", len(res.Mutations)),
	)
	span.SetStatus(codes.Ok, "stock event handled")

	recordEvent(ctx, env.Kind, res.Outcome, o.now().Sub(start))
	recordMutations(ctx, res.Mutations)
	return res, nil
}

func (o *Orchestrator) apply(ctx context.Context, tx ledger.Tx, env Envelope, res *Result) error {
	switch env.Kind {
	case KindProduct:
		res.Outcome = OutcomeCommitted
		return o.validator.CheckProduct(ctx, env.Product)
	case KindStore:
		res.Outcome = OutcomeCommitted
		return o.validator.CheckStore(ctx, env.Store)
	case KindSale:
		return o.applySale(ctx, tx, env.Sale, res)
	case KindStockAdjustment:
		return o.applyAdjustment(ctx, tx, env.Adjustment, res)
	default:
		return fmt.Errorf("unsupported event kind %q", env.Kind)
	}
}

func (o *Orchestrator) applySale(ctx context.Context, tx ledger.Tx, sale *SalesEvent, res *Result) error {
	verdict, err := o.validator.CheckSale(ctx, sale)
	if err != nil {
		return err
	}
	if verdict.Rejected != "" {
		res.Outcome = OutcomeRejected
		res.Reason = verdict.Rejected
		return nil
	}

	res.Skipped = verdict.Skipped
	for _, item := range verdict.Accepted {
		mut, err := o.mutator.Adjust(ctx, tx, sale.StoreCode, item.SKU, -item.Quantity, false)
		if err != nil {
			return err
		}
		res.Mutations = append(res.Mutations, mut)
	}
	res.Outcome = OutcomeCommitted
	return nil
}

func (o *Orchestrator) applyAdjustment(ctx context.Context, tx ledger.Tx, adj *StockAdjustmentEvent, res *Result) error {
	reason, err := o.validator.CheckAdjustment(ctx, adj)
	if err != nil {
		return err
	}
	if reason != "" {
		res.Outcome = OutcomeRejected
		res.Reason = reason
		return nil
	}

	mut, err := o.mutator.AdjustManual(ctx, tx, adj)
	if err != nil {
		return err
	}
	res.Mutations = append(res.Mutations, mut)
	res.Outcome = OutcomeCommitted
	return nil
}

func (o *Orchestrator) logResult(env Envelope, res Result) {
	fields := []zap.Field{
		zap.String("kind", string(env.Kind)),
		zap.String("event_id", env.EventID),
		zap.String("dedup_key", res.DedupKey.String()),
	}

	switch res.Outcome {
	case OutcomeDuplicate:
		o.logger.Info("🔁 Duplicate event skipped", fields...)
		return
	case OutcomeRejected:
		o.logger.Warn("🚫 Event rejected, marked processed", append(fields, zap.String("reason", string(res.Reason)))...)
		return
	}

	for _, s := range res.Skipped {
		o.logger.Warn("🚫 Sale item skipped",
			append(fields,
				zap.Int("item_index", s.Index),
				zap.String("sku", s.Item.SKU),
				zap.Int64("quantity", s.Item.Quantity),
				zap.String("reason", string(s.Reason)),
			)...)
	}
	for _, m := range res.Mutations {
		if m.Overflow {
			o.logger.Warn("⛔ Stock change blocked, quantity would overflow",
				append(fields,
					zap.String("store_code", m.StoreCode),
					zap.String("sku", m.SKU),
					zap.Int64("quantity", m.Previous),
					zap.Int64("delta", m.Delta),
				)...)
			continue
		}
		if m.Result == Blocked {
			o.logger.Warn("⛔ Stock change blocked by negative floor",
				append(fields,
					zap.String("store_code", m.StoreCode),
					zap.String("sku", m.SKU),
					zap.Int64("quantity", m.Previous),
					zap.Int64("delta", m.Delta),
				)...)
		}
	}

	o.logger.Info("✅ Stock event committed", append(fields, zap.Int("mutations", len(res.Mutations)))...)
}

func stockChanges(env Envelope, res Result, at time.Time) []StockChangedEvent {
	var out []StockChangedEvent
	for _, m := range res.Mutations {
		if m.Result != Applied || m.Quantity == m.Previous {
			continue
		}
		out = append(out, StockChangedEvent{
			StoreCode: m.StoreCode,
			SKU:       m.SKU,
			Previous:  m.Previous,
			Quantity:  m.Quantity,
			Delta:     m.Delta,
			EventID:   env.EventID,
			Cause:     env.Kind,
			At:        at,
		})
	}
	return out
}
