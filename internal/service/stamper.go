package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/threadline/loyalty-engine/internal/config"
	"github.com/threadline/loyalty-engine/internal/model"
	"github.com/threadline/loyalty-engine/pkg/database"
)

// StampableOrderRepository defines the order data access the stamper needs.
type StampableOrderRepository interface {
	ListStampable(ctx context.Context, deliveredBefore time.Time) ([]model.Order, error)
	MarkStampAdded(ctx context.Context, tx database.TxQuerier, orderID uuid.UUID) error
}

// Stamper is the batch job that sweeps delivered orders and grants loyalty
// stamps exactly once per order. It runs as a single serialized loop;
// per-user races with interactive operations are handled by the row lock
// each transaction takes.
type Stamper struct {
	pool    TxBeginner
	orders  StampableOrderRepository
	ledgers LedgerRepositoryInterface
	cfg     config.LoyaltyConfig
	now     func() time.Time
}

// NewStamper creates a Stamper.
func NewStamper(pool TxBeginner, orders StampableOrderRepository, ledgers LedgerRepositoryInterface, cfg config.LoyaltyConfig) *Stamper {
	return &Stamper{
		pool:    pool,
		orders:  orders,
		ledgers: ledgers,
		cfg:     cfg,
		now:     time.Now,
	}
}

// Run executes one sweep and returns the number of stamps granted across
// all users. A single order failing is logged and skipped; the sweep only
// errors when the candidate query itself fails.
func (s *Stamper) Run(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.cfg.StampCooldown())
	orders, err := s.orders.ListStampable(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("list stampable orders: %w", err)
	}

	granted := 0
	for _, order := range orders {
		added, err := s.stampOrder(ctx, order)
		if err != nil {
			log.Warn().
				Err(err).
				Str("order_id", order.ID.String()).
				Str("user_id", order.UserID.String()).
				Msg("skipping order in stamp sweep")
			continue
		}
		granted += added
	}

	log.Info().
		Int("orders_scanned", len(orders)).
		Int("stamps_granted", granted).
		Msg("loyalty stamp sweep complete")
	return granted, nil
}

// stampOrder grants stamps for a single order inside its own transaction.
// The order is flagged loyalty_stamp_added even when zero stamps apply
// (full card or empty order), so the sweep never re-scans it; the forfeit
// is logged for audit.
func (s *Stamper) stampOrder(ctx context.Context, order model.Order) (int, error) {
	// Disqualifiers are excluded by the candidate query; re-check here so
	// a stale read can never stamp a returned or cancelled order.
	if order.ReturnStatus != nil {
		return 0, fmt.Errorf("order has return status %q", *order.ReturnStatus)
	}
	if order.Status == model.OrderStatusCancelled {
		return 0, fmt.Errorf("order is cancelled")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ledger, err := s.ledgers.GetForUpdate(ctx, tx, order.UserID)
	if err != nil {
		return 0, fmt.Errorf("get ledger for update: %w", err)
	}
	if ledger == nil {
		return 0, fmt.Errorf("owning user %s not found", order.UserID)
	}

	availableSlots := s.cfg.MaxStamps - ledger.Stamps
	if availableSlots < 0 {
		availableSlots = 0
	}
	stampsToAdd := order.TotalQuantity
	if stampsToAdd > availableSlots {
		stampsToAdd = availableSlots
	}
	if stampsToAdd < 0 {
		stampsToAdd = 0
	}

	if stampsToAdd > 0 {
		if err := s.ledgers.UpdateCounters(ctx, tx, order.UserID, ledger.Stamps+stampsToAdd, ledger.CyclesCompleted); err != nil {
			return 0, fmt.Errorf("add stamps: %w", err)
		}
	} else {
		log.Info().
			Str("order_id", order.ID.String()).
			Str("user_id", order.UserID.String()).
			Int("order_quantity", order.TotalQuantity).
			Int("stamps", ledger.Stamps).
			Msg("order flagged with zero stamps granted, eligible stamps forfeited")
	}

	if err := s.orders.MarkStampAdded(ctx, tx, order.ID); err != nil {
		return 0, fmt.Errorf("mark order stamped: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return stampsToAdd, nil
}
