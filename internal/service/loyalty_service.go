package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/threadline/loyalty-engine/internal/config"
	"github.com/threadline/loyalty-engine/internal/model"
	"github.com/threadline/loyalty-engine/internal/rarity"
	"github.com/threadline/loyalty-engine/pkg/database"
)

// LedgerRepositoryInterface defines the data access needed for user ledgers.
type LedgerRepositoryInterface interface {
	Get(ctx context.Context, userID uuid.UUID) (*model.Ledger, error)
	GetForUpdate(ctx context.Context, tx database.TxQuerier, userID uuid.UUID) (*model.Ledger, error)
	UpdateCounters(ctx context.Context, tx database.TxQuerier, userID uuid.UUID, stamps, cycles int) error
	SetWelcomeGranted(ctx context.Context, tx database.TxQuerier, userID uuid.UUID) error
	InsertHistory(ctx context.Context, tx database.TxQuerier, entry *model.HistoryEntry) error
	ListHistory(ctx context.Context, userID uuid.UUID) ([]model.HistoryEntry, error)
}

// CouponRepositoryInterface defines the data access needed for claimed coupons.
type CouponRepositoryInterface interface {
	Insert(ctx context.Context, tx database.TxQuerier, coupon *model.ClaimedCoupon) error
	ListValid(ctx context.Context, userID uuid.UUID, now time.Time) ([]model.ClaimedCoupon, error)
}

// Drawer selects a coupon template by rarity draw.
type Drawer interface {
	Draw(tier model.LoyaltyTier, bonusEligible bool) (rarity.Drawn, error)
	DrawWithPity(tier model.LoyaltyTier, bonusEligible bool, pity rarity.PityState) (rarity.Drawn, error)
}

// CodeIssuer produces unique coupon codes.
type CodeIssuer interface {
	Generate(ctx context.Context) (string, error)
}

// Notifier delivers coupon notifications off the request path. Failures
// must never surface to the triggering operation.
type Notifier interface {
	CouponGranted(email, name string, coupon model.ClaimedCoupon)
}

// TxBeginner defines the interface for beginning transactions.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// LoyaltyService implements the stamp-card program: status reads, stamp
// accrual, cycle claims with rarity draws, and the welcome grant.
type LoyaltyService struct {
	pool     TxBeginner
	ledgers  LedgerRepositoryInterface
	coupons  CouponRepositoryInterface
	drawer   Drawer
	codes    CodeIssuer
	notifier Notifier
	cfg      config.LoyaltyConfig
	now      func() time.Time
}

// NewLoyaltyService creates a LoyaltyService with its collaborators
// injected. Nothing is resolved lazily inside operations.
func NewLoyaltyService(
	pool *pgxpool.Pool,
	ledgers LedgerRepositoryInterface,
	coupons CouponRepositoryInterface,
	drawer Drawer,
	codes CodeIssuer,
	notifier Notifier,
	cfg config.LoyaltyConfig,
) *LoyaltyService {
	return &LoyaltyService{
		pool:     pool,
		ledgers:  ledgers,
		coupons:  coupons,
		drawer:   drawer,
		codes:    codes,
		notifier: notifier,
		cfg:      cfg,
		now:      time.Now,
	}
}

// NewLoyaltyServiceWithTxBeginner creates a LoyaltyService with a custom
// TxBeginner. Primarily used for testing.
func NewLoyaltyServiceWithTxBeginner(
	pool TxBeginner,
	ledgers LedgerRepositoryInterface,
	coupons CouponRepositoryInterface,
	drawer Drawer,
	codes CodeIssuer,
	notifier Notifier,
	cfg config.LoyaltyConfig,
) *LoyaltyService {
	return &LoyaltyService{
		pool:     pool,
		ledgers:  ledgers,
		coupons:  coupons,
		drawer:   drawer,
		codes:    codes,
		notifier: notifier,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Status returns the ledger snapshot plus only the coupons that are still
// redeemable. Used and expired coupons stay in storage but are filtered
// out of this view.
func (s *LoyaltyService) Status(ctx context.Context, userID uuid.UUID) (*model.StatusResponse, error) {
	ledger, err := s.ledgers.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get ledger: %w", err)
	}
	if ledger == nil {
		return nil, ErrUserNotFound
	}

	valid, err := s.coupons.ListValid(ctx, userID, s.now())
	if err != nil {
		return nil, fmt.Errorf("list valid coupons: %w", err)
	}

	nextTier, toNext := model.NextTierProgress(ledger.CyclesCompleted)
	return &model.StatusResponse{
		Stamps:           ledger.Stamps,
		CyclesCompleted:  ledger.CyclesCompleted,
		Tier:             ledger.Tier(),
		NextTier:         nextTier,
		CyclesToNextTier: toNext,
		ValidCoupons:     valid,
	}, nil
}

// History returns the append-only claim audit trail, oldest cycle first.
func (s *LoyaltyService) History(ctx context.Context, userID uuid.UUID) ([]model.HistoryEntry, error) {
	ledger, err := s.ledgers.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get ledger: %w", err)
	}
	if ledger == nil {
		return nil, ErrUserNotFound
	}
	entries, err := s.ledgers.ListHistory(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	return entries, nil
}

// AddStamp increments the user's stamp count by one. Returns ErrStampsFull
// when the card is already full; the user must claim before accumulating
// further. The same increment is used by the batch stamper, which guards
// against double-crediting at the order level.
func (s *LoyaltyService) AddStamp(ctx context.Context, userID uuid.UUID) (int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }() // Safe: no-op if committed

	ledger, err := s.ledgers.GetForUpdate(ctx, tx, userID)
	if err != nil {
		return 0, fmt.Errorf("get ledger for update: %w", err)
	}
	if ledger == nil {
		return 0, ErrUserNotFound
	}
	if ledger.Stamps >= s.cfg.MaxStamps {
		return 0, ErrStampsFull
	}

	stamps := ledger.Stamps + 1
	if err := s.ledgers.UpdateCounters(ctx, tx, userID, stamps, ledger.CyclesCompleted); err != nil {
		return 0, fmt.Errorf("update stamps: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return stamps, nil
}

// Claim converts a full stamp card into a drawn coupon. Atomically: draw,
// append coupon and history, reset stamps, increment cycles. The returned
// TierUpgraded flag is derived from the cycle counts, never stored.
// A nil pity state uses the plain bonus-adjusted draw.
func (s *LoyaltyService) Claim(ctx context.Context, userID uuid.UUID, pity *rarity.PityState) (*model.ClaimResponse, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ledger, err := s.ledgers.GetForUpdate(ctx, tx, userID)
	if err != nil {
		return nil, fmt.Errorf("get ledger for update: %w", err)
	}
	if ledger == nil {
		return nil, ErrUserNotFound
	}
	if ledger.Stamps < s.cfg.MaxStamps {
		return nil, ErrNotEnoughStamps
	}

	tierBefore := ledger.Tier()

	var drawn rarity.Drawn
	if pity != nil {
		drawn, err = s.drawer.DrawWithPity(tierBefore, true, *pity)
	} else {
		drawn, err = s.drawer.Draw(tierBefore, true)
	}
	if err != nil {
		return nil, fmt.Errorf("draw coupon: %w", err)
	}

	code, err := s.codes.Generate(ctx)
	if err != nil {
		return nil, fmt.Errorf("generate code: %w", err)
	}

	now := s.now()
	validity := s.cfg.ClaimValidity()
	if drawn.Template.ShortValidity {
		validity = s.cfg.ShortValidity()
	}
	coupon := model.ClaimedCoupon{
		Code:          code,
		UserID:        userID,
		Description:   drawn.Template.Description,
		DiscountType:  drawn.Template.DiscountType,
		Value:         drawn.Template.Value,
		MinOrderValue: drawn.Template.MinOrderValue,
		Rarity:        drawn.Rarity,
		ClaimedAt:     now,
		ExpiresAt:     now.Add(validity),
	}
	if err := s.coupons.Insert(ctx, tx, &coupon); err != nil {
		return nil, fmt.Errorf("insert claimed coupon: %w", err)
	}

	cycles := ledger.CyclesCompleted + 1
	history := model.HistoryEntry{
		UserID:      userID,
		Cycle:       cycles,
		Description: coupon.Description,
		Code:        coupon.Code,
		Rarity:      coupon.Rarity,
		CreatedAt:   now,
	}
	if err := s.ledgers.InsertHistory(ctx, tx, &history); err != nil {
		return nil, fmt.Errorf("insert history: %w", err)
	}
	if err := s.ledgers.UpdateCounters(ctx, tx, userID, 0, cycles); err != nil {
		return nil, fmt.Errorf("reset stamps: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	// Notification only after the claim is durable.
	s.notifier.CouponGranted(ledger.Email, ledger.Name, coupon)

	tierAfter := model.TierForCycles(cycles)
	return &model.ClaimResponse{
		Coupon:       coupon,
		Tier:         tierAfter,
		TierUpgraded: tierAfter != tierBefore,
	}, nil
}

// welcomeDiscountPercent is the fixed first-order offer. The welcome grant
// never goes through the rarity draw.
var welcomeDiscountPercent = decimal.NewFromInt(10)

// GrantWelcomeCoupon issues the fixed first-order coupon exactly once per
// user. Idempotent: returns nil with no error when the flag is already
// set, which makes it safe to call from registration, login, and both
// OAuth sign-in paths.
func (s *LoyaltyService) GrantWelcomeCoupon(ctx context.Context, userID uuid.UUID) (*model.ClaimedCoupon, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ledger, err := s.ledgers.GetForUpdate(ctx, tx, userID)
	if err != nil {
		return nil, fmt.Errorf("get ledger for update: %w", err)
	}
	if ledger == nil {
		return nil, ErrUserNotFound
	}
	if ledger.WelcomeCouponGranted {
		return nil, nil
	}

	code, err := s.codes.Generate(ctx)
	if err != nil {
		return nil, fmt.Errorf("generate code: %w", err)
	}

	now := s.now()
	coupon := model.ClaimedCoupon{
		Code:          code,
		UserID:        userID,
		Description:   "10% off your first order",
		DiscountType:  model.DiscountPercentage,
		Value:         welcomeDiscountPercent,
		MinOrderValue: decimal.Zero,
		Rarity:        model.RarityCommon,
		ClaimedAt:     now,
		ExpiresAt:     now.Add(s.cfg.WelcomeValidity()),
	}
	if err := s.coupons.Insert(ctx, tx, &coupon); err != nil {
		return nil, fmt.Errorf("insert welcome coupon: %w", err)
	}
	if err := s.ledgers.SetWelcomeGranted(ctx, tx, userID); err != nil {
		return nil, fmt.Errorf("set welcome flag: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	s.notifier.CouponGranted(ledger.Email, ledger.Name, coupon)
	return &coupon, nil
}
