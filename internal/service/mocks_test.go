package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/threadline/loyalty-engine/internal/config"
	"github.com/threadline/loyalty-engine/internal/model"
	"github.com/threadline/loyalty-engine/internal/rarity"
	"github.com/threadline/loyalty-engine/pkg/database"
)

// mockTx is a mock implementation of pgx.Tx for testing transactions.
type mockTx struct {
	commitFn   func(ctx context.Context) error
	rollbackFn func(ctx context.Context) error
	committed  bool
	rolledBack bool
}

func (m *mockTx) Begin(ctx context.Context) (pgx.Tx, error) {
	return nil, errors.New("nested transactions not supported")
}

func (m *mockTx) Commit(ctx context.Context) error {
	m.committed = true
	if m.commitFn != nil {
		return m.commitFn(ctx)
	}
	return nil
}

func (m *mockTx) Rollback(ctx context.Context) error {
	m.rolledBack = true
	if m.rollbackFn != nil {
		return m.rollbackFn(ctx)
	}
	return nil
}

func (m *mockTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}

func (m *mockTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	return nil
}

func (m *mockTx) LargeObjects() pgx.LargeObjects {
	return pgx.LargeObjects{}
}

func (m *mockTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}

func (m *mockTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (m *mockTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}

func (m *mockTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return nil
}

func (m *mockTx) Conn() *pgx.Conn {
	return nil
}

// mockTxBeginner is a mock implementation of TxBeginner.
type mockTxBeginner struct {
	beginFn func(ctx context.Context) (pgx.Tx, error)
}

func (m *mockTxBeginner) Begin(ctx context.Context) (pgx.Tx, error) {
	if m.beginFn != nil {
		return m.beginFn(ctx)
	}
	return &mockTx{}, nil
}

// mockLedgerRepository is a mock implementation of LedgerRepositoryInterface.
type mockLedgerRepository struct {
	getFn               func(ctx context.Context, userID uuid.UUID) (*model.Ledger, error)
	getForUpdateFn      func(ctx context.Context, tx database.TxQuerier, userID uuid.UUID) (*model.Ledger, error)
	updateCountersFn    func(ctx context.Context, tx database.TxQuerier, userID uuid.UUID, stamps, cycles int) error
	setWelcomeGrantedFn func(ctx context.Context, tx database.TxQuerier, userID uuid.UUID) error
	insertHistoryFn     func(ctx context.Context, tx database.TxQuerier, entry *model.HistoryEntry) error
	listHistoryFn       func(ctx context.Context, userID uuid.UUID) ([]model.HistoryEntry, error)
}

func (m *mockLedgerRepository) Get(ctx context.Context, userID uuid.UUID) (*model.Ledger, error) {
	if m.getFn != nil {
		return m.getFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockLedgerRepository) GetForUpdate(ctx context.Context, tx database.TxQuerier, userID uuid.UUID) (*model.Ledger, error) {
	if m.getForUpdateFn != nil {
		return m.getForUpdateFn(ctx, tx, userID)
	}
	return nil, nil
}

func (m *mockLedgerRepository) UpdateCounters(ctx context.Context, tx database.TxQuerier, userID uuid.UUID, stamps, cycles int) error {
	if m.updateCountersFn != nil {
		return m.updateCountersFn(ctx, tx, userID, stamps, cycles)
	}
	return nil
}

func (m *mockLedgerRepository) SetWelcomeGranted(ctx context.Context, tx database.TxQuerier, userID uuid.UUID) error {
	if m.setWelcomeGrantedFn != nil {
		return m.setWelcomeGrantedFn(ctx, tx, userID)
	}
	return nil
}

func (m *mockLedgerRepository) InsertHistory(ctx context.Context, tx database.TxQuerier, entry *model.HistoryEntry) error {
	if m.insertHistoryFn != nil {
		return m.insertHistoryFn(ctx, tx, entry)
	}
	return nil
}

func (m *mockLedgerRepository) ListHistory(ctx context.Context, userID uuid.UUID) ([]model.HistoryEntry, error) {
	if m.listHistoryFn != nil {
		return m.listHistoryFn(ctx, userID)
	}
	return []model.HistoryEntry{}, nil
}

// mockCouponRepository is a mock implementation of CouponRepositoryInterface.
type mockCouponRepository struct {
	insertFn    func(ctx context.Context, tx database.TxQuerier, coupon *model.ClaimedCoupon) error
	listValidFn func(ctx context.Context, userID uuid.UUID, now time.Time) ([]model.ClaimedCoupon, error)
}

func (m *mockCouponRepository) Insert(ctx context.Context, tx database.TxQuerier, coupon *model.ClaimedCoupon) error {
	if m.insertFn != nil {
		return m.insertFn(ctx, tx, coupon)
	}
	return nil
}

func (m *mockCouponRepository) ListValid(ctx context.Context, userID uuid.UUID, now time.Time) ([]model.ClaimedCoupon, error) {
	if m.listValidFn != nil {
		return m.listValidFn(ctx, userID, now)
	}
	return []model.ClaimedCoupon{}, nil
}

// mockDrawer is a mock implementation of Drawer.
type mockDrawer struct {
	drawFn         func(tier model.LoyaltyTier, bonusEligible bool) (rarity.Drawn, error)
	drawWithPityFn func(tier model.LoyaltyTier, bonusEligible bool, pity rarity.PityState) (rarity.Drawn, error)
}

func (m *mockDrawer) Draw(tier model.LoyaltyTier, bonusEligible bool) (rarity.Drawn, error) {
	if m.drawFn != nil {
		return m.drawFn(tier, bonusEligible)
	}
	return rarity.Drawn{
		Rarity: model.RarityCommon,
		Template: model.CouponTemplate{
			Description:  "5% off your order",
			DiscountType: model.DiscountPercentage,
			Value:        decimal.NewFromInt(5),
			Weight:       1,
		},
	}, nil
}

func (m *mockDrawer) DrawWithPity(tier model.LoyaltyTier, bonusEligible bool, pity rarity.PityState) (rarity.Drawn, error) {
	if m.drawWithPityFn != nil {
		return m.drawWithPityFn(tier, bonusEligible, pity)
	}
	return m.Draw(tier, bonusEligible)
}

// mockCodeIssuer is a mock implementation of CodeIssuer.
type mockCodeIssuer struct {
	generateFn func(ctx context.Context) (string, error)
}

func (m *mockCodeIssuer) Generate(ctx context.Context) (string, error) {
	if m.generateFn != nil {
		return m.generateFn(ctx)
	}
	return "THRD-TESTCODE", nil
}

// mockNotifier records notifications instead of sending them.
type mockNotifier struct {
	granted []model.ClaimedCoupon
}

func (m *mockNotifier) CouponGranted(email, name string, coupon model.ClaimedCoupon) {
	m.granted = append(m.granted, coupon)
}

// mockRedeemableCouponRepository is a mock implementation of
// RedeemableCouponRepository.
type mockRedeemableCouponRepository struct {
	getByCodeFn    func(ctx context.Context, userID uuid.UUID, code string) (*model.ClaimedCoupon, error)
	markAppliedFn  func(ctx context.Context, userID uuid.UUID, code string, at time.Time, total decimal.Decimal) error
	clearAppliedFn func(ctx context.Context, userID uuid.UUID, code string) error
	markUsedFn     func(ctx context.Context, userID uuid.UUID, code string, at time.Time) (bool, error)
}

func (m *mockRedeemableCouponRepository) GetByCode(ctx context.Context, userID uuid.UUID, code string) (*model.ClaimedCoupon, error) {
	if m.getByCodeFn != nil {
		return m.getByCodeFn(ctx, userID, code)
	}
	return nil, nil
}

func (m *mockRedeemableCouponRepository) MarkApplied(ctx context.Context, userID uuid.UUID, code string, at time.Time, total decimal.Decimal) error {
	if m.markAppliedFn != nil {
		return m.markAppliedFn(ctx, userID, code, at, total)
	}
	return nil
}

func (m *mockRedeemableCouponRepository) ClearApplied(ctx context.Context, userID uuid.UUID, code string) error {
	if m.clearAppliedFn != nil {
		return m.clearAppliedFn(ctx, userID, code)
	}
	return nil
}

func (m *mockRedeemableCouponRepository) MarkUsed(ctx context.Context, userID uuid.UUID, code string, at time.Time) (bool, error) {
	if m.markUsedFn != nil {
		return m.markUsedFn(ctx, userID, code, at)
	}
	return true, nil
}

// mockOrderRepository is a mock implementation of OrderRepositoryInterface
// and StampableOrderRepository.
type mockOrderRepository struct {
	insertFn         func(ctx context.Context, order *model.Order) error
	getFn            func(ctx context.Context, orderID uuid.UUID) (*model.Order, error)
	markPaidFn       func(ctx context.Context, orderID uuid.UUID) error
	listStampableFn  func(ctx context.Context, deliveredBefore time.Time) ([]model.Order, error)
	markStampAddedFn func(ctx context.Context, tx database.TxQuerier, orderID uuid.UUID) error
}

func (m *mockOrderRepository) Insert(ctx context.Context, order *model.Order) error {
	if m.insertFn != nil {
		return m.insertFn(ctx, order)
	}
	return nil
}

func (m *mockOrderRepository) Get(ctx context.Context, orderID uuid.UUID) (*model.Order, error) {
	if m.getFn != nil {
		return m.getFn(ctx, orderID)
	}
	return nil, nil
}

func (m *mockOrderRepository) MarkPaid(ctx context.Context, orderID uuid.UUID) error {
	if m.markPaidFn != nil {
		return m.markPaidFn(ctx, orderID)
	}
	return nil
}

func (m *mockOrderRepository) ListStampable(ctx context.Context, deliveredBefore time.Time) ([]model.Order, error) {
	if m.listStampableFn != nil {
		return m.listStampableFn(ctx, deliveredBefore)
	}
	return []model.Order{}, nil
}

func (m *mockOrderRepository) MarkStampAdded(ctx context.Context, tx database.TxQuerier, orderID uuid.UUID) error {
	if m.markStampAddedFn != nil {
		return m.markStampAddedFn(ctx, tx, orderID)
	}
	return nil
}

// mockRedeemer is a mock implementation of Redeemer.
type mockRedeemer struct {
	applyFn  func(ctx context.Context, userID uuid.UUID, code string, orderTotal decimal.Decimal) (*model.ApplyCouponResponse, error)
	redeemFn func(ctx context.Context, userID uuid.UUID, code string) (bool, error)
}

func (m *mockRedeemer) Apply(ctx context.Context, userID uuid.UUID, code string, orderTotal decimal.Decimal) (*model.ApplyCouponResponse, error) {
	if m.applyFn != nil {
		return m.applyFn(ctx, userID, code, orderTotal)
	}
	return nil, nil
}

func (m *mockRedeemer) Redeem(ctx context.Context, userID uuid.UUID, code string) (bool, error) {
	if m.redeemFn != nil {
		return m.redeemFn(ctx, userID, code)
	}
	return true, nil
}

// testLoyaltyConfig returns the production defaults used across tests.
func testLoyaltyConfig() config.LoyaltyConfig {
	return config.LoyaltyConfig{
		MaxStamps:           10,
		ClaimValidityDays:   20,
		ShortValidityDays:   7,
		WelcomeValidityDays: 30,
		StampCooldownDays:   7,
		SweepIntervalHours:  24,
	}
}
