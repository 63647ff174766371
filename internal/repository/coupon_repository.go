package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/threadline/loyalty-engine/internal/model"
	"github.com/threadline/loyalty-engine/pkg/database"
)

// PoolInterface defines the database operations needed by repositories.
// This allows for easier testing with mocks.
type PoolInterface interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

const couponColumns = `code, user_id, description, discount_type, value, min_order_value,
	rarity, claimed_at, expires_at, applied_at, applied_total, used_at`

// CouponRepository provides data access for claimed coupons using pgx.
// Rows are append-only; nothing here deletes.
type CouponRepository struct {
	pool PoolInterface
}

// NewCouponRepository creates a new CouponRepository with the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// NewCouponRepositoryWithPool creates a new CouponRepository with a custom
// pool interface. This is primarily used for testing.
func NewCouponRepositoryWithPool(pool PoolInterface) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// Insert stores a freshly claimed coupon within a transaction. The primary
// key on code backs the generator's uniqueness guarantee.
func (r *CouponRepository) Insert(ctx context.Context, tx database.TxQuerier, coupon *model.ClaimedCoupon) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO claimed_coupons
			(code, user_id, description, discount_type, value, min_order_value, rarity, claimed_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		coupon.Code, coupon.UserID, coupon.Description, coupon.DiscountType,
		coupon.Value, coupon.MinOrderValue, coupon.Rarity, coupon.ClaimedAt, coupon.ExpiresAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("coupon code %s already issued: %w", coupon.Code, err)
		}
		return fmt.Errorf("insert claimed coupon: %w", err)
	}
	return nil
}

// CodeExists reports whether a code was ever issued to any user.
func (r *CouponRepository) CodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM claimed_coupons WHERE code = $1)`, code).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check code exists: %w", err)
	}
	return exists, nil
}

// GetByCode retrieves a coupon owned by the given user.
// Returns nil, nil when not found (service layer handles this).
func (r *CouponRepository) GetByCode(ctx context.Context, userID uuid.UUID, code string) (*model.ClaimedCoupon, error) {
	query := `SELECT ` + couponColumns + ` FROM claimed_coupons WHERE user_id = $1 AND code = $2`

	coupon, err := scanCoupon(r.pool.QueryRow(ctx, query, userID, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get coupon %s: %w", code, err)
	}
	return coupon, nil
}

// ListValid returns the user's coupons that are neither used nor expired,
// newest first. Used and expired rows are filtered, never removed.
func (r *CouponRepository) ListValid(ctx context.Context, userID uuid.UUID, now time.Time) ([]model.ClaimedCoupon, error) {
	query := `SELECT ` + couponColumns + `
		FROM claimed_coupons
		WHERE user_id = $1 AND used_at IS NULL AND expires_at > $2
		ORDER BY claimed_at DESC`

	rows, err := r.pool.Query(ctx, query, userID, now)
	if err != nil {
		return nil, fmt.Errorf("list valid coupons: %w", err)
	}
	defer rows.Close()

	coupons := []model.ClaimedCoupon{}
	for rows.Next() {
		coupon, err := scanCoupon(rows)
		if err != nil {
			return nil, fmt.Errorf("scan coupon: %w", err)
		}
		coupons = append(coupons, *coupon)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate coupon rows: %w", err)
	}
	return coupons, nil
}

// MarkApplied records the advisory preview state on the coupon.
func (r *CouponRepository) MarkApplied(ctx context.Context, userID uuid.UUID, code string, at time.Time, total decimal.Decimal) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE claimed_coupons SET applied_at = $1, applied_total = $2
		 WHERE user_id = $3 AND code = $4`,
		at, total, userID, code)
	if err != nil {
		return fmt.Errorf("mark coupon applied: %w", err)
	}
	return nil
}

// ClearApplied resets the advisory preview state. used_at is untouched.
func (r *CouponRepository) ClearApplied(ctx context.Context, userID uuid.UUID, code string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE claimed_coupons SET applied_at = NULL, applied_total = NULL
		 WHERE user_id = $1 AND code = $2`,
		userID, code)
	if err != nil {
		return fmt.Errorf("clear coupon applied state: %w", err)
	}
	return nil
}

// MarkUsed sets used_at, conditional on it still being null. The condition
// makes redemption idempotent and prevents a coupon from ever covering two
// orders. Returns whether this call flipped the flag.
func (r *CouponRepository) MarkUsed(ctx context.Context, userID uuid.UUID, code string, at time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE claimed_coupons SET used_at = $1
		 WHERE user_id = $2 AND code = $3 AND used_at IS NULL`,
		at, userID, code)
	if err != nil {
		return false, fmt.Errorf("mark coupon used: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// rowScanner is satisfied by both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanCoupon(row rowScanner) (*model.ClaimedCoupon, error) {
	var c model.ClaimedCoupon
	err := row.Scan(
		&c.Code,
		&c.UserID,
		&c.Description,
		&c.DiscountType,
		&c.Value,
		&c.MinOrderValue,
		&c.Rarity,
		&c.ClaimedAt,
		&c.ExpiresAt,
		&c.AppliedAt,
		&c.AppliedTotal,
		&c.UsedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
