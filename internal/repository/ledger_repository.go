package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/threadline/loyalty-engine/internal/model"
	"github.com/threadline/loyalty-engine/pkg/database"
)

const ledgerColumns = `id, email, name, stamps, cycles_completed, welcome_coupon_granted`

// LedgerRepository provides data access for user loyalty ledgers using pgx.
type LedgerRepository struct {
	pool PoolInterface
}

// NewLedgerRepository creates a new LedgerRepository with the given pool.
func NewLedgerRepository(pool *pgxpool.Pool) *LedgerRepository {
	return &LedgerRepository{pool: pool}
}

// NewLedgerRepositoryWithPool creates a new LedgerRepository with a custom
// pool interface. This is primarily used for testing.
func NewLedgerRepositoryWithPool(pool PoolInterface) *LedgerRepository {
	return &LedgerRepository{pool: pool}
}

// Get retrieves a user's ledger.
// Returns nil, nil when the user is not found (service layer handles this).
func (r *LedgerRepository) Get(ctx context.Context, userID uuid.UUID) (*model.Ledger, error) {
	query := `SELECT ` + ledgerColumns + ` FROM users WHERE id = $1`
	ledger, err := scanLedger(r.pool.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get ledger %s: %w", userID, err)
	}
	return ledger, nil
}

// GetForUpdate retrieves a ledger with a row lock (SELECT FOR UPDATE).
// Every read-modify-write of stamps or cycles goes through this; the lock
// serializes claims, interactive stamps and the batch sweep per user.
// Returns nil, nil when the user is not found.
func (r *LedgerRepository) GetForUpdate(ctx context.Context, tx database.TxQuerier, userID uuid.UUID) (*model.Ledger, error) {
	query := `SELECT ` + ledgerColumns + ` FROM users WHERE id = $1 FOR UPDATE`
	ledger, err := scanLedger(tx.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get ledger for update %s: %w", userID, err)
	}
	return ledger, nil
}

// UpdateCounters writes the stamp and cycle counts. Must be called within
// a transaction after locking the user row.
func (r *LedgerRepository) UpdateCounters(ctx context.Context, tx database.TxQuerier, userID uuid.UUID, stamps, cycles int) error {
	_, err := tx.Exec(ctx,
		`UPDATE users SET stamps = $1, cycles_completed = $2 WHERE id = $3`,
		stamps, cycles, userID)
	if err != nil {
		return fmt.Errorf("update ledger counters for %s: %w", userID, err)
	}
	return nil
}

// SetWelcomeGranted sets the welcome flag. The flag is never cleared.
func (r *LedgerRepository) SetWelcomeGranted(ctx context.Context, tx database.TxQuerier, userID uuid.UUID) error {
	_, err := tx.Exec(ctx,
		`UPDATE users SET welcome_coupon_granted = TRUE WHERE id = $1`, userID)
	if err != nil {
		return fmt.Errorf("set welcome flag for %s: %w", userID, err)
	}
	return nil
}

// InsertHistory appends one audit row for a successful claim.
func (r *LedgerRepository) InsertHistory(ctx context.Context, tx database.TxQuerier, entry *model.HistoryEntry) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO loyalty_history (user_id, cycle, description, code, rarity, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.UserID, entry.Cycle, entry.Description, entry.Code, entry.Rarity, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert history entry: %w", err)
	}
	return nil
}

// ListHistory returns the claim audit trail, oldest first.
func (r *LedgerRepository) ListHistory(ctx context.Context, userID uuid.UUID) ([]model.HistoryEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT user_id, cycle, description, code, rarity, created_at
		 FROM loyalty_history WHERE user_id = $1 ORDER BY cycle`, userID)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	entries := []model.HistoryEntry{}
	for rows.Next() {
		var e model.HistoryEntry
		if err := rows.Scan(&e.UserID, &e.Cycle, &e.Description, &e.Code, &e.Rarity, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history rows: %w", err)
	}
	return entries, nil
}

func scanLedger(row rowScanner) (*model.Ledger, error) {
	var l model.Ledger
	err := row.Scan(
		&l.UserID,
		&l.Email,
		&l.Name,
		&l.Stamps,
		&l.CyclesCompleted,
		&l.WelcomeCouponGranted,
	)
	if err != nil {
		return nil, err
	}
	return &l, nil
}
