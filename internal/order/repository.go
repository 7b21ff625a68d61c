package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

var (
	ErrOrderNotFound = errors.New("order not found")
	ErrDuplicateID   = errors.New("record with this ID already exists")
)

// Repository is the persistence port used by the maintenance commands.
// SaveStatus and SaveHistory only stage writes; nothing reaches the
// database until Flush.
type Repository interface {
	ListOrders(ctx context.Context) ([]Order, error)
	HistoryByOrder(ctx context.Context, orderID uuid.UUID) ([]StatusHistoryEntry, error)
	SaveStatus(ctx context.Context, order *Order) error
	SaveHistory(ctx context.Context, entry *StatusHistoryEntry) error
	Flush(ctx context.Context) error
	CreateOrder(ctx context.Context, order *Order, history []StatusHistoryEntry) (uuid.UUID, error)
}

type writeKind int

const (
	writeStatus writeKind = iota
	writeHistory
)

type stagedWrite struct {
	kind    writeKind
	orderID uuid.UUID
}

// PostgresRepository is not safe for concurrent use: staged writes live in a
// single pgx.Batch.
type PostgresRepository struct {
	db     *pgxpool.Pool
	batch  *pgx.Batch
	staged []stagedWrite
	now    func() time.Time
}

func NewRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{
		db:    db,
		batch: &pgx.Batch{},
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (r *PostgresRepository) ListOrders(ctx context.Context) ([]Order, error) {
	query := `
		SELECT id, user_id, status, total_amount, created_at, updated_at
		FROM order_service.orders
		ORDER BY created_at, id
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query orders: %w", err)
	}
	defer rows.Close()

	orders := make([]Order, 0)
	for rows.Next() {
		var order Order
		err := rows.Scan(
			&order.ID,
			&order.UserID,
			&order.Status,
			&order.TotalAmount,
			&order.CreatedAt,
			&order.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan order: %w", err)
		}
		orders = append(orders, order)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating orders: %w", err)
	}

	return orders, nil
}

func (r *PostgresRepository) HistoryByOrder(ctx context.Context, orderID uuid.UUID) ([]StatusHistoryEntry, error) {
	query := `
		SELECT id, order_id, status, previous_status, changed_by, comment, created_at
		FROM order_service.order_status_history
		WHERE order_id = $1
		ORDER BY created_at
	`

	rows, err := r.db.Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query status history for order id %s: %w", orderID, err)
	}
	defer rows.Close()

	entries := make([]StatusHistoryEntry, 0)
	for rows.Next() {
		var (
			entry     StatusHistoryEntry
			previous  *string
			changedBy *uuid.UUID
		)
		err := rows.Scan(
			&entry.ID,
			&entry.OrderID,
			&entry.Status,
			&previous,
			&changedBy,
			&entry.Comment,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan status history for order id %s: %w", orderID, err)
		}
		if previous != nil {
			prev := OrderStatus(*previous)
			entry.PreviousStatus = &prev
		}
		entry.ChangedBy = changedBy
		entries = append(entries, entry)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating status history for order id %s: %w", orderID, err)
	}

	return entries, nil
}

func (r *PostgresRepository) SaveStatus(_ context.Context, order *Order) error {
	order.UpdatedAt = r.now()

	r.batch.Queue(`
		UPDATE order_service.orders
		SET status = $1, updated_at = $2
		WHERE id = $3
	`, string(order.Status), order.UpdatedAt, order.ID)
	r.staged = append(r.staged, stagedWrite{kind: writeStatus, orderID: order.ID})

	return nil
}

func (r *PostgresRepository) SaveHistory(_ context.Context, entry *StatusHistoryEntry) error {
	if entry.ID == uuid.Nil {
		id, err := uuid.NewV4()
		if err != nil {
			return fmt.Errorf("repository: failed to generate history entry ID: %w", err)
		}
		entry.ID = id
	}

	var previous *string
	if entry.PreviousStatus != nil {
		p := string(*entry.PreviousStatus)
		previous = &p
	}

	r.batch.Queue(`
		INSERT INTO order_service.order_status_history (id, order_id, status, previous_status, changed_by, comment, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, entry.ID, entry.OrderID, string(entry.Status), previous, entry.ChangedBy, entry.Comment, entry.CreatedAt)
	r.staged = append(r.staged, stagedWrite{kind: writeHistory, orderID: entry.OrderID})

	return nil
}

// Flush commits every staged write in one transaction. The staged set is
// discarded whether or not the commit succeeds.
func (r *PostgresRepository) Flush(ctx context.Context) (err error) {
	if r.batch.Len() == 0 {
		return nil
	}

	batch, staged := r.batch, r.staged
	r.batch, r.staged = &pgx.Batch{}, nil

	tx, beginErr := r.db.Begin(ctx)
	if beginErr != nil {
		return fmt.Errorf("repository: failed to begin transaction: %w", beginErr)
	}
	defer func() {
		if p := recover(); p != nil {
			log.Error().Interface("panic_value", p).Int("staged", len(staged)).Msg("Panic recovered during Flush, rolling back")
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Msg("Failed to rollback transaction after panic")
			}
			panic(p)
		} else if err != nil {
			log.Warn().Err(err).Int("staged", len(staged)).Msg("Flush failed, rolling back")
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Msg("Failed to rollback transaction")
			}
		} else {
			if commitErr := tx.Commit(ctx); commitErr != nil {
				log.Error().Err(commitErr).Int("staged", len(staged)).Msg("Failed to commit transaction")
				err = fmt.Errorf("repository: failed to commit transaction: %w", commitErr)
			}
		}
	}()

	results := tx.SendBatch(ctx, batch)
	for _, w := range staged {
		cmdTag, execErr := results.Exec()
		if execErr != nil {
			_ = results.Close()
			return classifyWriteError(w, execErr)
		}
		if w.kind == writeStatus && cmdTag.RowsAffected() == 0 {
			_ = results.Close()
			log.Warn().Stringer("order_id", w.orderID).Msg("repository: order not found for status update")
			return fmt.Errorf("repository: failed to update status of order %s: %w", w.orderID, ErrOrderNotFound)
		}
	}
	if closeErr := results.Close(); closeErr != nil {
		return fmt.Errorf("repository: failed to close batch: %w", closeErr)
	}

	log.Debug().Int("writes", len(staged)).Msg("repository: batch flushed")
	return nil
}

func classifyWriteError(w stagedWrite, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.ForeignKeyViolation:
			return fmt.Errorf("repository: failed to write history for order %s: %w", w.orderID, ErrOrderNotFound)
		case pgerrcode.UniqueViolation:
			return fmt.Errorf("repository: failed to write for order %s: %w", w.orderID, ErrDuplicateID)
		}
	}

	if w.kind == writeStatus {
		return fmt.Errorf("repository: failed to update status of order %s: %w", w.orderID, err)
	}
	return fmt.Errorf("repository: failed to insert status history for order %s: %w", w.orderID, err)
}

// CreateOrder inserts an order together with its history in one transaction.
// A nil order ID is generated here and written back into orderInput.
func (r *PostgresRepository) CreateOrder(ctx context.Context, orderInput *Order, history []StatusHistoryEntry) (orderID uuid.UUID, err error) {
	finalOrderID := orderInput.ID
	if finalOrderID == uuid.Nil {
		genID, genErr := uuid.NewV4()
		if genErr != nil {
			log.Error().Err(genErr).Msg("repository: failed to generate order ID")
			return uuid.Nil, fmt.Errorf("repository: failed to generate order ID: %w", genErr)
		}
		finalOrderID = genID
	}
	orderInput.ID = finalOrderID

	tx, beginErr := r.db.Begin(ctx)
	if beginErr != nil {
		return uuid.Nil, fmt.Errorf("repository: failed to begin transaction: %w", beginErr)
	}
	defer func() {
		if p := recover(); p != nil {
			log.Error().Interface("panic_value", p).Stringer("order_id_attempted", finalOrderID).Msg("Panic recovered during CreateOrder, rolling back")
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Stringer("order_id_attempted", finalOrderID).Msg("Failed to rollback transaction after panic")
			}
			panic(p)
		} else if err != nil {
			log.Warn().Err(err).Stringer("order_id_attempted", finalOrderID).Msg("Transaction for CreateOrder failed, rolling back")
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Stringer("order_id_attempted", finalOrderID).Msg("Failed to rollback transaction")
			}
		} else {
			if commitErr := tx.Commit(ctx); commitErr != nil {
				log.Error().Err(commitErr).Stringer("order_id", finalOrderID).Msg("Failed to commit transaction")
				err = fmt.Errorf("repository: failed to commit transaction: %w", commitErr)
			}
		}
	}()

	if orderInput.CreatedAt.IsZero() {
		orderInput.CreatedAt = r.now()
	}
	orderInput.UpdatedAt = orderInput.CreatedAt

	queryOrder := `
		INSERT INTO order_service.orders (id, user_id, status, total_amount, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = tx.Exec(ctx, queryOrder,
		finalOrderID,
		orderInput.UserID,
		string(orderInput.Status),
		orderInput.TotalAmount,
		orderInput.CreatedAt,
		orderInput.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return uuid.Nil, ErrDuplicateID
		}
		return uuid.Nil, fmt.Errorf("repository: failed to insert order: %w", err)
	}

	queryHistory := `
		INSERT INTO order_service.order_status_history (id, order_id, status, previous_status, changed_by, comment, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	for i := range history {
		entry := &history[i]

		if entry.ID == uuid.Nil {
			entryID, genErr := uuid.NewV4()
			if genErr != nil {
				return uuid.Nil, fmt.Errorf("repository: failed to generate history entry ID: %w", genErr)
			}
			entry.ID = entryID
		}
		entry.OrderID = finalOrderID

		var previous *string
		if entry.PreviousStatus != nil {
			p := string(*entry.PreviousStatus)
			previous = &p
		}

		_, err = tx.Exec(ctx, queryHistory,
			entry.ID,
			finalOrderID,
			string(entry.Status),
			previous,
			entry.ChangedBy,
			entry.Comment,
			entry.CreatedAt,
		)
		if err != nil {
			return uuid.Nil, fmt.Errorf("repository: failed to insert status history for order %s: %w", finalOrderID, err)
		}
	}

	return finalOrderID, nil
}
