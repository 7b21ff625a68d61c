package report

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/vasiliy-maslov/order-maintenance/internal/order"
)

// StatusCount is the number of orders stored with one raw status value.
type StatusCount struct {
	Status     order.OrderStatus `db:"status"`
	Total      int               `db:"total"`
	Resolution order.Resolution  `db:"-"`
	Target     order.OrderStatus `db:"-"`
}

type Snapshot struct {
	Statuses       []StatusCount
	Orders         int
	NonCanonical   int
	Unknown        int
	WithoutHistory int
	HistoryEntries int
}

// StatsRepository runs read-only aggregate queries. Table names are left
// unqualified so the connection's search_path decides the schema.
type StatsRepository struct {
	db *sqlx.DB
}

func NewStatsRepository(db *sqlx.DB) *StatsRepository {
	return &StatsRepository{db: db}
}

// StatusDistribution groups orders by their stored status, annotated with
// what fix-statuses would turn each value into.
func (r *StatsRepository) StatusDistribution(ctx context.Context) ([]StatusCount, error) {
	query := `
		SELECT status, COUNT(*) AS total
		FROM orders
		GROUP BY status
		ORDER BY status
	`

	var counts []StatusCount
	if err := r.db.SelectContext(ctx, &counts, query); err != nil {
		return nil, fmt.Errorf("stats: failed to count orders by status: %w", err)
	}

	for i := range counts {
		counts[i].Target, counts[i].Resolution = order.Normalize(counts[i].Status)
	}
	return counts, nil
}

func (r *StatsRepository) OrdersWithoutHistory(ctx context.Context) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM orders o
		WHERE NOT EXISTS (
			SELECT 1 FROM order_status_history h WHERE h.order_id = o.id
		)
	`

	var total int
	if err := r.db.GetContext(ctx, &total, query); err != nil {
		return 0, fmt.Errorf("stats: failed to count orders without history: %w", err)
	}
	return total, nil
}

func (r *StatsRepository) HistoryEntries(ctx context.Context) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM order_status_history`); err != nil {
		return 0, fmt.Errorf("stats: failed to count history entries: %w", err)
	}
	return total, nil
}

func (r *StatsRepository) Snapshot(ctx context.Context) (*Snapshot, error) {
	statuses, err := r.StatusDistribution(ctx)
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{Statuses: statuses}
	for _, s := range statuses {
		snap.Orders += s.Total
		if s.Resolution != order.ResolvedCanonical {
			snap.NonCanonical += s.Total
		}
		if s.Resolution == order.ResolvedUnknown {
			snap.Unknown += s.Total
		}
	}

	if snap.WithoutHistory, err = r.OrdersWithoutHistory(ctx); err != nil {
		return nil, err
	}
	if snap.HistoryEntries, err = r.HistoryEntries(ctx); err != nil {
		return nil, err
	}
	return snap, nil
}
