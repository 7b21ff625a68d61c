// Package reconcile repairs stored order statuses and backfills missing
// status history.
package reconcile

import (
	"context"

	"github.com/gofrs/uuid"
	"github.com/vasiliy-maslov/order-maintenance/internal/order"
)

// DefaultBatchSize is how many staged writes are accumulated before a flush.
const DefaultBatchSize = 100

// Store is the part of order.Repository the reconciliation passes need.
type Store interface {
	ListOrders(ctx context.Context) ([]order.Order, error)
	HistoryByOrder(ctx context.Context, orderID uuid.UUID) ([]order.StatusHistoryEntry, error)
	SaveStatus(ctx context.Context, o *order.Order) error
	SaveHistory(ctx context.Context, entry *order.StatusHistoryEntry) error
	Flush(ctx context.Context) error
}

// Reporter receives progress and results as a pass runs.
type Reporter interface {
	Info(msg string)
	Warning(msg string)
	Record(msg string)
	Table(headers []string, rows [][]string)
	ProgressStart(total int)
	ProgressAdvance()
	ProgressFinish()
}

// NopReporter discards everything.
type NopReporter struct{}

func (NopReporter) Info(string)                {}
func (NopReporter) Warning(string)             {}
func (NopReporter) Record(string)              {}
func (NopReporter) Table([]string, [][]string) {}
func (NopReporter) ProgressStart(int)          {}
func (NopReporter) ProgressAdvance()           {}
func (NopReporter) ProgressFinish()            {}
