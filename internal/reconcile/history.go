package reconcile

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/order-maintenance/internal/order"
)

// DefaultHistoryComment is written on every synthesized entry.
const DefaultHistoryComment = "Status history backfilled by maintenance"

type HistoryResult struct {
	Considered int
	Created    int
	Skipped    int
}

type HistorySynthesizer struct {
	store     Store
	reporter  Reporter
	batchSize int
	comment   string
	now       func() time.Time
	offset    OffsetFunc
}

func NewHistorySynthesizer(store Store, reporter Reporter) *HistorySynthesizer {
	if reporter == nil {
		reporter = NopReporter{}
	}
	return &HistorySynthesizer{
		store:     store,
		reporter:  reporter,
		batchSize: DefaultBatchSize,
		comment:   DefaultHistoryComment,
		now:       time.Now,
		offset:    RandomOffset,
	}
}

func (h *HistorySynthesizer) WithBatchSize(size int) *HistorySynthesizer {
	if size > 0 {
		h.batchSize = size
	}
	return h
}

func (h *HistorySynthesizer) WithComment(comment string) *HistorySynthesizer {
	if comment != "" {
		h.comment = comment
	}
	return h
}

func (h *HistorySynthesizer) WithClock(now func() time.Time) *HistorySynthesizer {
	h.now = now
	return h
}

func (h *HistorySynthesizer) WithOffset(offset OffsetFunc) *HistorySynthesizer {
	h.offset = offset
	return h
}

// Run creates one history entry for every order that has none. Orders with
// any existing entry are skipped, whatever status that entry records.
func (h *HistorySynthesizer) Run(ctx context.Context) (*HistoryResult, error) {
	orders, err := h.store.ListOrders(ctx)
	if err != nil {
		return nil, fmt.Errorf("reconcile: failed to list orders: %w", err)
	}

	result := &HistoryResult{Considered: len(orders)}
	if len(orders) == 0 {
		h.reporter.Info("No orders found, nothing to populate")
		return result, nil
	}

	// staged entries are invisible to HistoryByOrder until flushed
	seen := make(map[uuid.UUID]struct{}, len(orders))
	pending := 0

	h.reporter.ProgressStart(len(orders))
	for i := range orders {
		o := &orders[i]
		h.reporter.ProgressAdvance()

		if _, ok := seen[o.ID]; ok {
			result.Skipped++
			continue
		}
		seen[o.ID] = struct{}{}

		existing, err := h.store.HistoryByOrder(ctx, o.ID)
		if err != nil {
			h.reporter.ProgressFinish()
			return result, fmt.Errorf("reconcile: failed to load history of order %s: %w", o.ID, err)
		}
		if len(existing) > 0 {
			result.Skipped++
			continue
		}

		entry, err := h.entryFor(o)
		if err != nil {
			h.reporter.ProgressFinish()
			return result, err
		}
		if err := h.store.SaveHistory(ctx, entry); err != nil {
			h.reporter.ProgressFinish()
			return result, fmt.Errorf("reconcile: failed to stage history of order %s: %w", o.ID, err)
		}
		result.Created++
		pending++
		h.reporter.Record(fmt.Sprintf("Order %s: history entry %q at %s", o.ID, entry.Status, entry.CreatedAt.Format(time.RFC3339)))

		if pending >= h.batchSize {
			if err := h.store.Flush(ctx); err != nil {
				h.reporter.ProgressFinish()
				return result, fmt.Errorf("reconcile: failed to flush history entries: %w", err)
			}
			pending = 0
		}
	}
	h.reporter.ProgressFinish()

	if err := h.store.Flush(ctx); err != nil {
		return result, fmt.Errorf("reconcile: failed to flush history entries: %w", err)
	}

	log.Info().
		Int("considered", result.Considered).
		Int("created", result.Created).
		Int("skipped", result.Skipped).
		Msg("reconcile: status history population finished")

	h.reporter.Info(fmt.Sprintf("%d history entries created for %d orders", result.Created, result.Considered))
	h.reporter.Table([]string{"Orders", "Created", "Skipped"}, [][]string{{
		strconv.Itoa(result.Considered),
		strconv.Itoa(result.Created),
		strconv.Itoa(result.Skipped),
	}})
	return result, nil
}

func (h *HistorySynthesizer) entryFor(o *order.Order) (*order.StatusHistoryEntry, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("reconcile: failed to generate history entry ID: %w", err)
	}

	status := o.Status
	if !status.IsCanonical() {
		log.Warn().Stringer("order_id", o.ID).Stringer("status", status).Msg("reconcile: order status is not canonical, run fix-statuses first")
	}

	return &order.StatusHistoryEntry{
		ID:        id,
		OrderID:   o.ID,
		Status:    status,
		Comment:   h.comment,
		CreatedAt: Backdate(h.now(), status, h.offset),
	}, nil
}
