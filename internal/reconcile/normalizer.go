package reconcile

import (
	"context"
	"fmt"
	"strconv"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/order-maintenance/internal/order"
)

// UnknownStatus is a stored value that matched neither the canonical set
// nor a legacy alias.
type UnknownStatus struct {
	OrderID uuid.UUID
	Value   order.OrderStatus
}

type NormalizeResult struct {
	Considered   int
	Changed      int
	Unknown      []UnknownStatus
	Distribution map[order.OrderStatus]int
}

type Normalizer struct {
	store     Store
	reporter  Reporter
	batchSize int
}

func NewNormalizer(store Store, reporter Reporter) *Normalizer {
	if reporter == nil {
		reporter = NopReporter{}
	}
	return &Normalizer{
		store:     store,
		reporter:  reporter,
		batchSize: DefaultBatchSize,
	}
}

// WithBatchSize overrides how many status updates are staged between flushes.
func (n *Normalizer) WithBatchSize(size int) *Normalizer {
	if size > 0 {
		n.batchSize = size
	}
	return n
}

// Run maps every stored status onto the canonical set. With dryRun the
// result is computed and reported but nothing is written.
func (n *Normalizer) Run(ctx context.Context, dryRun bool) (*NormalizeResult, error) {
	orders, err := n.store.ListOrders(ctx)
	if err != nil {
		return nil, fmt.Errorf("reconcile: failed to list orders: %w", err)
	}

	result := &NormalizeResult{
		Considered:   len(orders),
		Distribution: make(map[order.OrderStatus]int, len(order.CanonicalStatuses)),
	}
	for _, s := range order.CanonicalStatuses {
		result.Distribution[s] = 0
	}

	if len(orders) == 0 {
		n.reporter.Info("No orders found, nothing to normalize")
		return result, nil
	}

	n.reporter.ProgressStart(len(orders))
	pending := 0
	for i := range orders {
		o := &orders[i]
		oldStatus := o.Status
		newStatus, resolution := order.Normalize(oldStatus)
		result.Distribution[newStatus]++
		n.reporter.ProgressAdvance()

		if resolution == order.ResolvedCanonical {
			continue
		}

		if resolution == order.ResolvedUnknown {
			result.Unknown = append(result.Unknown, UnknownStatus{OrderID: o.ID, Value: oldStatus})
			n.reporter.Warning(fmt.Sprintf("Unrecognized status %q on order %s, falling back to %q", oldStatus, o.ID, newStatus))
		}

		o.Status = newStatus
		result.Changed++
		n.reporter.Record(fmt.Sprintf("Order %s: %q -> %q", o.ID, oldStatus, newStatus))

		if dryRun {
			continue
		}

		if err := n.store.SaveStatus(ctx, o); err != nil {
			n.reporter.ProgressFinish()
			return result, fmt.Errorf("reconcile: failed to stage status of order %s: %w", o.ID, err)
		}
		pending++
		if pending >= n.batchSize {
			if err := n.store.Flush(ctx); err != nil {
				n.reporter.ProgressFinish()
				return result, fmt.Errorf("reconcile: failed to flush status updates: %w", err)
			}
			pending = 0
		}
	}
	n.reporter.ProgressFinish()

	if !dryRun && pending > 0 {
		if err := n.store.Flush(ctx); err != nil {
			return result, fmt.Errorf("reconcile: failed to flush status updates: %w", err)
		}
	}

	log.Info().
		Int("considered", result.Considered).
		Int("changed", result.Changed).
		Int("unknown", len(result.Unknown)).
		Bool("dry_run", dryRun).
		Msg("reconcile: status normalization finished")

	n.reportSummary(result, dryRun)
	return result, nil
}

func (n *Normalizer) reportSummary(result *NormalizeResult, dryRun bool) {
	if dryRun {
		n.reporter.Info(fmt.Sprintf("Dry run: %d of %d orders would be updated", result.Changed, result.Considered))
	} else {
		n.reporter.Info(fmt.Sprintf("%d of %d orders updated", result.Changed, result.Considered))
	}

	rows := make([][]string, 0, len(order.CanonicalStatuses))
	for _, s := range order.CanonicalStatuses {
		rows = append(rows, []string{string(s), s.Label(), strconv.Itoa(result.Distribution[s])})
	}
	n.reporter.Table([]string{"Status", "Label", "Orders"}, rows)
}
