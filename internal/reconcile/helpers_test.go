package reconcile_test

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/vasiliy-maslov/order-maintenance/internal/order"
)

// memoryStore keeps staged writes apart from committed state, like the
// Postgres repository does.
type memoryStore struct {
	orders  []order.Order
	history map[uuid.UUID][]order.StatusHistoryEntry

	stagedStatus  []order.Order
	stagedHistory []order.StatusHistoryEntry

	flushes     int
	flushSizes  []int
	failFlushAt int
}

func newMemoryStore(orders ...order.Order) *memoryStore {
	return &memoryStore{
		orders:  orders,
		history: make(map[uuid.UUID][]order.StatusHistoryEntry),
	}
}

func (s *memoryStore) ListOrders(context.Context) ([]order.Order, error) {
	out := make([]order.Order, len(s.orders))
	copy(out, s.orders)
	return out, nil
}

func (s *memoryStore) HistoryByOrder(_ context.Context, orderID uuid.UUID) ([]order.StatusHistoryEntry, error) {
	return append([]order.StatusHistoryEntry(nil), s.history[orderID]...), nil
}

func (s *memoryStore) SaveStatus(_ context.Context, o *order.Order) error {
	s.stagedStatus = append(s.stagedStatus, *o)
	return nil
}

func (s *memoryStore) SaveHistory(_ context.Context, entry *order.StatusHistoryEntry) error {
	s.stagedHistory = append(s.stagedHistory, *entry)
	return nil
}

func (s *memoryStore) Flush(context.Context) error {
	s.flushes++
	if s.failFlushAt > 0 && s.flushes == s.failFlushAt {
		s.stagedStatus, s.stagedHistory = nil, nil
		return fmt.Errorf("connection reset")
	}

	s.flushSizes = append(s.flushSizes, len(s.stagedStatus)+len(s.stagedHistory))
	for _, staged := range s.stagedStatus {
		for i := range s.orders {
			if s.orders[i].ID == staged.ID {
				s.orders[i].Status = staged.Status
			}
		}
	}
	for _, entry := range s.stagedHistory {
		s.history[entry.OrderID] = append(s.history[entry.OrderID], entry)
	}
	s.stagedStatus, s.stagedHistory = nil, nil
	return nil
}

func (s *memoryStore) entryCount() int {
	total := 0
	for _, entries := range s.history {
		total += len(entries)
	}
	return total
}

type recordingReporter struct {
	infos    []string
	warnings []string
	records  []string
	tables   [][][]string
	advanced int
	started  int
	finished int
}

func (r *recordingReporter) Info(msg string)    { r.infos = append(r.infos, msg) }
func (r *recordingReporter) Warning(msg string) { r.warnings = append(r.warnings, msg) }
func (r *recordingReporter) Record(msg string)  { r.records = append(r.records, msg) }
func (r *recordingReporter) Table(_ []string, rows [][]string) {
	r.tables = append(r.tables, rows)
}
func (r *recordingReporter) ProgressStart(total int) { r.started = total }
func (r *recordingReporter) ProgressAdvance()        { r.advanced++ }
func (r *recordingReporter) ProgressFinish()         { r.finished++ }

func (r *recordingReporter) warningsMentioning(s string) int {
	n := 0
	for _, w := range r.warnings {
		if strings.Contains(w, s) {
			n++
		}
	}
	return n
}

type MockStore struct {
	mock.Mock
}

func (m *MockStore) ListOrders(ctx context.Context) ([]order.Order, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]order.Order), args.Error(1)
}

func (m *MockStore) HistoryByOrder(ctx context.Context, orderID uuid.UUID) ([]order.StatusHistoryEntry, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]order.StatusHistoryEntry), args.Error(1)
}

func (m *MockStore) SaveStatus(ctx context.Context, o *order.Order) error {
	args := m.Called(ctx, o)
	return args.Error(0)
}

func (m *MockStore) SaveHistory(ctx context.Context, entry *order.StatusHistoryEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockStore) Flush(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func newOrder(status order.OrderStatus) order.Order {
	now := time.Now().UTC()
	return order.Order{
		ID:          uuid.Must(uuid.NewV4()),
		UserID:      uuid.Must(uuid.NewV4()),
		Status:      status,
		TotalAmount: 12.5,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
