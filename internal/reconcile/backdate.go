package reconcile

import (
	"math/rand/v2"
	"time"

	"github.com/vasiliy-maslov/order-maintenance/internal/order"
)

// OffsetRange is an inclusive range of whole minutes.
type OffsetRange struct {
	Min int
	Max int
}

var backdateRanges = map[order.OrderStatus]OffsetRange{
	order.StatusPending:    {Min: 1, Max: 10},
	order.StatusConfirmed:  {Min: 1, Max: 10},
	order.StatusPreparing:  {Min: 5, Max: 45},
	order.StatusReady:      {Min: 2, Max: 30},
	order.StatusDelivering: {Min: 5, Max: 60},
}

var fallbackRange = OffsetRange{Min: 1, Max: 15}

// RangeFor returns how far back, in minutes, a synthesized entry for the
// given status may be dated.
func RangeFor(status order.OrderStatus) OffsetRange {
	if r, ok := backdateRanges[status]; ok {
		return r
	}
	return fallbackRange
}

// OffsetFunc returns an integer in [min, max].
type OffsetFunc func(min, max int) int

// RandomOffset draws uniformly from [min, max].
func RandomOffset(min, max int) int {
	if max <= min {
		return min
	}
	return min + rand.IntN(max-min+1)
}

// Backdate picks a creation time for a synthesized history entry.
func Backdate(now time.Time, status order.OrderStatus, offset OffsetFunc) time.Time {
	r := RangeFor(status)
	minutes := offset(r.Min, r.Max)
	return now.Add(-time.Duration(minutes) * time.Minute)
}
