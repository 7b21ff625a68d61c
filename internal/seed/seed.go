// Package seed fills a scratch database with synthetic orders so the
// maintenance commands can be rehearsed before touching production data.
package seed

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"time"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/order-maintenance/internal/order"
)

// OrderCreator persists one order together with its history.
type OrderCreator interface {
	CreateOrder(ctx context.Context, o *order.Order, history []order.StatusHistoryEntry) (uuid.UUID, error)
}

type Options struct {
	Count        int
	Users        int
	LegacyShare  float64
	GarbageShare float64
	HistoryShare float64
}

func DefaultOptions() Options {
	return Options{
		Count:        50,
		Users:        10,
		LegacyShare:  0.2,
		GarbageShare: 0.05,
		HistoryShare: 0.3,
	}
}

func (o Options) validate() error {
	if o.Count <= 0 {
		return fmt.Errorf("seed: count must be > 0, got %d", o.Count)
	}
	if o.Users <= 0 {
		return fmt.Errorf("seed: users must be > 0, got %d", o.Users)
	}
	for name, share := range map[string]float64{"legacy": o.LegacyShare, "garbage": o.GarbageShare, "history": o.HistoryShare} {
		if share < 0 || share > 1 {
			return fmt.Errorf("seed: %s share must be within [0, 1], got %v", name, share)
		}
	}
	if o.LegacyShare+o.GarbageShare > 1 {
		return fmt.Errorf("seed: legacy and garbage shares add up to more than 1")
	}
	return nil
}

type Result struct {
	Orders      int
	Legacy      int
	Garbage     int
	WithHistory int
}

var garbageStatuses = []order.OrderStatus{"xyz", "??", "null", "en_cours", "status_7", "DONE!"}

type Generator struct {
	creator OrderCreator
	rnd     *rand.Rand
	now     func() time.Time
	aliases map[order.OrderStatus][]string
}

func NewGenerator(creator OrderCreator, rnd *rand.Rand) *Generator {
	if rnd == nil {
		rnd = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	aliases := make(map[order.OrderStatus][]string)
	for alias, target := range order.LegacyAliases {
		aliases[target] = append(aliases[target], alias)
	}
	// map iteration order is random; keep seeded runs reproducible
	for target := range aliases {
		sort.Strings(aliases[target])
	}

	return &Generator{
		creator: creator,
		rnd:     rnd,
		now:     func() time.Time { return time.Now().UTC() },
		aliases: aliases,
	}
}

func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

func (g *Generator) Run(ctx context.Context, opts Options) (*Result, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	users := make([]uuid.UUID, opts.Users)
	for i := range users {
		id, err := uuid.NewV4()
		if err != nil {
			return nil, fmt.Errorf("seed: failed to generate user ID: %w", err)
		}
		users[i] = id
	}

	result := &Result{}
	for i := 0; i < opts.Count; i++ {
		o, history := g.newOrder(users[g.rnd.IntN(len(users))], opts.HistoryShare)

		switch roll := g.rnd.Float64(); {
		case roll < opts.LegacyShare:
			if alias, ok := g.legacyFor(o.Status); ok {
				o.Status = alias
				result.Legacy++
			}
		case roll < opts.LegacyShare+opts.GarbageShare:
			o.Status = garbageStatuses[g.rnd.IntN(len(garbageStatuses))]
			result.Garbage++
		}

		if _, err := g.creator.CreateOrder(ctx, o, history); err != nil {
			return result, fmt.Errorf("seed: failed to create order %d: %w", i+1, err)
		}
		result.Orders++
		if len(history) > 0 {
			result.WithHistory++
		}
	}

	log.Info().
		Int("orders", result.Orders).
		Int("legacy", result.Legacy).
		Int("garbage", result.Garbage).
		Int("with_history", result.WithHistory).
		Msg("seed: synthetic orders created")
	return result, nil
}

// newOrder walks a fresh order through the lifecycle for a random number of
// steps, optionally recording every step as history.
func (g *Generator) newOrder(userID uuid.UUID, historyShare float64) (*order.Order, []order.StatusHistoryEntry) {
	createdAt := g.now().Add(-time.Duration(30+g.rnd.IntN(72*60)) * time.Minute)
	o := &order.Order{
		UserID:      userID,
		Status:      order.StatusPending,
		TotalAmount: math.Round((8+g.rnd.Float64()*60)*100) / 100,
		CreatedAt:   createdAt,
	}

	withHistory := g.rnd.Float64() < historyShare
	var history []order.StatusHistoryEntry
	if withHistory {
		history = append(history, order.StatusHistoryEntry{
			Status:    order.StatusPending,
			Comment:   "Order placed",
			CreatedAt: createdAt,
		})
	}

	at := createdAt
	for steps := g.rnd.IntN(6); steps > 0; steps-- {
		next := order.NextStatuses(o.Status)
		if len(next) == 0 {
			break
		}
		to := next[g.rnd.IntN(len(next))]
		at = at.Add(time.Duration(1+g.rnd.IntN(20)) * time.Minute)

		if withHistory {
			prev := o.Status
			history = append(history, order.StatusHistoryEntry{
				Status:         to,
				PreviousStatus: &prev,
				Comment:        "Seeded transition",
				CreatedAt:      at,
			})
		}
		o.Status = to
	}

	return o, history
}

func (g *Generator) legacyFor(status order.OrderStatus) (order.OrderStatus, bool) {
	candidates := g.aliases[status]
	if len(candidates) == 0 {
		return "", false
	}
	return order.OrderStatus(candidates[g.rnd.IntN(len(candidates))]), true
}
