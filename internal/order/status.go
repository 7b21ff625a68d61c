package order

import "strings"

type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusConfirmed  OrderStatus = "confirmed"
	StatusPreparing  OrderStatus = "preparing"
	StatusReady      OrderStatus = "ready"
	StatusDelivering OrderStatus = "delivering"
	StatusDelivered  OrderStatus = "delivered"
	StatusCancelled  OrderStatus = "cancelled"
)

// DefaultStatus is assigned to orders whose stored status cannot be recognised.
const DefaultStatus = StatusPending

func (os OrderStatus) String() string {
	return string(os)
}

// CanonicalStatuses lists the lifecycle states in workflow order.
var CanonicalStatuses = []OrderStatus{
	StatusPending,
	StatusConfirmed,
	StatusPreparing,
	StatusReady,
	StatusDelivering,
	StatusDelivered,
	StatusCancelled,
}

var statusLabels = map[OrderStatus]string{
	StatusPending:    "Pending",
	StatusConfirmed:  "Confirmed",
	StatusPreparing:  "Preparing",
	StatusReady:      "Ready",
	StatusDelivering: "Out for delivery",
	StatusDelivered:  "Delivered",
	StatusCancelled:  "Cancelled",
}

// LegacyAliases maps status strings written by older releases to their
// canonical replacement. Keys are lower case.
var LegacyAliases = map[string]OrderStatus{
	"confirmee":      StatusConfirmed,
	"confirme":       StatusConfirmed,
	"accepted":       StatusConfirmed,
	"new":            StatusPending,
	"en_attente":     StatusPending,
	"waiting":        StatusPending,
	"in_preparation": StatusPreparing,
	"en_preparation": StatusPreparing,
	"cooking":        StatusPreparing,
	"prepared":       StatusReady,
	"prete":          StatusReady,
	"in_delivery":    StatusDelivering,
	"en_livraison":   StatusDelivering,
	"shipped":        StatusDelivering,
	"livree":         StatusDelivered,
	"completed":      StatusDelivered,
	"canceled":       StatusCancelled,
	"annulee":        StatusCancelled,
}

// Label returns the display label of a canonical status, or the raw value
// for anything else.
func (os OrderStatus) Label() string {
	if label, ok := statusLabels[os]; ok {
		return label
	}
	return string(os)
}

// IsCanonical reports whether the value is exactly one of CanonicalStatuses.
func (os OrderStatus) IsCanonical() bool {
	_, ok := statusLabels[os]
	return ok
}

// Resolution tells how a stored status was mapped to a canonical one.
type Resolution int

const (
	ResolvedCanonical Resolution = iota
	ResolvedAlias
	ResolvedUnknown
)

func (r Resolution) String() string {
	switch r {
	case ResolvedCanonical:
		return "canonical"
	case ResolvedAlias:
		return "legacy alias"
	default:
		return "unknown"
	}
}

// Normalize maps a stored status to a canonical one. Exact canonical values
// are returned untouched; anything else is matched case-insensitively
// against the canonical set and LegacyAliases, and falls back to
// DefaultStatus.
func Normalize(raw OrderStatus) (OrderStatus, Resolution) {
	if raw.IsCanonical() {
		return raw, ResolvedCanonical
	}

	key := strings.ToLower(strings.TrimSpace(string(raw)))
	if folded := OrderStatus(key); folded.IsCanonical() {
		return folded, ResolvedAlias
	}
	if mapped, ok := LegacyAliases[key]; ok {
		return mapped, ResolvedAlias
	}

	return DefaultStatus, ResolvedUnknown
}

var allowedTransitions = map[OrderStatus]map[OrderStatus]bool{
	StatusPending: {
		StatusConfirmed: true,
		StatusCancelled: true,
	},
	StatusConfirmed: {
		StatusPreparing: true,
		StatusCancelled: true,
	},
	StatusPreparing: {
		StatusReady:     true,
		StatusCancelled: true,
	},
	StatusReady: {
		StatusDelivering: true,
		StatusCancelled:  true,
	},
	StatusDelivering: {
		StatusDelivered: true,
	},
	StatusDelivered: {},
	StatusCancelled: {},
}

// CanTransition checks if from->to is allowed by the order lifecycle.
func CanTransition(from, to OrderStatus) bool {
	nexts, ok := allowedTransitions[from]
	return ok && nexts[to]
}

// NextStatuses returns the statuses reachable from the given one, in
// workflow order.
func NextStatuses(from OrderStatus) []OrderStatus {
	var next []OrderStatus
	for _, s := range CanonicalStatuses {
		if CanTransition(from, s) {
			next = append(next, s)
		}
	}
	return next
}
