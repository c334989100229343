package service

import "github.com/pedefacil/api/internal/enum"

// statusRank orders the forward lifecycle. Cancelled sits outside the
// sequence and is reachable from any non-terminal status.
var statusRank = map[string]int{
	enum.OrderStatusPending:    0,
	enum.OrderStatusAccepted:   1,
	enum.OrderStatusPreparing:  2,
	enum.OrderStatusReady:      3,
	enum.OrderStatusDelivering: 4,
	enum.OrderStatusDelivered:  5,
}

// statusSequence is the forward order of the lifecycle.
var statusSequence = []string{
	enum.OrderStatusPending,
	enum.OrderStatusAccepted,
	enum.OrderStatusPreparing,
	enum.OrderStatusReady,
	enum.OrderStatusDelivering,
	enum.OrderStatusDelivered,
}

// IsValidStatus reports whether s is a known order status.
func IsValidStatus(s string) bool {
	if s == enum.OrderStatusCancelled {
		return true
	}
	_, ok := statusRank[s]
	return ok
}

// IsTerminal reports whether an order in status s can never change again.
func IsTerminal(s string) bool {
	return s == enum.OrderStatusDelivered || s == enum.OrderStatusCancelled
}

// CanTransition reports whether a surface may move an order from one status
// to another. Forward transitions must advance to a strictly later status;
// cancellation is allowed from any non-terminal status.
func CanTransition(from, to string) bool {
	if to == enum.OrderStatusCancelled {
		return !IsTerminal(from)
	}
	fromRank, okFrom := statusRank[from]
	toRank, okTo := statusRank[to]
	return okFrom && okTo && toRank > fromRank
}

// EarlierStatuses returns every status a forward transition to target is
// valid from. Used as the predicate set of the conditional status update, so
// a stale write can never move an order backwards.
func EarlierStatuses(target string) []string {
	rank, ok := statusRank[target]
	if !ok {
		return nil
	}
	return statusSequence[:rank]
}

// NonTerminalStatuses returns every status cancellation is valid from.
func NonTerminalStatuses() []string {
	return statusSequence[:len(statusSequence)-1]
}

// KitchenStartStatuses are the preconditions for the kitchen's "start
// preparing" action: pending and accepted are collapsed for kitchen purposes.
func KitchenStartStatuses() []string {
	return []string{enum.OrderStatusPending, enum.OrderStatusAccepted}
}
