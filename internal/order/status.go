package order

// Status names seeded in the statuses table. The rows give each status a
// stable id and an is_active flag; which transitions are legal is decided
// here, not by whatever id a caller sends.
const (
	StatusPending    = "Pending"
	StatusProcessing = "Processing"
	StatusShipped    = "Shipped"
	StatusDelivered  = "Delivered"
	StatusCancelled  = "Cancelled"
)

var transitions = map[string][]string{
	StatusPending:    {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusShipped, StatusCancelled},
	StatusShipped:    {StatusDelivered},
	StatusDelivered:  {},
	StatusCancelled:  {},
}

// CanTransition reports whether to is reachable from from.
func CanTransition(from, to string) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transitions lists the legal next states, for APIs that advertise them.
func Transitions(from string) []string {
	return append([]string(nil), transitions[from]...)
}

// Cancellable reports whether a buyer may still cancel from this status.
func Cancellable(status string) bool {
	return status == StatusPending || status == StatusProcessing
}
