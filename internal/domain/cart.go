package domain

// CartSnapshot is the session-scoped cart state: product id -> requested
// quantity. Quantities are advisory until checkout validates them against
// current stock; a snapshot is never an inventory reservation.
type CartSnapshot map[int64]int64

// IsEmpty reports whether the snapshot holds no items.
func (c CartSnapshot) IsEmpty() bool {
	return len(c) == 0
}

// ProductIDs returns the product ids present in the snapshot, in no
// particular order.
func (c CartSnapshot) ProductIDs() []int64 {
	ids := make([]int64, 0, len(c))
	for id := range c {
		ids = append(ids, id)
	}
	return ids
}
