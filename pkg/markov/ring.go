package markov

// recentRing is a fixed-capacity FIFO of the beginnings used by recent
// generations. It exists to cut down on short-horizon repetition across
// successive calls: a beginning still in the ring is skipped while picking
// candidates. The capacity invariant is structural (array plus write index),
// not maintained by trimming.
type recentRing struct {
	slots []string
	next  int
	count int
}

func newRecentRing(capacity int) *recentRing {
	if capacity <= 0 {
		capacity = 1
	}
	return &recentRing{slots: make([]string, capacity)}
}

// Push records a beginning, evicting the oldest entry once the ring is full.
func (r *recentRing) Push(beginning string) {
	r.slots[r.next] = beginning
	r.next = (r.next + 1) % len(r.slots)
	if r.count < len(r.slots) {
		r.count++
	}
}

// Contains reports whether the beginning is still held in the ring.
func (r *recentRing) Contains(beginning string) bool {
	for i := 0; i < r.count; i++ {
		if r.slots[i] == beginning {
			return true
		}
	}
	return false
}

// Len returns the number of beginnings currently held.
func (r *recentRing) Len() int {
	return r.count
}
