package eventbus

// ring is a fixed-capacity FIFO of events. Not safe for concurrent use;
// the bus guards it with its own mutex.
type ring struct {
	buf  []Event
	head int // index of the oldest event
	size int
}

func newRing(capacity int) *ring {
	return &ring{buf: make([]Event, capacity)}
}

// push appends e, overwriting the oldest event when full.
func (r *ring) push(e Event) {
	c := len(r.buf)
	if r.size < c {
		r.buf[(r.head+r.size)%c] = e
		r.size++
		return
	}
	r.buf[r.head] = e
	r.head = (r.head + 1) % c
}

// snapshot returns a copy of the contents, oldest first.
func (r *ring) snapshot() []Event {
	out := make([]Event, r.size)
	c := len(r.buf)
	for i := 0; i < r.size; i++ {
		out[i] = r.buf[(r.head+i)%c]
	}
	return out
}

func (r *ring) reset() {
	clear(r.buf)
	r.head = 0
	r.size = 0
}

func (r *ring) len() int { return r.size }
