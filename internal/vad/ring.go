package vad

// verdict is one classified frame held in the padding window.
type verdict struct {
	index  int
	speech bool
}

// ring is a fixed-capacity FIFO of the most recent verdicts. Pushing into a
// full ring evicts the oldest entry, so its length never exceeds its capacity.
// It keeps a running count of speech verdicts.
type ring struct {
	buf    []verdict
	head   int // position of the oldest entry
	size   int
	speech int
}

func newRing(capacity int) *ring {
	return &ring{buf: make([]verdict, capacity)}
}

func (r *ring) push(v verdict) {
	if r.size == len(r.buf) {
		if r.buf[r.head].speech {
			r.speech--
		}
		r.buf[r.head] = v
		r.head = (r.head + 1) % len(r.buf)
	} else {
		r.buf[(r.head+r.size)%len(r.buf)] = v
		r.size++
	}
	if v.speech {
		r.speech++
	}
}

func (r *ring) full() bool {
	return r.size == len(r.buf)
}

func (r *ring) len() int {
	return r.size
}

func (r *ring) speechCount() int {
	return r.speech
}
