package notifications

import "sync"

const defaultRecorderSize = 100

// Recorder keeps the most recent notices in a ring buffer and fans them out
// to subscribers. Slow subscribers miss notices rather than block Notify.
type Recorder struct {
	mu   sync.Mutex
	buf  []Notice
	next int
	full bool

	subs map[chan Notice]struct{}
}

// NewRecorder creates a recorder holding up to size notices.
func NewRecorder(size int) *Recorder {
	if size <= 0 {
		size = defaultRecorderSize
	}
	return &Recorder{
		buf:  make([]Notice, size),
		subs: make(map[chan Notice]struct{}),
	}
}

func (r *Recorder) Notify(n Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.buf[r.next] = n
	r.next = (r.next + 1) % len(r.buf)
	if r.next == 0 {
		r.full = true
	}
	for ch := range r.subs {
		select {
		case ch <- n:
		default:
		}
	}
}

// Recent returns up to limit notices, oldest first. limit <= 0 means all.
func (r *Recorder) Recent(limit int) []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()

	var all []Notice
	if r.full {
		all = append(all, r.buf[r.next:]...)
	}
	all = append(all, r.buf[:r.next]...)
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	return all
}

// Subscribe returns a channel of future notices and a cancel func that
// closes it.
func (r *Recorder) Subscribe(buffer int) (<-chan Notice, func()) {
	ch := make(chan Notice, buffer)
	r.mu.Lock()
	r.subs[ch] = struct{}{}
	r.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.subs, ch)
			r.mu.Unlock()
			close(ch)
		})
	}
}
