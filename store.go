package termsync

import "sync"

// Store fans snapshots out to UI subscribers. It is a thin pub/sub layer on
// top of the session's change signal: subscribers always see the newest
// snapshot and may miss intermediate ones if they fall behind.
type Store struct {
	mu     sync.Mutex
	subs   map[int]chan *Snapshot
	nextID int
	latest *Snapshot
	closed bool
}

// NewStore builds an empty store.
func NewStore() *Store {
	return &Store{subs: make(map[int]chan *Snapshot)}
}

// Publish records the newest snapshot and offers it to every subscriber.
// Slow subscribers have their stale buffered snapshot replaced rather than
// blocking the publisher.
func (st *Store) Publish(snap *Snapshot) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.closed {
		return
	}
	st.latest = snap
	for _, ch := range st.subs {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}

// Latest returns the most recently published snapshot, or nil.
func (st *Store) Latest() *Snapshot {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.latest
}

// Subscribe registers a new subscriber. The returned cancel func must be
// called to release it. A just-subscribed channel immediately carries the
// latest snapshot if one exists.
func (st *Store) Subscribe() (<-chan *Snapshot, func()) {
	st.mu.Lock()
	defer st.mu.Unlock()
	id := st.nextID
	st.nextID++
	ch := make(chan *Snapshot, 1)
	if st.latest != nil {
		ch <- st.latest
	}
	st.subs[id] = ch
	cancel := func() {
		st.mu.Lock()
		defer st.mu.Unlock()
		if sub, ok := st.subs[id]; ok {
			delete(st.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Close drops all subscribers.
func (st *Store) Close() {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.closed {
		return
	}
	st.closed = true
	for id, ch := range st.subs {
		delete(st.subs, id)
		close(ch)
	}
}
