package identity

import "sync"

// changeFeed fans session-change events out to subscribers.  Handlers run
// synchronously in the publisher's goroutine, in subscription order.
type changeFeed struct {
	mu       sync.Mutex
	nextID   int
	handlers map[int]func(Event)
	order    []int
}

func newChangeFeed() *changeFeed {
	return &changeFeed{handlers: make(map[int]func(Event))}
}

func (f *changeFeed) subscribe(h func(Event)) func() {
	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.handlers[id] = h
	f.order = append(f.order, id)
	f.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			delete(f.handlers, id)
			for i, v := range f.order {
				if v == id {
					f.order = append(f.order[:i], f.order[i+1:]...)
					break
				}
			}
		})
	}
}

func (f *changeFeed) publish(ev Event) {
	f.mu.Lock()
	hs := make([]func(Event), 0, len(f.order))
	for _, id := range f.order {
		hs = append(hs, f.handlers[id])
	}
	f.mu.Unlock()
	for _, h := range hs {
		h(ev)
	}
}
