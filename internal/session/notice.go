package session

import "sync"

// Level is the severity of a user-visible notice.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notice is a user-visible message.
type Notice struct {
	Level   Level  `json:"level"`
	Message string `json:"message"`
}

// Notifier receives user-visible notices.
type Notifier interface {
	Notify(n Notice)
}

// Notices queues notices until the next rendered view drains them.
type Notices struct {
	mu    sync.Mutex
	items []Notice
}

func (q *Notices) Notify(n Notice) {
	q.mu.Lock()
	q.items = append(q.items, n)
	q.mu.Unlock()
}

// Drain returns and forgets the queued notices.
func (q *Notices) Drain() []Notice {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.items
	q.items = nil
	return out
}

type discard struct{}

func (discard) Notify(Notice) {}
