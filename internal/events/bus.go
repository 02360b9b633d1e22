// Package events carries session domain events (sign-in, sign-out,
// degraded profile sync, password reset) from the session manager to
// side subscribers such as the audit publisher.
package events

import (
	"time"

	evbus "github.com/asaskevich/EventBus"
	"github.com/google/uuid"
)

// Topics.
const (
	TopicSignedIn        = "auth.signed_in"
	TopicSignedOut       = "auth.signed_out"
	TopicProfileDegraded = "auth.profile.degraded"
	TopicPasswordReset   = "auth.password_reset"
)

// Topics returns every topic published by the session layer.
func Topics() []string {
	return []string{TopicSignedIn, TopicSignedOut, TopicProfileDegraded, TopicPasswordReset}
}

// Event is the payload of every topic.
type Event struct {
	ID         string
	Topic      string
	SubjectID  string
	Email      string
	Role       string
	Detail     string
	OccurredAt time.Time
}

// Bus wraps an EventBus instance.  Handlers registered with Subscribe run
// in the publisher's goroutine; SubscribeAsync handlers run on their own
// goroutine and can be drained with Wait.
type Bus struct {
	bus evbus.Bus
}

// New returns an empty Bus.
func New() *Bus {
	return &Bus{bus: evbus.New()}
}

// Publish stamps ev with an ID and time when missing and delivers it on
// ev.Topic.
func (b *Bus) Publish(ev Event) {
	if b == nil || ev.Topic == "" {
		return
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	b.bus.Publish(ev.Topic, ev)
}

// Subscribe registers fn on topic.
func (b *Bus) Subscribe(topic string, fn func(Event)) error {
	return b.bus.Subscribe(topic, fn)
}

// SubscribeAsync registers fn on topic; deliveries for the same handler
// are serialized.
func (b *Bus) SubscribeAsync(topic string, fn func(Event)) error {
	return b.bus.SubscribeAsync(topic, fn, true)
}

// Wait blocks until every asynchronous handler has returned.
func (b *Bus) Wait() { b.bus.WaitAsync() }
