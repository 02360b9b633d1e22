// Package queue defines the audit payload exchanged over the message
// broker and the consumer that appends it to logs/auth.log.
package queue

import (
    "time"

    "github.com/aswinmurali/servicehub/internal/events"
)

// AuthEvent is published for every session event worth auditing: sign-in,
// sign-out, degraded profile sync and password reset requests.  It carries
// enough to log the event without querying the role store.
type AuthEvent struct {
    ID         string `json:"id"`
    Type       string `json:"type"`
    SubjectID  string `json:"subject_id,omitempty"`
    Email      string `json:"email,omitempty"`
    Role       string `json:"role,omitempty"`
    Detail     string `json:"detail,omitempty"`
    OccurredAt string `json:"occurred_at"`
}

// FromEvent converts a domain event to its wire form.
func FromEvent(ev events.Event) AuthEvent {
    return AuthEvent{
        ID:         ev.ID,
        Type:       ev.Topic,
        SubjectID:  ev.SubjectID,
        Email:      ev.Email,
        Role:       ev.Role,
        Detail:     ev.Detail,
        OccurredAt: ev.OccurredAt.UTC().Format(time.RFC3339),
    }
}
