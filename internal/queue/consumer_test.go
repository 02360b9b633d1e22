package queue

import (
    "encoding/json"
    "os"
    "path/filepath"
    "strings"
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/aswinmurali/servicehub/internal/events"
)

func TestFormatLine(t *testing.T) {
    line := FormatLine(AuthEvent{
        ID: "e1", Type: events.TopicProfileDegraded, SubjectID: "u1",
        Role: "customer", Detail: "insert failed", OccurredAt: "2026-03-01T10:00:00Z",
    })
    assert.Equal(t, `[2026-03-01T10:00:00Z] Profile sync degraded | event_id=e1 | subject_id=u1 | role=customer | detail="insert failed"`+"\n", line)
}

func TestFromEvent(t *testing.T) {
    at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
    ev := FromEvent(events.Event{ID: "e2", Topic: events.TopicSignedIn, SubjectID: "u2", Email: "u2@example.com", OccurredAt: at})
    assert.Equal(t, "auth.signed_in", ev.Type)
    assert.Equal(t, "2026-03-01T10:00:00Z", ev.OccurredAt)
}

func TestHandleMessageAppends(t *testing.T) {
    dir := filepath.Join(t.TempDir(), "logs")
    for _, topic := range []string{events.TopicSignedIn, events.TopicSignedOut} {
        body, err := json.Marshal(AuthEvent{ID: "x", Type: topic, SubjectID: "u1", OccurredAt: "2026-03-01T10:00:00Z"})
        require.NoError(t, err)
        require.NoError(t, HandleMessage(dir, body))
    }

    raw, err := os.ReadFile(filepath.Join(dir, AuditLogFile))
    require.NoError(t, err)
    lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
    require.Len(t, lines, 2)
    assert.Contains(t, lines[0], "Signed in")
    assert.Contains(t, lines[1], "Signed out")
}

func TestHandleMessageRejectsGarbage(t *testing.T) {
    dir := t.TempDir()
    assert.Error(t, HandleMessage(dir, []byte("{not json")))
    assert.Error(t, HandleMessage(dir, []byte(`{"id":"x"}`)))
    _, err := os.Stat(filepath.Join(dir, AuditLogFile))
    assert.True(t, os.IsNotExist(err))
}
