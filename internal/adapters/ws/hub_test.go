package ws

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/switchbot/pkg/domain"
)

func drain(c *Client) []string {
	var events []string
	for {
		select {
		case msg := <-c.send:
			var env Envelope
			_ = json.Unmarshal(msg, &env)
			events = append(events, env.Event)
		default:
			return events
		}
	}
}

func welcomeWith(raw string) func(*domain.Dialog) []byte {
	return func(*domain.Dialog) []byte { return []byte(raw) }
}

func isDone(c *Client) bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func TestHub_SlowClientDropsLogLinesWithoutBlocking(t *testing.T) {
	hub := NewHub()
	slow := newClient(nil, 2)
	fast := newClient(nil, 8)
	require.True(t, hub.register(slow, welcomeWith(`{"event":"welcome"}`)))
	require.True(t, hub.register(fast, welcomeWith(`{"event":"welcome"}`)))

	for i := 0; i < 3; i++ {
		hub.Broadcast(domain.EventLogLine, "line")
	}

	assert.Equal(t, []string{"welcome", "log_line"}, drain(slow))
	assert.Equal(t, []string{"welcome", "log_line", "log_line", "log_line"}, drain(fast))
	assert.Equal(t, 2, hub.Count())
	assert.False(t, isDone(slow))
}

func TestHub_SlowClientIsDisconnectedRatherThanMissingState(t *testing.T) {
	hub := NewHub()
	slow := newClient(nil, 4)
	fast := newClient(nil, 16)
	require.True(t, hub.register(slow, welcomeWith(`{"event":"welcome"}`)))
	require.True(t, hub.register(fast, welcomeWith(`{"event":"welcome"}`)))

	for i := 0; i < 10; i++ {
		hub.Broadcast(domain.EventLogLine, "line")
	}
	require.NoError(t, hub.ShowDialog(context.Background(), domain.NewDialog("Q", "c", "Yes")))

	assert.True(t, isDone(slow))
	assert.Equal(t, 1, hub.Count())

	events := drain(fast)
	require.NotEmpty(t, events)
	assert.Equal(t, domain.EventShowDialog, events[len(events)-1])
}

func TestHub_RegisterSeesShownDialog(t *testing.T) {
	hub := NewHub()
	var seen []*domain.Dialog
	record := func(d *domain.Dialog) []byte {
		seen = append(seen, d)
		return []byte(`{}`)
	}

	require.True(t, hub.register(newClient(nil, 4), record))
	require.NoError(t, hub.ShowDialog(context.Background(), domain.NewDialog("Q", "c", "Yes", "No")))
	require.True(t, hub.register(newClient(nil, 4), record))
	hub.CloseDialog("Yes")
	require.True(t, hub.register(newClient(nil, 4), record))

	require.Len(t, seen, 3)
	assert.Nil(t, seen[0])
	require.NotNil(t, seen[1])
	assert.Equal(t, "Q", seen[1].Title)
	assert.Nil(t, seen[2])
}

func TestHub_FailedWelcomeDoesNotRegister(t *testing.T) {
	hub := NewHub()
	assert.False(t, hub.register(newClient(nil, 1), func(*domain.Dialog) []byte { return nil }))
	assert.Zero(t, hub.Count())
}

func TestHub_CloseRejectsNewClients(t *testing.T) {
	hub := NewHub()
	c := newClient(nil, 1)
	require.True(t, hub.register(c, welcomeWith(`{}`)))
	assert.Equal(t, 1, hub.Count())

	hub.Close()
	assert.Equal(t, 0, hub.Count())
	assert.False(t, c.enqueue([]byte(`{}`)))
	assert.False(t, hub.register(newClient(nil, 1), welcomeWith(`{}`)))
}

func TestHub_UnregisterIsIdempotent(t *testing.T) {
	hub := NewHub()
	c := newClient(nil, 1)
	hub.register(c, welcomeWith(`{}`))
	hub.unregister(c)
	hub.unregister(c)
	assert.Equal(t, 0, hub.Count())
}
