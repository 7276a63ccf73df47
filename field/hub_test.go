package field

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// A targeted Send checks hub membership, so a client whose registration the
// hub has not processed yet is silently skipped.
func TestSendSkipsUnregisteredTarget(t *testing.T) {
	hub := NewHub()
	client := &Client{ID: uuid.New(), Hub: hub, Send: make(chan []byte, 1)}

	hub.Send(map[string]int{"n": 1}, client)

	require.Empty(t, client.Send)
}

// Deliver is the path for welcome payloads: it queues on the client directly,
// before the hub has processed the registration.
func TestDeliverBypassesRegistration(t *testing.T) {
	client := &Client{ID: uuid.New(), Send: make(chan []byte, 1)}

	client.Deliver([]byte(`{"n":1}`))

	select {
	case payload := <-client.Send:
		require.JSONEq(t, `{"n":1}`, string(payload))
	default:
		t.Fatal("welcome payload was not queued")
	}
}

func TestDeliverToClosedClientIsDropped(t *testing.T) {
	client := &Client{ID: uuid.New(), Send: make(chan []byte, 1), IsClosed: true}

	client.Deliver([]byte(`{}`))

	require.Empty(t, client.Send)
}
