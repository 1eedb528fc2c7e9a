package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHubFiltersByCase(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil)

	all, unsubAll := hub.Subscribe("")
	one, unsubOne := hub.Subscribe("c1")
	defer unsubAll()
	defer unsubOne()

	hub.Publish(CaseEvent{Type: EventApproved, CaseID: "c1"})
	hub.Publish(CaseEvent{Type: EventApproved, CaseID: "c2"})

	require.Len(t, all, 2)
	require.Len(t, one, 1)
	e := <-one
	assert.Equal(t, "c1", e.CaseID)
	assert.False(t, e.At.IsZero())
}

func TestHubDropsWhenSubscriberIsFull(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil)
	hub.bufferSize = 1
	ch, unsub := hub.Subscribe("")
	defer unsub()

	hub.Publish(CaseEvent{CaseID: "a"})
	hub.Publish(CaseEvent{CaseID: "b"})

	assert.Len(t, ch, 1)
	assert.Equal(t, "a", (<-ch).CaseID)
}

func TestUnsubscribeClosesOnce(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil)
	ch, unsub := hub.Subscribe("")
	assert.Equal(t, 1, hub.Subscribers())

	unsub()
	unsub()
	_, open := <-ch
	assert.False(t, open)
	assert.Equal(t, 0, hub.Subscribers())

	assert.NotPanics(t, func() { hub.Publish(CaseEvent{CaseID: "x"}) })
}
