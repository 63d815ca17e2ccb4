package realtime

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalBroker_Publish(t *testing.T) {
	h := NewHub()
	c := newClient(h, nil)
	h.Register(3, c)

	b := NewLocalBroker(h)
	require.NoError(t, b.Publish(context.Background(), 3, NewEvent(EventFollowRequest, nil)))
	assert.Equal(t, EventFollowRequest, recv(t, c).Type)
}

func TestRedisBroker_Deliver(t *testing.T) {
	h := NewHub()
	c := newClient(h, nil)
	h.Register(3, c)
	b := &RedisBroker{hub: h, channel: defaultChannel}

	payload, err := json.Marshal(envelope{UserID: 3, Event: NewEvent(EventCommentNew, map[string]any{"cid": "x"})})
	require.NoError(t, err)
	b.deliver(string(payload))

	ev := recv(t, c)
	assert.Equal(t, EventCommentNew, ev.Type)

	b.deliver("not json")
	b.deliver(`{"user_id":0,"event":{"type":"x"}}`)
	assert.Empty(t, c.send)
}

func TestNewRedisBroker_BadURL(t *testing.T) {
	_, err := NewRedisBroker("://nope", NewHub())
	assert.Error(t, err)
}
