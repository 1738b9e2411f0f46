package bus

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBasicPublishSubscribe(t *testing.T) {
	b := New()
	var got []Event
	_, err := b.Subscribe("/r1/collision", func(e Event) error {
		got = append(got, e)
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, b.Publish("/r1/collision", NewEvent("unity_msgs/Collision", "r1", true, nil)))
	require.Len(t, got, 1)
	assert.Equal(t, true, got[0].Data())
	assert.Equal(t, "r1", got[0].Source())
}

func TestTopicsIsolation(t *testing.T) {
	b := New()
	count1, count2 := 0, 0
	_, _ = b.Subscribe("t1", func(e Event) error { count1++; return nil })
	_, _ = b.Subscribe("t2", func(e Event) error { count2++; return nil })
	_ = b.Publish("t1", NewEvent("ev", "src", nil, nil))
	assert.Equal(t, 1, count1)
	assert.Equal(t, 0, count2)
}

func TestSubscribeTypeFilters(t *testing.T) {
	b := New()
	typed, every := 0, 0
	_, _ = b.SubscribeType("t", "a", func(Event) error { typed++; return nil })
	_, _ = b.Subscribe("t", func(Event) error { every++; return nil })

	_ = b.Publish("t", NewEvent("a", "", nil, nil))
	_ = b.Publish("t", NewEvent("b", "", nil, nil))
	assert.Equal(t, 1, typed)
	assert.Equal(t, 2, every)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New()
	n := 0
	sub, err := b.Subscribe("t", func(Event) error { n++; return nil })
	require.NoError(t, err)
	_ = b.Publish("t", NewEvent("x", "", nil, nil))
	require.NoError(t, b.Unsubscribe(sub))
	require.NoError(t, sub.Cancel())
	assert.False(t, sub.IsActive())
	_ = b.Publish("t", NewEvent("x", "", nil, nil))
	assert.Equal(t, 1, n)
	require.NoError(t, b.Unsubscribe(nil))
}

func TestPublishJoinsHandlerErrors(t *testing.T) {
	b := New()
	e1, e2 := errors.New("one"), errors.New("two")
	_, _ = b.Subscribe("t", func(Event) error { return e1 })
	_, _ = b.Subscribe("t", func(Event) error { return e2 })
	err := b.Publish("t", NewEvent("x", "", nil, nil))
	require.ErrorIs(t, err, e1)
	require.ErrorIs(t, err, e2)
}

func TestMetricsCountEveryPublish(t *testing.T) {
	b := New()
	_, _ = b.Subscribe("t", func(Event) error { return nil })
	_, _ = b.SubscribeType("t", "y", func(Event) error { return nil })
	_, _ = b.Subscribe("u", func(Event) error { return errors.New("fail") })

	require.NoError(t, b.Publish("t", NewEvent("x", "", nil, nil)))
	require.NoError(t, b.Publish("t", NewEvent("y", "", nil, nil)))
	require.Error(t, b.Publish("u", NewEvent("x", "", nil, nil)))

	m := b.GetMetrics()
	assert.Equal(t, uint64(3), m.Published)
	assert.Equal(t, uint64(4), m.DeliveredHandlers)
	assert.Equal(t, uint64(1), m.Errors)
	assert.Equal(t, uint64(3), m.SubscribersActive)
	assert.Equal(t, uint64(2), m.Topics)
}

func TestGetTopicsSorted(t *testing.T) {
	b := New()
	_, _ = b.Subscribe("b", func(Event) error { return nil })
	_ = b.Publish("a", NewEvent("x", "", nil, nil))
	topics := b.GetTopics()
	require.Len(t, topics, 2)
	assert.Equal(t, "a", topics[0].Name)
	assert.Equal(t, 0, topics[0].Subs)
	assert.Equal(t, 1, topics[1].Subs)
}

func TestNilArguments(t *testing.T) {
	b := New()
	_, err := b.Subscribe("t", nil)
	require.ErrorIs(t, err, ErrNilHandler)
	require.ErrorIs(t, b.Publish("t", nil), ErrNilEvent)
}
