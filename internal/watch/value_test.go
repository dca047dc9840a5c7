package watch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribeReceivesCurrentThenLatest(t *testing.T) {
	v := NewValue(1)
	ch, cancel := v.Subscribe()
	defer cancel()

	assert.Equal(t, 1, <-ch)

	v.Set(2)
	v.Set(3)
	assert.Equal(t, 3, <-ch, "slow subscriber sees only the newest value")
	assert.Equal(t, 3, v.Get())
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	v := NewValue("a")
	ch, cancel := v.Subscribe()
	<-ch
	cancel()
	cancel()

	_, ok := <-ch
	assert.False(t, ok)

	v.Set("b")
	assert.Equal(t, "b", v.Get())
}

func TestCloseEndsSubscriptions(t *testing.T) {
	v := NewValue(0)
	ch, cancel := v.Subscribe()
	<-ch
	v.Close()

	_, ok := <-ch
	assert.False(t, ok)
	cancel()

	v.Set(5)
	assert.Equal(t, 0, v.Get())

	late, _ := v.Subscribe()
	_, ok = <-late
	assert.False(t, ok)
}

func TestQueueDrainClears(t *testing.T) {
	q := NewQueue(2)
	q.Info("one")
	q.Error("two")
	q.Info("three")

	select {
	case <-q.Ready():
	default:
		t.Fatal("expected ready signal")
	}

	got := q.Drain()
	require.Len(t, got, 2)
	assert.Equal(t, "two", got[0].Message)
	assert.True(t, got[0].IsError)
	assert.Equal(t, "three", got[1].Message)
	assert.Empty(t, q.Drain())
}
