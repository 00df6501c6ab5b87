package notify

import (
	"bytes"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mschirtzinger/practicesync/internal/model"
)

func TestBroker_TopicFiltering(t *testing.T) {
	b := NewBroker()
	timerCh, cancelTimer := b.Subscribe(4, TopicTimer)
	allCh, cancelAll := b.Subscribe(4)
	defer cancelAll()

	b.Publish(TopicSelection, "sel")
	b.Publish(TopicTimer, 1.5)

	ev := <-timerCh
	assert.Equal(t, TopicTimer, ev.Topic)
	assert.Equal(t, 1.5, ev.Data)
	assert.False(t, ev.Time.IsZero())
	assert.Empty(t, timerCh)

	assert.Equal(t, TopicSelection, (<-allCh).Topic)
	assert.Equal(t, TopicTimer, (<-allCh).Topic)

	assert.Equal(t, 2, b.Subscribers())
	cancelTimer()
	cancelTimer()
	assert.Equal(t, 1, b.Subscribers())
	_, open := <-timerCh
	assert.False(t, open)
}

func TestBroker_SlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	b := NewBroker()
	ch, cancel := b.Subscribe(1)
	defer cancel()

	for i := 0; i < 100; i++ {
		b.Publish(TopicTimer, i)
	}
	require.Len(t, ch, 1)
	assert.Equal(t, 0, (<-ch).Data)
}

func TestBroker_CloseEndsSubscriptions(t *testing.T) {
	b := NewBroker()
	ch, cancel := b.Subscribe(1)
	b.Close()
	b.Close()
	cancel()

	_, open := <-ch
	assert.False(t, open)

	late, _ := b.Subscribe(1)
	_, open = <-late
	assert.False(t, open)

	var nilBroker *Broker
	nilBroker.Publish(TopicSave, nil)
}

func TestNotifiers(t *testing.T) {
	var buf bytes.Buffer
	var seen []string
	item := model.SelectedItem{Item: model.LibraryItem{Name: "Scales"}, PlannedMinutes: 5}

	Multi{
		LogNotifier{Logger: log.New(&buf, "", 0)},
		Func(func(i model.SelectedItem) { seen = append(seen, i.Item.Name) }),
		nil,
	}.Overtime(item)
	Discard.Overtime(item)

	assert.Contains(t, buf.String(), "Scales")
	assert.Equal(t, []string{"Scales"}, seen)
}
