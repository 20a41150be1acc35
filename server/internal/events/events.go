package events

import (
	evbus "github.com/asaskevich/EventBus"

	"downpour/server/internal/job"
)

const (
	TopicState    = "job:state"
	TopicProgress = "job:progress"
)

// Bus fans job events out to the websocket feed, the archive writer and
// anything else that subscribes.
type Bus struct {
	bus evbus.Bus
}

func NewBus() *Bus {
	return &Bus{bus: evbus.New()}
}

func (b *Bus) PublishState(s job.Snapshot) {
	b.bus.Publish(TopicState, s)
}

func (b *Bus) PublishProgress(s job.Snapshot) {
	b.bus.Publish(TopicProgress, s)
}

func (b *Bus) SubscribeState(fn func(job.Snapshot)) error {
	return b.bus.SubscribeAsync(TopicState, fn, false)
}

func (b *Bus) SubscribeProgress(fn func(job.Snapshot)) error {
	return b.bus.SubscribeAsync(TopicProgress, fn, false)
}

func (b *Bus) UnsubscribeState(fn func(job.Snapshot)) error {
	return b.bus.Unsubscribe(TopicState, fn)
}

func (b *Bus) UnsubscribeProgress(fn func(job.Snapshot)) error {
	return b.bus.Unsubscribe(TopicProgress, fn)
}

func (b *Bus) WaitAsync() {
	b.bus.WaitAsync()
}
