package game

import (
	"github.com/jacobpatterson1549/selene-ludo/game/message"
)

type (
	// Subscriber receives the messages of a room.
	Subscriber interface {
		// Send delivers the message without blocking.  False is returned if the subscriber can no longer receive messages.
		Send(m message.Message) bool
	}

	// broadcaster sends messages to the subscribers of a room in the order they are published.
	broadcaster struct {
		subscribers map[Subscriber]struct{}
	}
)

func newBroadcaster() *broadcaster {
	b := broadcaster{
		subscribers: make(map[Subscriber]struct{}),
	}
	return &b
}

// add subscribes the subscriber.
func (b *broadcaster) add(s Subscriber) {
	b.subscribers[s] = struct{}{}
}

// remove unsubscribes the subscriber.
func (b *broadcaster) remove(s Subscriber) {
	delete(b.subscribers, s)
}

// publish sends the messages to every subscriber, dropping subscribers that cannot receive them.
func (b *broadcaster) publish(messages ...message.Message) {
	for s := range b.subscribers {
		for _, m := range messages {
			if !s.Send(m) {
				delete(b.subscribers, s)
				break
			}
		}
	}
}

// len is the number of subscribers.
func (b *broadcaster) len() int {
	return len(b.subscribers)
}
