// Package channel provides the room-scoped publish/subscribe transport the
// sync engine runs over. The transport contract is deliberately weak:
// at-least-once delivery, no ordering across independent publishers, no
// history for late subscribers, and self-delivery (a publisher receives its
// own publishes). The engine is built to converge on exactly these terms.
package channel

import (
	"context"

	"github.com/mcdev12/colorgrid/internal/game"
)

// Handler receives one decoded room event. Implementations of Channel invoke
// it from a single goroutine per subscription.
type Handler func(ev game.Event)

// Channel is one room's topic.
type Channel interface {
	// Publish broadcasts an event to every current subscriber of the room,
	// including the publisher itself.
	Publish(ctx context.Context, ev game.Event) error

	// Subscribe registers the handler and returns only once the
	// subscription is live, so the caller may announce its presence without
	// racing its own delivery.
	Subscribe(ctx context.Context, h Handler) error

	// Close tears the subscription down. No handler calls follow Close.
	Close() error
}

// Subject is the topic name for a room code.
func Subject(roomCode string) string {
	return "color-game:" + roomCode
}
