// Package events defines the publish/subscribe bus used to fan group chat
// activity out to subscribers on any replica.
package events

import (
	"context"
)

// Bus publishes opaque payloads on named topics.
type Bus interface {
	// Publish sends payload to every current subscriber of topic.
	Publish(ctx context.Context, topic string, payload []byte) error

	// Subscribe returns once the subscription is confirmed by the broker.
	Subscribe(ctx context.Context, topic string) (Subscription, error)

	// Close releases the bus connection.
	Close() error
}

// Subscription delivers payloads until closed or its context ends.
type Subscription interface {
	Messages() <-chan []byte
	Close() error
}

// GroupTopic is the topic carrying events for one group chat.
func GroupTopic(groupID string) string {
	return "groupchat:" + groupID
}

// ConversationsTopic carries create and update notices for 1:1 conversations.
const ConversationsTopic = "conversations"
