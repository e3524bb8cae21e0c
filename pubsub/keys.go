package pubsub

import "strings"

// DefaultKeyPrefix is the namespace prefix used when none is configured.
const DefaultKeyPrefix = "pubsub"

// KeySpace generates and parses the Redis keys used by the registry. Three
// namespaces hang off the prefix: conn (a connection's subscriptions), sub (a
// subscription's topics), and topic (a topic's subscriber tuples).
type KeySpace struct {
	prefix string
}

func NewKeySpace(prefix string) KeySpace {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return KeySpace{prefix: prefix}
}

// Connection returns the key of the set holding a connection's subscription keys.
func (k KeySpace) Connection(connectionID string) string {
	return k.prefix + ":conn:" + connectionID
}

// Subscription returns the key of the set holding a subscription's topic keys.
func (k KeySpace) Subscription(subscriptionID string) string {
	return k.prefix + ":sub:" + subscriptionID
}

// Topic returns the key of the set holding a topic's subscriber tuples.
func (k KeySpace) Topic(name string) string {
	return k.prefix + ":topic:" + name
}

// Tuple encodes the delivery address recorded on a topic's subscriber set:
// the connection key and subscription key joined by '#'.
func (k KeySpace) Tuple(connectionID, subscriptionID string) string {
	return k.Connection(connectionID) + "#" + k.Subscription(subscriptionID)
}

// ParseTuple recovers both ids from a subscriber tuple. Returns false for
// members that do not split into exactly two keyed halves.
func (k KeySpace) ParseTuple(member string) (connectionID, subscriptionID string, ok bool) {
	parts := strings.Split(member, "#")
	if len(parts) != 2 {
		return "", "", false
	}
	connectionID, ok1 := lastSegment(parts[0])
	subscriptionID, ok2 := lastSegment(parts[1])
	if !ok1 || !ok2 {
		return "", "", false
	}
	return connectionID, subscriptionID, true
}

// TopicName strips the topic namespace from a topic key.
func (k KeySpace) TopicName(topicKey string) string {
	return strings.TrimPrefix(topicKey, k.prefix+":topic:")
}

// SubscriptionID strips the sub namespace from a subscription key.
func (k KeySpace) SubscriptionID(subKey string) string {
	return strings.TrimPrefix(subKey, k.prefix+":sub:")
}

func lastSegment(key string) (string, bool) {
	idx := strings.LastIndexByte(key, ':')
	if idx < 0 || idx == len(key)-1 {
		return "", false
	}
	return key[idx+1:], true
}
