// Package messaging provides a broker-agnostic API for publishing and
// consuming messages.
//
// Mail requests arrive through a Consumer and the broker mail transport
// hands rendered messages to a Publisher. Kafka, NATS, NSQ and Google
// Pub/Sub are supported; NewFromDriver picks one by name.
package messaging
