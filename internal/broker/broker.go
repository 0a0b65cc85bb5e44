// Package broker carries identity replication messages between the users
// service and its replicas. Delivery is at least once: a message is
// redelivered until a handler accepts it or rejects it as malformed.
package broker

import (
	"context"
	"errors"
)

// ErrMalformed marks a message that can never be processed. Handlers wrap
// it to have the message dropped instead of redelivered.
var ErrMalformed = errors.New("broker: malformed message")

// ErrClosed is returned by operations on a closed broker.
var ErrClosed = errors.New("broker: closed")

// Message is one published event. ID is the event id and Kind its type;
// Body is the JSON payload.
type Message struct {
	ID   string
	Kind string
	Body []byte
}

// Handler processes a delivery. A nil error acknowledges the message.
type Handler func(ctx context.Context, m Message) error

type Publisher interface {
	Publish(ctx context.Context, m Message) error
}

// Subscriber delivers messages to h until ctx is done. The message being
// handled when ctx is cancelled is finished before Subscribe returns.
type Subscriber interface {
	Subscribe(ctx context.Context, h Handler) error
}
