package queue

import (
	amqp "github.com/rabbitmq/amqp091-go"
)

// Acknowledger is the part of an AMQP channel a message needs to settle itself
type Acknowledger interface {
	Ack(tag uint64, multiple bool) error
	Nack(tag uint64, multiple, requeue bool) error
}

var _ Acknowledger = (*amqp.Channel)(nil)

// Message wraps a Job with its delivery information
type Message struct {
	Job         *Job
	DeliveryTag uint64
	Channel     Acknowledger
}

var _ MessageInterface = (*Message)(nil)

// Ack acknowledges the message
func (m *Message) Ack() error {
	return m.Channel.Ack(m.DeliveryTag, false)
}

// Nack negatively acknowledges the message; without requeue it goes to the DLQ
func (m *Message) Nack(requeue bool) error {
	return m.Channel.Nack(m.DeliveryTag, false, requeue)
}

// GetJob returns the wrapped job
func (m *Message) GetJob() *Job {
	return m.Job
}
