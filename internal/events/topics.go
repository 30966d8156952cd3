package events

// Task types published on the asynq queue.
const (
	TopicCheckoutSettled = "checkout:settled"
)

// QueueCheckout is the asynq queue checkout tasks are published to.
const QueueCheckout = "checkout"
