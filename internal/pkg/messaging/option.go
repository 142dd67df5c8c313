package messaging

// consumeOptions is shared by every driver. group means the Kafka consumer
// group, NSQ channel, NATS queue group or Pub/Sub subscription.
type consumeOptions struct {
	concurrency int
	autoAck     bool
	group       string
	maxInFlight int
}

// ConsumeOption configures Consume.
type ConsumeOption func(*consumeOptions)

func newConsumeOptions(opts ...ConsumeOption) consumeOptions {
	co := consumeOptions{concurrency: 1}
	for _, opt := range opts {
		if opt != nil {
			opt(&co)
		}
	}
	co.concurrency = max(co.concurrency, 1)
	if co.maxInFlight > 0 {
		co.maxInFlight = max(co.maxInFlight, co.concurrency)
	}
	return co
}

// WithConcurrency sets the number of handler goroutines.
func WithConcurrency(n int) ConsumeOption {
	return func(o *consumeOptions) { o.concurrency = n }
}

// WithGroup names the shared subscription so replicas split the stream.
func WithGroup(group string) ConsumeOption {
	return func(o *consumeOptions) { o.group = group }
}

// WithAutoAck acks after a nil handler error and nacks otherwise.
func WithAutoAck(autoAck bool) ConsumeOption {
	return func(o *consumeOptions) { o.autoAck = autoAck }
}

// WithMaxInFlight caps unacknowledged messages. It is raised to the
// concurrency when lower, so every handler goroutine can hold one message.
func WithMaxInFlight(n int) ConsumeOption {
	return func(o *consumeOptions) { o.maxInFlight = n }
}
