package observability

import "context"

// Publisher is satisfied by rabbitmq.Publisher.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
}

var defaultPublisher Publisher

func SetPublisher(publisher Publisher) {
	defaultPublisher = publisher
}

// PublishEvent sends a lifecycle event through the default publisher, if any.
// The headers travel inside the envelope because the publisher interface is body-only.
func PublishEvent(ctx context.Context, routingKey string, message EventEnvelope, headers map[string]string) error {
	if defaultPublisher == nil {
		return nil
	}

	err := defaultPublisher.Publish(ctx, routingKey, struct {
		EventEnvelope
		Headers map[string]string `json:"headers,omitempty"`
	}{message, headers})
	if err != nil {
		IncAMQPPublishError()
	}
	return err
}
