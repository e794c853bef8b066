// Package eventstreamutils builds the configured eventstream publisher.
package eventstreamutils

import (
	"fmt"

	"github.com/papercomputeco/aurion/pkg/eventstream"
	"github.com/papercomputeco/aurion/pkg/eventstream/kafka"
	"github.com/papercomputeco/aurion/pkg/eventstream/nop"
)

type NewPublisherOpts struct {
	ProviderType string
	Brokers      []string
	Topic        string
}

// NewPublisher returns the publisher named by o.ProviderType. An empty
// provider selects the no-op publisher.
func NewPublisher(o *NewPublisherOpts) (eventstream.Publisher, error) {
	switch o.ProviderType {
	case "", "nop", "none":
		return nop.NewPublisher(), nil
	case "kafka":
		return kafka.NewPublisher(kafka.Config{
			Brokers: o.Brokers,
			Topic:   o.Topic,
		})
	default:
		return nil, fmt.Errorf("unsupported event stream provider: %s", o.ProviderType)
	}
}
