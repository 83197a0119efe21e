package notifications

import (
	"fmt"

	"github.com/codinglabe/believe-app/pkg/logger"
	"github.com/codinglabe/believe-app/pkg/metrics"
	"github.com/codinglabe/believe-app/pkg/queue"
)

// Deps holds the collaborators a channel may need. Only the ones matching
// the configured channels must be set.
type Deps struct {
	Logger  *logger.Logger
	Metrics *metrics.MarketplaceMetrics
	Repo    Repository
	Queue   queue.Enqueuer
	AMQP    jsonPublisher
}

// BuildDispatcher assembles a Dispatcher from channel names
// (store, queue, amqp, log).
func BuildDispatcher(names []string, deps Deps) (*Dispatcher, error) {
	channels := make([]Channel, 0, len(names))
	for _, name := range names {
		switch name {
		case "store":
			if deps.Repo == nil {
				return nil, fmt.Errorf("store channel requires a notifications repository")
			}
			channels = append(channels, NewStoreChannel(deps.Repo))
		case "queue":
			if deps.Queue == nil {
				return nil, fmt.Errorf("queue channel requires a queue client")
			}
			channels = append(channels, NewQueueChannel(deps.Queue))
		case "amqp":
			if deps.AMQP == nil {
				return nil, fmt.Errorf("amqp channel requires a publisher")
			}
			channels = append(channels, NewAMQPChannel(deps.AMQP))
		case "log":
			logg := deps.Logger
			if logg == nil {
				logg = logger.Nop()
			}
			channels = append(channels, NewLogChannel(logg))
		default:
			return nil, fmt.Errorf("unknown notification channel %q", name)
		}
	}
	return NewDispatcher(deps.Logger, deps.Metrics, channels...), nil
}
