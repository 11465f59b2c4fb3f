package analytics

import (
	"context"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/drc-search/pkg/kafka"
	"github.com/google/uuid"
)

// Collector publishes analytics events in the background. Track never blocks
// a request; events are dropped when the buffer is full.
type Collector struct {
	producer kafka.Publisher
	eventCh  chan kafka.Event
	logger   *slog.Logger
	done     chan struct{}
}

func NewCollector(producer kafka.Publisher, bufferSize int) *Collector {
	if bufferSize <= 0 {
		bufferSize = 10000
	}
	return &Collector{
		producer: producer,
		eventCh:  make(chan kafka.Event, bufferSize),
		logger:   slog.Default().With("component", "analytics-collector"),
		done:     make(chan struct{}),
	}
}

func (c *Collector) Start(ctx context.Context) {
	go func() {
		defer close(c.done)
		for {
			select {
			case event, ok := <-c.eventCh:
				if !ok {
					return
				}
				c.publish(ctx, event)
			case <-ctx.Done():
				c.drainRemaining()
				return
			}
		}
	}()
	c.logger.Info("analytics collector started", "buffer_size", cap(c.eventCh))
}

// TrackSearch queues a search event. Searches without hits are typed as
// zero-result events.
func (c *Collector) TrackSearch(event SearchEvent) {
	if event.Type == "" {
		event.Type = EventSearch
		if event.Hits == 0 {
			event.Type = EventZeroResult
		}
	}
	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}
	c.track(event.Collection, event)
}

func (c *Collector) TrackBuild(event BuildEvent) {
	event.Type = EventBuild
	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}
	c.track(event.Collection, event)
}

func (c *Collector) TrackAnnotate(event AnnotateEvent) {
	event.Type = EventAnnotate
	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}
	c.track(event.Collection, event)
}

func (c *Collector) track(key string, value any) {
	select {
	case c.eventCh <- kafka.Event{Key: key, Value: value}:
	default:
		c.logger.Warn("analytics event dropped (buffer full)")
	}
}

// Close stops accepting events and waits for queued ones to be published.
func (c *Collector) Close() {
	close(c.eventCh)
	<-c.done
}

func (c *Collector) publish(ctx context.Context, event kafka.Event) {
	if err := c.producer.Publish(ctx, event); err != nil {
		c.logger.Error("failed to publish analytics event", "error", err)
	}
}

func (c *Collector) drainRemaining() {
	for {
		select {
		case event, ok := <-c.eventCh:
			if !ok {
				return
			}
			c.publish(context.Background(), event)
		default:
			return
		}
	}
}
