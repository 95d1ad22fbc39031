// Package events tracks usage of the reading service: searches, time-budget
// suggestions, recommendation runs, and liked-list changes. Events are
// buffered in memory and published to Kafka; a full buffer drops rather than
// blocks the request path.
package events

import (
	"context"
	"log/slog"

	"github.com/readscape/readscape/pkg/kafka"
	"github.com/readscape/readscape/pkg/resilience"
)

type Collector struct {
	producer *kafka.Producer
	eventCh  chan any
	logger   *slog.Logger
	done     chan struct{}
}

func NewCollector(producer *kafka.Producer, bufferSize int) *Collector {
	if bufferSize <= 0 {
		bufferSize = 10000
	}
	return &Collector{
		producer: producer,
		eventCh:  make(chan any, bufferSize),
		logger:   slog.Default().With("component", "events-collector"),
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
				err := resilience.Retry(ctx, "publish-usage-event", resilience.RetryConfig{}, func() error {
					return c.producer.Publish(ctx, kafka.Event{
						Key:   "usage",
						Value: event,
					})
				})
				if err != nil {
					c.logger.Error("failed to publish usage event", "error", err)
				}
			case <-ctx.Done():
				c.drainRemaining()
				return
			}
		}
	}()
	c.logger.Info("events collector started", "buffer_size", cap(c.eventCh))
}

func (c *Collector) Track(event any) {
	select {
	case c.eventCh <- event:
	default:
		c.logger.Warn("usage event dropped (buffer full)")
	}
}

func (c *Collector) Close() {
	close(c.eventCh)
	<-c.done
}

// drainRemaining flushes whatever the buffer still holds as one batch write.
func (c *Collector) drainRemaining() {
	var batch []kafka.Event
loop:
	for {
		select {
		case event, ok := <-c.eventCh:
			if !ok {
				break loop
			}
			batch = append(batch, kafka.Event{Key: "usage", Value: event})
		default:
			break loop
		}
	}
	if len(batch) == 0 {
		return
	}
	if err := c.producer.PublishBatch(context.Background(), batch); err != nil {
		c.logger.Error("failed to publish remaining events", "count", len(batch), "error", err)
	}
}
