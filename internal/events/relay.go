package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/fjod/bakery-storefront/internal/domain"
)

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Relay feeds cart-changed events written by other instances into the local
// bus, so websocket subscribers see changes made anywhere.
type Relay struct {
	source  string
	readers []messageReader
	bus     *Bus
	logger  *zap.Logger
}

// NewRelay tails every cart-changed partition from its latest offset. No
// consumer group is joined and no offsets are committed: every instance has to
// see every event, and a restarted instance only cares about new ones.
func NewRelay(source string, bus *Bus, logger *zap.Logger, brokers ...string) *Relay {
	var readers []messageReader
	for _, partition := range cartChangedPartitions(brokers, logger) {
		reader := kafka.NewReader(kafka.ReaderConfig{
			Brokers:   brokers,
			Topic:     TopicCartChanged,
			Partition: partition,
			MaxBytes:  10e6, // 10MB
		})
		if err := reader.SetOffset(kafka.LastOffset); err != nil {
			logger.Warn("failed to seek relay reader", zap.Int("partition", partition), zap.Error(err))
		}
		readers = append(readers, reader)
	}
	return newRelay(source, bus, logger, readers...)
}

func newRelay(source string, bus *Bus, logger *zap.Logger, readers ...messageReader) *Relay {
	return &Relay{source: source, readers: readers, bus: bus, logger: logger}
}

func cartChangedPartitions(brokers []string, logger *zap.Logger) []int {
	if len(brokers) == 0 {
		return []int{0}
	}
	conn, err := kafka.Dial("tcp", brokers[0])
	if err != nil {
		logger.Warn("failed to dial kafka for partitions, relaying partition 0", zap.Error(err))
		return []int{0}
	}
	defer conn.Close()

	partitions, err := conn.ReadPartitions(TopicCartChanged)
	if err != nil || len(partitions) == 0 {
		logger.Warn("failed to read cart-changed partitions, relaying partition 0", zap.Error(err))
		return []int{0}
	}
	ids := make([]int, len(partitions))
	for i, p := range partitions {
		ids[i] = p.ID
	}
	return ids
}

// Run relays every partition until ctx is done.
func (r *Relay) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, reader := range r.readers {
		reader := reader
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ctx.Err() == nil {
				r.relayNext(ctx, reader)
			}
		}()
	}
	wg.Wait()
}

func (r *Relay) Close() {
	for _, reader := range r.readers {
		if err := reader.Close(); err != nil {
			r.logger.Warn("error closing relay reader", zap.Error(err))
		}
	}
}

func (r *Relay) relayNext(ctx context.Context, reader messageReader) {
	m, err := reader.ReadMessage(ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			r.logger.Warn("error reading cart changed message", zap.Error(err))
		}
		return
	}

	var evt domain.CartChanged
	if err := json.Unmarshal(m.Value, &evt); err != nil {
		r.logger.Warn("error parsing cart changed message", zap.Error(err))
		return
	}
	if evt.Source == r.source {
		return
	}

	_ = r.bus.PublishCartChanged(ctx, evt)
}
