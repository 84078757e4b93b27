package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ForwardingServiceConfig holds the tunables of a ForwardingService.
type ForwardingServiceConfig struct {
	// NumWorkers is the size of the transform worker pool. Messages on
	// distinct topics may be handled concurrently; no cross-topic ordering
	// is promised.
	NumWorkers int
	// BatchSize is the number of items that triggers a flush to the sink.
	// A size of 1 degenerates to per-message writes.
	BatchSize int
	// FlushInterval bounds how long a partial batch may sit unflushed.
	FlushInterval time.Duration
}

// ForwardingService is the orchestration spine of the forwarder: it drains a
// MessageConsumer, translates each message with a MessageTransformer, collects
// the results, and hands batches to a BatchProcessor sink.
//
// Every message is handled independently; the service keeps no state across
// messages beyond the in-flight batch. A failed message never blocks or
// poisons the ones behind it.
type ForwardingService[T any] struct {
	cfg         ForwardingServiceConfig
	consumer    MessageConsumer
	transformer MessageTransformer[T]
	processor   BatchProcessor[T]
	logger      zerolog.Logger
	workerWg    sync.WaitGroup
	flushWg     sync.WaitGroup
	batchChan   chan ProcessableItem[T]
}

// NewForwardingService creates a ForwardingService, applying defaults for
// unset config values.
func NewForwardingService[T any](
	cfg ForwardingServiceConfig,
	consumer MessageConsumer,
	transformer MessageTransformer[T],
	processor BatchProcessor[T],
	logger zerolog.Logger,
) (*ForwardingService[T], error) {
	if cfg.NumWorkers <= 0 {
		cfg.NumWorkers = 4
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 5 * time.Second
	}
	if consumer == nil || transformer == nil || processor == nil {
		return nil, fmt.Errorf("consumer, transformer, and processor cannot be nil")
	}

	return &ForwardingService[T]{
		cfg:         cfg,
		consumer:    consumer,
		transformer: transformer,
		processor:   processor,
		logger:      logger.With().Str("service", "ForwardingService").Logger(),
		batchChan:   make(chan ProcessableItem[T], cfg.BatchSize*cfg.NumWorkers),
	}, nil
}

// Start starts the consumer, the flush worker, and the transform worker pool.
func (s *ForwardingService[T]) Start(ctx context.Context) error {
	s.logger.Info().Msg("Starting forwarding service...")

	if err := s.consumer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start message consumer: %w", err)
	}

	s.flushWg.Add(1)
	go s.flushWorker(ctx)

	s.logger.Info().Int("worker_count", s.cfg.NumWorkers).Msg("Starting transform workers...")
	s.workerWg.Add(s.cfg.NumWorkers)
	for i := 0; i < s.cfg.NumWorkers; i++ {
		go s.transformWorker(ctx, i)
	}

	// Close the batch channel only after every producing worker has exited.
	go func() {
		s.workerWg.Wait()
		close(s.batchChan)
	}()

	s.logger.Info().Msg("Forwarding service started.")
	return nil
}

// Stop shuts the service down in order: consumer first so no new messages
// arrive, then the workers, then the final flush. The context bounds how long
// the drain may take.
func (s *ForwardingService[T]) Stop(ctx context.Context) error {
	s.logger.Info().Msg("Stopping forwarding service...")

	if err := s.consumer.Stop(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("Error during consumer stop, continuing shutdown.")
	}

	done := make(chan struct{})
	go func() {
		s.workerWg.Wait()
		s.flushWg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info().Msg("All workers completed gracefully.")
	case <-ctx.Done():
		s.logger.Error().Err(ctx.Err()).Msg("Timeout waiting for workers to finish.")
		return ctx.Err()
	}

	s.logger.Info().Msg("Forwarding service stopped.")
	return nil
}

// transformWorker drains the consumer, translates, and feeds the batch channel.
func (s *ForwardingService[T]) transformWorker(ctx context.Context, workerID int) {
	defer s.workerWg.Done()
	s.logger.Debug().Int("worker_id", workerID).Msg("Transform worker started.")
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-s.consumer.Messages():
			if !ok {
				return
			}

			payload, skip, err := s.transformer(ctx, &msg)
			if err != nil {
				s.logger.Error().Err(err).Str("msg_id", msg.ID).Str("topic", msg.Topic).Msg("Failed to transform message, Nacking.")
				msg.Nack()
				continue
			}
			if skip {
				msg.Ack()
				continue
			}

			s.batchChan <- ProcessableItem[T]{Original: msg, Payload: payload}
		}
	}
}

// flushWorker collects transformed items and flushes them by size or age.
func (s *ForwardingService[T]) flushWorker(ctx context.Context) {
	defer s.flushWg.Done()

	batch := make([]ProcessableItem[T], 0, s.cfg.BatchSize)
	ticker := time.NewTicker(s.cfg.FlushInterval)
	defer ticker.Stop()

	flush := func(flushCtx context.Context) {
		if len(batch) == 0 {
			return
		}
		s.logger.Debug().Int("batch_size", len(batch)).Msg("Flushing batch to sink.")
		if err := s.processor(flushCtx, batch); err != nil {
			s.logger.Error().Err(err).Msg("Sink failed to process batch. Ack/Nack is owned by the sink.")
		}
		batch = make([]ProcessableItem[T], 0, s.cfg.BatchSize)
		ticker.Reset(s.cfg.FlushInterval)
	}

	for {
		select {
		case item, ok := <-s.batchChan:
			if !ok {
				// Final flush happens during shutdown; use a background
				// context so an already-cancelled ctx cannot abort it.
				flush(context.Background())
				return
			}
			batch = append(batch, item)
			if len(batch) >= s.cfg.BatchSize {
				flush(ctx)
			}
		case <-ticker.C:
			flush(ctx)
		}
	}
}
